package transcript

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

type Speaker string

const (
	SpeakerInbound  Speaker = "IN"
	SpeakerOutbound Speaker = "OUT"
)

// Segment is one utterance span of a call transcript.
type Segment struct {
	Start   float64
	End     float64
	Text    string
	Speaker Speaker
}

// Merge tags each side with its speaker and returns both streams in one
// chronological sequence ordered by Start. Equal timestamps keep input
// order, inbound before outbound.
func Merge(inbound, outbound []Segment) []Segment {
	merged := make([]Segment, 0, len(inbound)+len(outbound))
	for _, s := range inbound {
		s.Speaker = SpeakerInbound
		merged = append(merged, s)
	}
	for _, s := range outbound {
		s.Speaker = SpeakerOutbound
		merged = append(merged, s)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start < merged[j].Start
	})
	return merged
}

// RenderLines formats merged segments as "IN: ..." / "OUT: ..." lines.
func RenderLines(segments []Segment) []string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		lines = append(lines, fmt.Sprintf("%s: %s", s.Speaker, s.Text))
	}
	return lines
}

// FindKeywordAfter returns the Start of the first segment whose text
// contains keyword (case-insensitive) with Start strictly greater than
// after. Pass a negative after to search the whole transcript.
func FindKeywordAfter(segments []Segment, keyword string, after float64) (float64, bool) {
	needle := strings.ToLower(keyword)
	for _, s := range segments {
		if s.Start <= after {
			continue
		}
		if strings.Contains(strings.ToLower(s.Text), needle) {
			return s.Start, true
		}
	}
	return 0, false
}

// ReadSegmentsCSV parses the per-direction transcript format: one
// `start; end; "text"` row per line, semicolon-delimited, quoted text.
func ReadSegmentsCSV(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var segments []Segment
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ";", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%s:%d: malformed transcript row", path, lineNo)
		}
		start, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad start: %w", path, lineNo, err)
		}
		end, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad end: %w", path, lineNo, err)
		}
		text := strings.TrimSpace(parts[2])
		text = strings.Trim(text, `"`)
		segments = append(segments, Segment{Start: start, End: end, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

// WriteSegmentsCSV writes segments in the same row format ReadSegmentsCSV
// parses.
func WriteSegmentsCSV(path string, segments []Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, s := range segments {
		fmt.Fprintf(w, "%g; %g; %q\n", s.Start, s.End, s.Text)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteLines writes rendered transcript lines to path, one per line.
func WriteLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
