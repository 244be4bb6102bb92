package watch

import (
	"path/filepath"
	"strings"
)

// Kind selects which artifact family a watcher cares about.
type Kind int

const (
	KindAudio Kind = iota
	KindTranscript
)

func (k Kind) Ext() string {
	if k == KindTranscript {
		return ".csv"
	}
	return ".wav"
}

func (k Kind) String() string {
	if k == KindTranscript {
		return "transcript"
	}
	return "audio"
}

// PairPath maps an artifact path to its counterpart on the other side of
// the call: X-in.<ext> pairs with X-out.<ext> and vice versa. Paths that
// follow neither convention have no pair.
func PairPath(path string) (string, bool) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	switch {
	case strings.HasSuffix(stem, "-in"):
		return strings.TrimSuffix(stem, "-in") + "-out" + ext, true
	case strings.HasSuffix(stem, "-out"):
		return strings.TrimSuffix(stem, "-out") + "-in" + ext, true
	}
	return "", false
}

// CallID derives the call identifier shared by both halves of a pair: the
// base filename with the trailing -in/-out marker and extension removed.
func CallID(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	switch {
	case strings.HasSuffix(stem, "-in"):
		return strings.TrimSuffix(stem, "-in")
	case strings.HasSuffix(stem, "-out"):
		return strings.TrimSuffix(stem, "-out")
	}
	return ""
}
