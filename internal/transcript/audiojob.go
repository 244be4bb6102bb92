package transcript

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/avarra-systems/chronovoice/internal/media"
	"github.com/avarra-systems/chronovoice/internal/stt"
)

// AudioJob transcribes one matched pair of call recordings and writes the
// per-direction transcript CSVs into the transcript watch directory, where
// the transcript watcher picks them up.
type AudioJob struct {
	callID  string
	inPath  string
	outPath string
	outDir  string
	engine  stt.Engine
	log     *zap.SugaredLogger
}

func NewAudioJob(callID, inPath, outPath, outDir string, engine stt.Engine, log *zap.SugaredLogger) *AudioJob {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AudioJob{
		callID:  callID,
		inPath:  inPath,
		outPath: outPath,
		outDir:  outDir,
		engine:  engine,
		log:     log,
	}
}

func (j *AudioJob) CallID() string { return j.callID }

// Kind tags the job for the pending-work journal.
func (j *AudioJob) Kind() string { return "audio" }

// Process probes both recordings, transcribes them, and emits the two
// transcript CSVs. A half-flushed recording surfaces as media.ErrBadMedia,
// which the queue retries.
func (j *AudioJob) Process(ctx context.Context) error {
	if _, err := media.ProbeWAV(j.inPath); err != nil {
		return fmt.Errorf("probe inbound: %w", err)
	}
	if _, err := media.ProbeWAV(j.outPath); err != nil {
		return fmt.Errorf("probe outbound: %w", err)
	}

	inRes, err := j.engine.Transcribe(ctx, j.inPath)
	if err != nil {
		return fmt.Errorf("transcribe inbound: %w", err)
	}
	outRes, err := j.engine.Transcribe(ctx, j.outPath)
	if err != nil {
		return fmt.Errorf("transcribe outbound: %w", err)
	}

	inCSV := filepath.Join(j.outDir, j.callID+"-in.csv")
	outCSV := filepath.Join(j.outDir, j.callID+"-out.csv")
	if err := WriteSegmentsCSV(inCSV, toSegments(inRes)); err != nil {
		return fmt.Errorf("write inbound csv: %w", err)
	}
	if err := WriteSegmentsCSV(outCSV, toSegments(outRes)); err != nil {
		return fmt.Errorf("write outbound csv: %w", err)
	}

	j.log.Debugw("audio pair transcribed", "call_id", j.callID, "in_segments", len(inRes.Segments), "out_segments", len(outRes.Segments))
	return nil
}

func toSegments(res stt.Result) []Segment {
	segments := make([]Segment, 0, len(res.Segments))
	for _, s := range res.Segments {
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return segments
}
