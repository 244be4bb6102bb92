package stt

import (
	"context"
	"fmt"

	"github.com/avarra-systems/chronovoice/internal/media"
)

// MockEngine returns canned transcriptions keyed by file path. Used when no
// real engine is configured and throughout the tests.
type MockEngine struct {
	Results map[string]Result
	// Canned is returned for paths without an entry in Results.
	Canned Result
	// ProbeFiles makes the mock validate the WAV container like the real
	// engine, so retry behavior can be exercised end to end.
	ProbeFiles bool
}

func NewMockEngine() *MockEngine {
	return &MockEngine{Canned: Result{
		Segments: []Segment{{Start: 0, End: 1, Text: "simulated speech"}},
		FullText: "simulated speech",
	}}
}

func (e *MockEngine) Transcribe(_ context.Context, audioPath string) (Result, error) {
	if e.ProbeFiles {
		if _, err := media.ProbeWAV(audioPath); err != nil {
			return Result{}, fmt.Errorf("probe %s: %w", audioPath, err)
		}
	}
	if res, ok := e.Results[audioPath]; ok {
		return res, nil
	}
	return e.Canned, nil
}
