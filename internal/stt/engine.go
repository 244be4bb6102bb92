package stt

import "context"

// Segment is one recognized utterance span with absolute offsets in
// seconds from the start of the audio file.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Result is the full transcription of one audio file.
type Result struct {
	Segments []Segment
	FullText string
}

// Engine transcribes a finished audio file. Implementations classify a
// malformed or incomplete container as media.ErrBadMedia so callers can
// retry once the recorder has flushed the file.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}
