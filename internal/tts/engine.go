package tts

import "context"

// Engine renders text into an audio file ready for telephony playback and
// returns the path of the produced clip.
type Engine interface {
	Synthesize(ctx context.Context, text string) (string, error)
}
