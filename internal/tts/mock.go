package tts

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// MockEngine writes the text itself to a file instead of audio. It records
// every synthesized utterance for assertions.
type MockEngine struct {
	mu     sync.Mutex
	Dir    string
	Spoken []string
	Err    error
}

func NewMockEngine(dir string) *MockEngine {
	if dir == "" {
		dir = os.TempDir()
	}
	return &MockEngine{Dir: dir}
}

func (e *MockEngine) Synthesize(_ context.Context, text string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return "", e.Err
	}
	e.Spoken = append(e.Spoken, text)
	path := filepath.Join(e.Dir, uuid.NewString()+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (e *MockEngine) SpokenTexts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.Spoken))
	copy(out, e.Spoken)
	return out
}
