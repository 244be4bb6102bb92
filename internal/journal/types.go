package journal

import (
	"context"
	"time"
)

// Job kinds persisted in the journal.
const (
	KindAudio        = "audio"
	KindConversation = "conversation"
)

// Entry records one unit of unfinished call work so it survives a restart.
type Entry struct {
	ID        string    `json:"id"`
	CallID    string    `json:"call_id"`
	Kind      string    `json:"kind"`
	InPath    string    `json:"in_path"`
	OutPath   string    `json:"out_path"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists pending work entries.
type Store interface {
	SavePending(ctx context.Context, entry Entry) error
	DeletePending(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]Entry, error)
	Close() error
}
