package journal

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed journal when configured, otherwise
// in-memory. An in-memory journal loses pending work on restart; that is
// acceptable for local runs.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
