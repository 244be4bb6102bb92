package journal

import (
	"context"
	"testing"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.SavePending(ctx, Entry{CallID: "call1", Kind: KindAudio, InPath: "/a-in.wav", OutPath: "/a-out.wav"}); err != nil {
		t.Fatalf("SavePending() error = %v", err)
	}
	if err := store.SavePending(ctx, Entry{CallID: "call2", Kind: KindConversation, InPath: "/b-in.csv", OutPath: "/b-out.csv"}); err != nil {
		t.Fatalf("SavePending() error = %v", err)
	}

	entries, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].CallID != "call1" || entries[1].CallID != "call2" {
		t.Fatalf("order: %+v", entries)
	}
	if entries[0].ID == "" || entries[0].CreatedAt.IsZero() {
		t.Fatalf("id and timestamp should be filled in: %+v", entries[0])
	}

	if err := store.DeletePending(ctx, entries[0].ID); err != nil {
		t.Fatalf("DeletePending() error = %v", err)
	}
	entries, err = store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(entries) != 1 || entries[0].CallID != "call2" {
		t.Fatalf("after delete: %+v", entries)
	}
}

func TestInMemoryStoreDeleteUnknownIDIsNoop(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.DeletePending(context.Background(), "nope"); err != nil {
		t.Fatalf("DeletePending() error = %v", err)
	}
}

func TestFactoryFallsBackToInMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "  ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()
	if _, ok := store.(*InMemoryStore); !ok {
		t.Fatalf("store = %T, want *InMemoryStore", store)
	}
}
