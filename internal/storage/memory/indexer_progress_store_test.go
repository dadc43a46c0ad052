package memory

import (
	"context"
	"errors"
	"testing"

	"patridefi/internal/storage"
)

func TestIndexerProgressStore_RoundTrip(t *testing.T) {
	store := NewIndexerProgressStore()
	ctx := context.Background()

	if _, err := store.GetLastApplied(ctx, "mirror"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound before first save, got %v", err)
	}

	if err := store.SetLastApplied(ctx, "mirror", 7); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetLastApplied(ctx, "mirror", 12); err != nil {
		t.Fatalf("set: %v", err)
	}

	seq, err := store.GetLastApplied(ctx, "mirror")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if seq != 12 {
		t.Errorf("expected seq 12, got %d", seq)
	}

	// Consumers are independent.
	if _, err := store.GetLastApplied(ctx, "analytics"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other consumer, got %v", err)
	}
}

func TestIndexerProgressStore_RejectsEmptyConsumer(t *testing.T) {
	store := NewIndexerProgressStore()
	ctx := context.Background()

	if err := store.SetLastApplied(ctx, "", 1); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := store.GetLastApplied(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
