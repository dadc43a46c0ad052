package memory

import (
	"context"
	"errors"
	"testing"

	"patridefi/internal/storage"
)

func TestTokenMirrorStore_UpsertAndGet(t *testing.T) {
	store := NewTokenMirrorStore()
	ctx := context.Background()

	row := &storage.TokenMirror{
		TokenID:    1,
		To:         "0x0000000000000000000000000000000000000001",
		SupabaseID: "0x11",
		GoldPrice:  200_000_000_000,
		Quality:    0,
		PieceValue: 159_470_147_574,
		MintedAt:   1_700_000_000_000,
	}
	if err := store.Upsert(ctx, row); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *row {
		t.Errorf("expected %+v, got %+v", row, got)
	}

	if _, err := store.GetByID(ctx, 2); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenMirrorStore_GetBySupabaseIDOrdered(t *testing.T) {
	store := NewTokenMirrorStore()
	ctx := context.Background()

	for _, id := range []uint64{3, 1, 2} {
		if err := store.Upsert(ctx, &storage.TokenMirror{TokenID: id, SupabaseID: "0x11"}); err != nil {
			t.Fatalf("upsert %d: %v", id, err)
		}
	}
	if err := store.Upsert(ctx, &storage.TokenMirror{TokenID: 4, SupabaseID: "0x99"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := store.GetBySupabaseID(ctx, "0x11")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.TokenID != uint64(i+1) {
			t.Errorf("row %d: expected token id %d, got %d", i, i+1, row.TokenID)
		}
	}
}

func TestTokenMirrorStore_RejectsZeroID(t *testing.T) {
	store := NewTokenMirrorStore()

	if err := store.Upsert(context.Background(), &storage.TokenMirror{TokenID: 0}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
