package memory

import (
	"context"
	"errors"
	"testing"

	"patridefi/internal/storage"
)

func TestCustomerMirrorStore_UpsertIsIdempotent(t *testing.T) {
	store := NewCustomerMirrorStore()
	ctx := context.Background()

	row := &storage.CustomerMirror{
		Wallet:          "0x00000000000000000000000000000000000000aa",
		SupabaseID:      "0x11",
		DataHash:        "0x22",
		TotalPieceValue: "159470147574",
		UpdatedAtSeq:    3,
	}

	for i := 0; i < 2; i++ {
		if err := store.Upsert(ctx, row); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	got, err := store.GetByWallet(ctx, row.Wallet)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *row {
		t.Errorf("expected %+v, got %+v", row, got)
	}

	rows, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected 1 row after double upsert, got %d", len(rows))
	}
}

func TestCustomerMirrorStore_UpsertReplaces(t *testing.T) {
	store := NewCustomerMirrorStore()
	ctx := context.Background()

	wallet := "0x00000000000000000000000000000000000000aa"
	if err := store.Upsert(ctx, &storage.CustomerMirror{Wallet: wallet, TotalPieceValue: "100"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, &storage.CustomerMirror{Wallet: wallet, TotalPieceValue: "250", UpdatedAtSeq: 9}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetByWallet(ctx, wallet)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalPieceValue != "250" || got.UpdatedAtSeq != 9 {
		t.Errorf("expected replaced row, got %+v", got)
	}
}

func TestCustomerMirrorStore_NotFoundAndInvalid(t *testing.T) {
	store := NewCustomerMirrorStore()
	ctx := context.Background()

	if _, err := store.GetByWallet(ctx, "0xmissing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if err := store.Upsert(ctx, &storage.CustomerMirror{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty wallet, got %v", err)
	}
}

func TestCustomerMirrorStore_ListOrdered(t *testing.T) {
	store := NewCustomerMirrorStore()
	ctx := context.Background()

	for _, w := range []string{"0xcc", "0xaa", "0xbb"} {
		if err := store.Upsert(ctx, &storage.CustomerMirror{Wallet: w}); err != nil {
			t.Fatalf("upsert %s: %v", w, err)
		}
	}

	rows, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 || rows[0].Wallet != "0xaa" || rows[1].Wallet != "0xbb" || rows[2].Wallet != "0xcc" {
		t.Errorf("unexpected order: %+v", rows)
	}
}
