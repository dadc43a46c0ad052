package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patridefi/internal/storage"
)

func TestCustomerMirrorStore_UpsertAndGetByWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCustomerMirrorStore(pool)
	ctx := context.Background()

	row := &storage.CustomerMirror{
		Wallet:          "0x1111111111111111111111111111111111111111",
		SupabaseID:      "cust-001",
		DataHash:        "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		TotalPieceValue: "159470147574",
		UpdatedAtSeq:    3,
	}

	err := store.Upsert(ctx, row)
	require.NoError(t, err)

	retrieved, err := store.GetByWallet(ctx, row.Wallet)
	require.NoError(t, err)

	assert.Equal(t, row.Wallet, retrieved.Wallet)
	assert.Equal(t, row.SupabaseID, retrieved.SupabaseID)
	assert.Equal(t, row.DataHash, retrieved.DataHash)
	assert.Equal(t, row.TotalPieceValue, retrieved.TotalPieceValue)
	assert.Equal(t, row.UpdatedAtSeq, retrieved.UpdatedAtSeq)
}

func TestCustomerMirrorStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCustomerMirrorStore(pool)
	ctx := context.Background()

	row := &storage.CustomerMirror{
		Wallet:          "0x2222222222222222222222222222222222222222",
		SupabaseID:      "cust-002",
		DataHash:        "0xbbbb",
		TotalPieceValue: "100",
		UpdatedAtSeq:    1,
	}
	require.NoError(t, store.Upsert(ctx, row))

	row.DataHash = "0xcccc"
	row.TotalPieceValue = "250"
	row.UpdatedAtSeq = 5
	require.NoError(t, store.Upsert(ctx, row))

	retrieved, err := store.GetByWallet(ctx, row.Wallet)
	require.NoError(t, err)
	assert.Equal(t, "0xcccc", retrieved.DataHash)
	assert.Equal(t, "250", retrieved.TotalPieceValue)
	assert.Equal(t, uint64(5), retrieved.UpdatedAtSeq)
}

func TestCustomerMirrorStore_UpsertIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCustomerMirrorStore(pool)
	ctx := context.Background()

	row := &storage.CustomerMirror{
		Wallet:          "0x3333333333333333333333333333333333333333",
		SupabaseID:      "cust-003",
		DataHash:        "0xdddd",
		TotalPieceValue: "42",
		UpdatedAtSeq:    7,
	}
	require.NoError(t, store.Upsert(ctx, row))
	require.NoError(t, store.Upsert(ctx, row))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "42", all[0].TotalPieceValue)
}

func TestCustomerMirrorStore_LargeTotalPieceValue(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCustomerMirrorStore(pool)
	ctx := context.Background()

	// Beyond uint64 range.
	big := "340282366920938463463374607431768211456"
	row := &storage.CustomerMirror{
		Wallet:          "0x4444444444444444444444444444444444444444",
		SupabaseID:      "cust-004",
		DataHash:        "0xeeee",
		TotalPieceValue: big,
		UpdatedAtSeq:    9,
	}
	require.NoError(t, store.Upsert(ctx, row))

	retrieved, err := store.GetByWallet(ctx, row.Wallet)
	require.NoError(t, err)
	assert.Equal(t, big, retrieved.TotalPieceValue)
}

func TestCustomerMirrorStore_GetByWalletNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCustomerMirrorStore(pool)
	ctx := context.Background()

	_, err := store.GetByWallet(ctx, "0x9999999999999999999999999999999999999999")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCustomerMirrorStore_ListOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCustomerMirrorStore(pool)
	ctx := context.Background()

	wallets := []string{
		"0xcccccccccccccccccccccccccccccccccccccccc",
		"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
	for i, w := range wallets {
		require.NoError(t, store.Upsert(ctx, &storage.CustomerMirror{
			Wallet:          w,
			SupabaseID:      "cust",
			DataHash:        "0x00",
			TotalPieceValue: "0",
			UpdatedAtSeq:    uint64(i + 1),
		}))
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", all[0].Wallet)
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", all[1].Wallet)
	assert.Equal(t, "0xcccccccccccccccccccccccccccccccccccccccc", all[2].Wallet)
}

func TestCustomerMirrorStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCustomerMirrorStore(pool)
	ctx := context.Background()

	err := store.Upsert(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Upsert(ctx, &storage.CustomerMirror{Wallet: ""})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.GetByWallet(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
