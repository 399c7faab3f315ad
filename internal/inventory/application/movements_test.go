package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore-ng/commerce-core/internal/inventory/domain"
)

func setupMutator(t *testing.T) (*StockMutator, *memStore) {
	store := newMemStore()
	return NewStockMutator(testLogger(), store), store
}

func TestApplyMovement(t *testing.T) {
	mut, store := setupMutator(t)
	store.addProduct("p1", 10, 3)
	ctx := context.Background()

	t.Run("inbound adds stock", func(t *testing.T) {
		level, err := mut.ApplyMovement(ctx, MovementRequest{
			ProductID: "p1", Type: domain.MovementRestock, Quantity: 5,
			Reason: "supplier delivery", CreatedBy: "admin",
		})
		require.NoError(t, err)
		assert.Equal(t, 15, level.Quantity)
		assert.False(t, level.LowStock)
	})

	t.Run("outbound subtracts stock", func(t *testing.T) {
		level, err := mut.ApplyMovement(ctx, MovementRequest{
			ProductID: "p1", Type: domain.MovementDamage, Quantity: 11, CreatedBy: "admin",
		})
		require.NoError(t, err)
		assert.Equal(t, 4, level.Quantity)
	})

	t.Run("flags low stock at threshold", func(t *testing.T) {
		level, err := mut.ApplyMovement(ctx, MovementRequest{
			ProductID: "p1", Type: domain.MovementSale, Quantity: 1, CreatedBy: "system",
		})
		require.NoError(t, err)
		assert.Equal(t, 3, level.Quantity)
		assert.True(t, level.LowStock)
	})

	t.Run("never drives quantity negative", func(t *testing.T) {
		_, err := mut.ApplyMovement(ctx, MovementRequest{
			ProductID: "p1", Type: domain.MovementSale, Quantity: 100, CreatedBy: "system",
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		level, err := store.Availability(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 3, level.OnHand, "failed movement must not change stock")
	})

	t.Run("rejects unknown movement type before touching the store", func(t *testing.T) {
		_, err := mut.ApplyMovement(ctx, MovementRequest{
			ProductID: "p1", Type: "REBALANCE", Quantity: 1,
		})
		assert.Error(t, err)
		assert.Len(t, store.movements, 3, "no audit row for a rejected movement")
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := mut.ApplyMovement(ctx, MovementRequest{
			ProductID: "p1", Type: domain.MovementRestock, Quantity: -2,
		})
		assert.Error(t, err)
	})
}

func TestApplyMovementAppendsAuditRow(t *testing.T) {
	mut, store := setupMutator(t)
	store.addProduct("p1", 0, 0)

	_, err := mut.ApplyMovement(context.Background(), MovementRequest{
		ProductID: "p1", Type: domain.MovementInitialStock, Quantity: 20,
		Reason: "initial load", Reference: "PO-1", CreatedBy: "admin",
	})
	require.NoError(t, err)

	require.Len(t, store.movements, 1)
	m := store.movements[0]
	assert.Equal(t, domain.MovementInitialStock, m.Type)
	assert.Equal(t, 20, m.Quantity)
	assert.Equal(t, "PO-1", m.Reference)
	assert.Equal(t, "admin", m.CreatedBy)
}

func TestBulkAdjustPartialSuccess(t *testing.T) {
	mut, store := setupMutator(t)
	store.addProduct("p1", 10, 0)
	store.addProduct("p2", 1, 0)
	store.addProduct("p3", 10, 0)
	store.failMovementFor["p3"] = errors.New("deadlock detected")

	res, err := mut.BulkAdjust(context.Background(), []BulkAdjustItem{
		{ProductID: "p1", Type: domain.MovementAdjustmentIn, Quantity: 5},
		{ProductID: "p2", Type: domain.MovementAdjustmentOut, Quantity: 9}, // over stock
		{ProductID: "p3", Type: domain.MovementAdjustmentIn, Quantity: 1},  // store failure
		{ProductID: "missing", Type: domain.MovementAdjustmentIn, Quantity: 1},
	}, "stocktake 2026-08", "admin")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, "p2", res.Errors[0].ProductID)
	assert.Equal(t, "p3", res.Errors[1].ProductID)
	assert.Equal(t, "missing", res.Errors[2].ProductID)

	// The good item landed despite its neighbors failing.
	avail, err := store.Availability(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 15, avail.OnHand)
}
