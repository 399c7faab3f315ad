package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore-ng/commerce-core/internal/inventory/domain"
)

func setupSettler(t *testing.T) (*Settler, *ReservationManager, *memStore) {
	store := newMemStore()
	manager := NewReservationManager(testLogger(), store)
	manager.now = store.clock
	return NewSettler(testLogger(), store, manager), manager, store
}

func TestConfirmOrder(t *testing.T) {
	settler, manager, store := setupSettler(t)
	store.addProduct("p1", 10, 0)
	store.addProduct("p2", 10, 0)
	ctx := context.Background()

	orderID := "order-1"
	_, err := manager.BulkReserve(ctx, []ReserveItem{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p2", Quantity: 2},
	}, &orderID, 0)
	require.NoError(t, err)

	require.NoError(t, settler.ConfirmOrder(ctx, orderID))

	// Holds became durable sales: quantity down, reservations gone.
	for id, want := range map[string]int{"p1": 7, "p2": 8} {
		avail, err := store.Availability(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, avail.OnHand, id)
		assert.Zero(t, avail.Reserved, id)
	}
	require.Len(t, store.movements, 2)
	for _, m := range store.movements {
		assert.Equal(t, domain.MovementSale, m.Type)
		assert.Equal(t, orderID, m.Reference)
	}

	// Replayed confirmation finds no holds and changes nothing.
	require.NoError(t, settler.ConfirmOrder(ctx, orderID))
	avail, err := store.Availability(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, avail.OnHand)
	assert.Len(t, store.movements, 2)
}

func TestConfirmOrderSkipsLapsedHolds(t *testing.T) {
	settler, manager, store := setupSettler(t)
	store.addProduct("p1", 10, 0)
	ctx := context.Background()

	orderID := "order-2"
	_, err := manager.Reserve(ctx, "p1", 4, &orderID, time.Minute)
	require.NoError(t, err)

	// The hold expires between loading and converting.
	store.beforeConvert = func() { store.advance(2 * time.Minute) }

	require.NoError(t, settler.ConfirmOrder(ctx, orderID))
	avail, err := store.Availability(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, avail.OnHand, "a lapsed hold must not become a sale")
}

func TestConfirmOrderSurfacesStoreFailure(t *testing.T) {
	settler, manager, store := setupSettler(t)
	store.addProduct("p1", 10, 0)
	ctx := context.Background()

	orderID := "order-3"
	_, err := manager.Reserve(ctx, "p1", 2, &orderID, 0)
	require.NoError(t, err)

	store.failMovementFor["p1"] = errors.New("connection reset")
	err = settler.ConfirmOrder(ctx, orderID)
	require.Error(t, err)

	// The hold survives for the retry.
	holds, err := store.ReservationsByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, holds, 1)

	delete(store.failMovementFor, "p1")
	require.NoError(t, settler.ConfirmOrder(ctx, orderID))
	avail, err := store.Availability(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 8, avail.OnHand)
}

func TestCancelOrder(t *testing.T) {
	settler, manager, store := setupSettler(t)
	store.addProduct("p1", 10, 0)
	ctx := context.Background()

	orderID := "order-4"
	_, err := manager.Reserve(ctx, "p1", 5, &orderID, 0)
	require.NoError(t, err)

	require.NoError(t, settler.CancelOrder(ctx, orderID))

	avail, err := store.Availability(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, avail.OnHand, "cancellation never touches durable stock")
	assert.Zero(t, avail.Reserved)
	assert.Empty(t, store.movements)

	// Idempotent on replay.
	require.NoError(t, settler.CancelOrder(ctx, orderID))
}
