package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore-ng/commerce-core/internal/inventory/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupManager(t *testing.T) (*ReservationManager, *memStore) {
	store := newMemStore()
	m := NewReservationManager(testLogger(), store)
	m.now = store.clock
	return m, store
}

func TestReserve(t *testing.T) {
	m, store := setupManager(t)
	store.addProduct("p1", 5, 2)
	ctx := context.Background()

	t.Run("holds available stock", func(t *testing.T) {
		hold, err := m.Reserve(ctx, "p1", 3, nil, 0)
		require.NoError(t, err)
		assert.NotEmpty(t, hold.ID)
		assert.Equal(t, hold.CreatedAt.Add(domain.DefaultReservationTTL), hold.ExpiresAt)

		avail, err := m.Availability(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 5, avail.OnHand)
		assert.Equal(t, 3, avail.Reserved)
		assert.Equal(t, 2, avail.Available())
	})

	t.Run("rejects oversell against active holds", func(t *testing.T) {
		_, err := m.Reserve(ctx, "p1", 4, nil, 0)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	})

	t.Run("succeeds again after release", func(t *testing.T) {
		hold, err := m.Reserve(ctx, "p1", 2, nil, 0)
		require.NoError(t, err)

		released, err := m.Release(ctx, hold.ID)
		require.NoError(t, err)
		assert.True(t, released)

		_, err = m.Reserve(ctx, "p1", 2, nil, 0)
		require.NoError(t, err)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := m.Reserve(ctx, "p1", 0, nil, 0)
		assert.Error(t, err)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := m.Reserve(ctx, "ghost", 1, nil, 0)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})
}

func TestBulkReserveAllOrNothing(t *testing.T) {
	m, store := setupManager(t)
	store.addProduct("p1", 10, 2)
	store.addProduct("p2", 1, 0)
	ctx := context.Background()

	orderID := "order-42"
	_, err := m.BulkReserve(ctx, []ReserveItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 5}, // over stock, the whole batch must fail
	}, &orderID, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	avail, err := m.Availability(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, avail.Reserved, "no hold may survive a failed batch")

	holds, err := m.BulkReserve(ctx, []ReserveItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}, &orderID, 0)
	require.NoError(t, err)
	require.Len(t, holds, 2)

	byOrder, err := store.ReservationsByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, byOrder, 2)
}

func TestExpiredHoldsFreeStockWithoutSweep(t *testing.T) {
	m, store := setupManager(t)
	store.addProduct("p1", 5, 0)
	ctx := context.Background()

	_, err := m.Reserve(ctx, "p1", 5, nil, 10*time.Minute)
	require.NoError(t, err)

	_, err = m.Reserve(ctx, "p1", 1, nil, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// The hold lapses; availability recovers with no sweep having run.
	store.advance(11 * time.Minute)

	avail, err := m.Availability(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, avail.Available())

	_, err = m.Reserve(ctx, "p1", 5, nil, 0)
	require.NoError(t, err)
}

func TestReleaseIsSoft(t *testing.T) {
	m, store := setupManager(t)
	store.addProduct("p1", 5, 0)
	ctx := context.Background()

	released, err := m.Release(ctx, "no-such-hold")
	require.NoError(t, err)
	assert.False(t, released)

	hold, err := m.Reserve(ctx, "p1", 1, nil, time.Minute)
	require.NoError(t, err)
	store.advance(2 * time.Minute)

	// Releasing an expired hold is the same no-op as a missing one.
	released, err = m.Release(ctx, hold.ID)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestReleaseByOrder(t *testing.T) {
	m, store := setupManager(t)
	store.addProduct("p1", 10, 0)
	store.addProduct("p2", 10, 0)
	ctx := context.Background()

	orderID := "order-7"
	_, err := m.BulkReserve(ctx, []ReserveItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 3},
	}, &orderID, 0)
	require.NoError(t, err)

	released, err := m.ReleaseByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = m.ReleaseByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestCleanupExpired(t *testing.T) {
	m, store := setupManager(t)
	store.addProduct("p1", 10, 0)
	ctx := context.Background()

	_, err := m.Reserve(ctx, "p1", 1, nil, time.Minute)
	require.NoError(t, err)
	_, err = m.Reserve(ctx, "p1", 1, nil, time.Hour)
	require.NoError(t, err)

	store.advance(5 * time.Minute)

	n, err := m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// memStore is an in-memory StockStore with the same transactional behavior the
// postgres repository promises: all-or-nothing reservation batches, expired
// holds invisible everywhere, movement plus quantity applied together.
type memStore struct {
	now        time.Time
	onHand     map[string]int
	thresholds map[string]int
	holds      map[string]domain.Reservation
	movements  []domain.Movement

	failMovementFor map[string]error
	beforeConvert   func()
}

func newMemStore() *memStore {
	return &memStore{
		now:             time.Now().UTC(),
		onHand:          map[string]int{},
		thresholds:      map[string]int{},
		holds:           map[string]domain.Reservation{},
		failMovementFor: map[string]error{},
	}
}

func (s *memStore) clock() time.Time { return s.now }

func (s *memStore) advance(d time.Duration) { s.now = s.now.Add(d) }

func (s *memStore) addProduct(id string, quantity, threshold int) {
	s.onHand[id] = quantity
	s.thresholds[id] = threshold
}

func (s *memStore) active(productID string) int {
	var reserved int
	for _, h := range s.holds {
		if h.ProductID == productID && !h.Expired(s.now) {
			reserved += h.Quantity
		}
	}
	return reserved
}

func (s *memStore) CreateReservations(_ context.Context, holds []domain.Reservation) error {
	staged := make(map[string]int)
	for _, h := range holds {
		onHand, ok := s.onHand[h.ProductID]
		if !ok {
			return domain.ErrProductNotFound
		}
		reserved := s.active(h.ProductID) + staged[h.ProductID]
		if onHand-reserved < h.Quantity {
			return fmt.Errorf("product %s: requested %d, available %d: %w",
				h.ProductID, h.Quantity, onHand-reserved, domain.ErrInsufficientStock)
		}
		staged[h.ProductID] += h.Quantity
	}
	for _, h := range holds {
		s.holds[h.ID] = h
	}
	return nil
}

func (s *memStore) DeleteReservation(_ context.Context, id string) (bool, error) {
	h, ok := s.holds[id]
	if !ok || h.Expired(s.now) {
		return false, nil
	}
	delete(s.holds, id)
	return true, nil
}

func (s *memStore) DeleteReservationsByOrder(_ context.Context, orderID string) (int64, error) {
	var n int64
	for id, h := range s.holds {
		if h.OrderID != nil && *h.OrderID == orderID && !h.Expired(s.now) {
			delete(s.holds, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteExpiredReservations(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, h := range s.holds {
		if h.Expired(now) {
			delete(s.holds, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) ReservationsByOrder(_ context.Context, orderID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, h := range s.holds {
		if h.OrderID != nil && *h.OrderID == orderID && !h.Expired(s.now) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *memStore) Availability(_ context.Context, productID string) (domain.Availability, error) {
	onHand, ok := s.onHand[productID]
	if !ok {
		return domain.Availability{}, domain.ErrProductNotFound
	}
	return domain.Availability{ProductID: productID, OnHand: onHand, Reserved: s.active(productID)}, nil
}

func (s *memStore) ApplyMovement(_ context.Context, m domain.Movement) (domain.StockLevel, error) {
	if err := s.failMovementFor[m.ProductID]; err != nil {
		return domain.StockLevel{}, err
	}
	onHand, ok := s.onHand[m.ProductID]
	if !ok {
		return domain.StockLevel{}, domain.ErrProductNotFound
	}
	delta, err := m.Delta()
	if err != nil {
		return domain.StockLevel{}, err
	}
	next := onHand + delta
	if next < 0 {
		return domain.StockLevel{}, domain.ErrInsufficientStock
	}
	s.onHand[m.ProductID] = next
	m.CreatedAt = s.now
	s.movements = append(s.movements, m)
	return domain.StockLevel{
		ProductID: m.ProductID,
		Quantity:  next,
		LowStock:  next <= s.thresholds[m.ProductID],
	}, nil
}

func (s *memStore) ConvertReservation(ctx context.Context, reservationID string, m domain.Movement) (domain.StockLevel, error) {
	if s.beforeConvert != nil {
		s.beforeConvert()
	}
	h, ok := s.holds[reservationID]
	if !ok || h.Expired(s.now) {
		return domain.StockLevel{}, domain.ErrReservationNotFound
	}
	level, err := s.ApplyMovement(ctx, m)
	if err != nil {
		return domain.StockLevel{}, err
	}
	delete(s.holds, reservationID)
	return level, nil
}
