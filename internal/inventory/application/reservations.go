package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shopcore-ng/commerce-core/internal/inventory/domain"
)

// ReservationManager creates and releases time-boxed holds against available
// stock. Holds never touch the durable quantity; only conversion to a sale
// does.
type ReservationManager struct {
	log   *slog.Logger
	store StockStore
	now   func() time.Time
}

func NewReservationManager(log *slog.Logger, store StockStore) *ReservationManager {
	return &ReservationManager{log: log, store: store, now: time.Now}
}

type ReserveItem struct {
	ProductID string
	Quantity  int
}

// Reserve holds quantity units of a product until the ttl elapses. A zero ttl
// falls back to the checkout default.
func (m *ReservationManager) Reserve(ctx context.Context, productID string, quantity int, orderID *string, ttl time.Duration) (domain.Reservation, error) {
	holds, err := m.BulkReserve(ctx, []ReserveItem{{ProductID: productID, Quantity: quantity}}, orderID, ttl)
	if err != nil {
		return domain.Reservation{}, err
	}
	return holds[0], nil
}

// BulkReserve holds every item or none: checkout must not proceed with
// partial holds.
func (m *ReservationManager) BulkReserve(ctx context.Context, items []ReserveItem, orderID *string, ttl time.Duration) ([]domain.Reservation, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("bulk reserve: no items")
	}
	if ttl <= 0 {
		ttl = domain.DefaultReservationTTL
	}

	now := m.now().UTC()
	holds := make([]domain.Reservation, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("reserve product %s: quantity must be positive", it.ProductID)
		}
		holds = append(holds, domain.Reservation{
			ID:        uuid.NewString(),
			ProductID: it.ProductID,
			OrderID:   orderID,
			Quantity:  it.Quantity,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		})
	}

	if err := m.store.CreateReservations(ctx, holds); err != nil {
		return nil, err
	}
	return holds, nil
}

// Release drops a single hold. Missing or already-expired holds are a no-op,
// not an error.
func (m *ReservationManager) Release(ctx context.Context, reservationID string) (bool, error) {
	ok, err := m.store.DeleteReservation(ctx, reservationID)
	if err != nil {
		return false, fmt.Errorf("release reservation %s: %w", reservationID, err)
	}
	return ok, nil
}

// ReleaseByOrder drops every active hold belonging to an order.
func (m *ReservationManager) ReleaseByOrder(ctx context.Context, orderID string) (bool, error) {
	n, err := m.store.DeleteReservationsByOrder(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("release order %s holds: %w", orderID, err)
	}
	return n > 0, nil
}

// CleanupExpired purges holds past their expiry. Availability queries already
// ignore expired rows, so this only reclaims storage.
func (m *ReservationManager) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredReservations(ctx, m.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Info("expired reservations purged", "count", n)
	}
	return n, nil
}

func (m *ReservationManager) Availability(ctx context.Context, productID string) (domain.Availability, error) {
	return m.store.Availability(ctx, productID)
}

// ExpirySweep adapts CleanupExpired to the recurring-task runner.
type ExpirySweep struct {
	Manager *ReservationManager
}

func (s ExpirySweep) Name() string { return "reservation-expiry-sweep" }

func (s ExpirySweep) Run(ctx context.Context) error {
	_, err := s.Manager.CleanupExpired(ctx)
	return err
}
