package application

import (
	"context"
	"time"

	"github.com/shopcore-ng/commerce-core/internal/inventory/domain"
)

// StockStore is the transactional ledger behind the reservation manager and
// stock mutator. Implementations must guarantee:
//
//   - CreateReservations re-reads availability with the product rows locked,
//     so two concurrent calls cannot both pass the availability check, and
//     inserts all holds or none.
//   - ApplyMovement commits the quantity change and the audit row together,
//     or neither.
//   - Delete* only touch non-expired rows where stated; expired holds are
//     inert whether or not the sweep has run.
type StockStore interface {
	CreateReservations(ctx context.Context, holds []domain.Reservation) error
	DeleteReservation(ctx context.Context, id string) (bool, error)
	DeleteReservationsByOrder(ctx context.Context, orderID string) (int64, error)
	DeleteExpiredReservations(ctx context.Context, now time.Time) (int64, error)
	ReservationsByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error)
	Availability(ctx context.Context, productID string) (domain.Availability, error)

	ApplyMovement(ctx context.Context, m domain.Movement) (domain.StockLevel, error)
	// ConvertReservation deletes the hold and applies the movement in one
	// transaction, turning a temporary hold into a durable change.
	ConvertReservation(ctx context.Context, reservationID string, m domain.Movement) (domain.StockLevel, error)
}
