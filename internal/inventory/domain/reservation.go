package domain

import (
	"errors"
	"time"
)

// ErrReservationNotFound signals a hold that is missing or already expired.
// Release paths treat it as a soft no-op; conversion paths skip the hold.
var ErrReservationNotFound = errors.New("reservation not found")

// Reservation is a time-boxed hold against available stock. It never changes
// the durable quantity; only conversion to a SALE movement does.
type Reservation struct {
	ID        string
	ProductID string
	OrderID   *string
	Quantity  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (r Reservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// DefaultReservationTTL is how long a checkout hold survives without payment.
const DefaultReservationTTL = 15 * time.Minute
