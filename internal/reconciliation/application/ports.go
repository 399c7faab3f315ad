package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopcore-ng/commerce-core/internal/reconciliation/domain"
)

// ErrOrderChanged reports that a correction lost the race against a
// concurrent update (usually the live webhook path). The engine treats it as
// a skip, not a failure.
var ErrOrderChanged = errors.New("order changed concurrently")

// OrderQuery selects orders in ambiguous payment states. UpdatedBefore keeps
// the engine off orders a concurrent webhook just touched; CreatedAfter
// bounds how far back a run looks.
type OrderQuery struct {
	UpdatedBefore   time.Time
	CreatedAfter    time.Time
	OnlyUnconfirmed bool
}

type OrderStore interface {
	FindAmbiguous(ctx context.Context, q OrderQuery) ([]domain.Order, error)
	// ApplyCorrection writes the payment status, the derived fulfillment
	// status, and any backfilled reference in one update, guarded by the
	// expected current status; the matching outbox event rides the same
	// transaction. Returns ErrOrderChanged when the guard misses.
	ApplyCorrection(ctx context.Context, c domain.Correction) error
}

// PaymentProvider is the external payment gateway's verification API. Both
// methods return domain.ErrTransactionNotFound when the provider has no
// matching record.
type PaymentProvider interface {
	VerifyByReference(ctx context.Context, reference string) (*domain.ProviderTransaction, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.ProviderTransaction, error)
}

type Notification struct {
	Kind      string
	Recipient string
	Data      map[string]string
}

// Notifier is fire-and-forget: callers log failures and never propagate them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Notification kinds dispatched by the engine.
const (
	NotifyPaymentConfirmed      = "payment.confirmed"
	NotifyPaymentCancelled      = "payment.cancelled"
	NotifyReconciliationSummary = "reconciliation.summary"
)
