package domain

import (
	"errors"
	"time"
)

var ErrTransactionNotFound = errors.New("provider transaction not found")

type Order struct {
	ID               string
	OrderNumber      string
	CustomerEmail    string
	PaymentStatus    PaymentStatus
	Status           OrderStatus
	PaymentReference *string
	TotalCents       int64
	Currency         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProviderTransaction is the provider's ground-truth record for a payment.
type ProviderTransaction struct {
	Reference   string
	Status      ProviderStatus
	AmountCents int64
	Currency    string
	Metadata    map[string]string
	PaidAt      *time.Time
}

// Correction is the terminal transition the engine writes back to the ledger.
// BackfillReference carries a reference discovered via metadata search when
// the order had none stored.
type Correction struct {
	OrderID           string
	From              PaymentStatus
	To                PaymentStatus
	Fulfillment       OrderStatus
	BackfillReference *string
}
