package domain

// PaymentStatus is the ledger's view of an order's payment.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentCancelled  PaymentStatus = "CANCELLED"
)

// OrderStatus is the fulfillment state derived alongside payment corrections.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var terminal = map[PaymentStatus]bool{
	PaymentCompleted: true,
	PaymentFailed:    true,
	PaymentCancelled: true,
}

func (s PaymentStatus) Terminal() bool {
	return terminal[s]
}

// CanTransition allows only non-terminal -> terminal moves. The engine never
// reopens a terminal order and never regresses COMPLETED, whatever the
// provider later reports.
func CanTransition(from, to PaymentStatus) bool {
	return !from.Terminal() && to.Terminal()
}

// FulfillmentFor derives the order fulfillment state written together with a
// payment correction.
func FulfillmentFor(s PaymentStatus) OrderStatus {
	switch s {
	case PaymentCompleted:
		return OrderConfirmed
	case PaymentFailed, PaymentCancelled:
		return OrderCancelled
	default:
		return OrderPending
	}
}

// Provider status vocabulary.
type ProviderStatus string

const (
	ProviderSuccess    ProviderStatus = "success"
	ProviderFailed     ProviderStatus = "failed"
	ProviderCancelled  ProviderStatus = "cancelled"
	ProviderAbandoned  ProviderStatus = "abandoned"
	ProviderPending    ProviderStatus = "pending"
	ProviderProcessing ProviderStatus = "processing"
)

// MapProviderStatus translates the provider vocabulary onto the internal
// enum; abandoned checkouts count as cancelled. Unknown strings map to
// PENDING so a new provider status can never trigger a correction.
func MapProviderStatus(s ProviderStatus) PaymentStatus {
	switch s {
	case ProviderSuccess:
		return PaymentCompleted
	case ProviderFailed:
		return PaymentFailed
	case ProviderCancelled, ProviderAbandoned:
		return PaymentCancelled
	case ProviderProcessing:
		return PaymentProcessing
	default:
		return PaymentPending
	}
}
