package domain

// Event types relayed through the outbox when a correction lands. The live
// webhook path publishes the same shapes, so downstream consumers cannot tell
// a reconciliation correction from a timely webhook.
const (
	EventOrderPaymentConfirmed = "OrderPaymentConfirmed"
	EventOrderPaymentCancelled = "OrderPaymentCancelled"
)

type OrderPaymentConfirmed struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reference   string `json:"reference,omitempty"`
}

type OrderPaymentCancelled struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason,omitempty"`
}
