package domain

// Event types relayed through the outbox.
const (
	EventStockMovementRecorded = "StockMovementRecorded"
	EventLowStockAlert         = "LowStockAlert"
)

type StockMovementRecorded struct {
	ProductID   string       `json:"product_id"`
	Type        MovementType `json:"type"`
	Quantity    int          `json:"quantity"`
	NewQuantity int          `json:"new_quantity"`
	Reference   string       `json:"reference,omitempty"`
}

type LowStockAlert struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Threshold int    `json:"threshold"`
}
