package domain

import (
	"errors"
	"time"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock quantity")
)

type Product struct {
	ID                string
	SKU               string
	Name              string
	Quantity          int
	LowStockThreshold int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Availability is the sellable view of a product: on-hand stock minus
// non-expired reservations.
type Availability struct {
	ProductID string
	OnHand    int
	Reserved  int
}

func (a Availability) Available() int {
	return a.OnHand - a.Reserved
}

func (a Availability) CanReserve(quantity int) bool {
	return a.Available() >= quantity
}

// StockLevel is the durable quantity after a movement was applied.
type StockLevel struct {
	ProductID string
	Quantity  int
	LowStock  bool
}
