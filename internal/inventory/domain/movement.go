package domain

import (
	"fmt"
	"time"
)

type MovementType string

const (
	MovementInitialStock  MovementType = "INITIAL_STOCK"
	MovementRestock       MovementType = "RESTOCK"
	MovementPurchase      MovementType = "PURCHASE"
	MovementReturn        MovementType = "RETURN"
	MovementTransferIn    MovementType = "TRANSFER_IN"
	MovementAdjustmentIn  MovementType = "ADJUSTMENT_IN"
	MovementReleaseHold   MovementType = "RELEASE_RESERVE"
	MovementSale          MovementType = "SALE"
	MovementTransferOut   MovementType = "TRANSFER_OUT"
	MovementDamage        MovementType = "DAMAGE"
	MovementTheft         MovementType = "THEFT"
	MovementExpired       MovementType = "EXPIRED"
	MovementReserve       MovementType = "RESERVE"
	MovementAdjustmentOut MovementType = "ADJUSTMENT_OUT"
)

type Direction int

const (
	Inbound Direction = iota + 1
	Outbound
)

var directions = map[MovementType]Direction{
	MovementInitialStock:  Inbound,
	MovementRestock:       Inbound,
	MovementPurchase:      Inbound,
	MovementReturn:        Inbound,
	MovementTransferIn:    Inbound,
	MovementAdjustmentIn:  Inbound,
	MovementReleaseHold:   Inbound,
	MovementSale:          Outbound,
	MovementTransferOut:   Outbound,
	MovementDamage:        Outbound,
	MovementTheft:         Outbound,
	MovementExpired:       Outbound,
	MovementReserve:       Outbound,
	MovementAdjustmentOut: Outbound,
}

// MovementDirection classifies a movement type. Unknown types are rejected
// rather than defaulted, so a typo can never silently add stock.
func MovementDirection(t MovementType) (Direction, error) {
	d, ok := directions[t]
	if !ok {
		return 0, fmt.Errorf("unknown movement type %q", t)
	}
	return d, nil
}

// Delta is the signed quantity change a movement applies to on-hand stock.
func (m Movement) Delta() (int, error) {
	d, err := MovementDirection(m.Type)
	if err != nil {
		return 0, err
	}
	if d == Outbound {
		return -m.Quantity, nil
	}
	return m.Quantity, nil
}

// Movement is one immutable audit record of a durable stock change.
type Movement struct {
	ID        int64
	ProductID string
	Type      MovementType
	Quantity  int
	Reference string
	Reason    string
	CreatedBy string
	CreatedAt time.Time
}
