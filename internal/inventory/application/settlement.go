package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopcore-ng/commerce-core/internal/inventory/domain"
)

// Settler closes out an order's holds once its payment reaches a terminal
// state: confirmed orders convert each hold into a SALE movement, failed or
// cancelled orders simply drop them. Both paths are idempotent — an order with
// no active holds is a no-op, so replayed payment events are harmless.
type Settler struct {
	log     *slog.Logger
	store   StockStore
	manager *ReservationManager
}

func NewSettler(log *slog.Logger, store StockStore, manager *ReservationManager) *Settler {
	return &Settler{log: log, store: store, manager: manager}
}

// ConfirmOrder converts every active hold for the order into a durable sale.
// Each conversion is its own transaction; a failure mid-way leaves the
// remaining holds for the retry.
func (s *Settler) ConfirmOrder(ctx context.Context, orderID string) error {
	holds, err := s.store.ReservationsByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load holds for order %s: %w", orderID, err)
	}
	for _, h := range holds {
		_, err := s.store.ConvertReservation(ctx, h.ID, domain.Movement{
			ProductID: h.ProductID,
			Type:      domain.MovementSale,
			Quantity:  h.Quantity,
			Reference: orderID,
			Reason:    "order payment confirmed",
			CreatedBy: "system",
		})
		if errors.Is(err, domain.ErrReservationNotFound) {
			// Expired or already converted by a concurrent retry.
			continue
		}
		if err != nil {
			return fmt.Errorf("convert hold %s for order %s: %w", h.ID, orderID, err)
		}
	}
	if len(holds) > 0 {
		s.log.Info("order holds converted to sales", "order_id", orderID, "holds", len(holds))
	}
	return nil
}

// CancelOrder releases the order's holds without touching durable stock.
func (s *Settler) CancelOrder(ctx context.Context, orderID string) error {
	released, err := s.manager.ReleaseByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if released {
		s.log.Info("order holds released", "order_id", orderID)
	}
	return nil
}
