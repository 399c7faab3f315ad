package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopcore-ng/commerce-core/internal/inventory/domain"
)

// StockMutator applies durable quantity changes. Every change appends an
// inventory movement row in the same transaction as the quantity update.
type StockMutator struct {
	log   *slog.Logger
	store StockStore
}

func NewStockMutator(log *slog.Logger, store StockStore) *StockMutator {
	return &StockMutator{log: log, store: store}
}

type MovementRequest struct {
	ProductID string
	Type      domain.MovementType
	Quantity  int
	Reason    string
	Reference string
	CreatedBy string
}

func (s *StockMutator) ApplyMovement(ctx context.Context, req MovementRequest) (domain.StockLevel, error) {
	if req.Quantity <= 0 {
		return domain.StockLevel{}, fmt.Errorf("movement quantity must be positive, got %d", req.Quantity)
	}
	m := domain.Movement{
		ProductID: req.ProductID,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Reference: req.Reference,
		CreatedBy: req.CreatedBy,
	}
	if _, err := m.Delta(); err != nil {
		return domain.StockLevel{}, err
	}

	level, err := s.store.ApplyMovement(ctx, m)
	if err != nil {
		return domain.StockLevel{}, fmt.Errorf("apply %s movement for product %s: %w", req.Type, req.ProductID, err)
	}
	if level.LowStock {
		s.log.Warn("stock below threshold", "product_id", level.ProductID, "quantity", level.Quantity)
	}
	return level, nil
}

type BulkAdjustItem struct {
	ProductID string
	Type      domain.MovementType
	Quantity  int
}

type BulkAdjustError struct {
	ProductID string
	Message   string
}

type BulkAdjustResult struct {
	Processed int
	Errors    []BulkAdjustError
}

// BulkAdjust applies each update independently and collects per-item errors.
// Unlike reservation batching, partial success is allowed: adjustments are
// administrative corrections, not a single business transaction.
func (s *StockMutator) BulkAdjust(ctx context.Context, items []BulkAdjustItem, batchReason, createdBy string) (BulkAdjustResult, error) {
	var res BulkAdjustResult
	for _, it := range items {
		_, err := s.ApplyMovement(ctx, MovementRequest{
			ProductID: it.ProductID,
			Type:      it.Type,
			Quantity:  it.Quantity,
			Reason:    batchReason,
			CreatedBy: createdBy,
		})
		if err != nil {
			res.Errors = append(res.Errors, BulkAdjustError{ProductID: it.ProductID, Message: err.Error()})
			continue
		}
		res.Processed++
	}
	return res, nil
}
