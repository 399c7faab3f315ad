package application

import (
	"context"
	"errors"

	"github.com/shopcore-ng/commerce-core/internal/reconciliation/domain"
)

// LookupStrategy is one way of locating an order's transaction at the
// provider. Strategies are tried in order; the first that yields a
// transaction wins.
type LookupStrategy struct {
	Name string
	Fn   func(ctx context.Context, o domain.Order) (*domain.ProviderTransaction, error)
}

// DefaultStrategies covers the three lookup paths, weakest evidence last:
//
//  1. the stored payment reference, when the order has one;
//  2. a metadata search by the human-readable order number (catches missing
//     or wrong stored references);
//  3. the order number used directly as a reference (legacy data where the
//     order number doubled as the provider reference).
func DefaultStrategies(p PaymentProvider) []LookupStrategy {
	return []LookupStrategy{
		{
			Name: "stored-reference",
			Fn: func(ctx context.Context, o domain.Order) (*domain.ProviderTransaction, error) {
				if o.PaymentReference == nil || *o.PaymentReference == "" {
					return nil, domain.ErrTransactionNotFound
				}
				return p.VerifyByReference(ctx, *o.PaymentReference)
			},
		},
		{
			Name: "order-number-search",
			Fn: func(ctx context.Context, o domain.Order) (*domain.ProviderTransaction, error) {
				return p.FindByOrderNumber(ctx, o.OrderNumber)
			},
		},
		{
			Name: "order-number-as-reference",
			Fn: func(ctx context.Context, o domain.Order) (*domain.ProviderTransaction, error) {
				return p.VerifyByReference(ctx, o.OrderNumber)
			},
		},
	}
}

// lookup runs the strategy chain. A not-found moves on to the next strategy;
// a hard provider error is remembered and surfaced only if no later strategy
// succeeds. All-not-found returns domain.ErrTransactionNotFound.
func lookup(ctx context.Context, strategies []LookupStrategy, o domain.Order) (*domain.ProviderTransaction, string, error) {
	var lastErr error
	for _, s := range strategies {
		tx, err := s.Fn(ctx, o)
		if err == nil && tx != nil {
			return tx, s.Name, nil
		}
		if err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, "", lastErr
	}
	return nil, "", domain.ErrTransactionNotFound
}
