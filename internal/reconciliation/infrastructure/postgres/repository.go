package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcore-ng/commerce-core/internal/reconciliation/application"
	"github.com/shopcore-ng/commerce-core/internal/reconciliation/domain"
	"github.com/shopcore-ng/commerce-core/pkg/tracing"
)

// Repository implements application.OrderStore on postgres.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) FindAmbiguous(ctx context.Context, q application.OrderQuery) ([]domain.Order, error) {
	// Non-terminal and "unconfirmed" coincide in this status model; the flag
	// is kept so invocation modes stay selection-parameter-only.
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_number, customer_email, payment_status, status,
		       payment_reference, total_cents, currency, created_at, updated_at
		FROM orders
		WHERE payment_status IN ($1, $2)
		  AND updated_at < $3
		  AND created_at > $4
		ORDER BY created_at`,
		domain.PaymentPending, domain.PaymentProcessing, q.UpdatedBefore, q.CreatedAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.CustomerEmail, &o.PaymentStatus, &o.Status,
			&o.PaymentReference, &o.TotalCents, &o.Currency, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *Repository) ApplyCorrection(ctx context.Context, c domain.Correction) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The status guard makes the correction lose gracefully to a concurrent
	// webhook update.
	var orderNumber string
	var reference *string
	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET payment_status=$2, status=$3,
		    payment_reference=COALESCE($4, payment_reference),
		    updated_at=now()
		WHERE id=$1 AND payment_status=$5
		RETURNING order_number, payment_reference`,
		c.OrderID, c.To, c.Fulfillment, c.BackfillReference, c.From).Scan(&orderNumber, &reference)
	if errors.Is(err, pgx.ErrNoRows) {
		return application.ErrOrderChanged
	}
	if err != nil {
		return err
	}

	eventType := domain.EventOrderPaymentCancelled
	var payload []byte
	if c.To == domain.PaymentCompleted {
		eventType = domain.EventOrderPaymentConfirmed
		ref := ""
		if reference != nil {
			ref = *reference
		}
		payload, _ = json.Marshal(domain.OrderPaymentConfirmed{
			OrderID: c.OrderID, OrderNumber: orderNumber, Reference: ref,
		})
	} else {
		payload, _ = json.Marshal(domain.OrderPaymentCancelled{
			OrderID: c.OrderID, OrderNumber: orderNumber, Reason: "payment " + string(c.To),
		})
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('order', $1, $2, $3, NULLIF($4, ''), 'pending')`,
		c.OrderID, eventType, payload, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
