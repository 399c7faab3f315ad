package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopcore-ng/commerce-core/internal/inventory/domain"
	"github.com/shopcore-ng/commerce-core/pkg/tracing"
)

// Repository implements application.StockStore on postgres. Availability
// checks and quantity changes take a FOR UPDATE lock on the product row, so
// concurrent reservations against the same product serialize on that row and
// can never both pass a stale availability check.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) CreateReservations(ctx context.Context, holds []domain.Reservation) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, h := range holds {
		var onHand int
		err := tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id=$1 FOR UPDATE`, h.ProductID).Scan(&onHand)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %s: %w", h.ProductID, domain.ErrProductNotFound)
		}
		if err != nil {
			return err
		}

		// Re-read holds under the row lock; inserts from earlier iterations
		// of this batch are visible here.
		var reserved int
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(quantity), 0) FROM stock_reservations
			WHERE product_id=$1 AND expires_at > now()`, h.ProductID).Scan(&reserved)
		if err != nil {
			return err
		}

		if onHand-reserved < h.Quantity {
			return fmt.Errorf("product %s: requested %d, available %d: %w",
				h.ProductID, h.Quantity, onHand-reserved, domain.ErrInsufficientStock)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO stock_reservations (id, product_id, order_id, quantity, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			h.ID, h.ProductID, h.OrderID, h.Quantity, h.ExpiresAt, h.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) DeleteReservation(ctx context.Context, id string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM stock_reservations WHERE id=$1 AND expires_at > now()`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *Repository) DeleteReservationsByOrder(ctx context.Context, orderID string) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM stock_reservations WHERE order_id=$1 AND expires_at > now()`, orderID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *Repository) DeleteExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM stock_reservations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *Repository) ReservationsByOrder(ctx context.Context, orderID string) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, order_id, quantity, expires_at, created_at
		FROM stock_reservations
		WHERE order_id=$1 AND expires_at > now()`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []domain.Reservation
	for rows.Next() {
		var h domain.Reservation
		if err := rows.Scan(&h.ID, &h.ProductID, &h.OrderID, &h.Quantity, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (r *Repository) Availability(ctx context.Context, productID string) (domain.Availability, error) {
	var a domain.Availability
	a.ProductID = productID
	err := r.pool.QueryRow(ctx, `
		SELECT p.quantity,
		       COALESCE((SELECT SUM(s.quantity) FROM stock_reservations s
		                 WHERE s.product_id = p.id AND s.expires_at > now()), 0)
		FROM products p WHERE p.id=$1`, productID).Scan(&a.OnHand, &a.Reserved)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Availability{}, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	if err != nil {
		return domain.Availability{}, err
	}
	return a, nil
}

func (r *Repository) ApplyMovement(ctx context.Context, m domain.Movement) (domain.StockLevel, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.StockLevel{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	level, err := r.applyMovementTx(ctx, tx, m)
	if err != nil {
		return domain.StockLevel{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StockLevel{}, err
	}
	return level, nil
}

func (r *Repository) ConvertReservation(ctx context.Context, reservationID string, m domain.Movement) (domain.StockLevel, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.StockLevel{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `DELETE FROM stock_reservations WHERE id=$1 AND expires_at > now()`, reservationID)
	if err != nil {
		return domain.StockLevel{}, err
	}
	if ct.RowsAffected() == 0 {
		return domain.StockLevel{}, fmt.Errorf("reservation %s: %w", reservationID, domain.ErrReservationNotFound)
	}

	level, err := r.applyMovementTx(ctx, tx, m)
	if err != nil {
		return domain.StockLevel{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StockLevel{}, err
	}
	return level, nil
}

// applyMovementTx updates the quantity and appends the audit row inside the
// caller's transaction; both commit or neither does. Outbox events for the
// movement (and a low-stock alert when the threshold is crossed) ride the
// same transaction.
func (r *Repository) applyMovementTx(ctx context.Context, tx pgx.Tx, m domain.Movement) (domain.StockLevel, error) {
	delta, err := m.Delta()
	if err != nil {
		return domain.StockLevel{}, err
	}

	var onHand, threshold int
	err = tx.QueryRow(ctx, `SELECT quantity, low_stock_threshold FROM products WHERE id=$1 FOR UPDATE`, m.ProductID).
		Scan(&onHand, &threshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockLevel{}, fmt.Errorf("product %s: %w", m.ProductID, domain.ErrProductNotFound)
	}
	if err != nil {
		return domain.StockLevel{}, err
	}

	newQty := onHand + delta
	if newQty < 0 {
		return domain.StockLevel{}, fmt.Errorf("product %s: %s of %d would drive quantity below zero (on hand %d): %w",
			m.ProductID, m.Type, m.Quantity, onHand, domain.ErrInsufficientStock)
	}

	_, err = tx.Exec(ctx, `UPDATE products SET quantity=$2, updated_at=now() WHERE id=$1`, m.ProductID, newQty)
	if err != nil {
		return domain.StockLevel{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO inventory_movements (product_id, movement_type, quantity, reference, reason, created_by)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ProductID, m.Type, m.Quantity, m.Reference, m.Reason, m.CreatedBy)
	if err != nil {
		return domain.StockLevel{}, err
	}

	payload, _ := json.Marshal(domain.StockMovementRecorded{
		ProductID:   m.ProductID,
		Type:        m.Type,
		Quantity:    m.Quantity,
		NewQuantity: newQty,
		Reference:   m.Reference,
	})
	if err := r.insertOutbox(ctx, tx, m.ProductID, domain.EventStockMovementRecorded, payload); err != nil {
		return domain.StockLevel{}, err
	}

	if newQty <= threshold && onHand > threshold {
		alert, _ := json.Marshal(domain.LowStockAlert{ProductID: m.ProductID, Quantity: newQty, Threshold: threshold})
		if err := r.insertOutbox(ctx, tx, m.ProductID, domain.EventLowStockAlert, alert); err != nil {
			return domain.StockLevel{}, err
		}
	}

	return domain.StockLevel{ProductID: m.ProductID, Quantity: newQty, LowStock: newQty <= threshold}, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload []byte) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('inventory', $1, $2, $3, NULLIF($4, ''), 'pending')`,
		aggregateID, eventType, payload, tracing.Traceparent(ctx))
	return err
}
