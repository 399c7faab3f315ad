package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopcore-ng/commerce-core/internal/reconciliation/domain"
)

// timezoneSkewBuffer widens the lookback window so orders stamped in a
// different zone than the database clock are not missed at the window edge.
const timezoneSkewBuffer = 2 * time.Hour

// RunOptions parametrize one reconciliation run. The interval, manual and
// emergency invocation modes differ only in these values.
type RunOptions struct {
	Lookback        time.Duration
	Grace           time.Duration
	BatchSize       int
	BatchDelay      time.Duration
	OnlyUnconfirmed bool
}

func (o RunOptions) withDefaults() RunOptions {
	if o.Lookback <= 0 {
		o.Lookback = 24 * time.Hour
	}
	if o.Grace <= 0 {
		o.Grace = 10 * time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 25
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = time.Second
	}
	return o
}

// IntervalOptions is the scheduled safety-net run.
func IntervalOptions() RunOptions {
	return RunOptions{Lookback: 24 * time.Hour, OnlyUnconfirmed: true}
}

// EmergencyOptions widens the window after an outage of the webhook path.
func EmergencyOptions() RunOptions {
	return RunOptions{Lookback: 7 * 24 * time.Hour}
}

// Engine resolves divergence between the order ledger and the payment
// provider. It only ever moves orders from an ambiguous payment state to a
// terminal one; an inconclusive provider answer is never treated as evidence
// of failure.
type Engine struct {
	log            *slog.Logger
	store          OrderStore
	provider       PaymentProvider
	notifier       Notifier
	strategies     []LookupStrategy
	tracer         trace.Tracer
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
	adminRecipient string
}

func NewEngine(log *slog.Logger, store OrderStore, provider PaymentProvider, notifier Notifier, adminRecipient string) *Engine {
	return &Engine{
		log:            log,
		store:          store,
		provider:       provider,
		notifier:       notifier,
		strategies:     DefaultStrategies(provider),
		tracer:         otel.Tracer("reconciliation-engine"),
		now:            time.Now,
		sleep:          sleepCtx,
		adminRecipient: adminRecipient,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes one reconciliation pass. A selection failure aborts the run;
// per-order failures are collected in the report and never abort it. Each
// correction is its own transaction, so a run that stops mid-way keeps the
// corrections already committed.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (domain.Report, error) {
	opts = opts.withDefaults()
	ctx, span := e.tracer.Start(ctx, "ReconciliationRun")
	defer span.End()

	var report domain.Report
	now := e.now().UTC()

	orders, err := e.store.FindAmbiguous(ctx, OrderQuery{
		UpdatedBefore:   now.Add(-opts.Grace),
		CreatedAfter:    now.Add(-(opts.Lookback + timezoneSkewBuffer)),
		OnlyUnconfirmed: opts.OnlyUnconfirmed,
	})
	if err != nil {
		return report, fmt.Errorf("select ambiguous orders: %w", err)
	}

	e.log.Info("reconciliation run started", "orders", len(orders), "lookback", opts.Lookback.String())

	for start := 0; start < len(orders); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(orders) {
			end = len(orders)
		}
		for _, o := range orders[start:end] {
			e.processOrder(ctx, o, &report)
		}
		// Inter-batch delay keeps us under the provider's rate limits.
		if end < len(orders) {
			if err := e.sleep(ctx, opts.BatchDelay); err != nil {
				return report, fmt.Errorf("run cancelled between batches: %w", err)
			}
		}
	}

	if report.DiscrepanciesFound > 0 {
		e.notifyAdminSummary(ctx, report)
	}

	e.log.Info("reconciliation run finished",
		"processed", report.TotalProcessed,
		"discrepancies", report.DiscrepanciesFound,
		"updated", report.SuccessfulUpdates,
		"failed", report.FailedUpdates,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (e *Engine) processOrder(ctx context.Context, o domain.Order, report *domain.Report) {
	report.TotalProcessed++

	// Terminal orders are immutable here, whatever the selection returned.
	if o.PaymentStatus.Terminal() {
		report.Skipped++
		return
	}

	tx, strategy, err := lookup(ctx, e.strategies, o)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		// No evidence is not evidence of failure: leave the order alone.
		report.Skipped++
		e.log.Warn("no provider transaction found", "order_number", o.OrderNumber)
		return
	}
	if err != nil {
		// The order is skipped this run; the error is kept so the report
		// distinguishes a broken provider from genuinely absent records.
		report.Skipped++
		report.Errors = append(report.Errors, fmt.Sprintf("order %s: verify: %v", o.OrderNumber, err))
		e.log.Error("provider verification failed", "order_number", o.OrderNumber, "err", err)
		return
	}

	mapped := domain.MapProviderStatus(tx.Status)
	if mapped == o.PaymentStatus {
		return
	}

	disc := domain.Discrepancy{
		OrderID:          o.ID,
		OrderNumber:      o.OrderNumber,
		DatabaseStatus:   o.PaymentStatus,
		ProviderStatus:   tx.Status,
		AmountCents:      tx.AmountCents,
		PaymentReference: tx.Reference,
		Reason:           fmt.Sprintf("ledger %s, provider %s (via %s)", o.PaymentStatus, tx.Status, strategy),
	}
	if tx.AmountCents != o.TotalCents {
		disc.Reason += fmt.Sprintf("; amount mismatch: ledger %d, provider %d", o.TotalCents, tx.AmountCents)
	}
	report.DiscrepanciesFound++
	report.Discrepancies = append(report.Discrepancies, disc)

	// Only a definitive terminal answer corrects the ledger; pending or
	// processing on the provider side stays recorded but untouched.
	if !mapped.Terminal() || !domain.CanTransition(o.PaymentStatus, mapped) {
		return
	}

	corr := domain.Correction{
		OrderID:     o.ID,
		From:        o.PaymentStatus,
		To:          mapped,
		Fulfillment: domain.FulfillmentFor(mapped),
	}
	if (o.PaymentReference == nil || *o.PaymentReference == "") && tx.Reference != "" {
		corr.BackfillReference = &tx.Reference
	}

	err = e.store.ApplyCorrection(ctx, corr)
	if errors.Is(err, ErrOrderChanged) {
		// The webhook path got there first; its notification stands.
		report.Skipped++
		return
	}
	if err != nil {
		report.FailedUpdates++
		report.Errors = append(report.Errors, fmt.Sprintf("order %s: correct: %v", o.OrderNumber, err))
		e.log.Error("correction failed", "order_number", o.OrderNumber, "err", err)
		return
	}

	report.SuccessfulUpdates++
	e.log.Info("payment status corrected",
		"order_number", o.OrderNumber, "from", corr.From, "to", corr.To, "strategy", strategy)

	// Notify only because the status actually changed in this run.
	e.notifyCustomer(ctx, o, corr)
}

func (e *Engine) notifyCustomer(ctx context.Context, o domain.Order, corr domain.Correction) {
	kind := NotifyPaymentCancelled
	if corr.To == domain.PaymentCompleted {
		kind = NotifyPaymentConfirmed
	}
	err := e.notifier.Notify(ctx, Notification{
		Kind:      kind,
		Recipient: o.CustomerEmail,
		Data: map[string]string{
			"order_number": o.OrderNumber,
			"status":       string(corr.To),
		},
	})
	if err != nil {
		e.log.Error("customer notification failed", "order_number", o.OrderNumber, "err", err)
	}
}

func (e *Engine) notifyAdminSummary(ctx context.Context, report domain.Report) {
	err := e.notifier.Notify(ctx, Notification{
		Kind:      NotifyReconciliationSummary,
		Recipient: e.adminRecipient,
		Data: map[string]string{
			"processed":     strconv.Itoa(report.TotalProcessed),
			"discrepancies": strconv.Itoa(report.DiscrepanciesFound),
			"updated":       strconv.Itoa(report.SuccessfulUpdates),
			"failed":        strconv.Itoa(report.FailedUpdates),
		},
	})
	if err != nil {
		e.log.Error("admin summary notification failed", "err", err)
	}
}

// Task adapts the engine to the recurring-task runner with fixed options.
type Task struct {
	Engine  *Engine
	Options RunOptions
}

func (t Task) Name() string { return "payment-reconciliation" }

func (t Task) Run(ctx context.Context) error {
	_, err := t.Engine.Run(ctx, t.Options)
	return err
}
