// Package schedule runs recurring background tasks on a fixed interval. The
// scheduling backend is deliberately dumb (a ticker plus a manual trigger
// channel) so tasks stay agnostic of cron/queue infrastructure.
package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Task is one recurring unit of background work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type Runner struct {
	log      *slog.Logger
	task     Task
	interval time.Duration
	trigger  chan struct{}
}

func NewRunner(log *slog.Logger, task Task, interval time.Duration) *Runner {
	return &Runner{
		log:      log,
		task:     task,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate run. Non-blocking; a run already queued
// absorbs the request.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run loops until the context is cancelled. A failed run is logged and
// retried on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("task runner stopping", "task", r.task.Name())
			return nil
		case <-t.C:
			r.runOnce(ctx)
		case <-r.trigger:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	started := time.Now()
	if err := r.task.Run(ctx); err != nil {
		r.log.Error("task run failed", "task", r.task.Name(), "err", err, "took", time.Since(started).String())
		return
	}
	r.log.Info("task run complete", "task", r.task.Name(), "took", time.Since(started).String())
}
