package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/compote/internal/window"
)

// StackLister returns the server's bottom-to-top stacking order of the
// root's children.
type StackLister func() ([]window.ID, error)

// StackSyncer adopts a server stacking order and reports drift.
type StackSyncer interface {
	SyncStackOrder(ids []window.ID) bool
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically compares the mirrored stack with the server's
// stacking order and resyncs it when events were missed.
type Reconciler struct {
	interval time.Duration
	list     StackLister
	screen   StackSyncer
	exec     Executor
	logger   *slog.Logger

	drifts int
}

// NewReconciler creates a reconciler. The lister and syncer both run
// through exec so that the query is ordered after queued events.
func NewReconciler(cfg ReconcilerConfig, list StackLister, screen StackSyncer, exec Executor) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval: interval,
		list:     list,
		screen:   screen,
		exec:     exec,
		logger:   logger.With("component", "reconciler"),
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.ReconcileNow(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("stack reconciliation failed", "error", err)
			}
		}
	}
}

// ReconcileNow performs a single pass and reports whether the stack had
// drifted.
func (r *Reconciler) ReconcileNow(ctx context.Context) (bool, error) {
	var (
		drifted bool
		passErr error
	)
	err := r.exec(ctx, func() {
		// A panic here would take down the loop goroutine.
		defer func() {
			if p := recover(); p != nil {
				passErr = fmt.Errorf("reconciler panic: %v", p)
			}
		}()
		ids, err := r.list()
		if err != nil {
			passErr = fmt.Errorf("failed to query stacking order: %w", err)
			return
		}
		drifted = r.screen.SyncStackOrder(ids)
	})
	if err != nil {
		return false, err
	}
	if passErr != nil {
		return false, passErr
	}
	if drifted {
		r.drifts++
		r.logger.Debug("stack drift corrected", "total", r.drifts)
	}
	return drifted, nil
}
