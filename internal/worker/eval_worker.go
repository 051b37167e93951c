// Package worker runs achievement evaluation in the background: on every
// ledger event and on a periodic sweep over all users, so boundary months
// are caught even when nothing happens on their last day.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/achievements"
	"fintrack/internal/amqp"
	"fintrack/internal/ledger"
)

type EvalWorker struct {
	store     ledger.Store
	batchSize int
	now       func() time.Time
}

func NewEvalWorker(store ledger.Store, batchSize int) *EvalWorker {
	return &EvalWorker{
		store:     store,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// HandleLedgerEvent processes one event from AMQP. Wallet events carry no
// user and are ignored; shared wallets have no achievement rules.
func (w *EvalWorker) HandleLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	if event.UserID == "" {
		return nil
	}
	return w.EvaluateUser(ctx, event.UserID)
}

// EvaluateUser loads the user's ledger and achievement record, runs the
// catch-up evaluation and persists the result. A save failure is returned so
// the delivery gets requeued; the evaluation itself is idempotent.
func (w *EvalWorker) EvaluateUser(ctx context.Context, userID string) error {
	rec, err := w.store.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("load achievement record: %w", err)
	}

	txs, err := w.store.Transactions(ctx, userID)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	budgets, err := w.store.Budgets(ctx, userID)
	if err != nil {
		return fmt.Errorf("load budgets: %w", err)
	}

	snap := achievements.Snapshot{Transactions: txs, Budgets: budgets}
	rec, earned := achievements.Evaluate(rec, snap, w.now())

	if err := w.store.Save(ctx, userID, rec); err != nil {
		return fmt.Errorf("save achievement record: %w", err)
	}

	for _, a := range earned {
		slog.InfoContext(ctx, "Achievement awarded",
			"user_id", userID,
			"achievement_id", a.AchievementID,
			"points", a.Points,
			"date_awarded", a.DateAwarded.Format("2006-01"))
	}
	if len(earned) > 0 {
		slog.InfoContext(ctx, "Evaluation complete",
			"user_id", userID,
			"new_awards", len(earned),
			"streak", rec.Streak,
			"total_points", achievements.Points(rec))
	}
	return nil
}

// SweepAll evaluates every user, batch by batch. Per-user failures are
// logged and skipped so one broken record cannot stall the sweep.
func (w *EvalWorker) SweepAll(ctx context.Context) error {
	offset := 0
	for {
		users, err := w.store.Users(ctx, offset, w.batchSize)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if len(users) == 0 {
			return nil
		}
		for _, u := range users {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := w.EvaluateUser(ctx, u.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to evaluate user",
					"user_id", u.ID, "error", err)
			}
		}
		offset += len(users)
	}
}

// RunPeriodic sweeps once at startup, then on every tick until ctx is done.
// The startup sweep catches boundaries crossed while the worker was down.
func (w *EvalWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if err := w.SweepAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.SweepAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sweep failed", "error", err)
			}
		}
	}
}
