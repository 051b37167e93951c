package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/achievements"
	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// ErrDuplicateBudget signals that a budget for the same (category, period)
// already exists. The caller gets the existing record so it can offer an
// edit instead of a blind overwrite.
var ErrDuplicateBudget = errors.New("budget already exists for this category and period")

// EventPublisher decouples the services from the broker; a nil publisher is
// valid and turns publication into a no-op.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// Dashboard is the aggregate view served to the overview page.
type Dashboard struct {
	Balance   core.Money
	Summary   core.Summary
	Breakdown []core.CategoryAmount
	Budgets   []core.BudgetStatus
}

// LedgerService orchestrates per-user ledger mutations across storage and
// AMQP, and keeps a per-user dashboard cache that every mutation invalidates.
type LedgerService struct {
	store      ledger.Store
	publisher  EventPublisher
	dashboards *cache.LRUCache[Dashboard]
}

func NewLedgerService(store ledger.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:      store,
		publisher:  publisher,
		dashboards: cache.NewLRUCache[Dashboard](512, 5*time.Minute),
	}
}

// DashboardCache exposes the cache for cleanup registration.
func (s *LedgerService) DashboardCache() *cache.LRUCache[Dashboard] {
	return s.dashboards
}

// AddTransaction stores t for userID and publishes a ledger event. The ID is
// assigned here.
func (s *LedgerService) AddTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	t.ID = uuid.NewString()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.AddTransaction(ctx, userID, t); err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}
	s.dashboards.Delete(userID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventTransactionAdded, userID))
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.dashboards.Delete(userID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventTransactionDeleted, userID))
	return nil
}

func (s *LedgerService) Transactions(ctx context.Context, userID string, kind core.Kind) ([]core.Transaction, error) {
	txs, err := s.store.Transactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if kind == "" {
		return txs, nil
	}
	var out []core.Transaction
	for _, t := range txs {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateBudget pre-checks (category, period) uniqueness. On a hit it returns
// the existing budget together with ErrDuplicateBudget and inserts nothing.
func (s *LedgerService) CreateBudget(ctx context.Context, userID string, b core.Budget) (core.Budget, error) {
	b.ID = uuid.NewString()
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	existing, err := s.store.FindBudget(ctx, userID, b.Category, b.Period)
	if err == nil {
		return existing, ErrDuplicateBudget
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return core.Budget{}, fmt.Errorf("check budget: %w", err)
	}
	if err := s.store.AddBudget(ctx, userID, b); err != nil {
		return core.Budget{}, fmt.Errorf("add budget: %w", err)
	}
	s.dashboards.Delete(userID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventBudgetChanged, userID))
	return b, nil
}

func (s *LedgerService) UpdateBudget(ctx context.Context, userID string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := s.store.UpdateBudget(ctx, userID, b); err != nil {
		return err
	}
	s.dashboards.Delete(userID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventBudgetChanged, userID))
	return nil
}

func (s *LedgerService) DeleteBudget(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return err
	}
	s.dashboards.Delete(userID)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.EventBudgetChanged, userID))
	return nil
}

func (s *LedgerService) Budgets(ctx context.Context, userID string) ([]core.Budget, error) {
	return s.store.Budgets(ctx, userID)
}

func (s *LedgerService) Categories(ctx context.Context, userID string, kind core.Kind) ([]string, error) {
	return s.store.Categories(ctx, userID, kind)
}

func (s *LedgerService) AddCategory(ctx context.Context, userID string, kind core.Kind, name string) error {
	return s.store.AddCategory(ctx, userID, kind, name)
}

func (s *LedgerService) DeleteCategory(ctx context.Context, userID string, kind core.Kind, name string) error {
	return s.store.DeleteCategory(ctx, userID, kind, name)
}

// Dashboard returns the cached aggregate view for userID, computing it from
// the current ledger contents on a miss.
func (s *LedgerService) Dashboard(ctx context.Context, userID string, now time.Time) (Dashboard, error) {
	if d, ok := s.dashboards.Get(userID); ok {
		return d, nil
	}

	txs, err := s.store.Transactions(ctx, userID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list transactions: %w", err)
	}
	budgets, err := s.store.Budgets(ctx, userID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list budgets: %w", err)
	}

	var expenses []core.Transaction
	for _, t := range txs {
		if t.Kind == core.Expense {
			expenses = append(expenses, t)
		}
	}

	d := Dashboard{
		Balance:   core.Balance(txs),
		Summary:   core.MonthlySummary(txs, now.Year(), int(now.Month())),
		Breakdown: core.CategoryBreakdown(core.PeriodTransactions(txs, core.Expense, core.Monthly, now)),
	}
	for _, b := range budgets {
		d.Budgets = append(d.Budgets, core.BudgetProgress(b, expenses, now))
	}

	s.dashboards.Set(userID, d)
	return d, nil
}

// Achievements returns the user's award log with the derived point total.
func (s *LedgerService) Achievements(ctx context.Context, userID string) (achievements.Record, int, error) {
	rec, err := s.store.Load(ctx, userID)
	if err != nil {
		return achievements.Record{}, 0, fmt.Errorf("load achievements: %w", err)
	}
	return rec, achievements.Points(rec), nil
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		// The write already succeeded; evaluation catches up on the next sweep.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", event.Kind, "user_id", event.UserID, "error", err)
	}
}
