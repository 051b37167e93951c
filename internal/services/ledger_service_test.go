package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger/memory"
)

type capturingPublisher struct {
	events []*amqp.LedgerEvent
	fail   bool
}

func (p *capturingPublisher) PublishLedgerEvent(_ context.Context, event *amqp.LedgerEvent) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, event)
	return nil
}

func expense(cents int64, category string) core.Transaction {
	return core.Transaction{
		Kind:        core.Expense,
		Date:        core.NewDate(2025, 6, 10),
		Description: "t",
		Amount:      core.Money{Cents: cents},
		Category:    category,
	}
}

func TestAddTransactionAssignsIDAndPublishes(t *testing.T) {
	pub := &capturingPublisher{}
	svc := NewLedgerService(memory.New(), pub)
	ctx := context.Background()

	got, err := svc.AddTransaction(ctx, "u1", expense(1200, "Food & Dining"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got.ID == "" {
		t.Fatal("no id assigned")
	}
	if len(pub.events) != 1 || pub.events[0].Kind != amqp.EventTransactionAdded {
		t.Fatalf("events: %+v", pub.events)
	}
}

func TestAddTransactionSurvivesPublishFailure(t *testing.T) {
	svc := NewLedgerService(memory.New(), &capturingPublisher{fail: true})
	ctx := context.Background()

	if _, err := svc.AddTransaction(ctx, "u1", expense(1200, "Food & Dining")); err != nil {
		t.Fatalf("add must not fail on publish error: %v", err)
	}
	txs, _ := svc.Transactions(ctx, "u1", "")
	if len(txs) != 1 {
		t.Fatalf("transaction lost: %v", txs)
	}
}

func TestTransactionsKindFilter(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	ctx := context.Background()

	svc.AddTransaction(ctx, "u1", expense(1000, "Food & Dining"))
	income := expense(5000, "Salary")
	income.Kind = core.Income
	svc.AddTransaction(ctx, "u1", income)

	all, _ := svc.Transactions(ctx, "u1", "")
	if len(all) != 2 {
		t.Fatalf("all: %d", len(all))
	}
	onlyIncome, _ := svc.Transactions(ctx, "u1", core.Income)
	if len(onlyIncome) != 1 || onlyIncome[0].Kind != core.Income {
		t.Fatalf("income filter: %v", onlyIncome)
	}
}

func TestCreateBudgetDuplicate(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	ctx := context.Background()

	b := core.Budget{Category: "Food & Dining", Amount: core.Money{Cents: 20000}, Period: core.Monthly}
	first, err := svc.CreateBudget(ctx, "u1", b)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	b.Amount = core.Money{Cents: 99999}
	existing, err := svc.CreateBudget(ctx, "u1", b)
	if !errors.Is(err, ErrDuplicateBudget) {
		t.Fatalf("expected ErrDuplicateBudget, got %v", err)
	}
	if existing.ID != first.ID || existing.Amount.Cents != 20000 {
		t.Fatalf("existing budget not returned: %+v", existing)
	}

	budgets, _ := svc.Budgets(ctx, "u1")
	if len(budgets) != 1 {
		t.Fatalf("duplicate inserted: %d budgets", len(budgets))
	}

	// A different period is a different budget.
	b.Period = core.Yearly
	if _, err := svc.CreateBudget(ctx, "u1", b); err != nil {
		t.Fatalf("yearly create: %v", err)
	}
}

func TestDashboardCachedAndInvalidated(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	ctx := context.Background()
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

	svc.AddTransaction(ctx, "u1", expense(10000, "Food & Dining"))

	d1, err := svc.Dashboard(ctx, "u1", now)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d1.Balance.Cents != -10000 {
		t.Fatalf("balance: %d", d1.Balance.Cents)
	}

	// A mutation must invalidate the cached view.
	svc.AddTransaction(ctx, "u1", expense(5000, "Transportation"))
	d2, _ := svc.Dashboard(ctx, "u1", now)
	if d2.Balance.Cents != -15000 {
		t.Fatalf("stale dashboard after mutation: %d", d2.Balance.Cents)
	}
	if len(d2.Breakdown) != 2 {
		t.Fatalf("breakdown: %v", d2.Breakdown)
	}
}

func TestDashboardBudgetStatuses(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil)
	ctx := context.Background()
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

	svc.CreateBudget(ctx, "u1", core.Budget{Category: "Food", Amount: core.Money{Cents: 20000}, Period: core.Monthly})
	svc.AddTransaction(ctx, "u1", expense(25000, "Food"))

	d, err := svc.Dashboard(ctx, "u1", now)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(d.Budgets) != 1 {
		t.Fatalf("budget statuses: %v", d.Budgets)
	}
	if d.Budgets[0].Percent != 125.0 || !d.Budgets[0].OverBudget {
		t.Fatalf("status: %+v", d.Budgets[0])
	}
}
