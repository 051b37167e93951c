package core

import (
	"sort"
	"strings"
	"time"
)

// The aggregation engine: read-only numeric views over in-memory
// transaction/budget slices. No mutation, no I/O, and every function is
// total — records that fail basic shape validation are excluded from the
// sums rather than raised as errors.

// CategoryAmount is an amount aggregated by category name, with its share
// of the grand total.
type CategoryAmount struct {
	Name    string
	Amount  Money
	Percent float64
}

// BudgetStatus is the derived progress of one budget for a reference period.
type BudgetStatus struct {
	Budget     Budget
	Spent      Money
	Remaining  Money
	Percent    float64
	OverBudget bool
}

// Summary is a compact income/expense overview for a specific year+month.
type Summary struct {
	Year        int
	Month       int // 1-12
	Income      Money
	Expense     Money
	Net         Money
	SavingsRate float64 // 0 when Income is 0
}

// wellFormed filters out records that would poison a sum.
func wellFormed(t Transaction) bool {
	return t.Amount.Cents > 0 && strings.TrimSpace(t.Category) != "" && !t.Date.IsZero()
}

// Balance returns income total minus expense total over all records.
// Empty input yields zero.
func Balance(txs []Transaction) Money {
	var cents int64
	for _, t := range txs {
		if !wellFormed(t) {
			continue
		}
		switch t.Kind {
		case Income:
			cents += t.Amount.Cents
		case Expense:
			cents -= t.Amount.Cents
		}
	}
	return Money{Cents: cents}
}

// InPeriod reports whether d falls inside the calendar month (monthly) or
// calendar year (yearly) containing ref. Matching by year+month equality
// makes both period endpoints inclusive by construction.
func InPeriod(d Date, p Period, ref time.Time) bool {
	if d.IsZero() {
		return false
	}
	if d.Year() != ref.Year() {
		return false
	}
	if p == Monthly && d.Month() != ref.Month() {
		return false
	}
	return true
}

// PeriodTransactions returns the well-formed records of the given kind whose
// date lies within the period containing ref.
func PeriodTransactions(txs []Transaction, kind Kind, p Period, ref time.Time) []Transaction {
	var out []Transaction
	for _, t := range txs {
		if t.Kind != kind || !wellFormed(t) {
			continue
		}
		if InPeriod(t.Date, p, ref) {
			out = append(out, t)
		}
	}
	return out
}

// PeriodTotal sums the given kind over the period containing ref.
func PeriodTotal(txs []Transaction, kind Kind, p Period, ref time.Time) Money {
	var cents int64
	for _, t := range PeriodTransactions(txs, kind, p, ref) {
		cents += t.Amount.Cents
	}
	return Money{Cents: cents}
}

// BudgetProgress computes the spend against b for the period containing ref.
// A zero-amount budget never produces NaN or Inf: the percentage is pinned
// to 0 and the status reports over-budget as soon as any spend exists.
func BudgetProgress(b Budget, expenses []Transaction, ref time.Time) BudgetStatus {
	var spent int64
	for _, t := range PeriodTransactions(expenses, Expense, b.Period, ref) {
		if t.Category == b.Category {
			spent += t.Amount.Cents
		}
	}

	st := BudgetStatus{
		Budget:    b,
		Spent:     Money{Cents: spent},
		Remaining: Money{Cents: b.Amount.Cents - spent},
	}
	if b.Amount.Cents <= 0 {
		st.OverBudget = spent > 0
		return st
	}
	st.Percent = float64(spent) / float64(b.Amount.Cents) * 100
	st.OverBudget = st.Percent > 100
	return st
}

// CategoryBreakdown groups well-formed records by category, sums amounts and
// computes each category's percentage of the grand total. The result is
// sorted by descending amount; ties keep first-encountered category order so
// the output is deterministic for display.
func CategoryBreakdown(txs []Transaction) []CategoryAmount {
	totals := make(map[string]int64)
	var order []string
	var grand int64

	for _, t := range txs {
		if !wellFormed(t) {
			continue
		}
		if _, seen := totals[t.Category]; !seen {
			order = append(order, t.Category)
		}
		totals[t.Category] += t.Amount.Cents
		grand += t.Amount.Cents
	}

	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}

	out := make([]CategoryAmount, 0, len(order))
	for _, name := range order {
		out = append(out, CategoryAmount{Name: name, Amount: Money{Cents: totals[name]}})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return rank[out[i].Name] < rank[out[j].Name]
	})

	if grand > 0 {
		for i := range out {
			out[i].Percent = float64(out[i].Amount.Cents) / float64(grand) * 100
		}
	}
	return out
}

// MonthlySummary derives the income/expense overview for year+month.
func MonthlySummary(txs []Transaction, year, month int) Summary {
	ref := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	income := PeriodTotal(txs, Income, Monthly, ref)
	expense := PeriodTotal(txs, Expense, Monthly, ref)

	s := Summary{
		Year:    year,
		Month:   month,
		Income:  income,
		Expense: expense,
		Net:     Money{Cents: income.Cents - expense.Cents},
	}
	if income.Cents > 0 {
		s.SavingsRate = float64(income.Cents-expense.Cents) / float64(income.Cents)
	}
	return s
}
