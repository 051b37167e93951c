package achievements

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Award is one appended entry of a user's achievement log.
type Award struct {
	AchievementID string
	Title         string
	Points        int
	DateAwarded   time.Time
}

// Record is the full per-user achievement state.
type Record struct {
	Awards        []Award
	Streak        int
	LastEvaluated time.Time
}

// Repository persists achievement records per user.
type Repository interface {
	Load(ctx context.Context, userID string) (Record, error)
	Save(ctx context.Context, userID string, rec Record) error
}

// Snapshot is the ledger data the rules evaluate against.
type Snapshot struct {
	Transactions []core.Transaction
	Budgets      []core.Budget
}

// Points returns the running total over the award log.
func Points(rec Record) int {
	total := 0
	for _, a := range rec.Awards {
		total += a.Points
	}
	return total
}

// hasAward reports whether an award with the given id already exists for the
// year-month of ref. This is the dedup key: the same badge can be earned
// again in a later month.
func hasAward(rec Record, id string, ref time.Time) bool {
	for _, a := range rec.Awards {
		if a.AchievementID == id &&
			a.DateAwarded.Year() == ref.Year() &&
			a.DateAwarded.Month() == ref.Month() {
			return true
		}
	}
	return false
}

// Evaluate runs the rule catalog over every calendar month that has completed
// since rec.LastEvaluated, in order, and returns the updated record together
// with the newly earned awards. Months already covered by LastEvaluated are
// skipped, so evaluation can run on any schedule without missing a boundary
// or awarding twice. The current (incomplete) month is never evaluated.
func Evaluate(rec Record, snap Snapshot, now time.Time) (Record, []Award) {
	start := evalStart(rec, snap)
	if start.IsZero() {
		rec.LastEvaluated = now
		return rec, nil
	}

	var earned []Award
	for month := start; !month.AddDate(0, 1, 0).After(now); month = month.AddDate(0, 1, 0) {
		earned = append(earned, evaluateMonth(&rec, snap, month)...)
	}
	rec.LastEvaluated = now
	return rec, earned
}

// evalStart returns the first day of the earliest month still owing an
// evaluation, or the zero time when there is nothing to do.
func evalStart(rec Record, snap Snapshot) time.Time {
	if !rec.LastEvaluated.IsZero() {
		t := rec.LastEvaluated.UTC()
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	var earliest time.Time
	for _, tx := range snap.Transactions {
		if tx.Date.IsZero() {
			continue
		}
		if earliest.IsZero() || tx.Date.Before(earliest) {
			earliest = tx.Date.Time
		}
	}
	if earliest.IsZero() {
		return time.Time{}
	}
	return time.Date(earliest.Year(), earliest.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// evaluateMonth applies the monthly rule set (and, in December, the yearly
// rule) for the month starting at monthStart, mutating rec in place.
func evaluateMonth(rec *Record, snap Snapshot, monthStart time.Time) []Award {
	// Awards are dated on the month's last day so the dedup key lands in
	// the evaluated month even when evaluation runs later.
	awardDate := monthStart.AddDate(0, 1, -1)

	var earned []Award
	award := func(id string) {
		if hasAward(*rec, id, awardDate) {
			return
		}
		b := catalog[id]
		a := Award{AchievementID: b.ID, Title: b.Title, Points: b.Points, DateAwarded: awardDate}
		rec.Awards = append(rec.Awards, a)
		earned = append(earned, a)
	}

	if withinAllBudgets(snap, monthStart) {
		award(MonthlyBudgetMaster)
	}

	income := core.PeriodTotal(snap.Transactions, core.Income, core.Monthly, monthStart)
	expense := core.PeriodTotal(snap.Transactions, core.Expense, core.Monthly, monthStart)
	saved := income.Cents - expense.Cents

	// A month without income never qualifies and breaks the streak.
	if income.Cents > 0 && saved*5 >= income.Cents {
		award(MonthlySavingStar)
		rec.Streak++
		if rec.Streak >= 3 {
			award(SavingStreak)
		}
	} else {
		rec.Streak = 0
	}
	if income.Cents > 0 && saved*2 >= income.Cents {
		award(MonthlyPremiumSaver)
	}

	if monthStart.Month() == time.December && budgetMasterCount(*rec, monthStart.Year()) >= 12 {
		award(YearlyBudgetMaster)
	}
	return earned
}

// withinAllBudgets reports whether every budget's period spend stayed at or
// under its limit for the period containing monthStart. No budgets counts as
// within.
func withinAllBudgets(snap Snapshot, monthStart time.Time) bool {
	for _, b := range snap.Budgets {
		st := core.BudgetProgress(b, snap.Transactions, monthStart)
		if st.Spent.Cents > b.Amount.Cents {
			return false
		}
	}
	return true
}

func budgetMasterCount(rec Record, year int) int {
	n := 0
	for _, a := range rec.Awards {
		if a.AchievementID == MonthlyBudgetMaster && a.DateAwarded.Year() == year {
			n++
		}
	}
	return n
}
