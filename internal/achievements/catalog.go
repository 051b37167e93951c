// Package achievements implements the gamification engine: a fixed badge
// catalog, per-user award records, and the evaluation rules that decide
// which badges a month of ledger activity has earned.
package achievements

// Badge kinds decide which evaluation pass a badge belongs to.
const (
	KindMonthly = "monthly"
	KindYearly  = "yearly"
	KindStreak  = "streak"
)

// Badge identifiers.
const (
	MonthlyBudgetMaster = "MONTHLY_BUDGET_MASTER"
	MonthlySavingStar   = "MONTHLY_SAVING_STAR"
	MonthlyPremiumSaver = "MONTHLY_PREMIUM_SAVER"
	YearlyBudgetMaster  = "YEARLY_BUDGET_MASTER"
	SavingStreak        = "SAVING_STREAK"
)

// Badge is one entry of the fixed catalog.
type Badge struct {
	ID          string
	Title       string
	Description string
	Points      int
	Kind        string
}

var catalog = map[string]Badge{
	MonthlyBudgetMaster: {
		ID:          MonthlyBudgetMaster,
		Title:       "Monthly Budget Master",
		Description: "Stayed within budget for all categories this month",
		Points:      100,
		Kind:        KindMonthly,
	},
	MonthlySavingStar: {
		ID:          MonthlySavingStar,
		Title:       "Monthly Saving Star",
		Description: "Saved 20% of monthly income",
		Points:      50,
		Kind:        KindMonthly,
	},
	MonthlyPremiumSaver: {
		ID:          MonthlyPremiumSaver,
		Title:       "Monthly Premium Saver",
		Description: "Saved 50% of monthly income",
		Points:      150,
		Kind:        KindMonthly,
	},
	YearlyBudgetMaster: {
		ID:          YearlyBudgetMaster,
		Title:       "Yearly Budget Champion",
		Description: "Maintained budget discipline throughout the year",
		Points:      500,
		Kind:        KindYearly,
	},
	SavingStreak: {
		ID:          SavingStreak,
		Title:       "Saving Streak",
		Description: "Maintained savings above 20% for 3 consecutive months",
		Points:      200,
		Kind:        KindStreak,
	},
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Badge, bool) {
	b, ok := catalog[id]
	return b, ok
}

// Catalog returns the full badge catalog. The returned slice is a copy.
func Catalog() []Badge {
	out := make([]Badge, 0, len(catalog))
	for _, id := range []string{
		MonthlyBudgetMaster,
		MonthlySavingStar,
		MonthlyPremiumSaver,
		YearlyBudgetMaster,
		SavingStreak,
	} {
		out = append(out, catalog[id])
	}
	return out
}
