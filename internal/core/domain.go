package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

// ProtectedCategory is the sentinel entry present in both default category
// lists. It can never be removed; transactions whose category was deleted
// keep the stale name and are still reported under it.
const ProtectedCategory = "Other"

type (
	// Period is the time window a budget applies to.
	Period string

	// Kind distinguishes money leaving the ledger from money entering it.
	Kind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single immutable ledger entry owned by one user.
	Transaction struct {
		ID          string
		Kind        Kind
		Date        Date
		Description string
		Amount      Money
		Category    string
	}

	// Budget caps spending for one category over a monthly or yearly window.
	// At most one budget per (category, period) pair is intended per user;
	// the check lives in the API layer, the storage does not reject bypasses.
	Budget struct {
		ID       string
		Category string
		Amount   Money
		Period   Period
	}

	// WalletExpense is one entry in a shared wallet's ledger.
	WalletExpense struct {
		ID          string
		Description string
		Amount      Money
		Category    string
		PaidBy      string
		Date        Date
	}

	// SharedWallet is a multi-member ledger. TotalSpent is denormalized and
	// must equal the sum of Expenses amounts after every mutation; the
	// storage layer maintains it inside the same transaction as the
	// expense write.
	SharedWallet struct {
		ID          string
		Name        string
		Description string
		CreatedBy   string
		Members     []string
		Expenses    []WalletExpense
		TotalSpent  Money
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidKind       = errors.New("invalid transaction kind")
	ErrInvalidPeriod     = errors.New("invalid budget period")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyName         = errors.New("empty name")
	ErrProtectedCategory = errors.New("category cannot be deleted")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Period) Validate() error {
	switch p {
	case Monthly, Yearly:
		return nil
	}
	return ErrInvalidPeriod
}

func (k Kind) Validate() error {
	switch k {
	case Expense, Income:
		return nil
	}
	return ErrInvalidKind
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	return b.Period.Validate()
}

func (e WalletExpense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.PaidBy) == "" {
		return errors.New("empty payer")
	}
	return e.Date.Validate()
}

func (w SharedWallet) Validate() error {
	if len(strings.TrimSpace(w.Name)) == 0 {
		return ErrEmptyName
	}
	if len(w.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if strings.TrimSpace(w.CreatedBy) == "" {
		return errors.New("empty creator")
	}
	return nil
}

// DefaultExpenseCategories seeds a new user's expense category list.
func DefaultExpenseCategories() []string {
	return []string{
		"Food & Dining",
		"Transportation",
		"Housing",
		"Utilities",
		"Healthcare",
		"Entertainment",
		"Shopping",
		"Education",
		"Personal Care",
		"Travel",
		"Insurance",
		"Savings",
		"Investments",
		"Gifts & Donations",
		ProtectedCategory,
	}
}

// DefaultIncomeCategories seeds a new user's income category list.
func DefaultIncomeCategories() []string {
	return []string{
		"Salary",
		"Freelance",
		"Business",
		"Investments",
		"Rental Income",
		"Interest",
		"Dividends",
		"Bonus",
		"Commission",
		"Gifts",
		ProtectedCategory,
	}
}

// DefaultWalletCategories is the fixed category list shared wallets use.
func DefaultWalletCategories() []string {
	return []string{
		"Groceries",
		"Utilities",
		"Rent",
		"Entertainment",
		"Transportation",
		ProtectedCategory,
	}
}
