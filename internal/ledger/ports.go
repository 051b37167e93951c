// Package ledger defines the storage ports the application is written
// against. Implementations live in ledger/memory (in-process, default) and
// storage (SQLite).
package ledger

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/achievements"
	"fintrack/internal/core"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// User is an account record. PasswordHash is a bcrypt hash, never plaintext.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// Ports for the storage backends.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u User) error
		UserByEmail(ctx context.Context, email string) (User, error)
		UserByID(ctx context.Context, id string) (User, error)
		UpdateUser(ctx context.Context, u User) error
		// Users pages through all accounts in creation order; the
		// achievement sweep walks them batch by batch.
		Users(ctx context.Context, offset, limit int) ([]User, error)
	}

	TransactionStore interface {
		AddTransaction(ctx context.Context, userID string, t core.Transaction) error
		DeleteTransaction(ctx context.Context, userID, id string) error
		Transactions(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	BudgetStore interface {
		AddBudget(ctx context.Context, userID string, b core.Budget) error
		UpdateBudget(ctx context.Context, userID string, b core.Budget) error
		DeleteBudget(ctx context.Context, userID, id string) error
		Budgets(ctx context.Context, userID string) ([]core.Budget, error)
		// FindBudget returns the budget for (category, period) or ErrNotFound.
		// Backs the duplicate pre-check; storage itself stays permissive.
		FindBudget(ctx context.Context, userID, category string, p core.Period) (core.Budget, error)
	}

	CategoryStore interface {
		Categories(ctx context.Context, userID string, kind core.Kind) ([]string, error)
		AddCategory(ctx context.Context, userID string, kind core.Kind, name string) error
		// DeleteCategory refuses the protected sentinel with
		// core.ErrProtectedCategory. Transactions referencing the deleted
		// name keep it.
		DeleteCategory(ctx context.Context, userID string, kind core.Kind, name string) error
	}

	WalletStore interface {
		CreateWallet(ctx context.Context, w core.SharedWallet) error
		Wallet(ctx context.Context, id string) (core.SharedWallet, error)
		WalletsForMember(ctx context.Context, email string) ([]core.SharedWallet, error)
		DeleteWallet(ctx context.Context, id string) error
		AddMember(ctx context.Context, walletID, email string) error
		// AddWalletExpense and DeleteWalletExpense update TotalSpent in the
		// same storage transaction as the expense list.
		AddWalletExpense(ctx context.Context, walletID string, e core.WalletExpense) error
		DeleteWalletExpense(ctx context.Context, walletID, expenseID string) error
	}
)

// Store is the full backend surface a deployment needs.
type Store interface {
	UserStore
	TransactionStore
	BudgetStore
	CategoryStore
	WalletStore
	achievements.Repository
}
