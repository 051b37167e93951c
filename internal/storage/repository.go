// Package storage is the SQLite ledger backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/achievements"
	"fintrack/internal/core"
	"fintrack/internal/ledger"

	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts u and seeds both default category lists in the same
// transaction.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u ledger.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.DisplayName, u.PasswordHash, u.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}

	seed := func(kind core.Kind, names []string) error {
		for i, name := range names {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO user_categories (user_id, kind, name, position) VALUES (?, ?, ?, ?)`,
				u.ID, string(kind), name, i); err != nil {
				return fmt.Errorf("seed category %q: %w", name, err)
			}
		}
		return nil
	}
	if err := seed(core.Expense, core.DefaultExpenseCategories()); err != nil {
		return err
	}
	if err := seed(core.Income, core.DefaultIncomeCategories()); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (ledger.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(email)))
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (ledger.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (ledger.User, error) {
	var u ledger.User
	var createdAt string
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.User{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return u, nil
}

func (r *SQLiteRepository) Users(ctx context.Context, offset, limit int) ([]ledger.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, display_name, password_hash, created_at
		 FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []ledger.User
	for rows.Next() {
		var u ledger.User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u ledger.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, display_name = ?, password_hash = ? WHERE id = ?`,
		strings.ToLower(u.Email), u.DisplayName, u.PasswordHash, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	return rowsAffected(res)
}

func (r *SQLiteRepository) AddTransaction(ctx context.Context, userID string, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, kind, tx_date, description, amount_cents, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, userID, string(t.Kind), t.Date.Format(dateLayout), t.Description, t.Amount.Cents, t.Category)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return rowsAffected(res)
}

func (r *SQLiteRepository) Transactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, tx_date, description, amount_cents, category
		 FROM transactions WHERE user_id = ? ORDER BY tx_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var kind, date string
		if err := rows.Scan(&t.ID, &kind, &date, &t.Description, &t.Amount.Cents, &t.Category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Kind = core.Kind(kind)
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		t.Date = core.Date{Time: d}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AddBudget(ctx context.Context, userID string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, user_id, category, amount_cents, period) VALUES (?, ?, ?, ?, ?)`,
		b.ID, userID, b.Category, b.Amount.Cents, string(b.Period))
	if err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, userID string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET category = ?, amount_cents = ?, period = ? WHERE id = ? AND user_id = ?`,
		b.Category, b.Amount.Cents, string(b.Period), b.ID, userID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return rowsAffected(res)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return rowsAffected(res)
}

func (r *SQLiteRepository) Budgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, amount_cents, period FROM budgets WHERE user_id = ? ORDER BY category, period`, userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		var period string
		if err := rows.Scan(&b.ID, &b.Category, &b.Amount.Cents, &period); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Period = core.Period(period)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) FindBudget(ctx context.Context, userID, category string, p core.Period) (core.Budget, error) {
	var b core.Budget
	var period string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, category, amount_cents, period FROM budgets
		 WHERE user_id = ? AND category = ? AND period = ?`,
		userID, category, string(p)).Scan(&b.ID, &b.Category, &b.Amount.Cents, &period)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("find budget: %w", err)
	}
	b.Period = core.Period(period)
	return b, nil
}

func (r *SQLiteRepository) Categories(ctx context.Context, userID string, kind core.Kind) ([]string, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM user_categories WHERE user_id = ? AND kind = ? ORDER BY position`,
		userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AddCategory(ctx context.Context, userID string, kind core.Kind, name string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_categories (user_id, kind, name, position)
		 SELECT ?, ?, ?, COALESCE(MAX(position), -1) + 1
		 FROM user_categories WHERE user_id = ? AND kind = ?`,
		userID, string(kind), name, userID, string(kind))
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicate
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID string, kind core.Kind, name string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if strings.EqualFold(name, core.ProtectedCategory) {
		return core.ErrProtectedCategory
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_categories WHERE user_id = ? AND kind = ? AND name = ?`,
		userID, string(kind), name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return rowsAffected(res)
}

func (r *SQLiteRepository) CreateWallet(ctx context.Context, w core.SharedWallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (id, name, description, created_by, total_spent_cents, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		w.ID, w.Name, w.Description, w.CreatedBy, w.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicate
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	for i, m := range w.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO wallet_members (wallet_id, email, position) VALUES (?, ?, ?)`,
			w.ID, m, i); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Wallet(ctx context.Context, id string) (core.SharedWallet, error) {
	var w core.SharedWallet
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_by, total_spent_cents, created_at FROM wallets WHERE id = ?`,
		id).Scan(&w.ID, &w.Name, &w.Description, &w.CreatedBy, &w.TotalSpent.Cents, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SharedWallet{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.SharedWallet{}, fmt.Errorf("scan wallet: %w", err)
	}
	w.CreatedAt, _ = time.Parse(timeLayout, createdAt)

	if w.Members, err = r.walletMembers(ctx, id); err != nil {
		return core.SharedWallet{}, err
	}
	if w.Expenses, err = r.walletExpenses(ctx, id); err != nil {
		return core.SharedWallet{}, err
	}
	return w, nil
}

func (r *SQLiteRepository) walletMembers(ctx context.Context, walletID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT email FROM wallet_members WHERE wallet_id = ? ORDER BY position`, walletID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) walletExpenses(ctx context.Context, walletID string) ([]core.WalletExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount_cents, category, paid_by, exp_date
		 FROM wallet_expenses WHERE wallet_id = ? ORDER BY exp_date, id`, walletID)
	if err != nil {
		return nil, fmt.Errorf("query wallet expenses: %w", err)
	}
	defer rows.Close()

	var out []core.WalletExpense
	for rows.Next() {
		var e core.WalletExpense
		var date string
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount.Cents, &e.Category, &e.PaidBy, &date); err != nil {
			return nil, fmt.Errorf("scan wallet expense: %w", err)
		}
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		e.Date = core.Date{Time: d}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) WalletsForMember(ctx context.Context, email string) ([]core.SharedWallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT wallet_id FROM wallet_members WHERE email = ? ORDER BY wallet_id`, email)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []core.SharedWallet
	for _, id := range ids {
		w, err := r.Wallet(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteWallet(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wallets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return rowsAffected(res)
}

func (r *SQLiteRepository) AddMember(ctx context.Context, walletID, email string) error {
	if _, err := r.Wallet(ctx, walletID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallet_members (wallet_id, email, position)
		 SELECT ?, ?, COALESCE(MAX(position), -1) + 1 FROM wallet_members WHERE wallet_id = ?`,
		walletID, email, walletID)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicate
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// AddWalletExpense writes the expense row and the total_spent_cents bump in
// one transaction so the denormalized total cannot drift.
func (r *SQLiteRepository) AddWalletExpense(ctx context.Context, walletID string, e core.WalletExpense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET total_spent_cents = total_spent_cents + ? WHERE id = ?`,
		e.Amount.Cents, walletID)
	if err != nil {
		return fmt.Errorf("update total: %w", err)
	}
	if err := rowsAffected(res); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_expenses (id, wallet_id, description, amount_cents, category, paid_by, exp_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, walletID, e.Description, e.Amount.Cents, e.Category, e.PaidBy, e.Date.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("insert wallet expense: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) DeleteWalletExpense(ctx context.Context, walletID, expenseID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var cents int64
	err = tx.QueryRowContext(ctx,
		`SELECT amount_cents FROM wallet_expenses WHERE id = ? AND wallet_id = ?`,
		expenseID, walletID).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load wallet expense: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM wallet_expenses WHERE id = ? AND wallet_id = ?`, expenseID, walletID); err != nil {
		return fmt.Errorf("delete wallet expense: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE wallets SET total_spent_cents = total_spent_cents - ? WHERE id = ?`,
		cents, walletID); err != nil {
		return fmt.Errorf("update total: %w", err)
	}
	return tx.Commit()
}

// Load implements achievements.Repository.
func (r *SQLiteRepository) Load(ctx context.Context, userID string) (achievements.Record, error) {
	var rec achievements.Record

	var lastEvaluated string
	err := r.db.QueryRowContext(ctx,
		`SELECT streak, last_evaluated FROM achievement_state WHERE user_id = ?`,
		userID).Scan(&rec.Streak, &lastEvaluated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return achievements.Record{}, fmt.Errorf("load achievement state: %w", err)
	}
	if lastEvaluated != "" {
		rec.LastEvaluated, _ = time.Parse(timeLayout, lastEvaluated)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT achievement_id, title, points, date_awarded
		 FROM achievement_awards WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return achievements.Record{}, fmt.Errorf("query awards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a achievements.Award
		var awarded string
		if err := rows.Scan(&a.AchievementID, &a.Title, &a.Points, &awarded); err != nil {
			return achievements.Record{}, fmt.Errorf("scan award: %w", err)
		}
		a.DateAwarded, _ = time.Parse(timeLayout, awarded)
		rec.Awards = append(rec.Awards, a)
	}
	return rec, rows.Err()
}

// Save implements achievements.Repository. The award log is append-only, so
// rows past the currently stored count are inserted and the rest left alone.
func (r *SQLiteRepository) Save(ctx context.Context, userID string, rec achievements.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var have int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM achievement_awards WHERE user_id = ?`, userID).Scan(&have); err != nil {
		return fmt.Errorf("count awards: %w", err)
	}
	for _, a := range rec.Awards[min(have, len(rec.Awards)):] {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO achievement_awards (user_id, achievement_id, title, points, date_awarded)
			 VALUES (?, ?, ?, ?, ?)`,
			userID, a.AchievementID, a.Title, a.Points, a.DateAwarded.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("insert award: %w", err)
		}
	}

	lastEvaluated := ""
	if !rec.LastEvaluated.IsZero() {
		lastEvaluated = rec.LastEvaluated.UTC().Format(timeLayout)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO achievement_state (user_id, streak, last_evaluated) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET streak = excluded.streak, last_evaluated = excluded.last_evaluated`,
		userID, rec.Streak, lastEvaluated); err != nil {
		return fmt.Errorf("save achievement state: %w", err)
	}
	return tx.Commit()
}

func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// isUniqueViolation matches by message; the pure-Go driver does not export
// a typed constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
