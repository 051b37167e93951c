// Package memory is the in-process ledger backend. It is the default when no
// database is configured and the backend the handler tests run against.
package memory

import (
	"context"
	"strings"
	"sync"

	"fintrack/internal/achievements"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

type userData struct {
	transactions []core.Transaction
	budgets      []core.Budget
	categories   map[core.Kind][]string
	achievements achievements.Record
}

type Store struct {
	mu      sync.Mutex
	users   map[string]ledger.User // by id
	order   []string               // ids in creation order
	byEmail map[string]string      // email -> id
	data    map[string]*userData   // by user id
	wallets map[string]*core.SharedWallet
}

func New() *Store {
	return &Store{
		users:   make(map[string]ledger.User),
		byEmail: make(map[string]string),
		data:    make(map[string]*userData),
		wallets: make(map[string]*core.SharedWallet),
	}
}

func (s *Store) userData(userID string) *userData {
	d, ok := s.data[userID]
	if !ok {
		d = &userData{categories: map[core.Kind][]string{
			core.Expense: core.DefaultExpenseCategories(),
			core.Income:  core.DefaultIncomeCategories(),
		}}
		s.data[userID] = d
	}
	return d
}

// CreateUser stores u and seeds the default category lists.
func (s *Store) CreateUser(_ context.Context, u ledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return ledger.ErrDuplicate
	}
	s.users[u.ID] = u
	s.order = append(s.order, u.ID)
	s.byEmail[email] = u.ID
	s.userData(u.ID)
	return nil
}

func (s *Store) Users(_ context.Context, offset, limit int) ([]ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.order) || limit <= 0 {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.order) {
		end = len(s.order)
	}
	out := make([]ledger.User, 0, end-offset)
	for _, id := range s.order[offset:end] {
		out = append(out, s.users[id])
	}
	return out, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return ledger.User{}, ledger.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UserByID(_ context.Context, id string) (ledger.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ledger.User{}, ledger.ErrNotFound
	}
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u ledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[u.ID]
	if !ok {
		return ledger.ErrNotFound
	}
	if !strings.EqualFold(old.Email, u.Email) {
		email := strings.ToLower(u.Email)
		if _, taken := s.byEmail[email]; taken {
			return ledger.ErrDuplicate
		}
		delete(s.byEmail, strings.ToLower(old.Email))
		s.byEmail[email] = u.ID
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) AddTransaction(_ context.Context, userID string, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	d.transactions = append(d.transactions, t)
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	for i, t := range d.transactions {
		if t.ID == id {
			d.transactions = append(d.transactions[:i], d.transactions[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) Transactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	return append([]core.Transaction(nil), d.transactions...), nil
}

func (s *Store) AddBudget(_ context.Context, userID string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	d.budgets = append(d.budgets, b)
	return nil
}

func (s *Store) UpdateBudget(_ context.Context, userID string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	for i, cur := range d.budgets {
		if cur.ID == b.ID {
			d.budgets[i] = b
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	for i, b := range d.budgets {
		if b.ID == id {
			d.budgets = append(d.budgets[:i], d.budgets[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) Budgets(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	return append([]core.Budget(nil), d.budgets...), nil
}

func (s *Store) FindBudget(_ context.Context, userID, category string, p core.Period) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	for _, b := range d.budgets {
		if b.Category == category && b.Period == p {
			return b, nil
		}
	}
	return core.Budget{}, ledger.ErrNotFound
}

func (s *Store) Categories(_ context.Context, userID string, kind core.Kind) ([]string, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	return append([]string(nil), d.categories[kind]...), nil
}

func (s *Store) AddCategory(_ context.Context, userID string, kind core.Kind, name string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	for _, c := range d.categories[kind] {
		if strings.EqualFold(c, name) {
			return ledger.ErrDuplicate
		}
	}
	d.categories[kind] = append(d.categories[kind], name)
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, userID string, kind core.Kind, name string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if strings.EqualFold(name, core.ProtectedCategory) {
		return core.ErrProtectedCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	for i, c := range d.categories[kind] {
		if strings.EqualFold(c, name) {
			d.categories[kind] = append(d.categories[kind][:i], d.categories[kind][i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) CreateWallet(_ context.Context, w core.SharedWallet) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[w.ID]; ok {
		return ledger.ErrDuplicate
	}
	cp := cloneWallet(w)
	s.wallets[w.ID] = &cp
	return nil
}

func (s *Store) Wallet(_ context.Context, id string) (core.SharedWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return core.SharedWallet{}, ledger.ErrNotFound
	}
	return cloneWallet(*w), nil
}

func (s *Store) WalletsForMember(_ context.Context, email string) ([]core.SharedWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.SharedWallet
	for _, w := range s.wallets {
		for _, m := range w.Members {
			if strings.EqualFold(m, email) {
				out = append(out, cloneWallet(*w))
				break
			}
		}
	}
	return out, nil
}

func (s *Store) DeleteWallet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.wallets, id)
	return nil
}

func (s *Store) AddMember(_ context.Context, walletID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return ledger.ErrNotFound
	}
	for _, m := range w.Members {
		if strings.EqualFold(m, email) {
			return ledger.ErrDuplicate
		}
	}
	w.Members = append(w.Members, email)
	return nil
}

// AddWalletExpense appends e and bumps TotalSpent under the same lock, so
// the denormalized total never drifts from the expense list.
func (s *Store) AddWalletExpense(_ context.Context, walletID string, e core.WalletExpense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return ledger.ErrNotFound
	}
	w.Expenses = append(w.Expenses, e)
	w.TotalSpent.Cents += e.Amount.Cents
	return nil
}

func (s *Store) DeleteWalletExpense(_ context.Context, walletID, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return ledger.ErrNotFound
	}
	for i, e := range w.Expenses {
		if e.ID == expenseID {
			w.Expenses = append(w.Expenses[:i], w.Expenses[i+1:]...)
			w.TotalSpent.Cents -= e.Amount.Cents
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) Load(_ context.Context, userID string) (achievements.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	rec := d.achievements
	rec.Awards = append([]achievements.Award(nil), rec.Awards...)
	return rec, nil
}

func (s *Store) Save(_ context.Context, userID string, rec achievements.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.userData(userID)
	rec.Awards = append([]achievements.Award(nil), rec.Awards...)
	d.achievements = rec
	return nil
}

func cloneWallet(w core.SharedWallet) core.SharedWallet {
	w.Members = append([]string(nil), w.Members...)
	w.Expenses = append([]core.WalletExpense(nil), w.Expenses...)
	return w
}
