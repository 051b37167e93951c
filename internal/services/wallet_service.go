package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

var (
	ErrNotMember  = errors.New("not a wallet member")
	ErrNotCreator = errors.New("only the creator can delete a wallet")
)

// WalletService orchestrates shared-wallet operations. Membership checks
// happen here; the storage layer only enforces the TotalSpent invariant.
type WalletService struct {
	store     ledger.Store
	publisher EventPublisher
}

func NewWalletService(store ledger.Store, publisher EventPublisher) *WalletService {
	return &WalletService{store: store, publisher: publisher}
}

// CreateWallet creates a wallet with the creator as its only member.
func (s *WalletService) CreateWallet(ctx context.Context, name, description, creatorEmail string) (core.SharedWallet, error) {
	w := core.SharedWallet{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedBy:   creatorEmail,
		Members:     []string{creatorEmail},
		CreatedAt:   time.Now().UTC(),
	}
	if err := w.Validate(); err != nil {
		return core.SharedWallet{}, err
	}
	if err := s.store.CreateWallet(ctx, w); err != nil {
		return core.SharedWallet{}, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}

// Wallets lists the wallets the given member belongs to.
func (s *WalletService) Wallets(ctx context.Context, email string) ([]core.SharedWallet, error) {
	return s.store.WalletsForMember(ctx, email)
}

// Wallet returns the wallet if email is a member, ErrNotMember otherwise.
func (s *WalletService) Wallet(ctx context.Context, id, email string) (core.SharedWallet, error) {
	w, err := s.store.Wallet(ctx, id)
	if err != nil {
		return core.SharedWallet{}, err
	}
	if !isMember(w, email) {
		return core.SharedWallet{}, ErrNotMember
	}
	return w, nil
}

// InviteMember appends email to the member list. Anyone already in the
// wallet can invite; the address is not checked against existing accounts.
func (s *WalletService) InviteMember(ctx context.Context, walletID, actorEmail, email string) error {
	w, err := s.Wallet(ctx, walletID, actorEmail)
	if err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return errors.New("invalid email address")
	}
	if err := s.store.AddMember(ctx, w.ID, email); err != nil {
		return err
	}
	s.publishWallet(ctx, w.ID)
	return nil
}

// AddExpense records an expense paid by the acting member.
func (s *WalletService) AddExpense(ctx context.Context, walletID, actorEmail string, e core.WalletExpense) (core.WalletExpense, error) {
	w, err := s.Wallet(ctx, walletID, actorEmail)
	if err != nil {
		return core.WalletExpense{}, err
	}
	e.ID = uuid.NewString()
	if e.PaidBy == "" {
		e.PaidBy = actorEmail
	}
	if err := e.Validate(); err != nil {
		return core.WalletExpense{}, err
	}
	if err := s.store.AddWalletExpense(ctx, w.ID, e); err != nil {
		return core.WalletExpense{}, fmt.Errorf("add wallet expense: %w", err)
	}
	s.publishWallet(ctx, w.ID)
	return e, nil
}

func (s *WalletService) DeleteExpense(ctx context.Context, walletID, actorEmail, expenseID string) error {
	w, err := s.Wallet(ctx, walletID, actorEmail)
	if err != nil {
		return err
	}
	if err := s.store.DeleteWalletExpense(ctx, w.ID, expenseID); err != nil {
		return err
	}
	s.publishWallet(ctx, w.ID)
	return nil
}

// DeleteWallet removes the wallet and everything in it. Creator only.
func (s *WalletService) DeleteWallet(ctx context.Context, walletID, actorEmail string) error {
	w, err := s.store.Wallet(ctx, walletID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(w.CreatedBy, actorEmail) {
		return ErrNotCreator
	}
	return s.store.DeleteWallet(ctx, walletID)
}

// MemberNames resolves member emails to display names. Unknown addresses
// fall back to the part before the @.
func (s *WalletService) MemberNames(ctx context.Context, w core.SharedWallet) map[string]string {
	out := make(map[string]string, len(w.Members))
	for _, email := range w.Members {
		u, err := s.store.UserByEmail(ctx, email)
		if err == nil && u.DisplayName != "" {
			out[email] = u.DisplayName
			continue
		}
		out[email] = strings.SplitN(email, "@", 2)[0]
	}
	return out
}

func isMember(w core.SharedWallet, email string) bool {
	for _, m := range w.Members {
		if strings.EqualFold(m, email) {
			return true
		}
	}
	return false
}

func (s *WalletService) publishWallet(ctx context.Context, walletID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, amqp.NewWalletEvent(walletID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish wallet event",
			"wallet_id", walletID, "error", err)
	}
}
