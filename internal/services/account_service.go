package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/ledger"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// AccountService handles signup, login and profile maintenance.
type AccountService struct {
	store  ledger.UserStore
	tokens *auth.TokenService
}

func NewAccountService(store ledger.UserStore, tokens *auth.TokenService) *AccountService {
	return &AccountService{store: store, tokens: tokens}
}

// Signup creates the account and returns it with a fresh session token.
// Default category lists are seeded by the store.
func (s *AccountService) Signup(ctx context.Context, email, displayName, password string) (ledger.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return ledger.User{}, "", errors.New("invalid email address")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return ledger.User{}, "", err
	}

	u := ledger.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return ledger.User{}, "", err
	}

	token, err := s.tokens.Generate(u.ID)
	if err != nil {
		return ledger.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return u, token, nil
}

// Login verifies the credentials and returns the user with a session token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (ledger.User, string, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.User{}, "", ErrInvalidCredentials
		}
		return ledger.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return ledger.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(u.ID)
	if err != nil {
		return ledger.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return u, token, nil
}

func (s *AccountService) User(ctx context.Context, id string) (ledger.User, error) {
	return s.store.UserByID(ctx, id)
}

// UpdateProfile changes the display name.
func (s *AccountService) UpdateProfile(ctx context.Context, userID, displayName string) (ledger.User, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return ledger.User{}, err
	}
	u.DisplayName = strings.TrimSpace(displayName)
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return ledger.User{}, err
	}
	return u, nil
}

// ChangePassword verifies the current password before setting the new one.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(u.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.store.UpdateUser(ctx, u)
}
