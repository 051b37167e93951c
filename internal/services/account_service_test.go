package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/ledger/memory"
)

func newAccounts(t *testing.T) (*AccountService, *memory.Store, *auth.TokenService) {
	t.Helper()
	store := memory.New()
	tokens := auth.NewTokenService("test-secret-0123456789", time.Hour)
	return NewAccountService(store, tokens), store, tokens
}

func TestSignupAndLogin(t *testing.T) {
	svc, store, tokens := newAccounts(t)
	ctx := context.Background()

	u, token, err := svc.Signup(ctx, " Ann@Example.com ", " Ann ", "password123")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.Email != "ann@example.com" || u.DisplayName != "Ann" {
		t.Fatalf("user: %+v", u)
	}
	if u.PasswordHash == "password123" {
		t.Fatal("password stored in plaintext")
	}
	if sub, err := tokens.Verify(token); err != nil || sub != u.ID {
		t.Fatalf("token: %q (%v)", sub, err)
	}

	// Signup seeds the default category lists.
	cats, _ := store.Categories(ctx, u.ID, core.Expense)
	if len(cats) == 0 {
		t.Fatal("no default categories")
	}

	got, _, err := svc.Login(ctx, "ann@example.com", "password123")
	if err != nil || got.ID != u.ID {
		t.Fatalf("login: %+v (%v)", got, err)
	}
}

func TestLoginRejections(t *testing.T) {
	svc, _, _ := newAccounts(t)
	ctx := context.Background()
	svc.Signup(ctx, "ann@example.com", "Ann", "password123")

	if _, _, err := svc.Login(ctx, "ann@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", err)
	}
}

func TestSignupRejections(t *testing.T) {
	svc, _, _ := newAccounts(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "not-an-email", "x", "password123"); err == nil {
		t.Fatal("bad email accepted")
	}
	if _, _, err := svc.Signup(ctx, "a@b.com", "x", "short"); err == nil {
		t.Fatal("short password accepted")
	}

	svc.Signup(ctx, "ann@example.com", "Ann", "password123")
	if _, _, err := svc.Signup(ctx, "ANN@example.com", "Ann2", "password123"); !errors.Is(err, ledger.ErrDuplicate) {
		t.Fatalf("duplicate email: got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newAccounts(t)
	ctx := context.Background()
	u, _, _ := svc.Signup(ctx, "ann@example.com", "Ann", "password123")

	if err := svc.ChangePassword(ctx, u.ID, "wrong", "newpassword1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current: got %v", err)
	}
	if err := svc.ChangePassword(ctx, u.ID, "password123", "newpassword1"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, _, err := svc.Login(ctx, "ann@example.com", "newpassword1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newAccounts(t)
	ctx := context.Background()
	u, _, _ := svc.Signup(ctx, "ann@example.com", "Ann", "password123")

	got, err := svc.UpdateProfile(ctx, u.ID, "  Ann Smith  ")
	if err != nil || got.DisplayName != "Ann Smith" {
		t.Fatalf("update: %+v (%v)", got, err)
	}
}
