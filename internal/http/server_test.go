package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/ledger/memory"
	"fintrack/internal/services"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New()
	tokens := auth.NewTokenService("test-secret-key-0123456789", time.Hour)
	accounts := services.NewAccountService(store, tokens)
	ledgerSvc := services.NewLedgerService(store, nil)
	wallets := services.NewWalletService(store, nil)
	s := NewServer(":0", accounts, ledgerSvc, wallets, tokens)
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s
}

func doRequest(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func signup(t *testing.T, s *Server, email string) string {
	t.Helper()
	rec := doRequest(t, s, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": email, "display_name": "Test User", "password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[sessionResponse](t, rec).Token
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t)

	token := signup(t, s, "alice@example.com")
	if token == "" {
		t.Fatal("empty token from signup")
	}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "Alice@Example.com", "password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rec.Code, rec.Body.String())
	}
	sess := decodeBody[sessionResponse](t, rec)
	if sess.User.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", sess.User.Email)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d, want 401", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": "alice@example.com", "display_name": "Dup", "password": "password123",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup: status %d, want 409", rec.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "not-an-email", "display_name": "X", "password": "password123"}},
		{"short password", map[string]string{"email": "a@b.com", "display_name": "X", "password": "short"}},
		{"blank name", map[string]string{"email": "a@b.com", "display_name": "   ", "password": "password123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/auth/signup", "", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status %d, want 422 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/transactions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/transactions", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status %d, want 401", rec.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := signup(t, s, "bob@example.com")

	rec := doRequest(t, s, http.MethodPost, "/api/v1/transactions", token, map[string]string{
		"kind": "expense", "date": "2025-03-10", "description": "groceries",
		"amount": "45.90", "category": "Food & Dining",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[transactionResponse](t, rec)
	if created.Amount != "45.90" {
		t.Errorf("amount round-trip: %q", created.Amount)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/transactions", token, map[string]string{
		"kind": "income", "date": "2025-03-01", "description": "salary",
		"amount": "2500,00", "category": "Salary",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create income: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/transactions", token, nil)
	if got := len(decodeBody[[]transactionResponse](t, rec)); got != 2 {
		t.Errorf("list: %d transactions, want 2", got)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/transactions?kind=income", token, nil)
	listed := decodeBody[[]transactionResponse](t, rec)
	if len(listed) != 1 || listed[0].Kind != "income" {
		t.Errorf("kind filter: %+v", listed)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/transactions?kind=bogus", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bogus kind: status %d, want 422", rec.Code)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/transactions/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status %d, want 204", rec.Code)
	}
	rec = doRequest(t, s, http.MethodDelete, "/api/v1/transactions/"+created.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete again: status %d, want 404", rec.Code)
	}
}

func TestTransactionValidation(t *testing.T) {
	s := newTestServer(t)
	token := signup(t, s, "carol@example.com")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad kind", map[string]string{"kind": "transfer", "date": "2025-03-10", "description": "x", "amount": "1.00", "category": "Other"}},
		{"bad date", map[string]string{"kind": "expense", "date": "10/03/2025", "description": "x", "amount": "1.00", "category": "Other"}},
		{"zero amount", map[string]string{"kind": "expense", "date": "2025-03-10", "description": "x", "amount": "0", "category": "Other"}},
		{"negative amount", map[string]string{"kind": "expense", "date": "2025-03-10", "description": "x", "amount": "-5.00", "category": "Other"}},
		{"blank description", map[string]string{"kind": "expense", "date": "2025-03-10", "description": "  ", "amount": "1.00", "category": "Other"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/transactions", token, tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status %d, want 422 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)
	token := signup(t, s, "dave@example.com")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/categories", token, nil)
	cats := decodeBody[categoriesResponse](t, rec)
	if len(cats.Expense) == 0 || len(cats.Income) == 0 {
		t.Fatal("default categories not seeded")
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/categories", token, map[string]string{
		"kind": "expense", "name": "Pets",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/categories/expense/Pets", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status %d, want 204", rec.Code)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/categories/expense/Other", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("delete protected: status %d, want 422", rec.Code)
	}
}

func TestBudgetDuplicateConflict(t *testing.T) {
	s := newTestServer(t)
	token := signup(t, s, "erin@example.com")

	body := map[string]string{"category": "Housing", "amount": "800.00", "period": "monthly"}
	rec := doRequest(t, s, http.MethodPost, "/api/v1/budgets", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[budgetResponse](t, rec)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/budgets", token, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: status %d, want 409", rec.Code)
	}
	dup := decodeBody[duplicateBudgetResponse](t, rec)
	if dup.Existing.ID != first.ID {
		t.Errorf("conflict body: existing id %q, want %q", dup.Existing.ID, first.ID)
	}

	// Same category with the other period is a distinct budget.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/budgets", token, map[string]string{
		"category": "Housing", "amount": "9000.00", "period": "yearly",
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("other period: status %d, want 201", rec.Code)
	}
}

func TestBudgetUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	token := signup(t, s, "frank@example.com")

	rec := doRequest(t, s, http.MethodPost, "/api/v1/budgets", token, map[string]string{
		"category": "Travel", "amount": "300.00", "period": "monthly",
	})
	created := decodeBody[budgetResponse](t, rec)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/budgets/"+created.ID, token, map[string]string{
		"category": "Travel", "amount": "450.00", "period": "monthly",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[budgetResponse](t, rec).Amount; got != "450.00" {
		t.Errorf("updated amount: %q", got)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/budgets/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status %d, want 204", rec.Code)
	}
	rec = doRequest(t, s, http.MethodPut, "/api/v1/budgets/"+created.ID, token, map[string]string{
		"category": "Travel", "amount": "450.00", "period": "monthly",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("update deleted: status %d, want 404", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t)
	token := signup(t, s, "grace@example.com")

	today := time.Now().UTC().Format("2006-01-02")
	for _, body := range []map[string]string{
		{"kind": "income", "date": today, "description": "salary", "amount": "3000.00", "category": "Salary"},
		{"kind": "expense", "date": today, "description": "rent", "amount": "1000.00", "category": "Housing"},
		{"kind": "expense", "date": today, "description": "food", "amount": "500.00", "category": "Food & Dining"},
	} {
		rec := doRequest(t, s, http.MethodPost, "/api/v1/transactions", token, body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed: status %d, body %s", rec.Code, rec.Body.String())
		}
	}
	doRequest(t, s, http.MethodPost, "/api/v1/budgets", token, map[string]string{
		"category": "Housing", "amount": "800.00", "period": "monthly",
	})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/dashboard", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: status %d, body %s", rec.Code, rec.Body.String())
	}
	d := decodeBody[dashboardResponse](t, rec)
	if d.Balance != "1500.00" {
		t.Errorf("balance: %q", d.Balance)
	}
	if d.Summary.Income != "3000.00" || d.Summary.Expense != "1500.00" {
		t.Errorf("summary: %+v", d.Summary)
	}
	if d.Summary.SavingsRate != 0.5 {
		t.Errorf("savings rate: %v", d.Summary.SavingsRate)
	}
	if len(d.Breakdown) != 2 || d.Breakdown[0].Name != "Housing" {
		t.Errorf("breakdown: %+v", d.Breakdown)
	}
	if len(d.Budgets) != 1 || !d.Budgets[0].OverBudget {
		t.Errorf("budget status: %+v", d.Budgets)
	}
}

func TestAchievementsEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := signup(t, s, "heidi@example.com")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/achievements", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("achievements: status %d, body %s", rec.Code, rec.Body.String())
	}
	a := decodeBody[achievementsResponse](t, rec)
	if a.Points != 0 || len(a.Awards) != 0 {
		t.Errorf("fresh user should have no awards: %+v", a)
	}
}

func TestWalletFlow(t *testing.T) {
	s := newTestServer(t)
	creator := signup(t, s, "ivan@example.com")
	outsider := signup(t, s, "judy@example.com")

	rec := doRequest(t, s, http.MethodPost, "/api/v1/wallets", creator, map[string]string{
		"name": "Trip to Rome", "description": "shared travel costs",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create wallet: status %d, body %s", rec.Code, rec.Body.String())
	}
	wallet := decodeBody[walletResponse](t, rec)

	walletPath := "/api/v1/wallets/" + wallet.ID

	rec = doRequest(t, s, http.MethodPost, walletPath+"/expenses", creator, map[string]string{
		"description": "hotel", "amount": "240.00", "category": "Rent", "date": "2025-05-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add expense: status %d, body %s", rec.Code, rec.Body.String())
	}
	exp := decodeBody[walletExpenseResponse](t, rec)
	if exp.PaidBy != "ivan@example.com" {
		t.Errorf("paid_by defaulting: %q", exp.PaidBy)
	}

	rec = doRequest(t, s, http.MethodGet, walletPath, creator, nil)
	got := decodeBody[walletResponse](t, rec)
	if got.TotalSpent != "240.00" {
		t.Errorf("total spent: %q", got.TotalSpent)
	}

	// A non-member cannot see the wallet.
	rec = doRequest(t, s, http.MethodGet, walletPath, outsider, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("outsider get: status %d, want 403", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, walletPath+"/members", creator, map[string]string{
		"email": "judy@example.com",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("invite: status %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, s, http.MethodGet, walletPath, outsider, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("member get after invite: status %d, want 200", rec.Code)
	}

	// Only the creator can delete.
	rec = doRequest(t, s, http.MethodDelete, walletPath, outsider, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("member delete: status %d, want 403", rec.Code)
	}
	rec = doRequest(t, s, http.MethodDelete, walletPath+"/expenses/"+exp.ID, creator, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete expense: status %d, want 204", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, walletPath, creator, nil)
	if got := decodeBody[walletResponse](t, rec).TotalSpent; got != "0.00" {
		t.Errorf("total spent after delete: %q", got)
	}
	rec = doRequest(t, s, http.MethodDelete, walletPath, creator, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("creator delete: status %d, want 204", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, walletPath, creator, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted wallet: status %d, want 404", rec.Code)
	}
}

func TestProfileUpdateAndPassword(t *testing.T) {
	s := newTestServer(t)
	token := signup(t, s, "kim@example.com")

	rec := doRequest(t, s, http.MethodPut, "/api/v1/profile", token, map[string]string{
		"display_name": "Kim R.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile: status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[userResponse](t, rec).DisplayName; got != "Kim R." {
		t.Errorf("display name: %q", got)
	}

	rec = doRequest(t, s, http.MethodPut, "/api/v1/password", token, map[string]string{
		"current_password": "wrong", "new_password": "newpassword1",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong current password: status %d, want 401", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPut, "/api/v1/password", token, map[string]string{
		"current_password": "password123", "new_password": "newpassword1",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("change password: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "kim@example.com", "password": "newpassword1",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password: status %d, want 200", rec.Code)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	s := newTestServer(t)
	token := signup(t, s, "leo@example.com")

	var last int
	for i := 0; i < 70; i++ {
		rec := doRequest(t, s, http.MethodPost, "/api/v1/categories", token, map[string]string{
			"kind": "expense", "name": fmt.Sprintf("cat-%d", i),
		})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("after 70 mutations: status %d, want 429", last)
	}

	// Reads are never limited.
	rec := doRequest(t, s, http.MethodGet, "/api/v1/categories", token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("read while limited: status %d, want 200", rec.Code)
	}
}
