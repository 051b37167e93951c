// Package http is the JSON API surface. Routing uses method-qualified mux
// patterns; every route passes the security middleware and the /api/v1
// routes past auth also carry the caller's user id in the context.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/services"
)

type Server struct {
	http.Server
	accounts    *services.AccountService
	ledger      *services.LedgerService
	wallets     *services.WalletService
	tokens      *auth.TokenService
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, accounts *services.AccountService, ledger *services.LedgerService, wallets *services.WalletService, tokens *auth.TokenService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		accounts:    accounts,
		ledger:      ledger,
		wallets:     wallets,
		tokens:      tokens,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/v1/auth/signup", s.secure(s.handleSignup))
	mux.HandleFunc("POST /api/v1/auth/login", s.secure(s.handleLogin))

	mux.HandleFunc("GET /api/v1/profile", s.secure(s.authed(s.handleGetProfile)))
	mux.HandleFunc("PUT /api/v1/profile", s.secure(s.authed(s.handleUpdateProfile)))
	mux.HandleFunc("PUT /api/v1/password", s.secure(s.authed(s.handleChangePassword)))

	mux.HandleFunc("GET /api/v1/transactions", s.secure(s.authed(s.handleListTransactions)))
	mux.HandleFunc("POST /api/v1/transactions", s.secure(s.authed(s.handleCreateTransaction)))
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", s.secure(s.authed(s.handleDeleteTransaction)))

	mux.HandleFunc("GET /api/v1/categories", s.secure(s.authed(s.handleListCategories)))
	mux.HandleFunc("POST /api/v1/categories", s.secure(s.authed(s.handleCreateCategory)))
	mux.HandleFunc("DELETE /api/v1/categories/{kind}/{name}", s.secure(s.authed(s.handleDeleteCategory)))

	mux.HandleFunc("GET /api/v1/budgets", s.secure(s.authed(s.handleListBudgets)))
	mux.HandleFunc("POST /api/v1/budgets", s.secure(s.authed(s.handleCreateBudget)))
	mux.HandleFunc("PUT /api/v1/budgets/{id}", s.secure(s.authed(s.handleUpdateBudget)))
	mux.HandleFunc("DELETE /api/v1/budgets/{id}", s.secure(s.authed(s.handleDeleteBudget)))

	mux.HandleFunc("GET /api/v1/dashboard", s.secure(s.authed(s.handleDashboard)))
	mux.HandleFunc("GET /api/v1/achievements", s.secure(s.authed(s.handleAchievements)))

	mux.HandleFunc("GET /api/v1/wallets", s.secure(s.authed(s.handleListWallets)))
	mux.HandleFunc("POST /api/v1/wallets", s.secure(s.authed(s.handleCreateWallet)))
	mux.HandleFunc("GET /api/v1/wallets/{id}", s.secure(s.authed(s.handleGetWallet)))
	mux.HandleFunc("DELETE /api/v1/wallets/{id}", s.secure(s.authed(s.handleDeleteWallet)))
	mux.HandleFunc("POST /api/v1/wallets/{id}/members", s.secure(s.authed(s.handleInviteMember)))
	mux.HandleFunc("POST /api/v1/wallets/{id}/expenses", s.secure(s.authed(s.handleAddWalletExpense)))
	mux.HandleFunc("DELETE /api/v1/wallets/{id}/expenses/{expID}", s.secure(s.authed(s.handleDeleteWalletExpense)))

	return s
}

// Shutdown stops the server and its background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// secure adds security headers, rate limiting on mutating methods, and
// start/finish request logging with a request id.
func (s *Server) secure(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if mutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// authed verifies the bearer token and stores the user id in the context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "authorization header required")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}
		uid, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, uid)
		next(w, r.WithContext(ctx))
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
