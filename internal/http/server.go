// Package http exposes the bookkeeping core as a JSON API. All
// data routes require a bearer token; responses render money as
// decimal strings.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/services"
)

// Server wires the service layer to HTTP routes with auth, rate
// limiting and short-lived read caches for the account list and
// budget status.
type Server struct {
	http.Server

	store        services.Store
	accounts     *services.AccountService
	transactions *services.TransactionService
	budgets      *services.BudgetService
	scanner      services.ReceiptScanner

	jwtSecret   []byte
	rateLimiter *rateLimiter
	metrics     securityMetrics

	accountsCache *cache.Store[[]core.AccountWithCount]
	budgetCache   *cache.Store[services.BudgetStatus]
	janitor       *cache.Janitor

	shutdownOnce sync.Once
}

// Options carries the dependencies for NewServer. Scanner is
// optional; a nil scanner disables the receipt endpoint.
type Options struct {
	Addr      string
	JWTSecret []byte

	Store        services.Store
	Accounts     *services.AccountService
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Scanner      services.ReceiptScanner

	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
}

// NewServer configures routes and caches, returning a ready-to-run
// http.Server.
func NewServer(opts Options) *Server {
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.CacheCleanupInterval == 0 {
		opts.CacheCleanupInterval = time.Minute
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		store:        opts.Store,
		accounts:     opts.Accounts,
		transactions: opts.Transactions,
		budgets:      opts.Budgets,
		scanner:      opts.Scanner,
		jwtSecret:    opts.JWTSecret,
		rateLimiter:  newRateLimiter(),

		accountsCache: cache.New[[]core.AccountWithCount](500, opts.CacheTTL),
		budgetCache:   cache.New[services.BudgetStatus](500, opts.CacheTTL),
		janitor:       cache.NewJanitor(),
	}

	s.janitor.Register(s.accountsCache)
	s.janitor.Register(s.budgetCache)
	s.janitor.Start(opts.CacheCleanupInterval)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /categories", s.guard(s.handleListCategories))

	mux.HandleFunc("POST /accounts", s.guard(s.handleCreateAccount))
	mux.HandleFunc("GET /accounts", s.guard(s.handleListAccounts))
	mux.HandleFunc("POST /accounts/{id}/default", s.guard(s.handleSetDefaultAccount))

	mux.HandleFunc("POST /transactions", s.guard(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions", s.guard(s.handleListTransactions))
	mux.HandleFunc("GET /transactions/{id}", s.guard(s.handleGetTransaction))
	mux.HandleFunc("PUT /transactions/{id}", s.guard(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /transactions", s.guard(s.handleDeleteTransactions))

	mux.HandleFunc("POST /splits/{id}/paid", s.guard(s.handleMarkSplitPaid))

	mux.HandleFunc("PUT /budget", s.guard(s.handleSetBudget))
	mux.HandleFunc("GET /budget/status", s.guard(s.handleBudgetStatus))

	mux.HandleFunc("POST /receipts/scan", s.guard(s.handleScanReceipt))

	return s
}

// guard stacks the standard middleware for data routes.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return s.withSecurityHeaders(s.requireAuth(next))
}

// withSecurityHeaders adds security headers, rate limiting, and
// request logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if isWrite(r.Method) && !s.rateLimiter.allow(clientIP, &s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path, "rate_limit_hits_total", s.metrics.hits())
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")

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

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Cache invalidation. Any write that can move a balance drops the
// user's cached reads.
func (s *Server) invalidateUser(userID string) {
	s.accountsCache.Delete(accountsKey(userID))
	s.budgetCache.DeletePrefix(budgetKeyPrefix(userID))
}

func accountsKey(userID string) string { return "accounts:" + userID }

func budgetKeyPrefix(userID string) string { return "budget:" + userID + ":" }

func budgetKey(userID, accountID string) string { return budgetKeyPrefix(userID) + accountID }

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
