// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/redapplexx/cpay-sub003/internal/api/handler"
	"github.com/redapplexx/cpay-sub003/internal/api/middleware"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Accounts     *handler.AccountHandler
	Transactions *handler.TransactionHandler
	Fx           *handler.FxHandler
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(h Handlers, auth *middleware.Authenticator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(handler.DefaultTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Public routes
	r.Post("/accounts", h.Accounts.Register)
	r.Get("/fx/quote", h.Fx.Quote)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/balances", h.Accounts.ListBalances)
			r.Get("/balances/{currency}", h.Accounts.GetBalance)
			r.Get("/transactions", h.Accounts.GetTransactionHistory)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(middleware.RoleCompliance))
				r.Post("/archive", h.Accounts.Archive)
				r.Put("/risk-score", h.Accounts.SetRiskScore)
			})
		})

		r.Post("/transfers/p2p", h.Transactions.TransferP2P)
		r.Post("/cash-in", h.Transactions.CashIn)
		r.Post("/cash-out", h.Transactions.CashOut)
		r.Post("/bills", h.Transactions.PayBill)
		r.Post("/qr-payments", h.Transactions.PayQR)
		r.Post("/remittances", h.Transactions.Remit)

		r.Route("/transactions/{transactionID}", func(r chi.Router) {
			r.Get("/", h.Transactions.GetTransaction)
			r.Post("/confirm", h.Transactions.Confirm)
			r.Post("/resend-code", h.Transactions.ResendCode)
			r.Post("/cancel", h.Transactions.Cancel)
			r.With(middleware.RequireRole(middleware.RoleCompliance)).Post("/release", h.Transactions.Release)
		})
	})

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.InfoContext(r.Context(), "http request",
					"request_id", chimw.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
