/**
 * @description
 * This file sets up the HTTP router for the earnings-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// EarningsRoutes creates and returns a new router for the earnings service.
func EarningsRoutes(h *EarningsHandlers, jwtSecret, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Creator-facing endpoints require a valid user token.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/withdrawals", h.ListWithdrawalsHandler)
		r.Post("/withdrawals", h.RequestWithdrawalHandler)
	})

	// Administrative review queue requires the admin role on top of auth.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))
		r.Use(AdminOnlyMiddleware)

		r.Get("/admin/withdrawals", h.AdminListWithdrawalsHandler)
		r.Post("/admin/withdrawals/{withdrawalID}", h.SettleWithdrawalHandler)
	})

	// Service-to-service accrual ingestion is guarded by a shared key.
	r.Group(func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalAPIKey))

		r.Post("/internal/accruals", h.IngestAccrualHandler)
	})

	return r
}
