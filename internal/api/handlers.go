/**
 * @description
 * This file contains the HTTP handlers for the earnings-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/monetize-motion/earnings-service/internal/app"
	"github.com/monetize-motion/earnings-service/internal/domain"
	"github.com/monetize-motion/earnings-service/internal/store"
)

// EarningsHandlers holds the application service that handlers will use.
type EarningsHandlers struct {
	service *app.Service
}

// NewEarningsHandlers creates a new instance of EarningsHandlers.
func NewEarningsHandlers(service *app.Service) *EarningsHandlers {
	return &EarningsHandlers{service: service}
}

// balanceResponse is the payload for the creator's earnings screen. It bundles
// the balance snapshot, the display counters, and the configured withdrawal
// floor so the client can pre-validate amounts.
type balanceResponse struct {
	Balance            *domain.CreatorBalance `json:"balance"`
	Stats              *domain.CreatorStats   `json:"stats,omitempty"`
	MinWithdrawalCents int64                  `json:"min_withdrawal_cents"`
}

// GetBalanceHandler returns the authenticated creator's earnings summary.
func (h *EarningsHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthenticatedUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	summary, err := h.service.GetEarningsSummary(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// A creator with no accruals yet has no row; report a zero balance.
			h.writeJSON(w, http.StatusOK, balanceResponse{
				Balance:            &domain.CreatorBalance{UserID: userID},
				MinWithdrawalCents: h.service.MinWithdrawalCents(),
			})
			return
		}
		log.Printf("level=error component=api endpoint=get_balance msg=\"summary lookup failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load earnings")
		return
	}

	h.writeJSON(w, http.StatusOK, balanceResponse{
		Balance:            summary.Balance,
		Stats:              summary.Stats,
		MinWithdrawalCents: h.service.MinWithdrawalCents(),
	})
}

// RequestWithdrawalHandler handles a creator's request to withdraw available earnings.
func (h *EarningsHandlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthenticatedUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req domain.CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	withdrawal, err := h.service.RequestWithdrawal(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=request_withdrawal outcome=reject user_id=%s err=%v", userID, err)
		h.writeWithdrawalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, withdrawal)
}

// ListWithdrawalsHandler returns the authenticated creator's withdrawal history,
// newest first.
func (h *EarningsHandlers) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthenticatedUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	withdrawals, err := h.service.ListWithdrawals(r.Context(), userID, parseListOptions(r))
	if err != nil {
		log.Printf("level=error component=api endpoint=list_withdrawals msg=\"listing failed\" user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load withdrawals")
		return
	}
	if withdrawals == nil {
		withdrawals = []domain.WithdrawalRequest{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": withdrawals})
}

// AdminListWithdrawalsHandler returns the review queue for one lifecycle state.
// Defaults to the pending queue when no status filter is given.
func (h *EarningsHandlers) AdminListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = domain.WithdrawalStatusPending
	}

	withdrawals, err := h.service.ListWithdrawalsByStatus(r.Context(), status, parseListOptions(r))
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=admin_list_withdrawals msg=\"listing failed\" status=%s err=%v", status, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load withdrawals")
		return
	}
	if withdrawals == nil {
		withdrawals = []domain.WithdrawalRequest{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": withdrawals})
}

// SettleWithdrawalHandler applies the administrative completed/rejected decision
// to a pending withdrawal.
func (h *EarningsHandlers) SettleWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	withdrawalID, err := uuid.Parse(chi.URLParam(r, "withdrawalID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid withdrawal ID")
		return
	}

	var req domain.SettleWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settled, err := h.service.SettleWithdrawal(r.Context(), withdrawalID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=settle_withdrawal outcome=reject withdrawal_id=%s err=%v", withdrawalID, err)
		h.writeWithdrawalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, settled)
}

// IngestAccrualHandler accepts one accrual event from an internal service, as
// an HTTP alternative to the RabbitMQ pipeline. Duplicate events return 200
// with applied=false.
func (h *EarningsHandlers) IngestAccrualHandler(w http.ResponseWriter, r *http.Request) {
	var event domain.AccrualEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	applied, err := h.service.ApplyAccrual(r.Context(), event)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, store.ErrUnavailable) {
			h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, retry later")
			return
		}
		log.Printf("level=error component=api endpoint=ingest_accrual msg=\"accrual failed\" event_id=%s err=%v", event.EventID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to apply accrual")
		return
	}

	status := http.StatusCreated
	if !applied {
		status = http.StatusOK
	}
	h.writeJSON(w, status, map[string]interface{}{"event_id": event.EventID, "applied": applied})
}

// writeWithdrawalError maps service and store errors onto HTTP statuses.
func (h *EarningsHandlers) writeWithdrawalError(w http.ResponseWriter, err error) {
	var rateErr *app.RateLimitedError
	switch {
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
		h.writeError(w, http.StatusTooManyRequests, "Too many withdrawal requests, slow down")
	case errors.Is(err, app.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrBelowMinimum):
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Amount is below the minimum withdrawal of %d cents", h.service.MinWithdrawalCents()))
	case errors.Is(err, store.ErrInsufficientBalance):
		h.writeError(w, http.StatusBadRequest, "Insufficient available balance")
	case errors.Is(err, store.ErrTooManyPending):
		h.writeError(w, http.StatusConflict, "Too many pending withdrawal requests")
	case errors.Is(err, app.ErrInvalidTransition):
		h.writeError(w, http.StatusBadRequest, "Withdrawal is not in a settleable state")
	case errors.Is(err, store.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "No earnings balance for this user")
	case errors.Is(err, store.ErrWithdrawalNotFound):
		h.writeError(w, http.StatusNotFound, "Withdrawal not found")
	case errors.Is(err, store.ErrUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, retry later")
	default:
		h.writeError(w, http.StatusInternalServerError, "Unable to process withdrawal")
	}
}

// parseListOptions reads limit/offset pagination from the query string. Bounds
// are enforced by the store layer.
func parseListOptions(r *http.Request) domain.WithdrawalListOptions {
	opts := domain.WithdrawalListOptions{}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Offset = n
		}
	}
	return opts
}

// writeJSON is a helper for writing JSON responses.
func (h *EarningsHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *EarningsHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
