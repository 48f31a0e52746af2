/**
 * @description
 * This file contains the core business logic for the earnings-service. The `Service`
 * struct orchestrates the earnings ledger: applying revenue accruals, validating and
 * reserving withdrawal requests, and settling the administrative lifecycle
 * transitions, coordinating between the database repository and the message broker.
 *
 * Key properties:
 * - All validation happens before any mutation; a rejected request has no side effect.
 * - The reservation and the pending row creation are one atomic unit in the store.
 * - Notification publishing is fire-and-forget and never fails a ledger operation.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/monetize-motion/earnings-service/internal/domain"
	"github.com/monetize-motion/earnings-service/internal/store"
	"github.com/monetize-motion/earnings-service/pkg/rabbitmq"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrBelowMinimum      = errors.New("amount below minimum withdrawal")
	ErrInvalidTransition = errors.New("invalid withdrawal transition")
)

// ValidationError carries the offending field alongside the ErrInvalidInput kind.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// RateLimitedError is returned when a user exceeds the withdrawal request rate limit.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited; retry after %ds", e.RetryAfterSeconds)
}

// WithdrawalRateLimiter is the contract for the optional distributed limiter
// on withdrawal request creation.
type WithdrawalRateLimiter interface {
	AllowWithdrawalRequest(ctx context.Context, userID uuid.UUID) (allowed bool, retryAfterSeconds int, err error)
}

// EarningsSummary bundles the balance snapshot with the display counters for
// the creator's earnings screen.
type EarningsSummary struct {
	Balance *domain.CreatorBalance `json:"balance"`
	Stats   *domain.CreatorStats   `json:"stats,omitempty"`
}

// Service provides the core business logic for the earnings ledger.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher

	minWithdrawalCents     int64
	maxPendingWithdrawals  int
	walletAddressMinLength int

	rateLimiter WithdrawalRateLimiter
}

// NewService creates a new earnings service instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, minWithdrawalCents int64, maxPendingWithdrawals, walletAddressMinLength int) *Service {
	if walletAddressMinLength <= 0 {
		walletAddressMinLength = 16
	}
	return &Service{
		repo:                   repo,
		eventProducer:          producer,
		minWithdrawalCents:     minWithdrawalCents,
		maxPendingWithdrawals:  maxPendingWithdrawals,
		walletAddressMinLength: walletAddressMinLength,
	}
}

// SetWithdrawalRateLimiter attaches the optional distributed rate limiter.
func (s *Service) SetWithdrawalRateLimiter(limiter WithdrawalRateLimiter) {
	s.rateLimiter = limiter
}

// MinWithdrawalCents exposes the configured floor for client pre-checks.
func (s *Service) MinWithdrawalCents() int64 { return s.minWithdrawalCents }

// GetEarningsSummary returns the caller's balance snapshot and display counters.
func (s *Service) GetEarningsSummary(ctx context.Context, userID uuid.UUID) (*EarningsSummary, error) {
	balance, err := s.repo.FindBalanceByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := &EarningsSummary{Balance: balance}

	stats, err := s.repo.FindStatsByUserID(ctx, userID)
	if err == nil {
		summary.Stats = stats
	} else if !errors.Is(err, store.ErrUserNotFound) {
		log.Printf("level=warn component=service msg=\"stats lookup failed\" user_id=%s err=%v", userID, err)
	}
	return summary, nil
}

// ListWithdrawals returns the caller's withdrawal requests, newest first.
func (s *Service) ListWithdrawals(ctx context.Context, userID uuid.UUID, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error) {
	return s.repo.FindWithdrawalsByUserID(ctx, userID, opts)
}

// ListWithdrawalsByStatus returns the admin review queue for one lifecycle state.
func (s *Service) ListWithdrawalsByStatus(ctx context.Context, status string, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error) {
	switch status {
	case domain.WithdrawalStatusPending, domain.WithdrawalStatusCompleted, domain.WithdrawalStatusRejected:
	default:
		return nil, &ValidationError{Field: "status", Reason: "unknown withdrawal status"}
	}
	return s.repo.FindWithdrawalsByStatus(ctx, status, opts)
}

// RequestWithdrawal validates a withdrawal intent and, on success, atomically
// reserves the amount from the available balance and records the pending request.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, req domain.CreateWithdrawalRequest) (*domain.WithdrawalRequest, error) {
	if err := s.checkWithdrawalRateLimit(ctx, userID); err != nil {
		return nil, err
	}

	if req.Amount <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be a positive amount in cents"}
	}
	if req.Amount < s.minWithdrawalCents {
		return nil, ErrBelowMinimum
	}
	address := strings.TrimSpace(req.WalletAddress)
	if len(address) < s.walletAddressMinLength {
		return nil, &ValidationError{Field: "wallet_address", Reason: fmt.Sprintf("must be at least %d characters", s.walletAddressMinLength)}
	}
	network := domain.NormalizeNetwork(req.Network)
	if network == "" {
		return nil, &ValidationError{Field: "network", Reason: "must be one of BEP20, ERC20"}
	}

	withdrawal := &domain.WithdrawalRequest{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        req.Amount,
		WalletAddress: address,
		Network:       network,
		Status:        domain.WithdrawalStatusPending,
	}
	if err := s.repo.ReserveWithdrawal(ctx, withdrawal, s.maxPendingWithdrawals); err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"withdrawal reserved\" withdrawal_id=%s user_id=%s amount=%d network=%s",
		withdrawal.ID, userID, withdrawal.Amount, withdrawal.Network)

	s.notifyWithdrawal(ctx, withdrawal, rabbitmq.RoutingKeyWithdrawalRequested,
		"Withdrawal requested", "Your withdrawal request was received and is pending review.")
	return withdrawal, nil
}

// SettleWithdrawal applies the administrative pending -> completed|rejected
// transition. Completion requires the external transaction hash, rejection
// requires an explanatory note. Any attempt on a non-pending request fails
// with ErrInvalidTransition and changes nothing.
func (s *Service) SettleWithdrawal(ctx context.Context, withdrawalID uuid.UUID, req domain.SettleWithdrawalRequest) (*domain.WithdrawalRequest, error) {
	outcome := strings.ToLower(strings.TrimSpace(req.Status))
	switch outcome {
	case domain.WithdrawalStatusCompleted:
		if req.TxHash == nil || strings.TrimSpace(*req.TxHash) == "" {
			return nil, &ValidationError{Field: "tx_hash", Reason: "required to complete a withdrawal"}
		}
	case domain.WithdrawalStatusRejected:
		if req.AdminNotes == nil || strings.TrimSpace(*req.AdminNotes) == "" {
			return nil, &ValidationError{Field: "admin_notes", Reason: "required to reject a withdrawal"}
		}
	case domain.WithdrawalStatusPending:
		return nil, ErrInvalidTransition
	default:
		return nil, &ValidationError{Field: "status", Reason: "must be completed or rejected"}
	}

	settled, err := s.repo.SettleWithdrawal(ctx, withdrawalID, outcome, req.TxHash, req.AdminNotes)
	if err != nil {
		if errors.Is(err, store.ErrNotPending) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	log.Printf("level=info component=service msg=\"withdrawal settled\" withdrawal_id=%s user_id=%s outcome=%s",
		settled.ID, settled.UserID, settled.Status)

	switch settled.Status {
	case domain.WithdrawalStatusCompleted:
		s.notifyWithdrawal(ctx, settled, rabbitmq.RoutingKeyWithdrawalCompleted,
			"Withdrawal completed", "Your withdrawal was paid out.")
	case domain.WithdrawalStatusRejected:
		body := "Your withdrawal was rejected and the amount returned to your balance."
		if settled.AdminNotes != nil {
			body = fmt.Sprintf("%s Reason: %s", body, *settled.AdminNotes)
		}
		s.notifyWithdrawal(ctx, settled, rabbitmq.RoutingKeyWithdrawalRejected,
			"Withdrawal rejected", body)
	}
	return settled, nil
}

// ApplyAccrual records one monetizable activity report. Application is
// idempotent per event id; the returned bool reports whether this delivery was
// the first one.
func (s *Service) ApplyAccrual(ctx context.Context, event domain.AccrualEvent) (bool, error) {
	if strings.TrimSpace(event.EventID) == "" {
		return false, &ValidationError{Field: "event_id", Reason: "required"}
	}
	if event.UserID == uuid.Nil {
		return false, &ValidationError{Field: "user_id", Reason: "required"}
	}
	if event.RevenueDelta < 0 || event.ViewDelta < 0 || event.ImpressionDelta < 0 {
		return false, &ValidationError{Field: "deltas", Reason: "must be non-negative"}
	}
	if event.RevenueDelta == 0 && event.ViewDelta == 0 && event.ImpressionDelta == 0 {
		return false, &ValidationError{Field: "deltas", Reason: "at least one delta must be positive"}
	}

	applied, err := s.repo.ApplyAccrual(ctx, event)
	if err != nil {
		return false, err
	}
	if !applied {
		log.Printf("level=info component=service msg=\"duplicate accrual event ignored\" event_id=%s user_id=%s", event.EventID, event.UserID)
	}
	return applied, nil
}

func (s *Service) checkWithdrawalRateLimit(ctx context.Context, userID uuid.UUID) error {
	if s.rateLimiter == nil {
		return nil
	}
	allowed, retryAfter, err := s.rateLimiter.AllowWithdrawalRequest(ctx, userID)
	if err != nil {
		// Rate limiting is best-effort; an unreachable limiter must not block withdrawals.
		log.Printf("level=warn component=service msg=\"rate limiter unavailable; allowing request\" user_id=%s err=%v", userID, err)
		return nil
	}
	if !allowed {
		return &RateLimitedError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

// notifyWithdrawal publishes the lifecycle event and writes the in-app inbox
// row. Both are fire-and-forget.
func (s *Service) notifyWithdrawal(ctx context.Context, w *domain.WithdrawalRequest, routingKey, title, body string) {
	if s.eventProducer != nil {
		event := domain.WithdrawalEvent{
			WithdrawalID: w.ID,
			UserID:       w.UserID,
			Amount:       w.Amount,
			Status:       w.Status,
			Network:      w.Network,
			Timestamp:    time.Now().UTC(),
		}
		if err := s.eventProducer.Publish(ctx, rabbitmq.EventsExchange, routingKey, event); err != nil {
			log.Printf("level=warn component=service msg=\"withdrawal event publish failed\" withdrawal_id=%s routing_key=%s err=%v", w.ID, routingKey, err)
		}
	}

	reference := w.ID
	item := domain.InAppNotification{
		UserID:    w.UserID,
		Type:      routingKey,
		Title:     title,
		Body:      &body,
		Reference: &reference,
	}
	if err := s.repo.CreateInAppNotification(ctx, item); err != nil {
		log.Printf("level=warn component=service msg=\"in-app notification write failed\" withdrawal_id=%s err=%v", w.ID, err)
	}
}
