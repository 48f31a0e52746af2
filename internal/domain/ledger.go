/**
 * @description
 * This file defines the core domain models for the earnings-service.
 * These structs represent the ledger entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (cents), which avoids floating-point inaccuracies with financial data.
 * - A creator's balance obeys the ledger equation at all times:
 *   total_earnings == available_balance + withdrawn_amount + sum(pending withdrawals).
 */

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Withdrawal request lifecycle states. Pending is the only non-terminal state.
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusRejected  = "rejected"
)

// Payout networks accepted for withdrawal destinations.
const (
	NetworkBEP20 = "BEP20"
	NetworkERC20 = "ERC20"
)

// NormalizeNetwork maps a raw network string onto the closed set of supported
// payout networks. The empty string is returned for anything unrecognized.
func NormalizeNetwork(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case NetworkBEP20:
		return NetworkBEP20
	case NetworkERC20:
		return NetworkERC20
	default:
		return ""
	}
}

// IsTerminalWithdrawalStatus reports whether a status admits no further transitions.
func IsTerminalWithdrawalStatus(status string) bool {
	return status == WithdrawalStatusCompleted || status == WithdrawalStatusRejected
}

// CreatorBalance is the per-user account balance row. This struct maps directly
// to the `creator_balances` table in the database.
type CreatorBalance struct {
	UserID           uuid.UUID `json:"user_id"`
	TotalEarnings    int64     `json:"total_earnings"`    // in cents, monotonically non-decreasing
	AvailableBalance int64     `json:"available_balance"` // in cents, never negative
	WithdrawnAmount  int64     `json:"withdrawn_amount"`  // in cents, monotonically non-decreasing
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreatorStats carries display-only counters accumulated from accrual events.
// These figures are outside the ledger's consistency scope.
type CreatorStats struct {
	UserID           uuid.UUID `json:"user_id"`
	TotalViews       int64     `json:"total_views"`
	TotalImpressions int64     `json:"total_impressions"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// WithdrawalRequest is the append-only record of a payout intent. Rows are
// created in `pending` state atomically with the balance reservation and are
// never deleted, preserving the audit trail.
type WithdrawalRequest struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Amount        int64      `json:"amount"` // in cents
	WalletAddress string     `json:"wallet_address"`
	Network       string     `json:"network"`
	Status        string     `json:"status"`
	TxHash        *string    `json:"tx_hash,omitempty"`
	AdminNotes    *string    `json:"admin_notes,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AccrualEvent is one monetizable activity report from the ad-serving/analytics
// pipeline. EventID keys idempotent application under at-least-once delivery;
// only RevenueDelta feeds the ledger.
type AccrualEvent struct {
	EventID         string    `json:"event_id"`
	UserID          uuid.UUID `json:"user_id"`
	ViewDelta       int64     `json:"view_delta"`
	ImpressionDelta int64     `json:"impression_delta"`
	RevenueDelta    int64     `json:"revenue_delta"` // in cents
}

// CreateWithdrawalRequest is the DTO for incoming withdrawal API requests.
type CreateWithdrawalRequest struct {
	Amount        int64  `json:"amount"` // in cents
	WalletAddress string `json:"wallet_address"`
	Network       string `json:"network"`
}

// SettleWithdrawalRequest is the DTO for the administrative transition endpoint.
type SettleWithdrawalRequest struct {
	Status     string  `json:"status"`
	AdminNotes *string `json:"admin_notes,omitempty"`
	TxHash     *string `json:"tx_hash,omitempty"`
}

// WithdrawalListOptions controls pagination for withdrawal listings.
type WithdrawalListOptions struct {
	Limit  int
	Offset int
}

// WithdrawalEvent is the message payload published to RabbitMQ on
// balance-affecting withdrawal lifecycle changes.
type WithdrawalEvent struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	UserID       uuid.UUID `json:"user_id"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	Network      string    `json:"network"`
	Timestamp    time.Time `json:"timestamp"`
}

// InAppNotification is a row in the user's notification inbox, written as a
// fire-and-forget side effect of ledger operations.
type InAppNotification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      *string    `json:"body,omitempty"`
	Reference *uuid.UUID `json:"reference,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
