/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the earnings-service. By defining an interface,
 * we decouple the ledger's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/monetize-motion/earnings-service/internal/domain"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotPending          = errors.New("withdrawal is not pending")
	ErrTooManyPending      = errors.New("too many pending withdrawals")
	ErrUnavailable         = errors.New("storage temporarily unavailable")
)

// Repository defines the set of methods for interacting with the database.
// The balance-mutating methods (ApplyAccrual, ReserveWithdrawal, SettleWithdrawal)
// each run as a single atomic transaction over the affected balance row.
type Repository interface {
	// Balance methods
	FindBalanceByUserID(ctx context.Context, userID uuid.UUID) (*domain.CreatorBalance, error)
	FindStatsByUserID(ctx context.Context, userID uuid.UUID) (*domain.CreatorStats, error)

	// ApplyAccrual credits total_earnings and available_balance by the event's
	// revenue delta and bumps the display counters. Application is idempotent per
	// event id: a replayed event returns applied=false with no effect.
	ApplyAccrual(ctx context.Context, event domain.AccrualEvent) (applied bool, err error)

	// ReserveWithdrawal atomically debits available_balance and creates the
	// withdrawal row in `pending` state, filling in the row's timestamps.
	// maxPending > 0 caps the number of concurrent pending requests per user.
	ReserveWithdrawal(ctx context.Context, req *domain.WithdrawalRequest, maxPending int) error

	// SettleWithdrawal performs the one-shot pending -> completed|rejected
	// transition: completed moves the reserved amount into withdrawn_amount,
	// rejected restores it to available_balance. Returns ErrNotPending when the
	// request is already terminal.
	SettleWithdrawal(ctx context.Context, withdrawalID uuid.UUID, outcome string, txHash, adminNotes *string) (*domain.WithdrawalRequest, error)

	// Withdrawal queries
	FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error)
	FindWithdrawalsByUserID(ctx context.Context, userID uuid.UUID, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error)
	FindWithdrawalsByStatus(ctx context.Context, status string, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error)

	// In-app notification methods
	CreateInAppNotification(ctx context.Context, item domain.InAppNotification) error
}
