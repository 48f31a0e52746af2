/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to creator balances, withdrawal requests, and accrual events.
 *
 * Key properties:
 * - Every balance mutation runs inside one pgx transaction with the balance row
 *   locked via SELECT ... FOR UPDATE, so concurrent reservations on the same user
 *   serialize and the second observes the first's deduction.
 * - Transient serialization/deadlock conflicts (SQLSTATE 40001/40P01) are retried
 *   a bounded number of times with backoff before surfacing ErrUnavailable.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/monetize-motion/earnings-service/internal/domain"
)

const (
	txMaxAttempts   = 3
	txRetryBackoff  = 50 * time.Millisecond
	defaultPageSize = 50
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// IsRetryableTxError reports whether the error is a transient transaction
// conflict worth retrying (serialization failure or deadlock).
func IsRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// inTx runs fn inside a transaction, retrying transient conflicts up to
// txMaxAttempts before reporting ErrUnavailable.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		err = fn(tx)
		if err == nil {
			if commitErr := tx.Commit(ctx); commitErr == nil {
				return nil
			} else {
				err = commitErr
			}
		}
		tx.Rollback(ctx)

		if !IsRetryableTxError(err) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(txRetryBackoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// FindBalanceByUserID returns the creator's balance row.
func (r *PostgresRepository) FindBalanceByUserID(ctx context.Context, userID uuid.UUID) (*domain.CreatorBalance, error) {
	query := `
		SELECT user_id, total_earnings, available_balance, withdrawn_amount, updated_at
		FROM creator_balances
		WHERE user_id = $1`
	var balance domain.CreatorBalance
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&balance.UserID, &balance.TotalEarnings, &balance.AvailableBalance,
		&balance.WithdrawnAmount, &balance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// FindStatsByUserID returns the creator's display counters.
func (r *PostgresRepository) FindStatsByUserID(ctx context.Context, userID uuid.UUID) (*domain.CreatorStats, error) {
	query := `
		SELECT user_id, total_views, total_impressions, updated_at
		FROM creator_stats
		WHERE user_id = $1`
	var stats domain.CreatorStats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&stats.UserID, &stats.TotalViews, &stats.TotalImpressions, &stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &stats, nil
}

// ApplyAccrual credits the balance and bumps display counters, keyed by the
// external event id so at-least-once delivery cannot double-apply revenue.
func (r *PostgresRepository) ApplyAccrual(ctx context.Context, event domain.AccrualEvent) (bool, error) {
	applied := false
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		// The dedupe insert is the idempotency gate: a replayed event id
		// conflicts and the whole application becomes a no-op.
		tag, err := tx.Exec(ctx, `
			INSERT INTO accrual_events (event_id, user_id, revenue_delta, applied_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (event_id) DO NOTHING`,
			event.EventID, event.UserID, event.RevenueDelta,
		)
		if err != nil {
			return fmt.Errorf("failed to record accrual event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true

		if event.RevenueDelta > 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO creator_balances (user_id, total_earnings, available_balance, withdrawn_amount, updated_at)
				VALUES ($1, $2, $2, 0, NOW())
				ON CONFLICT (user_id) DO UPDATE
				SET total_earnings    = creator_balances.total_earnings + EXCLUDED.total_earnings,
				    available_balance = creator_balances.available_balance + EXCLUDED.available_balance,
				    updated_at        = NOW()`,
				event.UserID, event.RevenueDelta,
			)
			if err != nil {
				return fmt.Errorf("failed to credit balance: %w", err)
			}
		}

		if event.ViewDelta > 0 || event.ImpressionDelta > 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO creator_stats (user_id, total_views, total_impressions, updated_at)
				VALUES ($1, $2, $3, NOW())
				ON CONFLICT (user_id) DO UPDATE
				SET total_views       = creator_stats.total_views + EXCLUDED.total_views,
				    total_impressions = creator_stats.total_impressions + EXCLUDED.total_impressions,
				    updated_at        = NOW()`,
				event.UserID, event.ViewDelta, event.ImpressionDelta,
			)
			if err != nil {
				return fmt.Errorf("failed to update creator stats: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ReserveWithdrawal performs the atomic reserve-and-create operation: the balance
// row is locked, the available balance check and debit happen under that lock, and
// the pending withdrawal row is inserted in the same transaction.
func (r *PostgresRepository) ReserveWithdrawal(ctx context.Context, req *domain.WithdrawalRequest, maxPending int) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var available int64
		err := tx.QueryRow(ctx,
			`SELECT available_balance FROM creator_balances WHERE user_id = $1 FOR UPDATE`,
			req.UserID,
		).Scan(&available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to lock balance row: %w", err)
		}

		if maxPending > 0 {
			var pendingCount int
			err = tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM withdrawal_requests WHERE user_id = $1 AND status = $2`,
				req.UserID, domain.WithdrawalStatusPending,
			).Scan(&pendingCount)
			if err != nil {
				return fmt.Errorf("failed to count pending withdrawals: %w", err)
			}
			if pendingCount >= maxPending {
				return ErrTooManyPending
			}
		}

		if available < req.Amount {
			return ErrInsufficientBalance
		}

		_, err = tx.Exec(ctx,
			`UPDATE creator_balances
			 SET available_balance = available_balance - $1, updated_at = NOW()
			 WHERE user_id = $2`,
			req.Amount, req.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to debit available balance: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO withdrawal_requests (id, user_id, amount, wallet_address, network, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			RETURNING created_at, updated_at`,
			req.ID, req.UserID, req.Amount, req.WalletAddress, req.Network, domain.WithdrawalStatusPending,
		).Scan(&req.CreatedAt, &req.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert withdrawal request: %w", err)
		}
		req.Status = domain.WithdrawalStatusPending
		return nil
	})
}

// SettleWithdrawal applies the one-shot terminal transition. Both the withdrawal
// row and the balance row are locked, so a settlement cannot race a reservation
// or a concurrent settlement of the same request.
func (r *PostgresRepository) SettleWithdrawal(ctx context.Context, withdrawalID uuid.UUID, outcome string, txHash, adminNotes *string) (*domain.WithdrawalRequest, error) {
	var settled domain.WithdrawalRequest
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var current domain.WithdrawalRequest
		err := tx.QueryRow(ctx, `
			SELECT id, user_id, amount, wallet_address, network, status, tx_hash, admin_notes, processed_at, created_at, updated_at
			FROM withdrawal_requests
			WHERE id = $1
			FOR UPDATE`,
			withdrawalID,
		).Scan(
			&current.ID, &current.UserID, &current.Amount, &current.WalletAddress,
			&current.Network, &current.Status, &current.TxHash, &current.AdminNotes,
			&current.ProcessedAt, &current.CreatedAt, &current.UpdatedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWithdrawalNotFound
			}
			return fmt.Errorf("failed to lock withdrawal row: %w", err)
		}

		if current.Status != domain.WithdrawalStatusPending {
			return ErrNotPending
		}

		// Lock the balance row before mutating it, same order as ReserveWithdrawal.
		var available int64
		err = tx.QueryRow(ctx,
			`SELECT available_balance FROM creator_balances WHERE user_id = $1 FOR UPDATE`,
			current.UserID,
		).Scan(&available)
		if err != nil {
			return fmt.Errorf("failed to lock balance row: %w", err)
		}

		switch outcome {
		case domain.WithdrawalStatusCompleted:
			_, err = tx.Exec(ctx,
				`UPDATE creator_balances
				 SET withdrawn_amount = withdrawn_amount + $1, updated_at = NOW()
				 WHERE user_id = $2`,
				current.Amount, current.UserID,
			)
		case domain.WithdrawalStatusRejected:
			_, err = tx.Exec(ctx,
				`UPDATE creator_balances
				 SET available_balance = available_balance + $1, updated_at = NOW()
				 WHERE user_id = $2`,
				current.Amount, current.UserID,
			)
		default:
			return fmt.Errorf("unknown settlement outcome %q", outcome)
		}
		if err != nil {
			return fmt.Errorf("failed to settle balance: %w", err)
		}

		err = tx.QueryRow(ctx, `
			UPDATE withdrawal_requests
			SET status = $1, tx_hash = $2, admin_notes = $3, processed_at = NOW(), updated_at = NOW()
			WHERE id = $4
			RETURNING status, tx_hash, admin_notes, processed_at, updated_at`,
			outcome, txHash, adminNotes, withdrawalID,
		).Scan(&current.Status, &current.TxHash, &current.AdminNotes, &current.ProcessedAt, &current.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update withdrawal row: %w", err)
		}
		settled = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &settled, nil
}

// FindWithdrawalByID fetches a single withdrawal request.
func (r *PostgresRepository) FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `
		SELECT id, user_id, amount, wallet_address, network, status, tx_hash, admin_notes, processed_at, created_at, updated_at
		FROM withdrawal_requests
		WHERE id = $1`
	var w domain.WithdrawalRequest
	err := r.db.QueryRow(ctx, query, withdrawalID).Scan(
		&w.ID, &w.UserID, &w.Amount, &w.WalletAddress, &w.Network,
		&w.Status, &w.TxHash, &w.AdminNotes, &w.ProcessedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

// FindWithdrawalsByUserID lists the caller's withdrawal requests, newest first.
func (r *PostgresRepository) FindWithdrawalsByUserID(ctx context.Context, userID uuid.UUID, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error) {
	query := `
		SELECT id, user_id, amount, wallet_address, network, status, tx_hash, admin_notes, processed_at, created_at, updated_at
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, normalizeLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWithdrawals(rows)
}

// FindWithdrawalsByStatus lists requests in a given state for the admin queue.
func (r *PostgresRepository) FindWithdrawalsByStatus(ctx context.Context, status string, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error) {
	query := `
		SELECT id, user_id, amount, wallet_address, network, status, tx_hash, admin_notes, processed_at, created_at, updated_at
		FROM withdrawal_requests
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, status, normalizeLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWithdrawals(rows)
}

// CreateInAppNotification writes one inbox row. Failures here never fail the
// ledger operation that triggered the notification.
func (r *PostgresRepository) CreateInAppNotification(ctx context.Context, item domain.InAppNotification) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO in_app_notifications (id, user_id, type, title, body, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		item.ID, item.UserID, item.Type, item.Title, item.Body, item.Reference,
	)
	return err
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return defaultPageSize
	}
	return limit
}

func scanWithdrawals(rows pgx.Rows) ([]domain.WithdrawalRequest, error) {
	var withdrawals []domain.WithdrawalRequest
	for rows.Next() {
		var w domain.WithdrawalRequest
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.Amount, &w.WalletAddress, &w.Network,
			&w.Status, &w.TxHash, &w.AdminNotes, &w.ProcessedAt, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}
