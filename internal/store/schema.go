/**
 * @description
 * Schema bootstrap for the earnings-service tables. EnsureSchema is called once
 * at startup and creates any missing ledger tables and indexes, so a fresh
 * database is usable without a separate migration step.
 */

package store

import (
	"context"
	"fmt"
)

// EnsureSchema creates the ledger tables if they do not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS creator_balances (
			user_id UUID PRIMARY KEY,
			total_earnings BIGINT NOT NULL DEFAULT 0 CHECK (total_earnings >= 0),
			available_balance BIGINT NOT NULL DEFAULT 0 CHECK (available_balance >= 0),
			withdrawn_amount BIGINT NOT NULL DEFAULT 0 CHECK (withdrawn_amount >= 0),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS creator_stats (
			user_id UUID PRIMARY KEY,
			total_views BIGINT NOT NULL DEFAULT 0,
			total_impressions BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS accrual_events (
			event_id TEXT PRIMARY KEY,
			user_id UUID NOT NULL,
			revenue_delta BIGINT NOT NULL CHECK (revenue_delta >= 0),
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS withdrawal_requests (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			wallet_address TEXT NOT NULL,
			network TEXT NOT NULL CHECK (network IN ('BEP20', 'ERC20')),
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'rejected')),
			tx_hash TEXT NULL,
			admin_notes TEXT NULL,
			processed_at TIMESTAMP WITH TIME ZONE NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_user_created ON withdrawal_requests(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_status ON withdrawal_requests(status) WHERE status = 'pending'`,
		`CREATE TABLE IF NOT EXISTS in_app_notifications (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NULL,
			reference UUID NULL,
			read_at TIMESTAMP WITH TIME ZONE NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_in_app_notifications_user_created ON in_app_notifications(user_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}
