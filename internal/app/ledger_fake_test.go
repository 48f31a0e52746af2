package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/monetize-motion/earnings-service/internal/domain"
	"github.com/monetize-motion/earnings-service/internal/store"
)

// ledgerFake is an in-memory store.Repository that mirrors the Postgres
// implementation's semantics: every balance mutation happens under one lock,
// so it is safe for the concurrency tests to hit it from multiple goroutines.
type ledgerFake struct {
	mu            sync.Mutex
	balances      map[uuid.UUID]*domain.CreatorBalance
	stats         map[uuid.UUID]*domain.CreatorStats
	withdrawals   map[uuid.UUID]*domain.WithdrawalRequest
	appliedEvents map[string]bool
	notifications []domain.InAppNotification
}

var _ store.Repository = (*ledgerFake)(nil)

func newLedgerFake() *ledgerFake {
	return &ledgerFake{
		balances:      make(map[uuid.UUID]*domain.CreatorBalance),
		stats:         make(map[uuid.UUID]*domain.CreatorStats),
		withdrawals:   make(map[uuid.UUID]*domain.WithdrawalRequest),
		appliedEvents: make(map[string]bool),
	}
}

func (f *ledgerFake) seedBalance(userID uuid.UUID, total, available, withdrawn int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] = &domain.CreatorBalance{
		UserID:           userID,
		TotalEarnings:    total,
		AvailableBalance: available,
		WithdrawnAmount:  withdrawn,
		UpdatedAt:        time.Now(),
	}
}

func (f *ledgerFake) FindBalanceByUserID(ctx context.Context, userID uuid.UUID) (*domain.CreatorBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *balance
	return &copied, nil
}

func (f *ledgerFake) FindStatsByUserID(ctx context.Context, userID uuid.UUID) (*domain.CreatorStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats, ok := f.stats[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *stats
	return &copied, nil
}

func (f *ledgerFake) ApplyAccrual(ctx context.Context, event domain.AccrualEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appliedEvents[event.EventID] {
		return false, nil
	}
	f.appliedEvents[event.EventID] = true

	if event.RevenueDelta > 0 {
		balance, ok := f.balances[event.UserID]
		if !ok {
			balance = &domain.CreatorBalance{UserID: event.UserID}
			f.balances[event.UserID] = balance
		}
		balance.TotalEarnings += event.RevenueDelta
		balance.AvailableBalance += event.RevenueDelta
		balance.UpdatedAt = time.Now()
	}
	if event.ViewDelta > 0 || event.ImpressionDelta > 0 {
		stats, ok := f.stats[event.UserID]
		if !ok {
			stats = &domain.CreatorStats{UserID: event.UserID}
			f.stats[event.UserID] = stats
		}
		stats.TotalViews += event.ViewDelta
		stats.TotalImpressions += event.ImpressionDelta
		stats.UpdatedAt = time.Now()
	}
	return true, nil
}

func (f *ledgerFake) ReserveWithdrawal(ctx context.Context, req *domain.WithdrawalRequest, maxPending int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[req.UserID]
	if !ok {
		return store.ErrUserNotFound
	}
	if maxPending > 0 {
		pendingCount := 0
		for _, w := range f.withdrawals {
			if w.UserID == req.UserID && w.Status == domain.WithdrawalStatusPending {
				pendingCount++
			}
		}
		if pendingCount >= maxPending {
			return store.ErrTooManyPending
		}
	}
	if balance.AvailableBalance < req.Amount {
		return store.ErrInsufficientBalance
	}
	balance.AvailableBalance -= req.Amount
	balance.UpdatedAt = time.Now()

	now := time.Now()
	req.Status = domain.WithdrawalStatusPending
	req.CreatedAt = now
	req.UpdatedAt = now
	copied := *req
	f.withdrawals[req.ID] = &copied
	return nil
}

func (f *ledgerFake) SettleWithdrawal(ctx context.Context, withdrawalID uuid.UUID, outcome string, txHash, adminNotes *string) (*domain.WithdrawalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.withdrawals[withdrawalID]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	if w.Status != domain.WithdrawalStatusPending {
		return nil, store.ErrNotPending
	}
	balance := f.balances[w.UserID]
	switch outcome {
	case domain.WithdrawalStatusCompleted:
		balance.WithdrawnAmount += w.Amount
	case domain.WithdrawalStatusRejected:
		balance.AvailableBalance += w.Amount
	}
	balance.UpdatedAt = time.Now()

	now := time.Now()
	w.Status = outcome
	w.TxHash = txHash
	w.AdminNotes = adminNotes
	w.ProcessedAt = &now
	w.UpdatedAt = now
	copied := *w
	return &copied, nil
}

func (f *ledgerFake) FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.withdrawals[withdrawalID]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	copied := *w
	return &copied, nil
}

func (f *ledgerFake) FindWithdrawalsByUserID(ctx context.Context, userID uuid.UUID, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.WithdrawalRequest
	for _, w := range f.withdrawals {
		if w.UserID == userID {
			result = append(result, *w)
		}
	}
	return result, nil
}

func (f *ledgerFake) FindWithdrawalsByStatus(ctx context.Context, status string, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.WithdrawalRequest
	for _, w := range f.withdrawals {
		if w.Status == status {
			result = append(result, *w)
		}
	}
	return result, nil
}

func (f *ledgerFake) CreateInAppNotification(ctx context.Context, item domain.InAppNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, item)
	return nil
}

// assertLedgerInvariant checks the ledger equation for one user:
// total_earnings == available_balance + withdrawn_amount + sum(pending amounts),
// with a never-negative available balance.
func assertLedgerInvariant(t *testing.T, f *ledgerFake, userID uuid.UUID) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[userID]
	if !ok {
		t.Fatalf("no balance row for user %s", userID)
	}
	if balance.AvailableBalance < 0 {
		t.Fatalf("available balance went negative: %d", balance.AvailableBalance)
	}
	var pendingSum int64
	for _, w := range f.withdrawals {
		if w.UserID == userID && w.Status == domain.WithdrawalStatusPending {
			pendingSum += w.Amount
		}
	}
	if balance.TotalEarnings != balance.AvailableBalance+balance.WithdrawnAmount+pendingSum {
		t.Fatalf("ledger equation violated: total=%d available=%d withdrawn=%d pending=%d",
			balance.TotalEarnings, balance.AvailableBalance, balance.WithdrawnAmount, pendingSum)
	}
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu        sync.Mutex
	published []publishedEvent
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.published))
	for _, e := range p.published {
		keys = append(keys, e.routingKey)
	}
	return keys
}
