package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/monetize-motion/earnings-service/internal/domain"
)

func TestApplyAccrualCreditsBalanceAndStats(t *testing.T) {
	fake := newLedgerFake()
	svc := newTestService(fake, &recordingPublisher{})
	userID := uuid.New()

	applied, err := svc.ApplyAccrual(context.Background(), domain.AccrualEvent{
		EventID:         "evt-001",
		UserID:          userID,
		ViewDelta:       120,
		ImpressionDelta: 30,
		RevenueDelta:    450,
	})
	if err != nil {
		t.Fatalf("ApplyAccrual failed: %v", err)
	}
	if !applied {
		t.Fatal("first delivery must report applied")
	}

	balance, err := fake.FindBalanceByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance row missing after accrual: %v", err)
	}
	if balance.TotalEarnings != 450 || balance.AvailableBalance != 450 {
		t.Fatalf("expected 450 credited to total and available, got total=%d available=%d",
			balance.TotalEarnings, balance.AvailableBalance)
	}

	stats, err := fake.FindStatsByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("stats row missing after accrual: %v", err)
	}
	if stats.TotalViews != 120 || stats.TotalImpressions != 30 {
		t.Fatalf("expected counters 120/30, got %d/%d", stats.TotalViews, stats.TotalImpressions)
	}
	assertLedgerInvariant(t, fake, userID)
}

func TestApplyAccrualDuplicateEventIsNoOp(t *testing.T) {
	fake := newLedgerFake()
	svc := newTestService(fake, &recordingPublisher{})
	userID := uuid.New()

	event := domain.AccrualEvent{EventID: "evt-dup", UserID: userID, RevenueDelta: 700}
	if _, err := svc.ApplyAccrual(context.Background(), event); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	applied, err := svc.ApplyAccrual(context.Background(), event)
	if err != nil {
		t.Fatalf("redelivery must not fail: %v", err)
	}
	if applied {
		t.Fatal("redelivery must report not applied")
	}

	balance, _ := fake.FindBalanceByUserID(context.Background(), userID)
	if balance.TotalEarnings != 700 {
		t.Fatalf("duplicate must not credit twice, got total %d", balance.TotalEarnings)
	}
	assertLedgerInvariant(t, fake, userID)
}

func TestApplyAccrualStatsOnlyEvent(t *testing.T) {
	fake := newLedgerFake()
	svc := newTestService(fake, &recordingPublisher{})
	userID := uuid.New()
	fake.seedBalance(userID, 1000, 1000, 0)

	applied, err := svc.ApplyAccrual(context.Background(), domain.AccrualEvent{
		EventID:   "evt-views-only",
		UserID:    userID,
		ViewDelta: 50,
	})
	if err != nil || !applied {
		t.Fatalf("stats-only accrual failed: applied=%v err=%v", applied, err)
	}

	balance, _ := fake.FindBalanceByUserID(context.Background(), userID)
	if balance.TotalEarnings != 1000 || balance.AvailableBalance != 1000 {
		t.Fatalf("zero revenue delta must not touch the balance, got total=%d available=%d",
			balance.TotalEarnings, balance.AvailableBalance)
	}
	stats, _ := fake.FindStatsByUserID(context.Background(), userID)
	if stats.TotalViews != 50 {
		t.Fatalf("expected 50 views recorded, got %d", stats.TotalViews)
	}
}

func TestApplyAccrualValidation(t *testing.T) {
	userID := uuid.New()
	testCases := []struct {
		name  string
		event domain.AccrualEvent
	}{
		{
			name:  "missing event id",
			event: domain.AccrualEvent{UserID: userID, RevenueDelta: 100},
		},
		{
			name:  "blank event id",
			event: domain.AccrualEvent{EventID: "   ", UserID: userID, RevenueDelta: 100},
		},
		{
			name:  "missing user id",
			event: domain.AccrualEvent{EventID: "evt-1", RevenueDelta: 100},
		},
		{
			name:  "negative revenue delta",
			event: domain.AccrualEvent{EventID: "evt-1", UserID: userID, RevenueDelta: -100},
		},
		{
			name:  "negative view delta",
			event: domain.AccrualEvent{EventID: "evt-1", UserID: userID, ViewDelta: -1, RevenueDelta: 100},
		},
		{
			name:  "all deltas zero",
			event: domain.AccrualEvent{EventID: "evt-1", UserID: userID},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fake := newLedgerFake()
			svc := newTestService(fake, &recordingPublisher{})

			_, err := svc.ApplyAccrual(context.Background(), tc.event)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if len(fake.appliedEvents) != 0 {
				t.Fatal("invalid event must not be recorded")
			}
		})
	}
}
