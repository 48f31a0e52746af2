package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/monetize-motion/earnings-service/internal/domain"
)

// AccrualConsumer applies accrual events delivered by the ad-serving/analytics
// pipeline over RabbitMQ. Delivery is at-least-once; the ledger's per-event
// dedupe makes replays harmless, so duplicates are acknowledged.
type AccrualConsumer struct {
	service *Service
}

func NewAccrualConsumer(service *Service) *AccrualConsumer {
	return &AccrualConsumer{service: service}
}

// HandleMessage processes one delivery. Returning true acknowledges the
// message, false re-queues it for another attempt.
func (c *AccrualConsumer) HandleMessage(body []byte) bool {
	var event domain.AccrualEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=accrual_consumer msg=\"failed to unmarshal payload; dropping\" err=%v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	applied, err := c.service.ApplyAccrual(ctx, event)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			// Malformed events never become valid; drop instead of looping.
			log.Printf("level=warn component=accrual_consumer msg=\"invalid accrual event; dropping\" event_id=%s err=%v", event.EventID, err)
			return true
		}
		log.Printf("level=error component=accrual_consumer msg=\"accrual apply failed; re-queuing\" event_id=%s err=%v", event.EventID, err)
		return false
	}

	if applied {
		log.Printf("level=info component=accrual_consumer msg=\"accrual applied\" event_id=%s user_id=%s revenue_delta=%d",
			event.EventID, event.UserID, event.RevenueDelta)
	}
	return true
}
