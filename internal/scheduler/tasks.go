// Package scheduler owns delayed and periodic work: review reminders go
// through asynq backed by Redis so they survive restarts, and the background
// loops drive heartbeat, lot bumping, statistics and support escalation.
package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeReviewReminder asks the buyer for a review some time after they
// confirmed the order.
const TypeReviewReminder = "review:reminder"

// ReviewReminderPayload is the task payload for a review reminder.
type ReviewReminderPayload struct {
	MarketOrderID string `json:"market_order_id"`
}

// NewReviewReminderTask builds the asynq task for an order.
func NewReviewReminderTask(marketOrderID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReviewReminderPayload{MarketOrderID: marketOrderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReviewReminder, payload), nil
}

// ParseReviewReminderPayload decodes a reminder task payload.
func ParseReviewReminderPayload(task *asynq.Task) (ReviewReminderPayload, error) {
	var p ReviewReminderPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", task.Type(), err)
	}
	if p.MarketOrderID == "" {
		return p, fmt.Errorf("%s payload has no order id", task.Type())
	}
	return p, nil
}
