package scheduler

import (
	"context"
	"sync"
	"testing"

	"marketpilot/internal/orders"
	"marketpilot/internal/settings"
	"marketpilot/platform/logger"

	"github.com/hibiken/asynq"
)

type fakeOrderGetter struct {
	order orders.Order
	err   error
}

func (f fakeOrderGetter) GetByMarketID(context.Context, string) (orders.Order, error) {
	return f.order, f.err
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendMessage(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

type fakeSettingsSource struct {
	cfg settings.AutomationSettings
}

func (f fakeSettingsSource) Get(context.Context) (settings.AutomationSettings, error) {
	return f.cfg, nil
}

func reminderTask(t *testing.T, orderID string) *asynq.Task {
	t.Helper()
	task, err := NewReviewReminderTask(orderID)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestReminderSentForConfirmedOrder(t *testing.T) {
	sender := &fakeSender{}
	cfg := settings.Defaults()
	h := NewReminderHandler(
		fakeOrderGetter{order: orders.Order{
			MarketOrderID: "ORDER001", ChatID: "chat-1",
			Status: orders.StatusConfirmed, BuyerLang: "en",
		}},
		sender,
		fakeSettingsSource{cfg: cfg},
		logger.New("development"),
	)

	if err := h.ProcessTask(context.Background(), reminderTask(t, "ORDER001")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}
}

func TestReminderSkippedWhenStatusChanged(t *testing.T) {
	for _, status := range []orders.Status{
		orders.StatusRefunded, orders.StatusDispute, orders.StatusInProgress,
	} {
		sender := &fakeSender{}
		h := NewReminderHandler(
			fakeOrderGetter{order: orders.Order{MarketOrderID: "ORDER002", Status: status}},
			sender,
			fakeSettingsSource{cfg: settings.Defaults()},
			logger.New("development"),
		)
		if err := h.ProcessTask(context.Background(), reminderTask(t, "ORDER002")); err != nil {
			t.Fatalf("status %s: %v", status, err)
		}
		if len(sender.sent) != 0 {
			t.Fatalf("reminder sent for %s order", status)
		}
	}
}

func TestReminderDroppedForDeletedOrder(t *testing.T) {
	sender := &fakeSender{}
	h := NewReminderHandler(
		fakeOrderGetter{err: orders.ErrNotFound},
		sender,
		fakeSettingsSource{cfg: settings.Defaults()},
		logger.New("development"),
	)
	// Must return nil so asynq doesn't retry a task that can never succeed.
	if err := h.ProcessTask(context.Background(), reminderTask(t, "ORDER003")); err != nil {
		t.Fatalf("expected nil for deleted order, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("message sent for deleted order")
	}
}

func TestReminderSkippedWhenFeatureDisabled(t *testing.T) {
	cfg := settings.Defaults()
	cfg.ReviewReminder = false
	sender := &fakeSender{}
	h := NewReminderHandler(
		fakeOrderGetter{order: orders.Order{MarketOrderID: "ORDER004", Status: orders.StatusConfirmed}},
		sender,
		fakeSettingsSource{cfg: cfg},
		logger.New("development"),
	)
	if err := h.ProcessTask(context.Background(), reminderTask(t, "ORDER004")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("reminder sent with feature disabled")
	}
}

func TestReminderTextPrefersOperatorTemplate(t *testing.T) {
	cfg := settings.Defaults()
	cfg.ReviewMessageRU = "оставьте отзыв, пожалуйста"
	cfg.ReviewMessageEN = "please leave a review"

	if got := reminderText(cfg, "en"); got != "please leave a review" {
		t.Fatalf("en template not used: %q", got)
	}
	if got := reminderText(cfg, "ru"); got != "оставьте отзыв, пожалуйста" {
		t.Fatalf("ru template not used: %q", got)
	}

	cfg.ReviewMessageRU = ""
	cfg.ReviewMessageEN = ""
	if got := reminderText(cfg, "ru"); got == "" {
		t.Fatalf("built-in fallback missing")
	}
}

func TestParseReviewReminderPayloadRejectsGarbage(t *testing.T) {
	if _, err := ParseReviewReminderPayload(asynq.NewTask(TypeReviewReminder, []byte("{"))); err == nil {
		t.Fatalf("expected error for broken json")
	}
	if _, err := ParseReviewReminderPayload(asynq.NewTask(TypeReviewReminder, []byte("{}"))); err == nil {
		t.Fatalf("expected error for empty order id")
	}
	task := reminderTask(t, "ORDER005")
	p, err := ParseReviewReminderPayload(task)
	if err != nil || p.MarketOrderID != "ORDER005" {
		t.Fatalf("round trip failed: %+v, %v", p, err)
	}
}
