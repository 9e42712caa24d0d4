package scheduler

import (
	"context"
	"errors"

	"marketpilot/internal/flows"
	"marketpilot/internal/orders"
	"marketpilot/internal/settings"
	"marketpilot/platform/config"
	"marketpilot/platform/logger"

	"github.com/hibiken/asynq"
)

// OrderGetter is the store access the reminder handler needs.
type OrderGetter interface {
	GetByMarketID(ctx context.Context, marketOrderID string) (orders.Order, error)
}

// MessageSender sends a chat message to a buyer.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// SettingsSource reads the automation switches.
type SettingsSource interface {
	Get(ctx context.Context) (settings.AutomationSettings, error)
}

// ReminderHandler processes due review reminders. The order status is
// re-read at execution time: a reminder enqueued an hour ago must not fire
// for an order that has since been refunded or disputed.
type ReminderHandler struct {
	store    OrderGetter
	market   MessageSender
	settings SettingsSource
	log      *logger.Logger
}

// NewReminderHandler creates the handler.
func NewReminderHandler(store OrderGetter, market MessageSender, settingsSource SettingsSource, log *logger.Logger) *ReminderHandler {
	return &ReminderHandler{store: store, market: market, settings: settingsSource, log: log}
}

// ProcessTask implements asynq.Handler.
func (h *ReminderHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReviewReminderPayload(task)
	if err != nil {
		// A malformed payload will never succeed; drop it.
		h.log.Error("dropping malformed reminder task", "error", err)
		return nil
	}
	log := h.log.WithOrderID(payload.MarketOrderID)

	order, err := h.store.GetByMarketID(ctx, payload.MarketOrderID)
	if errors.Is(err, orders.ErrNotFound) {
		log.Warn("reminder for deleted order dropped")
		return nil
	}
	if err != nil {
		return err
	}
	if order.Status != orders.StatusConfirmed {
		log.Info("reminder skipped", "status", order.Status)
		return nil
	}

	cfg, err := h.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !cfg.ReviewReminder {
		log.Info("reminder skipped, feature disabled")
		return nil
	}

	text := reminderText(cfg, order.BuyerLang)
	if err := h.market.SendMessage(ctx, order.ChatID, text); err != nil {
		return err
	}
	log.Info("review reminder sent")
	return nil
}

// reminderText picks the operator's template for the buyer's language,
// falling back to the built-in message.
func reminderText(cfg settings.AutomationSettings, lang string) string {
	custom := flows.MessagePair{RU: cfg.ReviewMessageRU, EN: cfg.ReviewMessageEN}
	if text := custom.Resolve(lang); text != "" {
		return text
	}
	return flows.StatusMessage(flows.MsgReviewReminder, lang, nil)
}

// Worker runs the asynq server processing delayed tasks.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewWorker builds the worker from configuration.
func NewWorker(cfg config.SchedulerConfig, reminder *ReminderHandler, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues:      map[string]int{cfg.GetAsynqQueueName(): 1},
		Logger:      asynqLogger{log: log},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeReviewReminder, reminder)

	return &Worker{srv: srv, mux: mux}, nil
}

// Run blocks processing tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.srv.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.srv.Shutdown()
	return nil
}

// asynqLogger adapts the application logger to asynq's interface.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug("asynq", "msg", args) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info("asynq", "msg", args) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn("asynq", "msg", args) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error("asynq", "msg", args) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error("asynq_fatal", "msg", args) }
