// Package engine is the event dispatcher: it consumes the normalized
// marketplace event stream and drives order lifecycle, conversational data
// collection and operator alerting.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"marketpilot/internal/flows"
	"marketpilot/internal/marketplace"
	"marketpilot/internal/orders"
	"marketpilot/internal/settings"
	"marketpilot/platform/events"
	"marketpilot/platform/logger"
)

// MarketClient is the slice of the marketplace session the dispatcher needs.
type MarketClient interface {
	Account() marketplace.AccountInfo
	SendMessage(ctx context.Context, chatID, text string) error
	ChatLocale(ctx context.Context, chatID string) (string, error)
	SellerRating(ctx context.Context) (marketplace.Rating, error)
}

// OrderStore is the order persistence the dispatcher needs.
type OrderStore interface {
	Insert(ctx context.Context, params orders.CreateOrderParams) (bool, error)
	GetByMarketID(ctx context.Context, marketOrderID string) (orders.Order, error)
	LatestAwaitingByChat(ctx context.Context, chatID string) (orders.Order, error)
	LatestAwaitingByBuyer(ctx context.Context, buyerID int64) (orders.Order, error)
	SetStatus(ctx context.Context, marketOrderID string, status orders.Status) error
	ConfirmUnlessRefunded(ctx context.Context, marketOrderID string) (bool, error)
	MarkDispute(ctx context.Context, marketOrderID string) (bool, error)
	SetFlowState(ctx context.Context, marketOrderID string, state orders.FlowState) error
	CompleteCollection(ctx context.Context, marketOrderID string, state orders.FlowState, data map[string]string) error
}

// BindingSource supplies the operator-managed lot bindings.
type BindingSource interface {
	ListEnabled(ctx context.Context) ([]flows.Binding, error)
}

// ReminderScheduler enqueues delayed review reminders.
type ReminderScheduler interface {
	ScheduleReviewReminder(ctx context.Context, marketOrderID string, delay time.Duration) error
}

// SettingsSource reads the automation switches.
type SettingsSource interface {
	Get(ctx context.Context) (settings.AutomationSettings, error)
}

// Dispatcher processes marketplace events strictly in order. One event is
// fully handled before the next is read; ordering within a conversation is
// what keeps flow state consistent.
type Dispatcher struct {
	market    MarketClient
	store     OrderStore
	bindings  BindingSource
	registry  *flows.Registry
	matcher   *flows.Matcher
	scheduler ReminderScheduler
	settings  SettingsSource
	bus       events.Bus
	log       *logger.Logger

	chatBaseURL string
	probeSettle time.Duration
}

// New creates a dispatcher.
func New(
	market MarketClient,
	store OrderStore,
	bindings BindingSource,
	registry *flows.Registry,
	scheduler ReminderScheduler,
	settingsSource SettingsSource,
	bus events.Bus,
	chatBaseURL string,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		market:      market,
		store:       store,
		bindings:    bindings,
		registry:    registry,
		matcher:     flows.NewMatcher(registry),
		scheduler:   scheduler,
		settings:    settingsSource,
		bus:         bus,
		log:         log,
		chatBaseURL: strings.TrimRight(chatBaseURL, "/"),
		probeSettle: 3 * time.Second,
	}
}

// Run consumes the event channel until it closes or the context is done.
// Handler errors are logged, never fatal: one broken event must not stall
// the stream.
func (d *Dispatcher) Run(ctx context.Context, stream <-chan marketplace.Event) error {
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return nil
			}
			if err := d.HandleEvent(ctx, ev); err != nil {
				d.log.Error("event handling failed", "type", ev.Type, "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HandleEvent processes a single marketplace event.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev marketplace.Event) error {
	switch ev.Type {
	case marketplace.EventNewOrder:
		return d.handleNewOrder(ctx, ev.Order)
	case marketplace.EventOrderStatus:
		return d.handleOrderStatus(ctx, ev.OrderID, ev.State)
	case marketplace.EventChatMessage:
		return d.handleChatMessage(ctx, ev.Message)
	default:
		d.log.Warn("unknown event type", "type", ev.Type)
		return nil
	}
}

func (d *Dispatcher) handleNewOrder(ctx context.Context, summary marketplace.OrderSummary) error {
	log := d.log.WithOrderID(summary.ID)

	bindings, err := d.bindings.ListEnabled(ctx)
	if err != nil {
		// Built-in flows still match without bindings.
		log.Error("loading bindings failed", "error", err)
	}

	match, matched := d.matcher.Match(summary.LotID, summary.ItemName, bindings)

	lang := d.buyerLang(ctx, summary.ChatID, summary.ItemName)

	params := orders.CreateOrderParams{
		MarketOrderID: summary.ID,
		BuyerID:       summary.BuyerID,
		BuyerName:     summary.BuyerName,
		ChatID:        summary.ChatID,
		ItemName:      summary.ItemName,
		Price:         summary.Price,
		Currency:      summary.Currency,
		Status:        orders.StatusDataCollected,
		BuyerLang:     lang,
	}
	if matched {
		params.Status = orders.StatusWaitingData
		params.FlowID = match.FlowID
		params.BindingID = match.BindingID
	}

	created, err := d.store.Insert(ctx, params)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if !created {
		log.Debug("duplicate order event ignored")
		return nil
	}

	d.bus.Publish(ctx, OrderCreated{
		BaseEvent:     events.NewBaseEvent(),
		MarketOrderID: summary.ID,
		BuyerName:     summary.BuyerName,
		ItemName:      summary.ItemName,
		Price:         summary.Price,
		Currency:      summary.Currency,
		FlowID:        params.FlowID,
	})

	if !matched {
		// No flow for this lot; acknowledge and let the operator take over.
		return d.market.SendMessage(ctx, summary.ChatID,
			flows.StatusMessage(flows.MsgOrderStarted, lang, nil))
	}

	def, ok := d.registry.Get(match.FlowID)
	if !ok {
		return fmt.Errorf("matched flow %q is not registered", match.FlowID)
	}
	state, prompt, err := flows.Start(def, lang, flows.OverridesFor(bindings, match.BindingID))
	if err != nil {
		return err
	}
	if err := d.store.SetFlowState(ctx, summary.ID, state); err != nil {
		return fmt.Errorf("persist flow state: %w", err)
	}
	log.Info("order created", "flow", def.ID, "lang", lang)
	return d.market.SendMessage(ctx, summary.ChatID, prompt)
}

func (d *Dispatcher) handleOrderStatus(ctx context.Context, marketOrderID string, state marketplace.OrderState) error {
	log := d.log.WithOrderID(marketOrderID)

	switch state {
	case marketplace.OrderStateClosed:
		return d.confirmOrder(ctx, marketOrderID)

	case marketplace.OrderStateRefunded:
		order, err := d.store.GetByMarketID(ctx, marketOrderID)
		if errors.Is(err, orders.ErrNotFound) {
			log.Warn("refund event for unknown order")
			return nil
		}
		if err != nil {
			return err
		}
		if err := d.store.SetStatus(ctx, marketOrderID, orders.StatusRefunded); err != nil {
			return err
		}
		log.Info("order refunded by marketplace")
		return d.market.SendMessage(ctx, order.ChatID,
			flows.StatusMessage(flows.MsgOrderCancelled, order.BuyerLang, nil))

	case marketplace.OrderStatePaid:
		// A paid event for an order we already consider settled means the
		// buyer reopened it.
		changed, err := d.store.MarkDispute(ctx, marketOrderID)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		order, err := d.store.GetByMarketID(ctx, marketOrderID)
		if err != nil {
			return err
		}
		log.Warn("confirmed order reopened by buyer")
		d.bus.Publish(ctx, OrderDisputed{
			BaseEvent:     events.NewBaseEvent(),
			MarketOrderID: marketOrderID,
			BuyerName:     order.BuyerName,
			ItemName:      order.ItemName,
		})
		return nil

	default:
		log.Warn("unknown order state", "state", state)
		return nil
	}
}

// confirmOrder moves an order to confirmed, schedules the review reminder
// and kicks off the rating probe. Shared by the closed-state event and the
// confirmation system notice since the platform delivers either, sometimes
// both.
func (d *Dispatcher) confirmOrder(ctx context.Context, marketOrderID string) error {
	changed, err := d.store.ConfirmUnlessRefunded(ctx, marketOrderID)
	if err != nil {
		return err
	}
	if !changed {
		// Already confirmed or refunded; either way the reminder is handled.
		return nil
	}
	d.log.WithOrderID(marketOrderID).Info("order confirmed by buyer")

	cfg, err := d.settings.Get(ctx)
	if err != nil {
		d.log.Error("loading settings failed", "error", err)
		cfg = settings.Defaults()
	}
	if cfg.ReviewReminder {
		if err := d.scheduler.ScheduleReviewReminder(ctx, marketOrderID, cfg.ReviewDelay); err != nil {
			d.log.WithOrderID(marketOrderID).Error("scheduling review reminder failed", "error", err)
		}
	}
	return nil
}

// orderIDRe extracts the order id from system notices, which reference
// orders as #XXXXXXXX.
var orderIDRe = regexp.MustCompile(`#([A-Z0-9]{8})`)

func (d *Dispatcher) handleChatMessage(ctx context.Context, msg marketplace.ChatMessage) error {
	// Our own replies and other bots' messages must never feed back into the
	// flows.
	if msg.ByBot || msg.AuthorID == d.market.Account().UserID {
		return nil
	}
	if msg.System {
		return d.handleSystemNotice(ctx, msg)
	}

	order, err := d.store.LatestAwaitingByChat(ctx, msg.ChatID)
	if errors.Is(err, orders.ErrNotFound) && msg.AuthorID != 0 {
		order, err = d.store.LatestAwaitingByBuyer(ctx, msg.AuthorID)
	}
	if errors.Is(err, orders.ErrNotFound) {
		d.bus.Publish(ctx, UnhandledMessage{
			BaseEvent: events.NewBaseEvent(),
			ChatID:    msg.ChatID,
			Author:    msg.Author,
			Text:      msg.Text,
			ChatLink:  d.chatBaseURL + "/chat/?node=" + url.QueryEscape(msg.ChatID),
		})
		return nil
	}
	if err != nil {
		return err
	}

	return d.processFlowMessage(ctx, order, msg)
}

func (d *Dispatcher) processFlowMessage(ctx context.Context, order orders.Order, msg marketplace.ChatMessage) error {
	log := d.log.WithOrderID(order.MarketOrderID)

	def, ok := d.registry.Get(order.FlowID)
	if !ok {
		log.Error("order references unknown flow", "flow", order.FlowID)
		return nil
	}

	lang := order.BuyerLang
	if lang == "" {
		lang = detectLang(msg.Text)
	}

	res, err := flows.Process(def, order.FlowState, msg.Text, lang, d.bindingOverrides(ctx, order.BindingID))
	if err != nil {
		return err
	}

	switch res.Outcome {
	case flows.OutcomeCompleted:
		if err := d.store.CompleteCollection(ctx, order.MarketOrderID, res.State, res.State.Data); err != nil {
			return fmt.Errorf("complete collection: %w", err)
		}
		log.Info("flow completed", "flow", def.ID)
		d.bus.Publish(ctx, OrderDataCollected{
			BaseEvent:     events.NewBaseEvent(),
			MarketOrderID: order.MarketOrderID,
			BuyerName:     order.BuyerName,
			ItemName:      order.ItemName,
			Data:          res.State.Data,
		})

	case flows.OutcomeContinue:
		if res.State.Step != order.FlowState.Step || len(res.State.Data) != len(order.FlowState.Data) {
			if err := d.store.SetFlowState(ctx, order.MarketOrderID, res.State); err != nil {
				return fmt.Errorf("persist flow state: %w", err)
			}
		}

	case flows.OutcomeFinished:
		// Nothing to persist, the courtesy reply below is enough.
	}

	if res.Reply == "" {
		return nil
	}
	return d.market.SendMessage(ctx, msg.ChatID, res.Reply)
}

func (d *Dispatcher) handleSystemNotice(ctx context.Context, msg marketplace.ChatMessage) error {
	matches := orderIDRe.FindStringSubmatch(msg.Text)
	if matches == nil {
		return nil
	}
	orderID := matches[1]
	text := strings.ToLower(msg.Text)

	switch {
	case strings.Contains(text, "подтвердил") || strings.Contains(text, "confirmed"):
		return d.confirmOrder(ctx, orderID)

	case strings.Contains(text, "отзыв") || strings.Contains(text, "review") || strings.Contains(text, "feedback"):
		// Feedback notices fire for edits and re-counts too; probe the rating
		// and alert only if it actually moved.
		go d.probeRating(orderID, msg.ChatID)
		return nil

	default:
		return nil
	}
}

// bindingOverrides resolves the text overrides of the binding an order was
// matched through. Orders matched by a built-in flow have none.
func (d *Dispatcher) bindingOverrides(ctx context.Context, bindingID *int64) map[string]string {
	if bindingID == nil {
		return nil
	}
	bindings, err := d.bindings.ListEnabled(ctx)
	if err != nil {
		d.log.Error("loading bindings failed", "error", err)
		return nil
	}
	return flows.OverridesFor(bindings, bindingID)
}

// buyerLang prefers the authoritative chat locale and falls back to the
// script heuristic over the item description.
func (d *Dispatcher) buyerLang(ctx context.Context, chatID, description string) string {
	if chatID != "" {
		locale, err := d.market.ChatLocale(ctx, chatID)
		if err != nil {
			d.log.MarketplaceError("chat_locale", err)
		} else if lang := normalizeLang(locale); lang != "" {
			return lang
		}
	}
	return detectLang(description)
}
