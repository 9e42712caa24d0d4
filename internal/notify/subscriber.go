package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"marketpilot/internal/engine"
	"marketpilot/platform/events"
	"marketpilot/platform/logger"
)

// Subscriber turns domain events into operator alerts. It hangs off the
// event bus so the dispatcher never waits on Telegram or SMTP.
type Subscriber struct {
	notifier Notifier
	log      *logger.Logger
}

// NewSubscriber creates the subscriber.
func NewSubscriber(notifier Notifier, log *logger.Logger) *Subscriber {
	return &Subscriber{notifier: notifier, log: log}
}

// Register subscribes to every alert-worthy event.
func (s *Subscriber) Register(bus events.Bus) {
	handler := events.HandlerFunc(s.handle)
	for _, name := range []string{
		engine.EventOrderCreated,
		engine.EventOrderDataCollected,
		engine.EventOrderDisputed,
		engine.EventReviewReceived,
		engine.EventUnhandledMessage,
		engine.EventOrdersEscalated,
		engine.EventAutomationFailure,
	} {
		bus.Subscribe(name, handler)
	}
}

func (s *Subscriber) handle(ctx context.Context, event events.Event) error {
	text := Format(event)
	if text == "" {
		return nil
	}
	return s.notifier.Notify(ctx, text)
}

// Format renders one event as operator-facing text. Unknown events render
// empty and are skipped.
func Format(event events.Event) string {
	switch e := event.(type) {
	case engine.OrderCreated:
		flow := e.FlowID
		if flow == "" {
			flow = "none, manual handling"
		}
		return fmt.Sprintf("New order #%s\n%s for %.2f %s\nBuyer: %s\nFlow: %s",
			e.MarketOrderID, e.ItemName, e.Price, e.Currency, e.BuyerName, flow)

	case engine.OrderDataCollected:
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		fmt.Fprintf(&sb, "Order #%s is ready to fulfill\n%s for %s\n", e.MarketOrderID, e.ItemName, e.BuyerName)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s: %s\n", k, e.Data[k])
		}
		return strings.TrimRight(sb.String(), "\n")

	case engine.OrderDisputed:
		return fmt.Sprintf("Order #%s reopened by %s\n%s\nCheck the chat as soon as possible.",
			e.MarketOrderID, e.BuyerName, e.ItemName)

	case engine.ReviewReceived:
		return fmt.Sprintf("Review activity on order #%s\n%s", e.MarketOrderID, e.Text)

	case engine.UnhandledMessage:
		return fmt.Sprintf("Message needs a reply\nFrom: %s\n%s\n%s", e.Author, e.Text, e.ChatLink)

	case engine.OrdersEscalated:
		return fmt.Sprintf("Escalated %d orders to support\n#%s",
			len(e.MarketOrderIDs), strings.Join(e.MarketOrderIDs, ", #"))

	case engine.AutomationFailure:
		return fmt.Sprintf("Automation task %q failed\n%s", e.Task, e.Reason)

	default:
		return ""
	}
}
