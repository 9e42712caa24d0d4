package engine

import "marketpilot/platform/events"

// Domain event names published on the bus. The notify module subscribes to
// these to keep operator alerting out of the dispatch path.
const (
	EventOrderCreated       = "order.created"
	EventOrderDataCollected = "order.data_collected"
	EventOrderDisputed      = "order.disputed"
	EventReviewReceived     = "order.review_received"
	EventUnhandledMessage   = "chat.unhandled_message"
	EventOrdersEscalated    = "order.escalated"
	EventAutomationFailure  = "automation.failure"
)

// OrderCreated fires when a new paid order is recorded.
type OrderCreated struct {
	events.BaseEvent
	MarketOrderID string
	BuyerName     string
	ItemName      string
	Price         float64
	Currency      string
	FlowID        string
}

func (OrderCreated) EventName() string { return EventOrderCreated }

// OrderDataCollected fires when a flow finished collecting buyer data and the
// order is ready for manual fulfillment.
type OrderDataCollected struct {
	events.BaseEvent
	MarketOrderID string
	BuyerName     string
	ItemName      string
	Data          map[string]string
}

func (OrderDataCollected) EventName() string { return EventOrderDataCollected }

// OrderDisputed fires when a settled order was reopened by the buyer.
type OrderDisputed struct {
	events.BaseEvent
	MarketOrderID string
	BuyerName     string
	ItemName      string
}

func (OrderDisputed) EventName() string { return EventOrderDisputed }

// ReviewReceived fires when the platform notifies about new buyer feedback.
type ReviewReceived struct {
	events.BaseEvent
	MarketOrderID string
	ChatID        string
	Text          string
}

func (ReviewReceived) EventName() string { return EventReviewReceived }

// UnhandledMessage fires when a buyer writes something no flow is waiting
// for; the operator has to answer it personally.
type UnhandledMessage struct {
	events.BaseEvent
	ChatID   string
	Author   string
	Text     string
	ChatLink string
}

func (UnhandledMessage) EventName() string { return EventUnhandledMessage }

// OrdersEscalated fires when the escalation routine filed a support ticket
// over stale completed orders.
type OrdersEscalated struct {
	events.BaseEvent
	MarketOrderIDs []string
}

func (OrdersEscalated) EventName() string { return EventOrdersEscalated }

// AutomationFailure fires when a background task that an operator would
// otherwise assume succeeded (reconciliation, escalation) failed and needs
// a manual look.
type AutomationFailure struct {
	events.BaseEvent
	Task   string
	Reason string
}

func (AutomationFailure) EventName() string { return EventAutomationFailure }
