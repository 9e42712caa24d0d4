// Package marketplace talks to the trading platform: it polls the event
// runner, sends chat messages, reads the sales ledger and drives the
// account-level actions (raise lots, refund, stay online).
package marketplace

import "time"

// EventType discriminates runner events.
type EventType string

const (
	EventNewOrder    EventType = "new_order"
	EventOrderStatus EventType = "order_status"
	EventChatMessage EventType = "chat_message"
)

// OrderState is the marketplace's own view of an order. It is narrower than
// the local lifecycle; the dispatcher maps between the two.
type OrderState string

const (
	OrderStatePaid     OrderState = "paid"
	OrderStateClosed   OrderState = "closed"
	OrderStateRefunded OrderState = "refunded"
)

// OrderSummary is one row of the sales ledger.
type OrderSummary struct {
	ID        string     `json:"id"`
	BuyerID   int64      `json:"buyer_id"`
	BuyerName string     `json:"buyer_name"`
	ChatID    string     `json:"chat_id"`
	LotID     int64      `json:"lot_id"`
	ItemName  string     `json:"item_name"`
	Price     float64    `json:"price"`
	Currency  string     `json:"currency"`
	State     OrderState `json:"state"`
}

// ChatMessage is one message observed in a buyer conversation.
type ChatMessage struct {
	ID       int64  `json:"id"`
	ChatID   string `json:"chat_id"`
	AuthorID int64  `json:"author_id"`
	Author   string `json:"author"`
	Text     string `json:"text"`
	// System messages are authored by the platform itself (order confirmed,
	// feedback left and so on) rather than by a participant.
	System bool `json:"system"`
	// ByBot marks messages sent through the API rather than typed by a
	// person, including our own.
	ByBot bool `json:"by_bot"`
}

// Event is one normalized runner event.
type Event struct {
	Type    EventType    `json:"type"`
	Order   OrderSummary `json:"order,omitempty"`
	OrderID string       `json:"order_id,omitempty"`
	State   OrderState   `json:"state,omitempty"`
	Message ChatMessage  `json:"message,omitempty"`
}

// AccountInfo is the seller identity resolved from the session.
type AccountInfo struct {
	UserID   int64
	Username string
	Locale   string
	CSRF     string
}

// Subcategory is one lot section owned by the seller.
type Subcategory struct {
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
}

// Lot is one sale offer.
type Lot struct {
	ID            int64   `json:"id"`
	SubcategoryID int64   `json:"subcategory_id"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	Active        bool    `json:"active"`
}

// Rating is the seller's public review standing.
type Rating struct {
	Stars   float64
	Reviews int
}

// cacheEntry wraps a cached value with its expiry.
type cacheEntry[T any] struct {
	value   T
	expires time.Time
}

func (e cacheEntry[T]) valid(now time.Time) bool {
	return now.Before(e.expires)
}
