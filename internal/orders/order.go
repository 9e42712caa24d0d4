// Package orders holds the persistent order model tracked by the automation
// engine. Rows are keyed by the marketplace's own order id and are never
// hard-deleted; they back statistics and audit after fulfillment.
package orders

import "time"

// Status is the local lifecycle status of an order.
type Status string

const (
	// StatusWaitingData means a flow is collecting buyer credentials.
	StatusWaitingData Status = "waiting_data"
	// StatusDataCollected means the flow finished (or no flow applies) and the
	// order waits for the seller.
	StatusDataCollected Status = "data_collected"
	// StatusInProgress means the seller started fulfilling the order.
	StatusInProgress Status = "in_progress"
	// StatusCompleted means the seller finished; the buyer has not confirmed yet.
	StatusCompleted Status = "completed"
	// StatusRefunded is terminal; it is never overwritten by later events.
	StatusRefunded Status = "refunded"
	// StatusConfirmed means the buyer confirmed the order on the marketplace.
	StatusConfirmed Status = "confirmed"
	// StatusDispute means a settled order was reopened by the buyer.
	StatusDispute Status = "dispute"
)

// FlowState is the serialized conversational position of an order.
type FlowState struct {
	Step string            `json:"step"`
	Data map[string]string `json:"data"`
}

// Order is one marketplace order tracked by the engine.
type Order struct {
	MarketOrderID string
	BuyerID       int64
	BuyerName     string
	ChatID        string
	ItemName      string
	Price         float64
	Currency      string
	Status        Status
	FlowID        string
	BindingID     *int64
	FlowState     FlowState
	CollectedData map[string]string
	BuyerLang     string
	EscalatedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
