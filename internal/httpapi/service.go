// Package httpapi is the operator-facing HTTP surface: login, order actions,
// binding management, automation settings, statistics and manual
// reconciliation.
package httpapi

import (
	"context"
	"errors"
	"fmt"

	"marketpilot/internal/flows"
	"marketpilot/internal/orders"
	"marketpilot/platform/apperr"
	"marketpilot/platform/logger"
)

// Order actions the operator can trigger.
const (
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionRefund   = "refund"
)

// MarketActions is the marketplace access order actions need.
type MarketActions interface {
	SendMessage(ctx context.Context, chatID, text string) error
	Refund(ctx context.Context, orderID string) error
}

// OrderStore is the persistence order actions need.
type OrderStore interface {
	GetByMarketID(ctx context.Context, marketOrderID string) (orders.Order, error)
	SetStatus(ctx context.Context, marketOrderID string, status orders.Status) error
	List(ctx context.Context, status *orders.Status, limit, offset int) ([]orders.Order, error)
}

// BindingGetter resolves the binding behind an order for text overrides.
type BindingGetter interface {
	Get(ctx context.Context, id int64) (flows.Binding, error)
}

// OrderService implements the operator's order actions. Each action flips
// the local status and tells the buyer, in their language, what happened.
type OrderService struct {
	store    OrderStore
	market   MarketActions
	bindings BindingGetter
	log      *logger.Logger
}

// NewOrderService creates the service.
func NewOrderService(store OrderStore, market MarketActions, bindings BindingGetter, log *logger.Logger) *OrderService {
	return &OrderService{store: store, market: market, bindings: bindings, log: log}
}

// List returns orders for the dashboard.
func (s *OrderService) List(ctx context.Context, status *orders.Status, limit, offset int) ([]orders.Order, error) {
	return s.store.List(ctx, status, limit, offset)
}

// Get returns one order.
func (s *OrderService) Get(ctx context.Context, marketOrderID string) (orders.Order, error) {
	order, err := s.store.GetByMarketID(ctx, marketOrderID)
	if errors.Is(err, orders.ErrNotFound) {
		return orders.Order{}, apperr.NotFound("order not found")
	}
	return order, err
}

// Act applies an operator action to an order.
func (s *OrderService) Act(ctx context.Context, marketOrderID, action string) (orders.Order, error) {
	order, err := s.Get(ctx, marketOrderID)
	if err != nil {
		return orders.Order{}, err
	}

	switch action {
	case ActionStart:
		return s.transition(ctx, order, orders.StatusInProgress, flows.MsgOrderStarted,
			orders.StatusWaitingData, orders.StatusDataCollected)
	case ActionComplete:
		return s.transition(ctx, order, orders.StatusCompleted, flows.MsgOrderCompleted,
			orders.StatusInProgress, orders.StatusDataCollected)
	case ActionRefund:
		return s.refund(ctx, order)
	default:
		return orders.Order{}, apperr.BadRequest(fmt.Sprintf("unknown action %q", action))
	}
}

func (s *OrderService) transition(ctx context.Context, order orders.Order, to orders.Status, msgKey string, from ...orders.Status) (orders.Order, error) {
	if !statusIn(order.Status, from...) {
		return orders.Order{}, apperr.Conflict(
			fmt.Sprintf("cannot move order from %s to %s", order.Status, to))
	}
	if err := s.store.SetStatus(ctx, order.MarketOrderID, to); err != nil {
		return orders.Order{}, err
	}
	order.Status = to
	s.notifyBuyer(ctx, order, msgKey)
	return order, nil
}

func (s *OrderService) refund(ctx context.Context, order orders.Order) (orders.Order, error) {
	if statusIn(order.Status, orders.StatusRefunded) {
		return orders.Order{}, apperr.Conflict("order is already refunded")
	}
	if statusIn(order.Status, orders.StatusConfirmed) {
		return orders.Order{}, apperr.Conflict("confirmed orders cannot be refunded here")
	}

	// The marketplace call comes first: if it fails the local status must
	// not claim the money went back.
	if err := s.market.Refund(ctx, order.MarketOrderID); err != nil {
		return orders.Order{}, err
	}
	if err := s.store.SetStatus(ctx, order.MarketOrderID, orders.StatusRefunded); err != nil {
		return orders.Order{}, err
	}
	order.Status = orders.StatusRefunded
	s.notifyBuyer(ctx, order, flows.MsgOrderCancelled)
	return order, nil
}

// notifyBuyer sends the status message, applying the binding's text
// overrides when the order came in through one. Send failures are logged;
// the action already happened.
func (s *OrderService) notifyBuyer(ctx context.Context, order orders.Order, msgKey string) {
	if order.ChatID == "" {
		return
	}

	var overrides map[string]string
	if order.BindingID != nil {
		binding, err := s.bindings.Get(ctx, *order.BindingID)
		if err == nil {
			overrides = binding.TextOverride
		}
	}

	text := flows.StatusMessage(msgKey, order.BuyerLang, overrides)
	if err := s.market.SendMessage(ctx, order.ChatID, text); err != nil {
		s.log.WithOrderID(order.MarketOrderID).Error("buyer notification failed", "error", err)
	}
}

func statusIn(status orders.Status, set ...orders.Status) bool {
	for _, s := range set {
		if status == s {
			return true
		}
	}
	return false
}
