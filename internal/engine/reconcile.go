package engine

import (
	"context"
	"fmt"

	"marketpilot/internal/flows"
	"marketpilot/internal/marketplace"
	"marketpilot/internal/orders"
	"marketpilot/platform/logger"
)

// SalesSource is the marketplace access the reconciler needs: the sales
// ledger plus the chat locale lookup used for buyer language.
type SalesSource interface {
	ListSales(ctx context.Context, state marketplace.OrderState) ([]marketplace.OrderSummary, error)
	ChatLocale(ctx context.Context, chatID string) (string, error)
}

// RecoveryStore is the order persistence the reconciler needs.
type RecoveryStore interface {
	Insert(ctx context.Context, params orders.CreateOrderParams) (bool, error)
	SetFlowState(ctx context.Context, marketOrderID string, state orders.FlowState) error
}

// Reconciler backfills orders that happened while the engine was down by
// walking the full sales ledger. Recovered orders get the same flow match
// and language resolution as live ones, but never trigger buyer messages:
// the moment for a greeting has passed, and re-prompting a buyer about an
// old order does more harm than good.
type Reconciler struct {
	market   SalesSource
	store    RecoveryStore
	bindings BindingSource
	registry *flows.Registry
	matcher  *flows.Matcher
	log      *logger.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(market SalesSource, store RecoveryStore, bindings BindingSource, registry *flows.Registry, log *logger.Logger) *Reconciler {
	return &Reconciler{
		market:   market,
		store:    store,
		bindings: bindings,
		registry: registry,
		matcher:  flows.NewMatcher(registry),
		log:      log,
	}
}

// Result summarizes one reconciliation pass.
type Result struct {
	Scanned  int `json:"scanned"`
	Inserted int `json:"inserted"`
}

// Run scans every ledger state and inserts the orders the database is
// missing. Already-known orders are left untouched, so running it repeatedly
// is safe.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	var res Result

	bindings, err := r.bindings.ListEnabled(ctx)
	if err != nil {
		r.log.Error("loading bindings failed", "error", err)
	}

	for _, state := range []marketplace.OrderState{
		marketplace.OrderStatePaid,
		marketplace.OrderStateClosed,
		marketplace.OrderStateRefunded,
	} {
		summaries, err := r.market.ListSales(ctx, state)
		if err != nil {
			return res, fmt.Errorf("list %s sales: %w", state, err)
		}
		for _, s := range summaries {
			res.Scanned++
			created, err := r.recover(ctx, s, state, bindings)
			if err != nil {
				return res, fmt.Errorf("recover order %s: %w", s.ID, err)
			}
			if created {
				res.Inserted++
				r.log.WithOrderID(s.ID).Info("order recovered from ledger", "state", state)
			}
		}
	}
	r.log.Info("reconciliation finished", "scanned", res.Scanned, "inserted", res.Inserted)
	return res, nil
}

func (r *Reconciler) recover(ctx context.Context, s marketplace.OrderSummary, state marketplace.OrderState, bindings []flows.Binding) (bool, error) {
	match, matched := r.matcher.Match(s.LotID, s.ItemName, bindings)

	params := orders.CreateOrderParams{
		MarketOrderID: s.ID,
		BuyerID:       s.BuyerID,
		BuyerName:     s.BuyerName,
		ChatID:        s.ChatID,
		ItemName:      s.ItemName,
		Price:         s.Price,
		Currency:      s.Currency,
		Status:        recoveredStatus(state, matched),
		BuyerLang:     r.buyerLang(ctx, s.ChatID, s.ItemName),
	}
	if matched {
		params.FlowID = match.FlowID
		params.BindingID = match.BindingID
	}

	created, err := r.store.Insert(ctx, params)
	if err != nil || !created {
		return created, err
	}

	// A still-paid order with a flow may yet collect data if the buyer writes
	// again, so seed the flow state. The first prompt is deliberately not sent.
	if matched && params.Status == orders.StatusWaitingData {
		def, ok := r.registry.Get(match.FlowID)
		if !ok {
			return created, fmt.Errorf("matched flow %q is not registered", match.FlowID)
		}
		initial, _, err := flows.Start(def, params.BuyerLang, flows.OverridesFor(bindings, match.BindingID))
		if err != nil {
			return created, err
		}
		if err := r.store.SetFlowState(ctx, s.ID, initial); err != nil {
			return created, err
		}
	}
	return created, nil
}

func (r *Reconciler) buyerLang(ctx context.Context, chatID, description string) string {
	if chatID != "" {
		locale, err := r.market.ChatLocale(ctx, chatID)
		if err != nil {
			r.log.MarketplaceError("chat_locale", err)
		} else if lang := normalizeLang(locale); lang != "" {
			return lang
		}
	}
	return detectLang(description)
}

// recoveredStatus maps a ledger state to a local status. Recovered paid
// orders re-enter data collection only when a flow matches.
func recoveredStatus(state marketplace.OrderState, matched bool) orders.Status {
	switch state {
	case marketplace.OrderStateClosed:
		return orders.StatusConfirmed
	case marketplace.OrderStateRefunded:
		return orders.StatusRefunded
	default:
		if matched {
			return orders.StatusWaitingData
		}
		return orders.StatusDataCollected
	}
}
