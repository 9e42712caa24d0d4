package scheduler

import (
	"context"
	"strings"
	"time"

	"marketpilot/internal/engine"
	"marketpilot/internal/marketplace"
	"marketpilot/internal/orders"
	"marketpilot/internal/settings"
	"marketpilot/internal/stats"
	"marketpilot/platform/events"
	"marketpilot/platform/logger"
)

const tickInterval = 30 * time.Second

// AccountClient is the marketplace access the background loops need.
type AccountClient interface {
	Refresh(ctx context.Context) error
	SellerRating(ctx context.Context) (marketplace.Rating, error)
	Subcategories(ctx context.Context) ([]marketplace.Subcategory, error)
	SubcategoryLots(ctx context.Context, subcategoryID int64) ([]marketplace.Lot, error)
	RaiseLots(ctx context.Context, categoryID int64, subcategoryIDs []int64) error
}

// OrderStats is the store access the stats and escalation loops need.
type OrderStats interface {
	Counts(ctx context.Context) (total int64, active int64, err error)
	ListEscalatable(ctx context.Context, max int) ([]orders.Order, error)
	MarkEscalated(ctx context.Context, marketOrderIDs []string, at time.Time) error
}

// SnapshotStore persists stats snapshots.
type SnapshotStore interface {
	Insert(ctx context.Context, s stats.Snapshot) error
}

// TicketFiler files a support ticket with the given body.
type TicketFiler interface {
	FileTicket(ctx context.Context, body string) error
}

// Background runs the periodic automation: the online heartbeat, lot
// bumping, statistics snapshots and support escalation. One shared ticker
// drives everything; each task keeps its own due time and re-reads the
// settings every pass, so interval changes apply without a restart.
type Background struct {
	market   AccountClient
	store    OrderStats
	stats    SnapshotStore
	support  TicketFiler
	settings SettingsSource
	bus      events.Bus
	log      *logger.Logger

	nextHeartbeat time.Time
	nextBump      time.Time
	nextStats     time.Time
	nextEscalate  time.Time
}

// NewBackground creates the background runner.
func NewBackground(
	market AccountClient,
	store OrderStats,
	snapshots SnapshotStore,
	support TicketFiler,
	settingsSource SettingsSource,
	bus events.Bus,
	log *logger.Logger,
) *Background {
	return &Background{
		market:   market,
		store:    store,
		stats:    snapshots,
		support:  support,
		settings: settingsSource,
		bus:      bus,
		log:      log,
	}
}

// Run ticks until the context is cancelled.
func (b *Background) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.tick(ctx, time.Now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tick runs every due task once. Failures are logged and retried on the
// next due time; the loops must keep going no matter what.
func (b *Background) tick(ctx context.Context, now time.Time) {
	cfg, err := b.settings.Get(ctx)
	if err != nil {
		b.log.Error("loading settings failed", "error", err)
		return
	}

	if cfg.EternalOnline && !now.Before(b.nextHeartbeat) {
		b.nextHeartbeat = now.Add(cfg.OnlineInterval)
		if err := b.market.Refresh(ctx); err != nil {
			b.log.MarketplaceError("heartbeat", err)
		}
	}

	if cfg.AutoBump && !now.Before(b.nextBump) {
		b.nextBump = now.Add(cfg.BumpInterval)
		if err := b.bumpLots(ctx); err != nil {
			b.log.MarketplaceError("bump_lots", err)
		}
	}

	if !now.Before(b.nextStats) {
		b.nextStats = now.Add(cfg.StatsInterval)
		if err := b.snapshotStats(ctx); err != nil {
			b.log.Error("stats snapshot failed", "error", err)
		}
	}

	if cfg.AutoEscalate && !now.Before(b.nextEscalate) {
		b.nextEscalate = now.Add(cfg.EscalateInterval)
		if err := b.escalate(ctx, cfg); err != nil {
			b.log.Error("escalation failed", "error", err)
			b.bus.Publish(ctx, engine.AutomationFailure{
				BaseEvent: events.NewBaseEvent(),
				Task:      "escalation",
				Reason:    err.Error(),
			})
		}
	}
}

// bumpLots raises every section where the seller has at least one active
// offer. Sections without own lots are skipped so the bump doesn't touch
// categories the seller left.
func (b *Background) bumpLots(ctx context.Context) error {
	subcategories, err := b.market.Subcategories(ctx)
	if err != nil {
		return err
	}

	byCategory := map[int64][]int64{}
	for _, sub := range subcategories {
		lots, err := b.market.SubcategoryLots(ctx, sub.ID)
		if err != nil {
			b.log.MarketplaceError("list_lots", err)
			continue
		}
		for _, lot := range lots {
			if lot.Active {
				byCategory[sub.CategoryID] = append(byCategory[sub.CategoryID], sub.ID)
				break
			}
		}
	}

	for categoryID, subIDs := range byCategory {
		if err := b.market.RaiseLots(ctx, categoryID, subIDs); err != nil {
			b.log.MarketplaceError("raise_lots", err)
			continue
		}
		b.log.Info("lots raised", "category_id", categoryID, "sections", len(subIDs))
	}
	return nil
}

func (b *Background) snapshotStats(ctx context.Context) error {
	total, active, err := b.store.Counts(ctx)
	if err != nil {
		return err
	}
	rating, err := b.market.SellerRating(ctx)
	if err != nil {
		// The order counters are still worth recording.
		b.log.MarketplaceError("seller_rating", err)
	}
	return b.stats.Insert(ctx, stats.Snapshot{
		TotalOrders:  total,
		ActiveOrders: active,
		RatingStars:  rating.Stars,
		RatingCount:  rating.Reviews,
	})
}

// escalate files one support ticket covering the oldest completed orders the
// buyer never confirmed, then stamps them so the next pass picks up fresh
// ones.
func (b *Background) escalate(ctx context.Context, cfg settings.AutomationSettings) error {
	batch, err := b.store.ListEscalatable(ctx, cfg.EscalateMaxOrders)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	ids := make([]string, len(batch))
	for i, o := range batch {
		ids[i] = o.MarketOrderID
	}

	body := cfg.EscalateTemplate
	if body == "" {
		body = "Please review the following completed orders awaiting buyer confirmation: {order_ids}"
	}
	body = strings.ReplaceAll(body, "{order_ids}", "#"+strings.Join(ids, ", #"))

	if err := b.support.FileTicket(ctx, body); err != nil {
		return err
	}
	if err := b.store.MarkEscalated(ctx, ids, time.Now()); err != nil {
		return err
	}
	b.log.Info("orders escalated to support", "count", len(ids))
	b.bus.Publish(ctx, engine.OrdersEscalated{
		BaseEvent:      events.NewBaseEvent(),
		MarketOrderIDs: ids,
	})
	return nil
}
