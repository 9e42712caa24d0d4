package engine

import (
	"context"
	"fmt"
	"time"

	"marketpilot/platform/events"
)

// probeRating runs after a feedback notice: it samples the seller rating,
// waits for the platform to re-aggregate, and samples again. Only an actual
// change reaches the operator; notices for edited or already-counted reviews
// leave the rating as it was and stay silent.
func (d *Dispatcher) probeRating(marketOrderID, chatID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	before, err := d.market.SellerRating(ctx)
	if err != nil {
		d.log.MarketplaceError("rating_probe", err)
		return
	}

	select {
	case <-time.After(d.probeSettle):
	case <-ctx.Done():
		return
	}

	after, err := d.market.SellerRating(ctx)
	if err != nil {
		d.log.MarketplaceError("rating_probe", err)
		return
	}
	if after == before {
		return
	}

	d.log.WithOrderID(marketOrderID).Info("seller rating changed",
		"stars_before", before.Stars, "stars_after", after.Stars,
		"reviews_before", before.Reviews, "reviews_after", after.Reviews)

	d.bus.Publish(ctx, ReviewReceived{
		BaseEvent:     events.NewBaseEvent(),
		MarketOrderID: marketOrderID,
		ChatID:        chatID,
		Text: fmt.Sprintf("rating changed from %.1f (%d reviews) to %.1f (%d reviews)",
			before.Stars, before.Reviews, after.Stars, after.Reviews),
	})
}
