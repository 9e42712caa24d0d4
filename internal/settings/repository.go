package settings

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and writes the singleton settings row. The row is seeded
// by migrations, so Get never returns a missing-row error in practice.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the current automation settings. Intervals are stored as
// seconds in the database.
func (r *Repository) Get(ctx context.Context) (AutomationSettings, error) {
	var (
		s               AutomationSettings
		onlineSecs      int64
		bumpSecs        int64
		reviewDelaySecs int64
		escalateSecs    int64
		statsSecs       int64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT eternal_online, online_interval_secs, auto_bump, bump_interval_secs,
		       review_reminder, review_delay_secs, review_message_ru, review_message_en,
		       auto_escalate, escalate_interval_secs, escalate_max_orders, escalate_template,
		       stats_interval_secs, updated_at
		FROM automation_settings
		WHERE id = 1
	`).Scan(
		&s.EternalOnline, &onlineSecs, &s.AutoBump, &bumpSecs,
		&s.ReviewReminder, &reviewDelaySecs, &s.ReviewMessageRU, &s.ReviewMessageEN,
		&s.AutoEscalate, &escalateSecs, &s.EscalateMaxOrders, &s.EscalateTemplate,
		&statsSecs, &s.UpdatedAt,
	)
	if err != nil {
		return AutomationSettings{}, err
	}

	s.OnlineInterval = time.Duration(onlineSecs) * time.Second
	s.BumpInterval = time.Duration(bumpSecs) * time.Second
	s.ReviewDelay = time.Duration(reviewDelaySecs) * time.Second
	s.EscalateInterval = time.Duration(escalateSecs) * time.Second
	s.StatsInterval = time.Duration(statsSecs) * time.Second
	return s, nil
}

// Update replaces the singleton row.
func (r *Repository) Update(ctx context.Context, s AutomationSettings) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE automation_settings
		SET eternal_online = $1, online_interval_secs = $2,
		    auto_bump = $3, bump_interval_secs = $4,
		    review_reminder = $5, review_delay_secs = $6,
		    review_message_ru = $7, review_message_en = $8,
		    auto_escalate = $9, escalate_interval_secs = $10,
		    escalate_max_orders = $11, escalate_template = $12,
		    stats_interval_secs = $13, updated_at = now()
		WHERE id = 1
	`,
		s.EternalOnline, int64(s.OnlineInterval/time.Second),
		s.AutoBump, int64(s.BumpInterval/time.Second),
		s.ReviewReminder, int64(s.ReviewDelay/time.Second),
		s.ReviewMessageRU, s.ReviewMessageEN,
		s.AutoEscalate, int64(s.EscalateInterval/time.Second),
		s.EscalateMaxOrders, s.EscalateTemplate,
		int64(s.StatsInterval/time.Second),
	)
	return err
}
