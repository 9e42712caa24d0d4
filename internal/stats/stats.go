// Package stats records periodic snapshots of order totals and the seller's
// public rating, giving the operator a trend line rather than a single
// point-in-time number.
package stats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Snapshot is one recorded measurement.
type Snapshot struct {
	ID           int64     `json:"id"`
	TotalOrders  int64     `json:"total_orders"`
	ActiveOrders int64     `json:"active_orders"`
	RatingStars  float64   `json:"rating_stars"`
	RatingCount  int       `json:"rating_count"`
	TakenAt      time.Time `json:"taken_at"`
}

// Repository persists snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records one snapshot.
func (r *Repository) Insert(ctx context.Context, s Snapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stats_snapshots (total_orders, active_orders, rating_stars, rating_count)
		VALUES ($1, $2, $3, $4)
	`, s.TotalOrders, s.ActiveOrders, s.RatingStars, s.RatingCount)
	return err
}

// Recent returns the newest snapshots, most recent first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, total_orders, active_orders, rating_stars, rating_count, taken_at
		FROM stats_snapshots
		ORDER BY taken_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Snapshot, 0, limit)
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.TotalOrders, &s.ActiveOrders, &s.RatingStars, &s.RatingCount, &s.TakenAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
