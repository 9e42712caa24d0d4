package flows

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrBindingNotFound = errors.New("binding not found")

// Repository persists operator-managed lot bindings.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEnabled returns the enabled bindings in id order, the order the
// matcher scans them in.
func (r *Repository) ListEnabled(ctx context.Context) ([]Binding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, flow_id, lot_id, keyword, name_pattern, text_overrides, enabled
		FROM lot_bindings
		WHERE enabled
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBindings(rows)
}

// ListAll returns every binding, enabled or not, in id order.
func (r *Repository) ListAll(ctx context.Context) ([]Binding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, flow_id, lot_id, keyword, name_pattern, text_overrides, enabled
		FROM lot_bindings
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBindings(rows)
}

// Get returns one binding by id.
func (r *Repository) Get(ctx context.Context, id int64) (Binding, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, flow_id, lot_id, keyword, name_pattern, text_overrides, enabled
		FROM lot_bindings
		WHERE id = $1
	`, id)

	var (
		b            Binding
		rawOverrides []byte
	)
	err := row.Scan(&b.ID, &b.FlowID, &b.LotID, &b.Keyword, &b.NamePattern, &rawOverrides, &b.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return Binding{}, ErrBindingNotFound
	}
	if err != nil {
		return Binding{}, err
	}
	if len(rawOverrides) > 0 {
		_ = json.Unmarshal(rawOverrides, &b.TextOverride)
	}
	return b, nil
}

// Create inserts a binding and returns its id.
func (r *Repository) Create(ctx context.Context, b Binding) (int64, error) {
	overrides, err := marshalOverrides(b.TextOverride)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `
		INSERT INTO lot_bindings (flow_id, lot_id, keyword, name_pattern, text_overrides, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, b.FlowID, b.LotID, b.Keyword, b.NamePattern, overrides, b.Enabled).Scan(&id)
	return id, err
}

// Update replaces a binding's routing inputs and overrides.
func (r *Repository) Update(ctx context.Context, b Binding) error {
	overrides, err := marshalOverrides(b.TextOverride)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE lot_bindings
		SET flow_id = $2, lot_id = $3, keyword = $4, name_pattern = $5,
		    text_overrides = $6, enabled = $7, updated_at = now()
		WHERE id = $1
	`, b.ID, b.FlowID, b.LotID, b.Keyword, b.NamePattern, overrides, b.Enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBindingNotFound
	}
	return nil
}

// Delete removes a binding.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lot_bindings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBindingNotFound
	}
	return nil
}

func collectBindings(rows pgx.Rows) ([]Binding, error) {
	items := make([]Binding, 0)
	for rows.Next() {
		var (
			b            Binding
			rawOverrides []byte
		)
		if err := rows.Scan(&b.ID, &b.FlowID, &b.LotID, &b.Keyword, &b.NamePattern, &rawOverrides, &b.Enabled); err != nil {
			return nil, err
		}
		if len(rawOverrides) > 0 {
			_ = json.Unmarshal(rawOverrides, &b.TextOverride)
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func marshalOverrides(overrides map[string]string) ([]byte, error) {
	if overrides == nil {
		overrides = map[string]string{}
	}
	return json.Marshal(overrides)
}
