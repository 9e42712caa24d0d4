package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

const orderColumns = `market_order_id, buyer_id, buyer_name, chat_id, item_name,
	price, currency, status, flow_id, binding_id, flow_state, collected_data,
	buyer_lang, escalated_at, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateOrderParams carries the fields observed when an order first appears,
// either via a live event or a reconciliation scan.
type CreateOrderParams struct {
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
	BuyerLang     string
}

// Insert adds an order row if none exists for the marketplace order id.
// Returns false when the id was already present; this is the idempotency
// guard against duplicate event delivery.
func (r *Repository) Insert(ctx context.Context, params CreateOrderParams) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO orders (
			market_order_id, buyer_id, buyer_name, chat_id, item_name,
			price, currency, status, flow_id, binding_id, buyer_lang
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (market_order_id) DO NOTHING
	`,
		params.MarketOrderID, params.BuyerID, params.BuyerName, params.ChatID,
		params.ItemName, params.Price, params.Currency, params.Status,
		params.FlowID, params.BindingID, params.BuyerLang,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetByMarketID returns the order for the given marketplace order id.
func (r *Repository) GetByMarketID(ctx context.Context, marketOrderID string) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE market_order_id = $1`, marketOrderID)
	return scanOrder(row)
}

// LatestAwaitingByChat returns the most recent order for the conversation that
// is still collecting data.
func (r *Repository) LatestAwaitingByChat(ctx context.Context, chatID string) (Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE chat_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, chatID, StatusWaitingData)
	return scanOrder(row)
}

// LatestAwaitingByBuyer is the fallback lookup when the conversation handle is
// unknown (some marketplace integrations omit it on message events).
func (r *Repository) LatestAwaitingByBuyer(ctx context.Context, buyerID int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE buyer_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, buyerID, StatusWaitingData)
	return scanOrder(row)
}

// SetStatus unconditionally moves the order to the given status.
func (r *Repository) SetStatus(ctx context.Context, marketOrderID string, status Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE market_order_id = $1
	`, marketOrderID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConfirmUnlessRefunded marks the order confirmed unless it was refunded, and
// reports whether the row actually transitioned. Refunds are terminal and a
// later closed-event must not override them; the single conditional UPDATE
// keeps the check-and-set safe against concurrent scheduler writes.
func (r *Repository) ConfirmUnlessRefunded(ctx context.Context, marketOrderID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE market_order_id = $1 AND status NOT IN ($3, $2)
	`, marketOrderID, StatusConfirmed, StatusRefunded)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkDispute flags a settled order that the buyer reopened. Only confirmed
// orders transition; anything else is left untouched.
func (r *Repository) MarkDispute(ctx context.Context, marketOrderID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE market_order_id = $1 AND status = $3
	`, marketOrderID, StatusDispute, StatusConfirmed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetFlowState persists the conversational position after an engine step.
func (r *Repository) SetFlowState(ctx context.Context, marketOrderID string, state FlowState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET flow_state = $2, updated_at = now() WHERE market_order_id = $1
	`, marketOrderID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteCollection stores the finished flow state together with the
// collected credentials and moves the order to data_collected in one write.
func (r *Repository) CompleteCollection(ctx context.Context, marketOrderID string, state FlowState, data map[string]string) error {
	rawState, err := json.Marshal(state)
	if err != nil {
		return err
	}
	rawData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, flow_state = $3, collected_data = $4, updated_at = now()
		WHERE market_order_id = $1
	`, marketOrderID, StatusDataCollected, rawState, rawData)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns orders, optionally filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status *Status, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	if offset < 0 {
		offset = 0
	}
	query += ` ORDER BY created_at DESC LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, order)
	}
	return items, rows.Err()
}

// Counts returns the totals used by stats snapshots: all orders ever seen and
// the ones still moving through fulfillment.
func (r *Repository) Counts(ctx context.Context) (total int64, active int64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status IN ($1, $2, $3))
		FROM orders
	`, StatusWaitingData, StatusDataCollected, StatusInProgress).Scan(&total, &active)
	return total, active, err
}

// ListEscalatable returns completed orders that have not been referenced by a
// support ticket yet.
func (r *Repository) ListEscalatable(ctx context.Context, max int) ([]Order, error) {
	if max <= 0 {
		max = 5
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND escalated_at IS NULL
		ORDER BY updated_at ASC
		LIMIT `+strconv.Itoa(max), StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Order, 0, max)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, order)
	}
	return items, rows.Err()
}

// MarkEscalated stamps the orders covered by a filed support ticket.
func (r *Repository) MarkEscalated(ctx context.Context, marketOrderIDs []string, at time.Time) error {
	if len(marketOrderIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE orders SET escalated_at = $2, updated_at = now()
		WHERE market_order_id = ANY($1)
	`, marketOrderIDs, at)
	return err
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		order    Order
		rawState []byte
		rawData  []byte
	)
	err := row.Scan(
		&order.MarketOrderID, &order.BuyerID, &order.BuyerName, &order.ChatID,
		&order.ItemName, &order.Price, &order.Currency, &order.Status,
		&order.FlowID, &order.BindingID, &rawState, &rawData,
		&order.BuyerLang, &order.EscalatedAt, &order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	if len(rawState) > 0 {
		_ = json.Unmarshal(rawState, &order.FlowState)
	}
	if order.FlowState.Data == nil {
		order.FlowState.Data = map[string]string{}
	}
	if len(rawData) > 0 {
		_ = json.Unmarshal(rawData, &order.CollectedData)
	}
	return order, nil
}
