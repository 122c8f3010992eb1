package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/adaptifi/swapcore/internal/models"
)

// DatabasePool defines the pool operations the repositories need. It allows
// both the real pgx pool and a mock to be injected.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// OrderRepository persists the order audit trail. In-memory state stays
// authoritative; these writes exist so terminal orders remain inspectable.
type OrderRepository struct {
	pool DatabasePool
}

func NewOrderRepository(pool DatabasePool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// EnsureSchema creates the audit tables when they do not exist yet.
func (r *OrderRepository) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			asset_in TEXT NOT NULL,
			asset_out TEXT NOT NULL,
			amount_in NUMERIC NOT NULL,
			base_price NUMERIC NOT NULL,
			current_slippage_bps BIGINT NOT NULL,
			max_slippage_deviation_bps BIGINT NOT NULL,
			target_chain_id BIGINT NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			fill_attempts BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			last_slippage_update_at TIMESTAMPTZ NOT NULL,
			external_order_handle TEXT
		);
		CREATE TABLE IF NOT EXISTS order_slippage_history (
			id BIGSERIAL PRIMARY KEY,
			order_id TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			slippage_bps BIGINT NOT NULL,
			volatility_score BIGINT NOT NULL,
			bridge_delay_sec BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS performance_records (
			id BIGSERIAL PRIMARY KEY,
			pair_key TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			slippage_used_bps BIGINT NOT NULL,
			actual_slippage_bps BIGINT NOT NULL,
			success BOOLEAN NOT NULL,
			volatility_score BIGINT NOT NULL
		);`
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// InsertOrder stores a newly created order.
func (r *OrderRepository) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			id, owner, asset_in, asset_out, amount_in, base_price,
			current_slippage_bps, max_slippage_deviation_bps, target_chain_id, state,
			fill_attempts, created_at, last_slippage_update_at, external_order_handle
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		order.ID, order.Owner, order.AssetIn, order.AssetOut,
		order.AmountIn, order.BasePrice,
		order.CurrentSlippageBps, order.MaxSlippageDeviationBps, order.TargetChainID, string(order.State),
		order.FillAttempts, order.CreatedAt, order.LastSlippageUpdateAt, order.ExternalOrderHandle,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// UpdateOrder writes the mutable order fields.
func (r *OrderRepository) UpdateOrder(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders SET
			current_slippage_bps = $2,
			state = $3,
			fill_attempts = $4,
			last_slippage_update_at = $5,
			external_order_handle = $6
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		order.ID, order.CurrentSlippageBps, string(order.State),
		order.FillAttempts, order.LastSlippageUpdateAt, order.ExternalOrderHandle,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found", order.ID)
	}
	return nil
}

// AppendSlippageHistory appends one slippage change record.
func (r *OrderRepository) AppendSlippageHistory(ctx context.Context, orderID string, entry models.SlippageHistoryEntry) error {
	query := `
		INSERT INTO order_slippage_history (order_id, recorded_at, slippage_bps, volatility_score, bridge_delay_sec)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		orderID, entry.Timestamp, entry.SlippageBps, entry.VolatilityScore, entry.BridgeDelaySec,
	)
	if err != nil {
		return fmt.Errorf("failed to append slippage history: %w", err)
	}
	return nil
}

// AppendPerformanceRecord appends one optimizer sample for offline analysis.
func (r *OrderRepository) AppendPerformanceRecord(ctx context.Context, rec models.PerformanceRecord) error {
	query := `
		INSERT INTO performance_records (pair_key, recorded_at, slippage_used_bps, actual_slippage_bps, success, volatility_score)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		rec.PairKey, rec.Timestamp, rec.SlippageUsedBps, rec.ActualSlippageBps, rec.Success, rec.VolatilityScore,
	)
	if err != nil {
		return fmt.Errorf("failed to append performance record: %w", err)
	}
	return nil
}

// GetOrder reads one persisted order back.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	query := `
		SELECT id, owner, asset_in, asset_out, amount_in, base_price,
			current_slippage_bps, max_slippage_deviation_bps, target_chain_id, state,
			fill_attempts, created_at, last_slippage_update_at, external_order_handle
		FROM orders WHERE id = $1`

	var order models.Order
	var state string
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&order.ID, &order.Owner, &order.AssetIn, &order.AssetOut,
		&order.AmountIn, &order.BasePrice,
		&order.CurrentSlippageBps, &order.MaxSlippageDeviationBps, &order.TargetChainID, &state,
		&order.FillAttempts, &order.CreatedAt, &order.LastSlippageUpdateAt, &order.ExternalOrderHandle,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	order.State = models.OrderState(state)
	return &order, nil
}
