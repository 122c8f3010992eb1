package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptifi/swapcore/internal/models"
)

// MockPoolAdapter wraps pgxmock.PgxPoolIface to implement DatabasePool.
type MockPoolAdapter struct {
	mock pgxmock.PgxPoolIface
}

func NewMockPoolAdapter(mock pgxmock.PgxPoolIface) DatabasePool {
	return &MockPoolAdapter{mock: mock}
}

func (m *MockPoolAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return m.mock.QueryRow(ctx, sql, args...)
}

func (m *MockPoolAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	result, err := m.mock.Exec(ctx, sql, args...)
	if err == nil {
		rows := result.RowsAffected()
		return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", rows)), nil
	}
	return pgconn.CommandTag{}, err
}

func (m *MockPoolAdapter) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return m.mock.Query(ctx, sql, args...)
}

func testOrder() *models.Order {
	now := time.Now()
	return &models.Order{
		ID:                      "order-1",
		Owner:                   "alice",
		AssetIn:                 "near",
		AssetOut:                "usdc",
		AmountIn:                decimal.NewFromInt(10),
		BasePrice:               decimal.NewFromInt(5),
		CurrentSlippageBps:      50,
		MaxSlippageDeviationBps: 20,
		TargetChainID:           137,
		State:                   models.OrderStateActive,
		CreatedAt:               now,
		LastSlippageUpdateAt:    now,
	}
}

func TestInsertOrder(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	order := testOrder()
	mockPool.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, order.Owner, order.AssetIn, order.AssetOut,
			order.AmountIn, order.BasePrice,
			order.CurrentSlippageBps, order.MaxSlippageDeviationBps, order.TargetChainID, string(order.State),
			order.FillAttempts, order.CreatedAt, order.LastSlippageUpdateAt, order.ExternalOrderHandle).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewOrderRepository(NewMockPoolAdapter(mockPool))
	require.NoError(t, repo.InsertOrder(context.Background(), order))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestUpdateOrder(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	order := testOrder()
	order.CurrentSlippageBps = 70
	order.State = models.OrderStateFilled

	mockPool.ExpectExec("UPDATE orders SET").
		WithArgs(order.ID, order.CurrentSlippageBps, string(order.State),
			order.FillAttempts, order.LastSlippageUpdateAt, order.ExternalOrderHandle).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewOrderRepository(NewMockPoolAdapter(mockPool))
	require.NoError(t, repo.UpdateOrder(context.Background(), order))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestUpdateOrderMissing(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	order := testOrder()
	mockPool.ExpectExec("UPDATE orders SET").
		WithArgs(order.ID, order.CurrentSlippageBps, string(order.State),
			order.FillAttempts, order.LastSlippageUpdateAt, order.ExternalOrderHandle).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewOrderRepository(NewMockPoolAdapter(mockPool))
	assert.Error(t, repo.UpdateOrder(context.Background(), order))
}

func TestAppendSlippageHistory(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	entry := models.SlippageHistoryEntry{
		Timestamp:       time.Now(),
		SlippageBps:     70,
		VolatilityScore: 150,
		BridgeDelaySec:  900,
	}
	mockPool.ExpectExec("INSERT INTO order_slippage_history").
		WithArgs("order-1", entry.Timestamp, entry.SlippageBps, entry.VolatilityScore, entry.BridgeDelaySec).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewOrderRepository(NewMockPoolAdapter(mockPool))
	require.NoError(t, repo.AppendSlippageHistory(context.Background(), "order-1", entry))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestAppendPerformanceRecord(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	rec := models.PerformanceRecord{
		Timestamp:         time.Now(),
		PairKey:           "near/usdc",
		SlippageUsedBps:   50,
		ActualSlippageBps: 45,
		Success:           true,
		VolatilityScore:   150,
	}
	mockPool.ExpectExec("INSERT INTO performance_records").
		WithArgs(rec.PairKey, rec.Timestamp, rec.SlippageUsedBps, rec.ActualSlippageBps, rec.Success, rec.VolatilityScore).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewOrderRepository(NewMockPoolAdapter(mockPool))
	require.NoError(t, repo.AppendPerformanceRecord(context.Background(), rec))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestGetOrder(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	order := testOrder()
	rows := pgxmock.NewRows([]string{
		"id", "owner", "asset_in", "asset_out", "amount_in", "base_price",
		"current_slippage_bps", "max_slippage_deviation_bps", "target_chain_id", "state",
		"fill_attempts", "created_at", "last_slippage_update_at", "external_order_handle",
	}).AddRow(
		order.ID, order.Owner, order.AssetIn, order.AssetOut, order.AmountIn, order.BasePrice,
		order.CurrentSlippageBps, order.MaxSlippageDeviationBps, order.TargetChainID, string(order.State),
		order.FillAttempts, order.CreatedAt, order.LastSlippageUpdateAt, order.ExternalOrderHandle,
	)
	mockPool.ExpectQuery("FROM orders WHERE id").
		WithArgs(order.ID).
		WillReturnRows(rows)

	repo := NewOrderRepository(NewMockPoolAdapter(mockPool))
	got, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, models.OrderStateActive, got.State)
	assert.Equal(t, order.TargetChainID, got.TargetChainID)
	assert.True(t, got.AmountIn.Equal(order.AmountIn))
}
