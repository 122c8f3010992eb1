package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState tracks the order lifecycle. Terminal states are never left.
type OrderState string

const (
	OrderStateActive    OrderState = "active"
	OrderStateRetrying  OrderState = "retrying"
	OrderStateFilled    OrderState = "filled"
	OrderStateCancelled OrderState = "cancelled"
	OrderStateExpired   OrderState = "expired"
)

// Terminal reports whether the state admits no further transitions.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFilled, OrderStateCancelled, OrderStateExpired:
		return true
	}
	return false
}

// Order is a resting trade order with adaptive slippage. Owner and asset
// fields are immutable after creation; slippage, attempts, state and the
// venue handle are the only mutable fields.
type Order struct {
	ID                      string          `json:"id" db:"id"`
	Owner                   string          `json:"owner" db:"owner"`
	AssetIn                 string          `json:"asset_in" db:"asset_in"`
	AssetOut                string          `json:"asset_out" db:"asset_out"`
	AmountIn                decimal.Decimal `json:"amount_in" db:"amount_in"`
	BasePrice               decimal.Decimal `json:"base_price" db:"base_price"`
	CurrentSlippageBps      int64           `json:"current_slippage_bps" db:"current_slippage_bps"`
	MaxSlippageDeviationBps int64           `json:"max_slippage_deviation_bps" db:"max_slippage_deviation_bps"`
	TargetChainID           int64           `json:"target_chain_id" db:"target_chain_id"`
	State                   OrderState      `json:"state" db:"state"`
	FillAttempts            int64           `json:"fill_attempts" db:"fill_attempts"`
	CreatedAt               time.Time       `json:"created_at" db:"created_at"`
	LastSlippageUpdateAt    time.Time       `json:"last_slippage_update_at" db:"last_slippage_update_at"`
	ExternalOrderHandle     string          `json:"external_order_handle,omitempty" db:"external_order_handle"`
}

// SlippageHistoryEntry records one slippage change on an order.
type SlippageHistoryEntry struct {
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	SlippageBps     int64     `json:"slippage_bps" db:"slippage_bps"`
	VolatilityScore int64     `json:"volatility_score" db:"volatility_score"`
	BridgeDelaySec  int64     `json:"bridge_delay_sec" db:"bridge_delay_sec"`
}

// CreateOrderRequest is the API payload for order creation.
type CreateOrderRequest struct {
	Owner                   string          `json:"owner" binding:"required"`
	AssetIn                 string          `json:"asset_in" binding:"required"`
	AssetOut                string          `json:"asset_out" binding:"required"`
	AmountIn                decimal.Decimal `json:"amount_in"`
	BasePrice               decimal.Decimal `json:"base_price"`
	MaxSlippageDeviationBps int64           `json:"max_slippage_deviation_bps"`
	TargetChainID           int64           `json:"target_chain_id"`
}

// OrderResponse is the API view of an order.
type OrderResponse struct {
	Order    *Order `json:"order"`
	Fillable bool   `json:"fillable"`
}
