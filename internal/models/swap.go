package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwapState tracks the hashlock/timelock protocol. Transitions are monotone:
// Open to Claimed or Open to Refunded, never both and never back.
type SwapState string

const (
	SwapStateOpen     SwapState = "open"
	SwapStateClaimed  SwapState = "claimed"
	SwapStateRefunded SwapState = "refunded"
)

// CrossChainSwap links an order on one ledger to a claim or refund on
// another. The hashlock is immutable for the life of the record.
type CrossChainSwap struct {
	ID                      string          `json:"id" db:"id"`
	CounterpartOrderRef     string          `json:"counterpart_order_ref" db:"counterpart_order_ref"`
	AssetOut                string          `json:"asset_out" db:"asset_out"`
	AmountOut               decimal.Decimal `json:"amount_out" db:"amount_out"`
	Depositor               string          `json:"depositor" db:"depositor"`
	Recipient               string          `json:"recipient,omitempty" db:"recipient"`
	Hashlock                string          `json:"hashlock" db:"hashlock"`
	TimelockDeadline        time.Time       `json:"timelock_deadline" db:"timelock_deadline"`
	SlippageBps             int64           `json:"slippage_bps" db:"slippage_bps"`
	MaxSlippageDeviationBps int64           `json:"max_slippage_deviation_bps" db:"max_slippage_deviation_bps"`
	TargetChainID           int64           `json:"target_chain_id" db:"target_chain_id"`
	State                   SwapState       `json:"state" db:"state"`
	CreatedAt               time.Time       `json:"created_at" db:"created_at"`
}

// OpenSwapRequest is the API payload for opening a swap.
type OpenSwapRequest struct {
	CounterpartOrderRef     string          `json:"counterpart_order_ref" binding:"required"`
	AssetOut                string          `json:"asset_out" binding:"required"`
	AmountOut               decimal.Decimal `json:"amount_out"`
	Depositor               string          `json:"depositor" binding:"required"`
	Hashlock                string          `json:"hashlock" binding:"required"`
	TimelockDeadline        time.Time       `json:"timelock_deadline"`
	SlippageBps             int64           `json:"slippage_bps"`
	MaxSlippageDeviationBps int64           `json:"max_slippage_deviation_bps"`
	TargetChainID           int64           `json:"target_chain_id"`
}

// ClaimSwapRequest carries the preimage revealed at claim time.
type ClaimSwapRequest struct {
	Preimage  string `json:"preimage" binding:"required"`
	Recipient string `json:"recipient" binding:"required"`
}
