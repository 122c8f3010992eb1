package services

import "errors"

// Validation errors: rejected before any state mutation.
var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidPrice    = errors.New("base price must be positive")
	ErrUnknownAsset    = errors.New("asset identifier is empty")
	ErrInvalidOwner    = errors.New("owner is required")
	ErrInvalidHashlock = errors.New("hashlock must be a 64-character hex string")
	ErrInvalidDeadline = errors.New("timelock deadline must be in the future")
	ErrInvalidWeight   = errors.New("source weight out of allowed range")
	ErrDuplicateSource = errors.New("source already registered")
	ErrUnknownSource   = errors.New("source not registered")
	ErrInvalidSlippage = errors.New("slippage parameters out of range")
)

// Precondition and state errors.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderTerminal      = errors.New("order is in a terminal state")
	ErrOrderNotActive     = errors.New("order is not active")
	ErrOrderNotExpired    = errors.New("order has not exceeded its maximum age")
	ErrRefreshTooSoon     = errors.New("slippage refresh interval has not elapsed")
	ErrAttemptLimit       = errors.New("fill attempt limit reached")
	ErrNotAuthorized      = errors.New("caller is not authorized")
	ErrSwapNotFound       = errors.New("swap not found")
	ErrSwapNotOpen        = errors.New("swap is not open")
	ErrSwapExpired        = errors.New("timelock has passed")
	ErrTimelockNotExpired = errors.New("timelock has not passed")
	ErrInvalidPreimage    = errors.New("preimage does not match hashlock")
	ErrHashlockInUse      = errors.New("hashlock already has a swap record")
)
