package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/config"
	"github.com/adaptifi/swapcore/internal/models"
)

// Typical bridge finality delays in seconds, keyed by target chain.
const (
	defaultBridgeDelaySec  = 900
	polygonBridgeDelaySec  = 300
	fallbackBridgeDelaySec = 1800
)

// Per-update slippage clamp used when a swap was opened without its own
// deviation budget.
const defaultSwapDeviationBps = 100

// AtomicSwapCoordinator runs the hashlock/timelock protocol linking an order
// on one ledger to a claim or refund on another. It keeps no dependency on
// the lifecycle manager's state.
type AtomicSwapCoordinator struct {
	cfg    config.SwapsConfig
	ledger Ledger
	logger *logrus.Logger

	now func() time.Time

	mu    sync.RWMutex
	swaps map[string]*swapEntry
}

type swapEntry struct {
	mu   sync.Mutex
	swap *models.CrossChainSwap
}

func NewAtomicSwapCoordinator(cfg config.SwapsConfig, ledger Ledger, logger *logrus.Logger) *AtomicSwapCoordinator {
	return &AtomicSwapCoordinator{
		cfg:    cfg,
		ledger: ledger,
		logger: logger,
		now:    time.Now,
		swaps:  make(map[string]*swapEntry),
	}
}

// HashPreimage returns the lowercase hex sha256 commitment for a preimage.
func HashPreimage(preimage string) string {
	sum := sha256.Sum256([]byte(preimage))
	return hex.EncodeToString(sum[:])
}

// OpenSwap creates a swap record and locks the outgoing amount. A hashlock
// that already has a record is rejected, whatever its state.
func (c *AtomicSwapCoordinator) OpenSwap(ctx context.Context, req models.OpenSwapRequest) (*models.CrossChainSwap, error) {
	hashlock := strings.ToLower(req.Hashlock)
	if len(hashlock) != 64 {
		return nil, ErrInvalidHashlock
	}
	if _, err := hex.DecodeString(hashlock); err != nil {
		return nil, ErrInvalidHashlock
	}
	if req.AmountOut.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.AssetOut == "" {
		return nil, ErrUnknownAsset
	}
	if req.Depositor == "" {
		return nil, ErrInvalidOwner
	}

	now := c.now()
	deadline := req.TimelockDeadline
	if deadline.IsZero() {
		deadline = now.Add(time.Duration(c.cfg.DefaultTimelockSec) * time.Second)
	}
	if !deadline.After(now) {
		return nil, ErrInvalidDeadline
	}

	c.mu.Lock()
	if _, exists := c.swaps[hashlock]; exists {
		c.mu.Unlock()
		return nil, ErrHashlockInUse
	}
	// Reserve the hashlock before the ledger call so a concurrent open of
	// the same hashlock cannot double-lock.
	entry := &swapEntry{}
	c.swaps[hashlock] = entry
	c.mu.Unlock()

	if err := c.ledger.Lock(ctx, req.Depositor, req.AssetOut, req.AmountOut); err != nil {
		c.mu.Lock()
		delete(c.swaps, hashlock)
		c.mu.Unlock()
		return nil, err
	}

	deviation := req.MaxSlippageDeviationBps
	if deviation <= 0 {
		deviation = defaultSwapDeviationBps
	}

	entry.mu.Lock()
	entry.swap = &models.CrossChainSwap{
		ID:                      uuid.New().String(),
		CounterpartOrderRef:     req.CounterpartOrderRef,
		AssetOut:                req.AssetOut,
		AmountOut:               req.AmountOut,
		Depositor:               req.Depositor,
		Hashlock:                hashlock,
		TimelockDeadline:        deadline,
		SlippageBps:             req.SlippageBps,
		MaxSlippageDeviationBps: deviation,
		TargetChainID:           req.TargetChainID,
		State:                   models.SwapStateOpen,
		CreatedAt:               now,
	}
	swap := *entry.swap
	entry.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"swap_id":  swap.ID,
		"hashlock": hashlock,
		"deadline": deadline,
	}).Info("Swap opened")
	return &swap, nil
}

// Claim releases the locked amount, less the slippage allowance current for
// the swap, to the recipient. Valid only while the swap is open, the
// timelock has not passed and the preimage hashes to the hashlock.
func (c *AtomicSwapCoordinator) Claim(ctx context.Context, hashlock, preimage, recipient string) (*models.CrossChainSwap, error) {
	entry, err := c.entry(hashlock)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	swap := entry.swap

	if swap.State != models.SwapStateOpen {
		return nil, ErrSwapNotOpen
	}
	if !c.now().Before(swap.TimelockDeadline) {
		return nil, ErrSwapExpired
	}
	if HashPreimage(preimage) != swap.Hashlock {
		return nil, ErrInvalidPreimage
	}
	if recipient == "" {
		return nil, ErrInvalidOwner
	}

	allowance := swap.AmountOut.Mul(decimal.NewFromInt(swap.SlippageBps)).Div(decimal.NewFromInt(10000))
	payout := swap.AmountOut.Sub(allowance)
	if err := c.ledger.Release(ctx, recipient, swap.AssetOut, payout); err != nil {
		return nil, err
	}

	swap.State = models.SwapStateClaimed
	swap.Recipient = recipient

	c.logger.WithFields(logrus.Fields{
		"swap_id":   swap.ID,
		"recipient": recipient,
		"payout":    payout.String(),
	}).Info("Swap claimed")
	out := *swap
	return &out, nil
}

// Refund returns the locked amount to the depositor once the timelock has
// passed. Valid only while the swap is open.
func (c *AtomicSwapCoordinator) Refund(ctx context.Context, hashlock string) (*models.CrossChainSwap, error) {
	entry, err := c.entry(hashlock)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	swap := entry.swap

	if swap.State != models.SwapStateOpen {
		return nil, ErrSwapNotOpen
	}
	if c.now().Before(swap.TimelockDeadline) {
		return nil, ErrTimelockNotExpired
	}

	if err := c.ledger.Refund(ctx, swap.Depositor, swap.AssetOut, swap.AmountOut); err != nil {
		return nil, err
	}

	swap.State = models.SwapStateRefunded

	c.logger.WithFields(logrus.Fields{
		"swap_id":   swap.ID,
		"depositor": swap.Depositor,
	}).Info("Swap refunded")
	out := *swap
	return &out, nil
}

// UpdateSwapSlippage lets the bridge relay adjust a swap's slippage up to
// claim or refund time. The change per update is clamped to the swap's
// deviation budget, mirroring the order refresh discipline.
func (c *AtomicSwapCoordinator) UpdateSwapSlippage(_ context.Context, hashlock string, newSlippageBps int64, caller string) (*models.CrossChainSwap, error) {
	if caller != c.cfg.RelayAccount {
		return nil, ErrNotAuthorized
	}
	if newSlippageBps < 0 {
		return nil, ErrInvalidSlippage
	}
	entry, err := c.entry(hashlock)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	swap := entry.swap

	if swap.State != models.SwapStateOpen {
		return nil, ErrSwapNotOpen
	}

	old := swap.SlippageBps
	swap.SlippageBps = clampDelta(old, newSlippageBps, swap.MaxSlippageDeviationBps)

	c.logger.WithFields(logrus.Fields{
		"swap_id": swap.ID,
		"old_bps": old,
		"new_bps": swap.SlippageBps,
	}).Info("Swap slippage updated by relay")
	out := *swap
	return &out, nil
}

// GetSwap returns a copy of the swap record for a hashlock.
func (c *AtomicSwapCoordinator) GetSwap(hashlock string) (*models.CrossChainSwap, error) {
	entry, err := c.entry(hashlock)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := *entry.swap
	return &out, nil
}

// EstimateBridgeDelay returns the expected bridge finality delay in seconds
// for a target chain.
func EstimateBridgeDelay(targetChainID int64) int64 {
	switch targetChainID {
	case 1:
		return defaultBridgeDelaySec
	case 137:
		return polygonBridgeDelaySec
	default:
		return fallbackBridgeDelaySec
	}
}

func (c *AtomicSwapCoordinator) entry(hashlock string) (*swapEntry, error) {
	key := strings.ToLower(hashlock)
	c.mu.RLock()
	entry, ok := c.swaps[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrSwapNotFound
	}
	entry.mu.Lock()
	ready := entry.swap != nil
	entry.mu.Unlock()
	if !ready {
		return nil, ErrSwapNotFound
	}
	return entry, nil
}
