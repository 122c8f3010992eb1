package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/models"
)

// VolatilityProvider is the uniform contract for external volatility sources.
// An unreachable provider must surface as zero confidence, never as a fatal
// error to aggregation.
type VolatilityProvider interface {
	Volatility(ctx context.Context, assetA, assetB string) (score int64, confidence int64, err error)
}

// LiquidityProvider returns cached liquidity depth for a pair. Zero depth
// means "insufficient data", not an error.
type LiquidityProvider interface {
	Depth(ctx context.Context, pairKey string) (int64, error)
}

// OptimalSlippageSource exposes learned optimal slippage by volatility and
// order-size regime, with a 0-100 confidence in the estimate.
type OptimalSlippageSource interface {
	OptimizeSlippage(volatilityScore, orderSize int64) (optimalBps int64, confidence int64)
}

// PerformanceStore persists performance samples. Persistence is best effort;
// failures are logged by the caller and never block the in-memory update.
type PerformanceStore interface {
	AppendPerformanceRecord(ctx context.Context, rec models.PerformanceRecord) error
}

// MatchingVenue is the external order-matching venue. The handle is opaque.
type MatchingVenue interface {
	Submit(ctx context.Context, order *models.Order) (handle string, err error)
	Cancel(ctx context.Context, handle string) error
}

// Ledger locks, releases and refunds balances on behalf of the lifecycle
// manager and the swap coordinator.
type Ledger interface {
	Lock(ctx context.Context, account, asset string, amount decimal.Decimal) error
	Release(ctx context.Context, account, asset string, amount decimal.Decimal) error
	Refund(ctx context.Context, account, asset string, amount decimal.Decimal) error
}

// PushProvider is a VolatilityProvider fed by an external relay pushing
// measurements over the API. A measurement older than maxAge is reported
// with zero confidence so the aggregator penalizes the source.
type PushProvider struct {
	mu     sync.RWMutex
	values map[string]pushedMeasurement
	maxAge time.Duration
}

type pushedMeasurement struct {
	score      int64
	confidence int64
	receivedAt time.Time
}

func NewPushProvider(maxAge time.Duration) *PushProvider {
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	return &PushProvider{
		values: make(map[string]pushedMeasurement),
		maxAge: maxAge,
	}
}

// Push records the latest measurement for a pair.
func (p *PushProvider) Push(assetA, assetB string, score, confidence int64) {
	key := models.PairKey(assetA, assetB)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = pushedMeasurement{score: score, confidence: confidence, receivedAt: time.Now()}
}

func (p *PushProvider) Volatility(_ context.Context, assetA, assetB string) (int64, int64, error) {
	key := models.PairKey(assetA, assetB)
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.values[key]
	if !ok || time.Since(m.receivedAt) > p.maxAge {
		return 0, 0, nil
	}
	return m.score, m.confidence, nil
}

// MemoryLedger is an in-memory Ledger for development and tests. Locked
// amounts are tracked per account/asset so refunds can be asserted against.
type MemoryLedger struct {
	mu     sync.Mutex
	locked map[string]decimal.Decimal
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{locked: make(map[string]decimal.Decimal)}
}

func ledgerKey(account, asset string) string {
	return account + ":" + asset
}

func (l *MemoryLedger) Lock(_ context.Context, account, asset string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(account, asset)
	l.locked[key] = l.locked[key].Add(amount)
	return nil
}

func (l *MemoryLedger) Release(_ context.Context, account, asset string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (l *MemoryLedger) Refund(_ context.Context, account, asset string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(account, asset)
	l.locked[key] = l.locked[key].Sub(amount)
	return nil
}

// Locked returns the currently locked amount for an account/asset pair.
func (l *MemoryLedger) Locked(account, asset string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked[ledgerKey(account, asset)]
}

// LogVenue is a MatchingVenue that only logs submissions. Used when no real
// venue integration is configured.
type LogVenue struct {
	logger *logrus.Logger
}

func NewLogVenue(logger *logrus.Logger) *LogVenue {
	return &LogVenue{logger: logger}
}

func (v *LogVenue) Submit(_ context.Context, order *models.Order) (string, error) {
	handle := uuid.New().String()
	v.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"handle":   handle,
		"asset_in": order.AssetIn,
	}).Info("Order submitted to venue")
	return handle, nil
}

func (v *LogVenue) Cancel(_ context.Context, handle string) error {
	v.logger.WithField("handle", handle).Info("Venue order cancelled")
	return nil
}
