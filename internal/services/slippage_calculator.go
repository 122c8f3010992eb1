package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/config"
	"github.com/adaptifi/swapcore/internal/models"
	"github.com/adaptifi/swapcore/internal/timeseries"
)

// Liquidity step adjustments, in basis points. Applied on top of the base and
// volatility terms depending on how much of the cached depth the order
// consumes.
const (
	largeOrderLiquidityAdjBps    = 100
	moderateOrderLiquidityAdjBps = 25
)

// learnedBlendConfidenceFloor is the minimum optimizer confidence before
// learned values are blended into the computed slippage.
const learnedBlendConfidenceFloor = 50

// SlippageCalculator turns volatility and liquidity signals into a bounded
// slippage value in basis points. The volatility score is a basis-point-scale
// value in its own right; the adjustment is score x multiplier / 10000 and is
// never re-derived as a fraction of the EMA.
type SlippageCalculator struct {
	logger     *logrus.Logger
	aggregator *VolatilityAggregator
	liquidity  LiquidityProvider
	optimal    OptimalSlippageSource

	mu         sync.RWMutex
	params     config.SlippageConfig
	assetBases map[string]int64

	historyMu sync.Mutex
	histories map[string]*priceHistory
}

type priceHistory struct {
	mu     sync.Mutex
	points *timeseries.Ring[models.PricePoint]
	ema    int64
}

func NewSlippageCalculator(cfg config.SlippageConfig, aggregator *VolatilityAggregator, liquidity LiquidityProvider, optimal OptimalSlippageSource, logger *logrus.Logger) *SlippageCalculator {
	return &SlippageCalculator{
		logger:     logger,
		aggregator: aggregator,
		liquidity:  liquidity,
		optimal:    optimal,
		params:     cfg,
		assetBases: make(map[string]int64),
		histories:  make(map[string]*priceHistory),
	}
}

// SetSlippageParams replaces the protocol-wide slippage parameters after
// validation. Administrative only.
func (c *SlippageCalculator) SetSlippageParams(params config.SlippageConfig) error {
	if err := params.Validate(); err != nil {
		return ErrInvalidSlippage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = params
	c.logger.WithFields(logrus.Fields{
		"min_bps": params.MinBps,
		"max_bps": params.MaxBps,
	}).Info("Slippage parameters updated")
	return nil
}

// SetAssetBase configures the per-asset base slippage. Administrative only.
func (c *SlippageCalculator) SetAssetBase(asset string, baseBps int64) error {
	if asset == "" {
		return ErrUnknownAsset
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if baseBps < c.params.MinBps || baseBps > c.params.MaxBps {
		return ErrInvalidSlippage
	}
	c.assetBases[asset] = baseBps
	return nil
}

// Params returns the current protocol-wide parameters.
func (c *SlippageCalculator) Params() config.SlippageConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params
}

// UpdateVolatilityData appends a price observation for the pair, steps the
// EMA from the new point and republishes the pair's price and volume
// volatility to the aggregator. The append happens before the EMA is derived
// so repeated runs over the same feed reproduce identical state.
func (c *SlippageCalculator) UpdateVolatilityData(assetA, assetB string, price, volume int64) {
	if price <= 0 {
		return
	}
	h := c.history(models.PairKey(assetA, assetB))

	h.mu.Lock()
	h.points.Append(models.PricePoint{Timestamp: time.Now(), Price: price, Volume: volume})
	if h.points.Len() == 1 {
		h.ema = price
		h.mu.Unlock()
		return
	}
	c.mu.RLock()
	alpha := c.params.EMAAlphaBps
	window := c.params.StdDevWindow
	c.mu.RUnlock()
	h.ema = timeseries.EMAStep(price, h.ema, alpha)

	tail := h.points.Tail(window)
	prices := make([]int64, 0, len(tail))
	volumes := make([]int64, 0, len(tail))
	for _, p := range tail {
		prices = append(prices, p.Price)
		volumes = append(volumes, p.Volume)
	}
	h.mu.Unlock()

	c.aggregator.RecordPairComponents(assetA, assetB,
		timeseries.RelativeStdDev(prices), timeseries.RelativeStdDev(volumes))
}

// CalculateSlippage computes the slippage for one order: per-asset base plus
// a volatility adjustment plus a liquidity step, blended with the learned
// per-bucket optimal once its confidence is established, clamped into the
// configured bounds.
func (c *SlippageCalculator) CalculateSlippage(ctx context.Context, assetIn, assetOut string, orderSize int64) (int64, error) {
	c.mu.RLock()
	params := c.params
	base := c.baseFor(assetIn, assetOut)
	c.mu.RUnlock()

	score := c.volatilityScore(assetIn, assetOut)
	volatilityAdjustment := score * params.VolatilityMultiplier / 10000

	liquidityAdjustment := c.liquidityAdjustment(ctx, assetIn, assetOut, orderSize, params)

	slippage := base + volatilityAdjustment + liquidityAdjustment

	if c.optimal != nil {
		learned, confidence := c.optimal.OptimizeSlippage(score, orderSize)
		if confidence >= learnedBlendConfidenceFloor {
			slippage = (slippage*(100-confidence) + learned*confidence) / 100
		}
	}

	return clampBps(slippage, params.MinBps, params.MaxBps), nil
}

// baseFor picks the larger configured base of the two assets; when neither
// asset has one it falls back to the global default. Callers hold c.mu.
func (c *SlippageCalculator) baseFor(assetIn, assetOut string) int64 {
	var base int64
	var configured bool
	if b, ok := c.assetBases[assetIn]; ok {
		base, configured = b, true
	}
	if b, ok := c.assetBases[assetOut]; ok && (!configured || b > base) {
		base, configured = b, true
	}
	if !configured {
		return c.params.DefaultBaseBps
	}
	return base
}

// volatilityScore prefers the internally retained price history when enough
// points exist, computing a relative standard deviation over the most recent
// window; otherwise it reads the aggregator's last composite score.
func (c *SlippageCalculator) volatilityScore(assetA, assetB string) int64 {
	key := models.PairKey(assetA, assetB)
	h := c.history(key)

	h.mu.Lock()
	window := c.Params().StdDevWindow
	var prices []int64
	if h.points.Len() >= 2 {
		for _, p := range h.points.Tail(window) {
			prices = append(prices, p.Price)
		}
	}
	h.mu.Unlock()

	if len(prices) >= 2 {
		return timeseries.RelativeStdDev(prices)
	}
	return c.aggregator.GetVolatility(assetA, assetB).CompositeScore
}

// liquidityAdjustment is a step function of orderSize relative to cached
// depth. Zero or missing depth is insufficient data: the ratio step is
// skipped and the degradation is logged rather than priced in, keeping the
// result reproducible from the remaining signals.
func (c *SlippageCalculator) liquidityAdjustment(ctx context.Context, assetA, assetB string, orderSize int64, params config.SlippageConfig) int64 {
	if c.liquidity == nil || orderSize <= 0 {
		return 0
	}
	key := models.PairKey(assetA, assetB)
	depth, err := c.liquidity.Depth(ctx, key)
	if err != nil || depth <= 0 {
		c.logger.WithField("pair", key).Debug("Liquidity depth unavailable, skipping ratio adjustment")
		return 0
	}
	ratioPct := orderSize * 100 / depth
	switch {
	case ratioPct >= params.HighLiquidityRatioPct:
		return largeOrderLiquidityAdjBps
	case ratioPct >= params.MidLiquidityRatioPct:
		return moderateOrderLiquidityAdjBps
	default:
		return 0
	}
}

// EMA returns the current EMA for a pair, zero when no history exists.
func (c *SlippageCalculator) EMA(assetA, assetB string) int64 {
	h := c.history(models.PairKey(assetA, assetB))
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ema
}

func (c *SlippageCalculator) history(key string) *priceHistory {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	h, ok := c.histories[key]
	if !ok {
		c.mu.RLock()
		capacity := c.params.PriceHistoryCapacity
		c.mu.RUnlock()
		h = &priceHistory{points: timeseries.NewRing[models.PricePoint](capacity)}
		c.histories[key] = h
	}
	return h
}

func clampBps(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
