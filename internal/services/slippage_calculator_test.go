package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptifi/swapcore/internal/config"
	"github.com/adaptifi/swapcore/internal/timeseries"
)

func testSlippageConfig() config.SlippageConfig {
	return config.SlippageConfig{
		MinBps:                5,
		MaxBps:                1000,
		DefaultBaseBps:        50,
		VolatilityMultiplier:  100,
		EMAAlphaBps:           2000,
		StdDevWindow:          20,
		PriceHistoryCapacity:  50,
		HighLiquidityRatioPct: 10,
		MidLiquidityRatioPct:  1,
	}
}

type stubDepth struct {
	depth int64
	err   error
}

func (d *stubDepth) Depth(_ context.Context, _ string) (int64, error) {
	return d.depth, d.err
}

type stubOptimal struct {
	optimal    int64
	confidence int64
}

func (s *stubOptimal) OptimizeSlippage(_, _ int64) (int64, int64) {
	return s.optimal, s.confidence
}

func newCalculator(t *testing.T, slip config.SlippageConfig, vol config.VolatilityConfig, depth LiquidityProvider) *SlippageCalculator {
	t.Helper()
	agg := NewVolatilityAggregator(vol, testLogger())
	return NewSlippageCalculator(slip, agg, depth, nil, testLogger())
}

func TestCalculateSlippageBaseVolatilityLiquidity(t *testing.T) {
	// 20 bps base, volatility score yielding a 30 bps adjustment, zero
	// cached liquidity: 50 bps before clamping.
	vol := testVolatilityConfig()
	vol.DefaultVolatility = 3000 // 3000 x 100 / 10000 = 30 bps
	calc := newCalculator(t, testSlippageConfig(), vol, &stubDepth{depth: 0})
	require.NoError(t, calc.SetAssetBase("near", 20))
	require.NoError(t, calc.SetAssetBase("usdc", 20))

	got, err := calc.CalculateSlippage(context.Background(), "near", "usdc", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got)
}

func TestCalculateSlippageLiquiditySteps(t *testing.T) {
	vol := testVolatilityConfig()
	vol.DefaultVolatility = 0
	depth := &stubDepth{depth: 1000}
	calc := newCalculator(t, testSlippageConfig(), vol, depth)

	tests := []struct {
		name      string
		orderSize int64
		want      int64
	}{
		{"large order ratio", 200, 50 + largeOrderLiquidityAdjBps},
		{"moderate order ratio", 15, 50 + moderateOrderLiquidityAdjBps},
		{"negligible order ratio", 5, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.CalculateSlippage(context.Background(), "near", "usdc", tt.orderSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateSlippageClamped(t *testing.T) {
	slip := testSlippageConfig()
	slip.MaxBps = 200
	slip.DefaultBaseBps = 100
	vol := testVolatilityConfig()
	vol.DefaultVolatility = 50000 // would add 500 bps
	calc := newCalculator(t, slip, vol, &stubDepth{depth: 0})

	got, err := calc.CalculateSlippage(context.Background(), "near", "usdc", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got)
}

func TestCalculateSlippageResultWithinBounds(t *testing.T) {
	calc := newCalculator(t, testSlippageConfig(), testVolatilityConfig(), &stubDepth{depth: 100})
	for _, size := range []int64{0, 1, 50, 500, 50000} {
		got, err := calc.CalculateSlippage(context.Background(), "near", "usdc", size)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, int64(5))
		assert.LessOrEqual(t, got, int64(1000))
	}
}

func TestUpdateVolatilityDataEMA(t *testing.T) {
	calc := newCalculator(t, testSlippageConfig(), testVolatilityConfig(), &stubDepth{depth: 0})

	calc.UpdateVolatilityData("near", "usdc", 100, 10)
	assert.Equal(t, int64(100), calc.EMA("near", "usdc"))

	// alpha 0.2: 200*0.2 + 100*0.8 = 120
	calc.UpdateVolatilityData("near", "usdc", 200, 10)
	assert.Equal(t, int64(120), calc.EMA("near", "usdc"))
}

func TestInternalHistoryDrivesVolatilityScore(t *testing.T) {
	vol := testVolatilityConfig()
	vol.DefaultVolatility = 3000
	calc := newCalculator(t, testSlippageConfig(), vol, &stubDepth{depth: 0})

	// Constant retained prices: zero internal volatility overrides the
	// aggregator's fallback score.
	calc.UpdateVolatilityData("near", "usdc", 100, 10)
	calc.UpdateVolatilityData("near", "usdc", 100, 10)
	calc.UpdateVolatilityData("near", "usdc", 100, 10)

	got, err := calc.CalculateSlippage(context.Background(), "near", "usdc", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got)
}

func TestLearnedOptimalBlendRequiresConfidence(t *testing.T) {
	vol := testVolatilityConfig()
	vol.DefaultVolatility = 0
	agg := NewVolatilityAggregator(vol, testLogger())
	src := &stubOptimal{optimal: 400, confidence: 100}
	calc := NewSlippageCalculator(testSlippageConfig(), agg, &stubDepth{depth: 0}, src, testLogger())

	// Full confidence: the learned value replaces the computed one.
	got, err := calc.CalculateSlippage(context.Background(), "near", "usdc", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(400), got)

	// Below the floor the learned value is ignored entirely.
	src.confidence = 49
	got, err = calc.CalculateSlippage(context.Background(), "near", "usdc", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got)

	// At the floor the blend is proportional: (50*50 + 400*50) / 100.
	src.confidence = 50
	got, err = calc.CalculateSlippage(context.Background(), "near", "usdc", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(225), got)
}

func TestLearnedOptimalFeedsCalculation(t *testing.T) {
	vol := testVolatilityConfig()
	vol.DefaultVolatility = 0
	agg := NewVolatilityAggregator(vol, testLogger())
	opt := NewSlippageOptimizer(testOptimizerConfig(), nil, testLogger())
	calc := NewSlippageCalculator(testSlippageConfig(), agg, &stubDepth{depth: 0}, opt, testLogger())

	before, err := calc.CalculateSlippage(context.Background(), "near", "usdc", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(50), before)

	// Low slippage keeps failing, higher slippage keeps filling.
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		opt.RecordPerformance(ctx, "near", "usdc", 40, 40, false, 50, 10)
		opt.RecordPerformance(ctx, "near", "usdc", 80, 80, true, 50, 10)
	}
	require.Positive(t, opt.PerformGradientDescent())

	learned, confidence := opt.OptimizeSlippage(50, 10)
	require.Equal(t, int64(100), confidence)
	require.NotEqual(t, before, learned)

	after, err := calc.CalculateSlippage(context.Background(), "near", "usdc", 10)
	require.NoError(t, err)
	assert.Equal(t, learned, after)
}

func TestPriceFeedPublishesPairComponents(t *testing.T) {
	calc := newCalculator(t, testSlippageConfig(), testVolatilityConfig(), &stubDepth{depth: 0})

	calc.UpdateVolatilityData("near", "usdc", 100, 10)
	calc.UpdateVolatilityData("near", "usdc", 110, 30)
	calc.UpdateVolatilityData("near", "usdc", 90, 20)

	m := calc.aggregator.GetVolatility("near", "usdc")
	assert.Equal(t, timeseries.RelativeStdDev([]int64{100, 110, 90}), m.PriceVolatility)
	assert.Equal(t, timeseries.RelativeStdDev([]int64{10, 30, 20}), m.VolumeVolatility)
	assert.Positive(t, m.PriceVolatility)
	assert.Positive(t, m.VolumeVolatility)
}

func TestSetSlippageParamsValidation(t *testing.T) {
	calc := newCalculator(t, testSlippageConfig(), testVolatilityConfig(), &stubDepth{depth: 0})

	bad := testSlippageConfig()
	bad.MinBps = 500
	bad.MaxBps = 100
	assert.ErrorIs(t, calc.SetSlippageParams(bad), ErrInvalidSlippage)

	good := testSlippageConfig()
	good.DefaultBaseBps = 80
	require.NoError(t, calc.SetSlippageParams(good))
	assert.Equal(t, int64(80), calc.Params().DefaultBaseBps)
}

func TestSetAssetBaseValidation(t *testing.T) {
	calc := newCalculator(t, testSlippageConfig(), testVolatilityConfig(), &stubDepth{depth: 0})

	assert.ErrorIs(t, calc.SetAssetBase("", 50), ErrUnknownAsset)
	assert.ErrorIs(t, calc.SetAssetBase("near", 2), ErrInvalidSlippage)
	assert.ErrorIs(t, calc.SetAssetBase("near", 5000), ErrInvalidSlippage)
	require.NoError(t, calc.SetAssetBase("near", 30))
}

func TestPriceHistoryBounded(t *testing.T) {
	slip := testSlippageConfig()
	slip.PriceHistoryCapacity = 10
	calc := newCalculator(t, slip, testVolatilityConfig(), &stubDepth{depth: 0})

	for i := int64(0); i < 100; i++ {
		calc.UpdateVolatilityData("near", "usdc", 100+i, 1)
	}
	h := calc.history("near/usdc")
	assert.Equal(t, 10, h.points.Len())
	last, ok := h.points.Last()
	require.True(t, ok)
	assert.Equal(t, int64(199), last.Price)
}
