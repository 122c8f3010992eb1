package services

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptifi/swapcore/internal/config"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testVolatilityConfig() config.VolatilityConfig {
	return config.VolatilityConfig{
		ConfidenceFloor:      50,
		ReliabilityDecrement: 10,
		ReliabilityFloor:     30,
		DefaultVolatility:    100,
		FallbackConfidence:   25,
		HistoryCapacity:      5,
		MinSourceWeight:      1,
		MaxSourceWeight:      100,
	}
}

type stubProvider struct {
	score      int64
	confidence int64
	err        error
	calls      int
}

func (p *stubProvider) Volatility(_ context.Context, _, _ string) (int64, int64, error) {
	p.calls++
	return p.score, p.confidence, p.err
}

func TestRegisterSourceValidation(t *testing.T) {
	a := NewVolatilityAggregator(testVolatilityConfig(), testLogger())

	require.NoError(t, a.RegisterSource("oracle-a", 10, &stubProvider{}))
	assert.ErrorIs(t, a.RegisterSource("oracle-a", 10, &stubProvider{}), ErrDuplicateSource)
	assert.ErrorIs(t, a.RegisterSource("oracle-b", 0, &stubProvider{}), ErrInvalidWeight)
	assert.ErrorIs(t, a.RegisterSource("oracle-c", 500, &stubProvider{}), ErrInvalidWeight)
	assert.Equal(t, int64(10), a.TotalActiveWeight())
}

func TestUpdateVolatilityWeightedMean(t *testing.T) {
	a := NewVolatilityAggregator(testVolatilityConfig(), testLogger())
	require.NoError(t, a.RegisterSource("oracle-a", 10, &stubProvider{score: 100, confidence: 80}))
	require.NoError(t, a.RegisterSource("oracle-b", 10, &stubProvider{score: 200, confidence: 100}))

	metrics, err := a.UpdateVolatility(context.Background(), "near", "usdc")
	require.NoError(t, err)

	// Equal weight and reliability: plain mean.
	assert.Equal(t, int64(150), metrics.CompositeScore)
	assert.Equal(t, int64(90), metrics.Confidence)
}

func TestUpdateVolatilityFallback(t *testing.T) {
	a := NewVolatilityAggregator(testVolatilityConfig(), testLogger())
	require.NoError(t, a.RegisterSource("oracle-a", 10, &stubProvider{score: 0, confidence: 0}))

	metrics, err := a.UpdateVolatility(context.Background(), "near", "usdc")
	require.NoError(t, err)

	assert.Equal(t, int64(100), metrics.CompositeScore)
	assert.Equal(t, int64(25), metrics.Confidence)
}

func TestRecordPairComponents(t *testing.T) {
	a := NewVolatilityAggregator(testVolatilityConfig(), testLogger())

	a.RecordPairComponents("near", "usdc", 120, 80)

	m := a.GetVolatility("near", "usdc")
	assert.Equal(t, int64(120), m.PriceVolatility)
	assert.Equal(t, int64(80), m.VolumeVolatility)
	// No source-derived composite yet: fallback defaults apply.
	assert.Equal(t, int64(100), m.CompositeScore)
	assert.Equal(t, int64(25), m.Confidence)
}

func TestComponentsSurviveSourceRefresh(t *testing.T) {
	a := NewVolatilityAggregator(testVolatilityConfig(), testLogger())
	require.NoError(t, a.RegisterSource("oracle-a", 10, &stubProvider{score: 150, confidence: 80}))

	a.RecordPairComponents("near", "usdc", 120, 80)
	metrics, err := a.UpdateVolatility(context.Background(), "near", "usdc")
	require.NoError(t, err)

	assert.Equal(t, int64(150), metrics.CompositeScore)
	assert.Equal(t, int64(120), metrics.PriceVolatility)
	assert.Equal(t, int64(80), metrics.VolumeVolatility)
}

func TestUnreliableSourceDeactivated(t *testing.T) {
	a := NewVolatilityAggregator(testVolatilityConfig(), testLogger())
	bad := &stubProvider{score: 0, confidence: 0}
	good := &stubProvider{score: 300, confidence: 90}
	require.NoError(t, a.RegisterSource("flaky", 10, bad))
	require.NoError(t, a.RegisterSource("solid", 20, good))
	require.Equal(t, int64(30), a.TotalActiveWeight())

	// Reliability 100 drops by 10 per failed round; below 30 deactivates,
	// which takes 8 rounds.
	for i := 0; i < 8; i++ {
		_, err := a.UpdateVolatility(context.Background(), "near", "usdc")
		require.NoError(t, err)
	}

	var flakyActive bool
	for _, src := range a.Sources() {
		if src.ID == "flaky" {
			flakyActive = src.Active
			assert.Less(t, src.Reliability, int64(30))
		}
	}
	assert.False(t, flakyActive)
	assert.Equal(t, int64(20), a.TotalActiveWeight())

	// Deactivated source no longer queried or counted.
	calls := bad.calls
	metrics, err := a.UpdateVolatility(context.Background(), "near", "usdc")
	require.NoError(t, err)
	assert.Equal(t, calls, bad.calls)
	assert.Equal(t, int64(300), metrics.CompositeScore)
}

func TestErroringSourceTreatedAsSubFloor(t *testing.T) {
	a := NewVolatilityAggregator(testVolatilityConfig(), testLogger())
	require.NoError(t, a.RegisterSource("down", 10, &stubProvider{err: context.DeadlineExceeded}))
	require.NoError(t, a.RegisterSource("up", 10, &stubProvider{score: 120, confidence: 70}))

	metrics, err := a.UpdateVolatility(context.Background(), "near", "usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(120), metrics.CompositeScore)

	for _, src := range a.Sources() {
		if src.ID == "down" {
			assert.Equal(t, int64(90), src.Reliability)
		}
	}
}

func TestGetVolatilityIsPureRead(t *testing.T) {
	a := NewVolatilityAggregator(testVolatilityConfig(), testLogger())
	p := &stubProvider{score: 150, confidence: 80}
	require.NoError(t, a.RegisterSource("oracle-a", 10, p))

	// Never updated: fallback defaults, no provider calls.
	metrics := a.GetVolatility("near", "usdc")
	assert.Equal(t, int64(100), metrics.CompositeScore)
	assert.Equal(t, 0, p.calls)

	_, err := a.UpdateVolatility(context.Background(), "near", "usdc")
	require.NoError(t, err)
	calls := p.calls

	metrics = a.GetVolatility("near", "usdc")
	assert.Equal(t, int64(150), metrics.CompositeScore)
	assert.Equal(t, calls, p.calls)
}

func TestMeasurementHistoryBounded(t *testing.T) {
	a := NewVolatilityAggregator(testVolatilityConfig(), testLogger())
	require.NoError(t, a.RegisterSource("oracle-a", 10, &stubProvider{score: 100, confidence: 80}))

	for i := 0; i < 20; i++ {
		_, err := a.UpdateVolatility(context.Background(), "near", "usdc")
		require.NoError(t, err)
	}
	assert.Len(t, a.Measurements("near", "usdc"), 5)
}

func TestSetSourceWeightMaintainsActiveWeight(t *testing.T) {
	a := NewVolatilityAggregator(testVolatilityConfig(), testLogger())
	require.NoError(t, a.RegisterSource("oracle-a", 10, &stubProvider{score: 100, confidence: 80}))

	require.NoError(t, a.SetSourceWeight("oracle-a", 40))
	assert.Equal(t, int64(40), a.TotalActiveWeight())

	require.NoError(t, a.DeactivateSource("oracle-a"))
	assert.Equal(t, int64(0), a.TotalActiveWeight())

	assert.ErrorIs(t, a.SetSourceWeight("missing", 10), ErrUnknownSource)
}
