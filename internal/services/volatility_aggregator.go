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

// VolatilityAggregator owns the source registry and the per-pair volatility
// state. Refresh is caller-triggered: UpdateVolatility performs the fan-out
// and recomputation, GetVolatility is a pure read of the last result.
type VolatilityAggregator struct {
	cfg    config.VolatilityConfig
	logger *logrus.Logger

	mu                sync.RWMutex
	sources           map[string]*models.VolatilitySource
	providers         map[string]VolatilityProvider
	totalActiveWeight int64

	pairsMu sync.Mutex
	pairs   map[string]*pairVolatility
}

type pairVolatility struct {
	mu           sync.Mutex
	metrics      models.VolatilityMetrics
	measurements *timeseries.Ring[models.VolatilityMeasurement]
}

type sourceReading struct {
	sourceID    string
	weight      int64
	reliability int64
	score       int64
	confidence  int64
	failed      bool
}

func NewVolatilityAggregator(cfg config.VolatilityConfig, logger *logrus.Logger) *VolatilityAggregator {
	return &VolatilityAggregator{
		cfg:       cfg,
		logger:    logger,
		sources:   make(map[string]*models.VolatilitySource),
		providers: make(map[string]VolatilityProvider),
		pairs:     make(map[string]*pairVolatility),
	}
}

// RegisterSource adds a provider under an administrator-chosen id. Sources
// start fully reliable and active.
func (a *VolatilityAggregator) RegisterSource(id string, weight int64, provider VolatilityProvider) error {
	if id == "" || provider == nil {
		return ErrUnknownSource
	}
	if weight < a.cfg.MinSourceWeight || weight > a.cfg.MaxSourceWeight {
		return ErrInvalidWeight
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.sources[id]; exists {
		return ErrDuplicateSource
	}
	a.sources[id] = &models.VolatilitySource{
		ID:          id,
		Weight:      weight,
		Reliability: 100,
		Active:      true,
		LastUpdate:  time.Now(),
	}
	a.providers[id] = provider
	a.totalActiveWeight += weight

	a.logger.WithFields(logrus.Fields{
		"source_id": id,
		"weight":    weight,
	}).Info("Volatility source registered")
	return nil
}

// SetSourceWeight reconfigures a source's weight. Administrative only.
func (a *VolatilityAggregator) SetSourceWeight(id string, weight int64) error {
	if weight < a.cfg.MinSourceWeight || weight > a.cfg.MaxSourceWeight {
		return ErrInvalidWeight
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	src, ok := a.sources[id]
	if !ok {
		return ErrUnknownSource
	}
	if src.Active {
		a.totalActiveWeight += weight - src.Weight
	}
	src.Weight = weight
	return nil
}

// DeactivateSource removes a source from the active set without deleting it.
func (a *VolatilityAggregator) DeactivateSource(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	src, ok := a.sources[id]
	if !ok {
		return ErrUnknownSource
	}
	if src.Active {
		src.Active = false
		a.totalActiveWeight -= src.Weight
	}
	return nil
}

// Sources returns a snapshot of the registry.
func (a *VolatilityAggregator) Sources() []models.VolatilitySource {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.VolatilitySource, 0, len(a.sources))
	for _, src := range a.sources {
		out = append(out, *src)
	}
	return out
}

// TotalActiveWeight returns the incrementally maintained active weight sum.
func (a *VolatilityAggregator) TotalActiveWeight() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.totalActiveWeight
}

// UpdateVolatility queries every active source for the pair, combines the
// usable readings into a weighted mean and stores the result. Sources that
// error, return zero data or fall below the confidence floor are penalized;
// reliability under the floor deactivates the source.
func (a *VolatilityAggregator) UpdateVolatility(ctx context.Context, assetA, assetB string) (models.VolatilityMetrics, error) {
	key := models.PairKey(assetA, assetB)

	// All provider reads complete before any registry or pair mutation.
	readings := a.collectReadings(ctx, assetA, assetB)

	a.penalizeFailedSources(readings)

	var weightedSum, weightSum, confidenceSum int64
	var usable int64
	now := time.Now()
	pv := a.pairState(key)

	pv.mu.Lock()
	defer pv.mu.Unlock()

	for _, r := range readings {
		if r.failed {
			continue
		}
		w := r.weight * r.reliability / 100
		if w <= 0 {
			continue
		}
		weightedSum += r.score * w
		weightSum += w
		confidenceSum += r.confidence
		usable++
		pv.measurements.Append(models.VolatilityMeasurement{
			Timestamp:  now,
			Value:      r.score,
			Confidence: r.confidence,
			SourceID:   r.sourceID,
		})
	}

	if usable == 0 {
		pv.metrics = models.VolatilityMetrics{
			PairKey:          key,
			PriceVolatility:  pv.metrics.PriceVolatility,
			VolumeVolatility: pv.metrics.VolumeVolatility,
			CompositeScore:   a.cfg.DefaultVolatility,
			Confidence:       a.cfg.FallbackConfidence,
			LastUpdate:       now,
		}
		a.logger.WithField("pair", key).Warn("No usable volatility data, using fallback")
		return pv.metrics, nil
	}

	composite := weightedSum / weightSum
	// Observation-derived components survive a source refresh; the weighted
	// composite stands in for price volatility only until observations arrive.
	priceVol := pv.metrics.PriceVolatility
	if priceVol == 0 {
		priceVol = composite
	}
	pv.metrics = models.VolatilityMetrics{
		PairKey:          key,
		PriceVolatility:  priceVol,
		VolumeVolatility: pv.metrics.VolumeVolatility,
		CompositeScore:   composite,
		Confidence:       confidenceSum / usable,
		LastUpdate:       now,
	}
	return pv.metrics, nil
}

// RecordPairComponents stores per-pair price and volume volatility computed
// from retained price observations. A pair with no source-derived composite
// yet keeps the fallback composite and confidence.
func (a *VolatilityAggregator) RecordPairComponents(assetA, assetB string, priceVolatility, volumeVolatility int64) {
	key := models.PairKey(assetA, assetB)
	pv := a.pairState(key)
	pv.mu.Lock()
	defer pv.mu.Unlock()
	if pv.metrics.LastUpdate.IsZero() {
		pv.metrics.PairKey = key
		pv.metrics.CompositeScore = a.cfg.DefaultVolatility
		pv.metrics.Confidence = a.cfg.FallbackConfidence
	}
	pv.metrics.PriceVolatility = priceVolatility
	pv.metrics.VolumeVolatility = volumeVolatility
	pv.metrics.LastUpdate = time.Now()
}

// GetVolatility returns the last computed metrics without recomputation. A
// pair that was never updated reports the fallback defaults.
func (a *VolatilityAggregator) GetVolatility(assetA, assetB string) models.VolatilityMetrics {
	key := models.PairKey(assetA, assetB)
	pv := a.pairState(key)
	pv.mu.Lock()
	defer pv.mu.Unlock()
	if pv.metrics.LastUpdate.IsZero() {
		return models.VolatilityMetrics{
			PairKey:        key,
			CompositeScore: a.cfg.DefaultVolatility,
			Confidence:     a.cfg.FallbackConfidence,
		}
	}
	return pv.metrics
}

// Measurements returns the retained measurement history for a pair, oldest
// first.
func (a *VolatilityAggregator) Measurements(assetA, assetB string) []models.VolatilityMeasurement {
	pv := a.pairState(models.PairKey(assetA, assetB))
	pv.mu.Lock()
	defer pv.mu.Unlock()
	return pv.measurements.Snapshot()
}

func (a *VolatilityAggregator) collectReadings(ctx context.Context, assetA, assetB string) []sourceReading {
	a.mu.RLock()
	active := make([]sourceReading, 0, len(a.sources))
	providers := make([]VolatilityProvider, 0, len(a.sources))
	for id, src := range a.sources {
		if !src.Active {
			continue
		}
		active = append(active, sourceReading{
			sourceID:    id,
			weight:      src.Weight,
			reliability: src.Reliability,
		})
		providers = append(providers, a.providers[id])
	}
	a.mu.RUnlock()

	for i := range active {
		score, confidence, err := providers[i].Volatility(ctx, assetA, assetB)
		if err != nil || score <= 0 || confidence < a.cfg.ConfidenceFloor {
			active[i].failed = true
			continue
		}
		active[i].score = score
		active[i].confidence = confidence
	}
	return active
}

func (a *VolatilityAggregator) penalizeFailedSources(readings []sourceReading) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range readings {
		if !r.failed {
			if src, ok := a.sources[r.sourceID]; ok {
				src.LastUpdate = time.Now()
			}
			continue
		}
		src, ok := a.sources[r.sourceID]
		if !ok || !src.Active {
			continue
		}
		src.Reliability -= a.cfg.ReliabilityDecrement
		if src.Reliability < 0 {
			src.Reliability = 0
		}
		if src.Reliability < a.cfg.ReliabilityFloor {
			src.Active = false
			a.totalActiveWeight -= src.Weight
			a.logger.WithFields(logrus.Fields{
				"source_id":   src.ID,
				"reliability": src.Reliability,
			}).Warn("Volatility source deactivated for low reliability")
		}
	}
}

func (a *VolatilityAggregator) pairState(key string) *pairVolatility {
	a.pairsMu.Lock()
	defer a.pairsMu.Unlock()
	pv, ok := a.pairs[key]
	if !ok {
		pv = &pairVolatility{
			measurements: timeseries.NewRing[models.VolatilityMeasurement](a.cfg.HistoryCapacity),
		}
		a.pairs[key] = pv
	}
	return pv
}
