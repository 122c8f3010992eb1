package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/config"
	"github.com/adaptifi/swapcore/internal/models"
	"github.com/adaptifi/swapcore/internal/timeseries"
)

// Per-sample confidence weights. A successful fill teaches more than a
// failed one.
const (
	successConfidencePoints = 3
	failureConfidencePoints = 1
	defaultOptimalBps       = 50
)

// Volatility bucket width and order-size regime boundaries.
const (
	volatilityBucketWidth = 100
	smallOrderCeiling     = 1_000
	mediumOrderCeiling    = 100_000
)

type bucketKey struct {
	volatility int
	size       int
}

// SlippageOptimizer learns a per-bucket optimal slippage from observed
// outcomes. The "gradient" is a cohort comparison, not a derivative: samples
// in a bucket are split at their median slippage and the success rates of
// the two cohorts are compared. A positive difference means higher slippage
// has been filling more reliably, so the estimate moves up.
type SlippageOptimizer struct {
	cfg    config.OptimizerConfig
	logger *logrus.Logger
	store  PerformanceStore

	mu      sync.Mutex
	buckets map[bucketKey]*models.OptimizationBucket
	history map[string]*timeseries.Ring[models.PerformanceRecord]
}

func NewSlippageOptimizer(cfg config.OptimizerConfig, store PerformanceStore, logger *logrus.Logger) *SlippageOptimizer {
	return &SlippageOptimizer{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		buckets: make(map[bucketKey]*models.OptimizationBucket),
		history: make(map[string]*timeseries.Ring[models.PerformanceRecord]),
	}
}

// RecordPerformance ingests one (slippage used, outcome) sample. The bucket's
// running average error and confidence are updated incrementally; the sample
// is appended to the bounded per-pair history and persisted best effort.
func (o *SlippageOptimizer) RecordPerformance(ctx context.Context, assetA, assetB string, slippageUsed, actualSlippage int64, success bool, volatilityScore, orderSize int64) {
	key := models.PairKey(assetA, assetB)
	vb := o.volatilityBucket(volatilityScore)
	sb := sizeBucket(orderSize)

	record := models.PerformanceRecord{
		Timestamp:         time.Now(),
		PairKey:           key,
		SlippageUsedBps:   slippageUsed,
		ActualSlippageBps: actualSlippage,
		Success:           success,
		VolatilityScore:   volatilityScore,
		VolatilityBucket:  vb,
		SizeBucket:        sb,
	}

	o.mu.Lock()

	ring, ok := o.history[key]
	if !ok {
		ring = timeseries.NewRing[models.PerformanceRecord](o.cfg.HistoryCapacity)
		o.history[key] = ring
	}
	ring.Append(record)

	b := o.bucket(bucketKey{volatility: vb, size: sb})
	b.SampleCount++

	absErr := slippageUsed - actualSlippage
	if absErr < 0 {
		absErr = -absErr
	}
	// Incremental mean: avg += (x - avg) / n.
	b.RunningAverageError += (absErr - b.RunningAverageError) / b.SampleCount

	points := int64(failureConfidencePoints)
	if success {
		points = successConfidencePoints
	}
	saturation := o.cfg.ConfidenceSaturation * successConfidencePoints
	b.Confidence += points * 100 / saturation
	if b.Confidence > 100 {
		b.Confidence = 100
	}
	o.mu.Unlock()

	if o.store != nil {
		if err := o.store.AppendPerformanceRecord(ctx, record); err != nil {
			o.logger.WithError(err).WithField("pair", key).Warn("Failed to persist performance record")
		}
	}
}

// OptimizeSlippage returns the learned optimal slippage and confidence for
// the bucket matching the given volatility and order size.
func (o *SlippageOptimizer) OptimizeSlippage(volatilityScore, orderSize int64) (int64, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b := o.bucket(bucketKey{volatility: o.volatilityBucket(volatilityScore), size: sizeBucket(orderSize)})
	return b.CurrentOptimalSlippage, b.Confidence
}

// Buckets returns a snapshot of every materialized bucket.
func (o *SlippageOptimizer) Buckets() []models.OptimizationBucket {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.OptimizationBucket, 0, len(o.buckets))
	for _, b := range o.buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VolatilityBucket != out[j].VolatilityBucket {
			return out[i].VolatilityBucket < out[j].VolatilityBucket
		}
		return out[i].SizeBucket < out[j].SizeBucket
	})
	return out
}

// PerformGradientDescent runs one optimization pass over every bucket with
// enough samples and nudges each bucket's optimal slippage.
func (o *SlippageOptimizer) PerformGradientDescent() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	samplesByBucket := make(map[bucketKey][]models.PerformanceRecord)
	for _, ring := range o.history {
		for _, rec := range ring.Snapshot() {
			k := bucketKey{volatility: rec.VolatilityBucket, size: rec.SizeBucket}
			samplesByBucket[k] = append(samplesByBucket[k], rec)
		}
	}

	adjusted := 0
	for k, b := range o.buckets {
		if b.SampleCount < o.cfg.MinSamples {
			continue
		}
		samples := samplesByBucket[k]
		if int64(len(samples)) < o.cfg.MinSamples {
			continue
		}
		o.adjustBucket(b, samples)
		adjusted++
	}
	return adjusted
}

// adjustBucket applies the cohort gradient plus the error-correction term,
// blends with momentum and clamps into the global floor/ceiling. Caller
// holds o.mu.
func (o *SlippageOptimizer) adjustBucket(b *models.OptimizationBucket, samples []models.PerformanceRecord) {
	gradient := cohortGradient(samples)

	adjustment := gradient * b.LearningRate / 100
	if b.RunningAverageError > o.cfg.ErrorThresholdBps {
		// Persistent over- or under-shoot relative to realized slippage
		// always pushes the estimate down.
		adjustment -= b.LearningRate / 2
	}

	candidate := b.CurrentOptimalSlippage + adjustment
	blended := (b.CurrentOptimalSlippage*b.Momentum + candidate*(100-b.Momentum)) / 100

	if blended < o.cfg.FloorBps {
		blended = o.cfg.FloorBps
	}
	if blended > o.cfg.CeilingBps {
		blended = o.cfg.CeilingBps
	}

	old := b.CurrentOptimalSlippage
	b.CurrentOptimalSlippage = blended
	b.LastAdjusted = time.Now()

	o.logger.WithFields(logrus.Fields{
		"volatility_bucket": b.VolatilityBucket,
		"size_bucket":       b.SizeBucket,
		"gradient":          gradient,
		"old_optimal":       old,
		"new_optimal":       blended,
	}).Info("Optimization pass adjusted bucket")
}

// cohortGradient splits samples at their median slippage and returns the
// high cohort's success rate minus the low cohort's, in percent.
func cohortGradient(samples []models.PerformanceRecord) int64 {
	used := make([]int64, len(samples))
	for i, s := range samples {
		used[i] = s.SlippageUsedBps
	}
	sort.Slice(used, func(i, j int) bool { return used[i] < used[j] })
	median := used[len(used)/2]

	var lowTotal, lowSuccess, highTotal, highSuccess int64
	for _, s := range samples {
		if s.SlippageUsedBps < median {
			lowTotal++
			if s.Success {
				lowSuccess++
			}
		} else {
			highTotal++
			if s.Success {
				highSuccess++
			}
		}
	}
	if lowTotal == 0 || highTotal == 0 {
		return 0
	}
	return highSuccess*100/highTotal - lowSuccess*100/lowTotal
}

func (o *SlippageOptimizer) bucket(k bucketKey) *models.OptimizationBucket {
	b, ok := o.buckets[k]
	if !ok {
		b = &models.OptimizationBucket{
			VolatilityBucket:       k.volatility,
			SizeBucket:             k.size,
			LearningRate:           o.cfg.LearningRate,
			Momentum:               o.cfg.Momentum,
			CurrentOptimalSlippage: defaultOptimalBps,
		}
		o.buckets[k] = b
	}
	return b
}

func (o *SlippageOptimizer) volatilityBucket(score int64) int {
	if score < 0 {
		score = 0
	}
	b := int(score / volatilityBucketWidth)
	if b >= o.cfg.VolatilityBuckets {
		b = o.cfg.VolatilityBuckets - 1
	}
	return b
}

func sizeBucket(orderSize int64) int {
	switch {
	case orderSize < smallOrderCeiling:
		return 0
	case orderSize < mediumOrderCeiling:
		return 1
	default:
		return 2
	}
}
