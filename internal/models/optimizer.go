package models

import "time"

// OptimizationBucket holds the learned slippage estimate for one volatility
// range, optionally crossed with an order-size regime. Buckets are created
// lazily with defaults on first touch and mutated only by the optimizer.
type OptimizationBucket struct {
	VolatilityBucket       int       `json:"volatility_bucket"`
	SizeBucket             int       `json:"size_bucket"`
	LearningRate           int64     `json:"learning_rate"`
	Momentum               int64     `json:"momentum"` // 0-100, weight of the previous estimate
	RunningAverageError    int64     `json:"running_average_error"`
	SampleCount            int64     `json:"sample_count"`
	CurrentOptimalSlippage int64     `json:"current_optimal_slippage"`
	Confidence             int64     `json:"confidence"` // 0-100
	LastAdjusted           time.Time `json:"last_adjusted"`
}

// PerformanceRecord is one observed (slippage used, outcome) sample.
// Immutable once written; evicted oldest-first when the history is full.
type PerformanceRecord struct {
	Timestamp         time.Time `json:"timestamp" db:"timestamp"`
	PairKey           string    `json:"pair_key" db:"pair_key"`
	SlippageUsedBps   int64     `json:"slippage_used_bps" db:"slippage_used_bps"`
	ActualSlippageBps int64     `json:"actual_slippage_bps" db:"actual_slippage_bps"`
	Success           bool      `json:"success" db:"success"`
	VolatilityScore   int64     `json:"volatility_score" db:"volatility_score"`
	VolatilityBucket  int       `json:"volatility_bucket" db:"volatility_bucket"`
	SizeBucket        int       `json:"size_bucket" db:"size_bucket"`
}

// RecordPerformanceRequest is the API payload for performance ingestion.
type RecordPerformanceRequest struct {
	AssetA            string `json:"asset_a" binding:"required"`
	AssetB            string `json:"asset_b" binding:"required"`
	SlippageUsedBps   int64  `json:"slippage_used_bps"`
	ActualSlippageBps int64  `json:"actual_slippage_bps"`
	Success           bool   `json:"success"`
	VolatilityScore   int64  `json:"volatility_score"`
	OrderSize         int64  `json:"order_size"`
}
