package models

import "time"

// VolatilitySource describes a registered volatility provider. Sources are
// never deleted; falling reliability deactivates them instead.
type VolatilitySource struct {
	ID          string    `json:"id" db:"id"`
	Weight      int64     `json:"weight" db:"weight"`
	Reliability int64     `json:"reliability" db:"reliability"` // 0-100
	Active      bool      `json:"active" db:"active"`
	LastUpdate  time.Time `json:"last_update" db:"last_update"`
}

// VolatilityMeasurement is a single observation from one source.
type VolatilityMeasurement struct {
	Timestamp  time.Time `json:"timestamp"`
	Value      int64     `json:"value"`
	Confidence int64     `json:"confidence"` // 0-100
	SourceID   string    `json:"source_id"`
}

// PricePoint is one retained price observation for a pair.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     int64     `json:"price"`
	Volume    int64     `json:"volume"`
}

// VolatilityMetrics is the cached aggregate view for a pair.
type VolatilityMetrics struct {
	PairKey          string    `json:"pair_key"`
	PriceVolatility  int64     `json:"price_volatility"`
	VolumeVolatility int64     `json:"volume_volatility"`
	CompositeScore   int64     `json:"composite_score"`
	Confidence       int64     `json:"confidence"`
	LastUpdate       time.Time `json:"last_update"`
}
