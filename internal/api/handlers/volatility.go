package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/cache"
	"github.com/adaptifi/swapcore/internal/models"
	"github.com/adaptifi/swapcore/internal/services"
)

// VolatilityHandler exposes source management and the aggregated metrics.
// Push-fed sources get one PushProvider each, created at registration time.
type VolatilityHandler struct {
	aggregator *services.VolatilityAggregator
	calculator *services.SlippageCalculator
	depthCache *cache.DepthCache
	logger     *logrus.Logger

	mu        sync.Mutex
	providers map[string]*services.PushProvider
	maxAge    time.Duration
}

func NewVolatilityHandler(
	aggregator *services.VolatilityAggregator,
	calculator *services.SlippageCalculator,
	depthCache *cache.DepthCache,
	measurementMaxAge time.Duration,
	logger *logrus.Logger,
) *VolatilityHandler {
	return &VolatilityHandler{
		aggregator: aggregator,
		calculator: calculator,
		depthCache: depthCache,
		logger:     logger,
		providers:  make(map[string]*services.PushProvider),
		maxAge:     measurementMaxAge,
	}
}

// RegisterSourceRequest is the payload for source registration.
type RegisterSourceRequest struct {
	ID     string `json:"id" binding:"required"`
	Weight int64  `json:"weight"`
}

// SourceWeightRequest updates one source's weight.
type SourceWeightRequest struct {
	Weight int64 `json:"weight"`
}

// MeasurementPushRequest is one relay-pushed volatility observation.
type MeasurementPushRequest struct {
	AssetA     string `json:"asset_a" binding:"required"`
	AssetB     string `json:"asset_b" binding:"required"`
	Score      int64  `json:"score"`
	Confidence int64  `json:"confidence"`
}

// PricePushRequest is one relay-pushed price observation.
type PricePushRequest struct {
	AssetA string `json:"asset_a" binding:"required"`
	AssetB string `json:"asset_b" binding:"required"`
	Price  int64  `json:"price"`
	Volume int64  `json:"volume"`
}

// DepthPushRequest is one relay-pushed liquidity depth observation.
type DepthPushRequest struct {
	AssetA string `json:"asset_a" binding:"required"`
	AssetB string `json:"asset_b" binding:"required"`
	Depth  int64  `json:"depth"`
}

// RegisterSource handles POST /api/v1/volatility/sources. Admin only.
func (h *VolatilityHandler) RegisterSource(c *gin.Context) {
	var req RegisterSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider := services.NewPushProvider(h.maxAge)
	if err := h.aggregator.RegisterSource(req.ID, req.Weight, provider); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.providers[req.ID] = provider
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"source_id": req.ID,
		"weight":    req.Weight,
	}).Info("Volatility source registered")
	c.JSON(http.StatusCreated, gin.H{"id": req.ID, "weight": req.Weight})
}

// SetSourceWeight handles PUT /api/v1/volatility/sources/:id/weight. Admin only.
func (h *VolatilityHandler) SetSourceWeight(c *gin.Context) {
	var req SourceWeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.aggregator.SetSourceWeight(id, req.Weight); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "weight": req.Weight})
}

// DeactivateSource handles DELETE /api/v1/volatility/sources/:id. Admin only.
func (h *VolatilityHandler) DeactivateSource(c *gin.Context) {
	id := c.Param("id")
	if err := h.aggregator.DeactivateSource(id); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "active": false})
}

// ListSources handles GET /api/v1/volatility/sources.
func (h *VolatilityHandler) ListSources(c *gin.Context) {
	sources := h.aggregator.Sources()
	c.JSON(http.StatusOK, gin.H{
		"sources":             sources,
		"total_active_weight": h.aggregator.TotalActiveWeight(),
	})
}

// PushMeasurement handles POST /api/v1/volatility/sources/:id/measurements.
// Relay endpoint feeding one registered source.
func (h *VolatilityHandler) PushMeasurement(c *gin.Context) {
	var req MeasurementPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	h.mu.Lock()
	provider, ok := h.providers[id]
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": services.ErrUnknownSource.Error()})
		return
	}

	provider.Push(req.AssetA, req.AssetB, req.Score, req.Confidence)
	c.JSON(http.StatusAccepted, gin.H{"source_id": id})
}

// Refresh handles POST /api/v1/volatility/:asset_a/:asset_b/refresh.
// Pulls every active source and recomputes the aggregate for the pair.
func (h *VolatilityHandler) Refresh(c *gin.Context) {
	metrics, err := h.aggregator.UpdateVolatility(c.Request.Context(), c.Param("asset_a"), c.Param("asset_b"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// GetMetrics handles GET /api/v1/volatility/:asset_a/:asset_b.
func (h *VolatilityHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.aggregator.GetVolatility(c.Param("asset_a"), c.Param("asset_b")))
}

// GetMeasurements handles GET /api/v1/volatility/:asset_a/:asset_b/measurements.
func (h *VolatilityHandler) GetMeasurements(c *gin.Context) {
	measurements := h.aggregator.Measurements(c.Param("asset_a"), c.Param("asset_b"))
	if measurements == nil {
		measurements = []models.VolatilityMeasurement{}
	}
	c.JSON(http.StatusOK, gin.H{"measurements": measurements, "total": len(measurements)})
}

// PushPrice handles POST /api/v1/market/prices. Feeds the calculator's EMA
// and rolling deviation history.
func (h *VolatilityHandler) PushPrice(c *gin.Context) {
	var req PricePushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be positive"})
		return
	}

	h.calculator.UpdateVolatilityData(req.AssetA, req.AssetB, req.Price, req.Volume)
	c.JSON(http.StatusAccepted, gin.H{
		"pair_key": models.PairKey(req.AssetA, req.AssetB),
		"ema":      h.calculator.EMA(req.AssetA, req.AssetB),
	})
}

// PushDepth handles POST /api/v1/market/depth.
func (h *VolatilityHandler) PushDepth(c *gin.Context) {
	var req DepthPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pairKey := models.PairKey(req.AssetA, req.AssetB)
	if err := h.depthCache.SetDepth(c.Request.Context(), pairKey, req.Depth); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"pair_key": pairKey, "depth": req.Depth})
}
