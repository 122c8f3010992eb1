package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/models"
	"github.com/adaptifi/swapcore/internal/services"
)

type OptimizerHandler struct {
	optimizer *services.SlippageOptimizer
	logger    *logrus.Logger
}

func NewOptimizerHandler(optimizer *services.SlippageOptimizer, logger *logrus.Logger) *OptimizerHandler {
	return &OptimizerHandler{optimizer: optimizer, logger: logger}
}

// OptimizeResponse is the learned estimate for one regime.
type OptimizeResponse struct {
	VolatilityScore    int64 `json:"volatility_score"`
	OrderSize          int64 `json:"order_size"`
	OptimalSlippageBps int64 `json:"optimal_slippage_bps"`
	Confidence         int64 `json:"confidence"`
}

// RecordPerformance handles POST /api/v1/optimizer/performance. Relay and
// admin callers report fill outcomes here.
func (h *OptimizerHandler) RecordPerformance(c *gin.Context) {
	var req models.RecordPerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.optimizer.RecordPerformance(c.Request.Context(), req.AssetA, req.AssetB,
		req.SlippageUsedBps, req.ActualSlippageBps, req.Success,
		req.VolatilityScore, req.OrderSize)
	c.JSON(http.StatusAccepted, gin.H{"pair_key": models.PairKey(req.AssetA, req.AssetB)})
}

// RunOptimization handles POST /api/v1/optimizer/run. Admin only.
func (h *OptimizerHandler) RunOptimization(c *gin.Context) {
	adjusted := h.optimizer.PerformGradientDescent()
	h.logger.WithField("buckets_adjusted", adjusted).Info("Optimization pass complete")
	c.JSON(http.StatusOK, gin.H{"buckets_adjusted": adjusted})
}

// GetBuckets handles GET /api/v1/optimizer/buckets.
func (h *OptimizerHandler) GetBuckets(c *gin.Context) {
	buckets := h.optimizer.Buckets()
	c.JSON(http.StatusOK, gin.H{"buckets": buckets, "total": len(buckets)})
}

// Optimize handles GET /api/v1/optimizer/optimize.
func (h *OptimizerHandler) Optimize(c *gin.Context) {
	volatility, err := strconv.ParseInt(c.DefaultQuery("volatility_score", "0"), 10, 64)
	if err != nil || volatility < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "volatility_score must be a non-negative integer"})
		return
	}
	orderSize, err := strconv.ParseInt(c.DefaultQuery("order_size", "0"), 10, 64)
	if err != nil || orderSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_size must be a non-negative integer"})
		return
	}

	optimal, confidence := h.optimizer.OptimizeSlippage(volatility, orderSize)
	c.JSON(http.StatusOK, OptimizeResponse{
		VolatilityScore:    volatility,
		OrderSize:          orderSize,
		OptimalSlippageBps: optimal,
		Confidence:         confidence,
	})
}
