package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/config"
	"github.com/adaptifi/swapcore/internal/services"
)

type SlippageHandler struct {
	calculator *services.SlippageCalculator
	logger     *logrus.Logger
}

func NewSlippageHandler(calculator *services.SlippageCalculator, logger *logrus.Logger) *SlippageHandler {
	return &SlippageHandler{calculator: calculator, logger: logger}
}

// QuoteResponse is a slippage quote for a prospective order.
type QuoteResponse struct {
	AssetIn     string `json:"asset_in"`
	AssetOut    string `json:"asset_out"`
	OrderSize   int64  `json:"order_size"`
	SlippageBps int64  `json:"slippage_bps"`
}

// AssetBaseRequest sets the per-asset base slippage.
type AssetBaseRequest struct {
	BaseBps int64 `json:"base_bps"`
}

// SlippageParamsRequest carries the tunable calculator parameters.
type SlippageParamsRequest struct {
	MinBps                int64 `json:"min_bps"`
	MaxBps                int64 `json:"max_bps"`
	DefaultBaseBps        int64 `json:"default_base_bps"`
	VolatilityMultiplier  int64 `json:"volatility_multiplier"`
	EMAAlphaBps           int64 `json:"ema_alpha_bps"`
	StdDevWindow          int   `json:"stddev_window"`
	PriceHistoryCapacity  int   `json:"price_history_capacity"`
	HighLiquidityRatioPct int64 `json:"high_liquidity_ratio_pct"`
	MidLiquidityRatioPct  int64 `json:"mid_liquidity_ratio_pct"`
}

// Quote handles GET /api/v1/slippage/quote.
func (h *SlippageHandler) Quote(c *gin.Context) {
	assetIn := c.Query("asset_in")
	assetOut := c.Query("asset_out")
	if assetIn == "" || assetOut == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_in and asset_out are required"})
		return
	}
	orderSize, err := strconv.ParseInt(c.DefaultQuery("order_size", "0"), 10, 64)
	if err != nil || orderSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_size must be a non-negative integer"})
		return
	}

	slippage, err := h.calculator.CalculateSlippage(c.Request.Context(), assetIn, assetOut, orderSize)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, QuoteResponse{
		AssetIn:     assetIn,
		AssetOut:    assetOut,
		OrderSize:   orderSize,
		SlippageBps: slippage,
	})
}

// GetParams handles GET /api/v1/slippage/params.
func (h *SlippageHandler) GetParams(c *gin.Context) {
	c.JSON(http.StatusOK, h.calculator.Params())
}

// SetParams handles PUT /api/v1/slippage/params. Admin only.
func (h *SlippageHandler) SetParams(c *gin.Context) {
	var req SlippageParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := config.SlippageConfig{
		MinBps:                req.MinBps,
		MaxBps:                req.MaxBps,
		DefaultBaseBps:        req.DefaultBaseBps,
		VolatilityMultiplier:  req.VolatilityMultiplier,
		EMAAlphaBps:           req.EMAAlphaBps,
		StdDevWindow:          req.StdDevWindow,
		PriceHistoryCapacity:  req.PriceHistoryCapacity,
		HighLiquidityRatioPct: req.HighLiquidityRatioPct,
		MidLiquidityRatioPct:  req.MidLiquidityRatioPct,
	}
	if err := h.calculator.SetSlippageParams(params); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"min_bps": params.MinBps,
		"max_bps": params.MaxBps,
	}).Info("Slippage parameters updated")
	c.JSON(http.StatusOK, h.calculator.Params())
}

// SetAssetBase handles PUT /api/v1/slippage/assets/:asset/base. Admin only.
func (h *SlippageHandler) SetAssetBase(c *gin.Context) {
	var req AssetBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asset := c.Param("asset")
	if err := h.calculator.SetAssetBase(asset, req.BaseBps); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "base_bps": req.BaseBps})
}
