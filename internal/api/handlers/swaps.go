package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/models"
	"github.com/adaptifi/swapcore/internal/services"
)

type SwapHandler struct {
	coordinator *services.AtomicSwapCoordinator
	logger      *logrus.Logger
}

func NewSwapHandler(coordinator *services.AtomicSwapCoordinator, logger *logrus.Logger) *SwapHandler {
	return &SwapHandler{coordinator: coordinator, logger: logger}
}

// OpenSwap handles POST /api/v1/swaps. A hashlock that already has a swap
// record is rejected with a conflict.
func (h *SwapHandler) OpenSwap(c *gin.Context) {
	var req models.OpenSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	swap, err := h.coordinator.OpenSwap(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"swap_id":  swap.ID,
		"hashlock": swap.Hashlock,
	}).Info("Swap opened")
	c.JSON(http.StatusCreated, swap)
}

// GetSwap handles GET /api/v1/swaps/:hashlock.
func (h *SwapHandler) GetSwap(c *gin.Context) {
	swap, err := h.coordinator.GetSwap(c.Param("hashlock"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, swap)
}

// ClaimSwap handles POST /api/v1/swaps/:hashlock/claim.
func (h *SwapHandler) ClaimSwap(c *gin.Context) {
	var req models.ClaimSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	swap, err := h.coordinator.Claim(c.Request.Context(), c.Param("hashlock"), req.Preimage, req.Recipient)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"swap_id":   swap.ID,
		"recipient": swap.Recipient,
	}).Info("Swap claimed")
	c.JSON(http.StatusOK, swap)
}

// RefundSwap handles POST /api/v1/swaps/:hashlock/refund.
func (h *SwapHandler) RefundSwap(c *gin.Context) {
	swap, err := h.coordinator.Refund(c.Request.Context(), c.Param("hashlock"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.WithField("swap_id", swap.ID).Info("Swap refunded")
	c.JSON(http.StatusOK, swap)
}

// SwapSlippageRequest carries a relay-pushed slippage target.
type SwapSlippageRequest struct {
	SlippageBps int64 `json:"slippage_bps"`
}

// UpdateSlippage handles PUT /api/v1/swaps/:hashlock/slippage. Only the
// configured relay account may move a swap's slippage.
func (h *SwapHandler) UpdateSlippage(c *gin.Context) {
	var req SwapSlippageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	swap, err := h.coordinator.UpdateSwapSlippage(c.Request.Context(), c.Param("hashlock"), req.SlippageBps, c.GetString("user_id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, swap)
}

// BridgeDelay handles GET /api/v1/swaps/bridge-delay.
func (h *SwapHandler) BridgeDelay(c *gin.Context) {
	chainID, err := strconv.ParseInt(c.DefaultQuery("chain_id", "1"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chain_id must be an integer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chain_id":         chainID,
		"bridge_delay_sec": services.EstimateBridgeDelay(chainID),
	})
}
