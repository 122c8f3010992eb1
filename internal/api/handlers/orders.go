package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/models"
	"github.com/adaptifi/swapcore/internal/services"
)

type OrderHandler struct {
	manager *services.OrderLifecycleManager
	logger  *logrus.Logger
}

func NewOrderHandler(manager *services.OrderLifecycleManager, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{manager: manager, logger: logger}
}

// UserOrdersResponse lists the order IDs belonging to one owner.
type UserOrdersResponse struct {
	Owner     string    `json:"owner"`
	OrderIDs  []string  `json:"order_ids"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// SlippageHistoryResponse is the audit trail of slippage changes on an order.
type SlippageHistoryResponse struct {
	OrderID string                        `json:"order_id"`
	Entries []models.SlippageHistoryEntry `json:"entries"`
}

// MinOutResponse reports the worst acceptable fill for an order.
type MinOutResponse struct {
	OrderID          string `json:"order_id"`
	MinAcceptableOut string `json:"min_acceptable_out"`
}

// CreateOrder handles POST /api/v1/orders. The authenticated account becomes
// the order owner regardless of the request body.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if userID := c.GetString("user_id"); userID != "" {
		req.Owner = userID
	}

	order, err := h.manager.CreateOrder(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"owner":    order.Owner,
	}).Info("Order created")
	c.JSON(http.StatusCreated, h.orderResponse(order))
}

// GetOrder handles GET /api/v1/orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.manager.GetOrder(c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.orderResponse(order))
}

// GetUserOrders handles GET /api/v1/orders for the authenticated account.
// Admins may inspect another owner through the owner query parameter.
func (h *OrderHandler) GetUserOrders(c *gin.Context) {
	owner := c.GetString("user_id")
	if requested := c.Query("owner"); requested != "" && c.GetString("user_role") == "admin" {
		owner = requested
	}

	ids := h.manager.GetUserOrders(owner)
	c.JSON(http.StatusOK, UserOrdersResponse{
		Owner:     owner,
		OrderIDs:  ids,
		Total:     len(ids),
		Timestamp: time.Now(),
	})
}

// RefreshSlippage handles POST /api/v1/orders/:id/refresh.
func (h *OrderHandler) RefreshSlippage(c *gin.Context) {
	order, err := h.manager.UpdateOrderSlippage(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.orderResponse(order))
}

// RetryOrder handles POST /api/v1/orders/:id/retry.
func (h *OrderHandler) RetryOrder(c *gin.Context) {
	caller := c.GetString("user_id")
	isAdmin := c.GetString("user_role") == "admin"

	order, err := h.manager.RetryFailedOrder(c.Request.Context(), c.Param("id"), caller, isAdmin)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"attempts":     order.FillAttempts,
		"slippage_bps": order.CurrentSlippageBps,
	}).Info("Order retried with widened slippage")
	c.JSON(http.StatusOK, h.orderResponse(order))
}

// CancelOrder handles POST /api/v1/orders/:id/cancel.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.manager.CancelOrder(c.Request.Context(), orderID, c.GetString("user_id")); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "state": string(models.OrderStateCancelled)})
}

// ExpireOrder handles POST /api/v1/orders/:id/expire.
func (h *OrderHandler) ExpireOrder(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.manager.ExpireOrder(c.Request.Context(), orderID); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "state": string(models.OrderStateExpired)})
}

// FillRequest reports the slippage actually observed on a fill.
type FillRequest struct {
	ActualSlippageBps int64 `json:"actual_slippage_bps"`
}

// MarkFilled handles POST /api/v1/orders/:id/fill. Restricted to admin and
// relay callers via route middleware.
func (h *OrderHandler) MarkFilled(c *gin.Context) {
	var req FillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orderID := c.Param("id")
	if err := h.manager.MarkOrderFilled(c.Request.Context(), orderID, req.ActualSlippageBps); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "state": string(models.OrderStateFilled)})
}

// SlippageHistory handles GET /api/v1/orders/:id/history.
func (h *OrderHandler) SlippageHistory(c *gin.Context) {
	orderID := c.Param("id")
	entries, err := h.manager.SlippageHistory(orderID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, SlippageHistoryResponse{OrderID: orderID, Entries: entries})
}

// MinAcceptableOut handles GET /api/v1/orders/:id/min-out.
func (h *OrderHandler) MinAcceptableOut(c *gin.Context) {
	orderID := c.Param("id")
	minOut, err := h.manager.MinAcceptableOut(orderID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, MinOutResponse{OrderID: orderID, MinAcceptableOut: minOut.String()})
}

func (h *OrderHandler) orderResponse(order *models.Order) models.OrderResponse {
	fillable, err := h.manager.IsOrderFillable(order.ID)
	if err != nil {
		fillable = false
	}
	return models.OrderResponse{Order: order, Fillable: fillable}
}
