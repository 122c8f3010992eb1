package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adaptifi/swapcore/internal/api/handlers"
	"github.com/adaptifi/swapcore/internal/database"
	"github.com/adaptifi/swapcore/internal/middleware"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Dependencies bundles everything the route table needs. Database and Redis
// are nil when the corresponding backend is disabled.
type Dependencies struct {
	DB    *database.PostgresDB
	Redis *database.RedisClient
	Auth  *middleware.AuthMiddleware

	Orders     *handlers.OrderHandler
	Swaps      *handlers.SwapHandler
	Volatility *handlers.VolatilityHandler
	Slippage   *handlers.SlippageHandler
	Optimizer  *handlers.OptimizerHandler
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	// Health check endpoint
	router.GET("/health", healthCheck(deps.DB, deps.Redis))

	requireAuth := deps.Auth.RequireAuth()
	requireAdmin := deps.Auth.RequireAdmin()

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Relay-fed market observations
		market := v1.Group("/market")
		{
			market.POST("/prices", requireAuth, deps.Volatility.PushPrice)
			market.POST("/depth", requireAuth, deps.Volatility.PushDepth)
		}

		// Volatility sources and aggregated metrics
		volatility := v1.Group("/volatility")
		{
			volatility.GET("/sources", deps.Volatility.ListSources)
			volatility.POST("/sources", requireAdmin, deps.Volatility.RegisterSource)
			volatility.PUT("/sources/:id/weight", requireAdmin, deps.Volatility.SetSourceWeight)
			volatility.DELETE("/sources/:id", requireAdmin, deps.Volatility.DeactivateSource)
			volatility.POST("/sources/:id/measurements", requireAuth, deps.Volatility.PushMeasurement)

			volatility.GET("/pairs/:asset_a/:asset_b", deps.Volatility.GetMetrics)
			volatility.GET("/pairs/:asset_a/:asset_b/measurements", deps.Volatility.GetMeasurements)
			volatility.POST("/pairs/:asset_a/:asset_b/refresh", requireAuth, deps.Volatility.Refresh)
		}

		// Slippage quoting and tuning
		slippage := v1.Group("/slippage")
		{
			slippage.GET("/quote", deps.Slippage.Quote)
			slippage.GET("/params", deps.Slippage.GetParams)
			slippage.PUT("/params", requireAdmin, deps.Slippage.SetParams)
			slippage.PUT("/assets/:asset/base", requireAdmin, deps.Slippage.SetAssetBase)
		}

		// Slippage optimizer
		optimizer := v1.Group("/optimizer")
		{
			optimizer.POST("/performance", requireAuth, deps.Optimizer.RecordPerformance)
			optimizer.POST("/run", requireAdmin, deps.Optimizer.RunOptimization)
			optimizer.GET("/buckets", deps.Optimizer.GetBuckets)
			optimizer.GET("/optimize", deps.Optimizer.Optimize)
		}

		// Order lifecycle
		orders := v1.Group("/orders", requireAuth)
		{
			orders.POST("", deps.Orders.CreateOrder)
			orders.GET("", deps.Orders.GetUserOrders)
			orders.GET("/:id", deps.Orders.GetOrder)
			orders.POST("/:id/refresh", deps.Orders.RefreshSlippage)
			orders.POST("/:id/retry", deps.Orders.RetryOrder)
			orders.POST("/:id/cancel", deps.Orders.CancelOrder)
			orders.POST("/:id/expire", deps.Orders.ExpireOrder)
			orders.POST("/:id/fill", requireAdmin, deps.Orders.MarkFilled)
			orders.GET("/:id/history", deps.Orders.SlippageHistory)
			orders.GET("/:id/min-out", deps.Orders.MinAcceptableOut)
		}

		// Cross-chain swaps
		swaps := v1.Group("/swaps")
		{
			swaps.POST("", requireAuth, deps.Swaps.OpenSwap)
			swaps.GET("/:hashlock", deps.Swaps.GetSwap)
			swaps.POST("/:hashlock/claim", requireAuth, deps.Swaps.ClaimSwap)
			swaps.POST("/:hashlock/refund", requireAuth, deps.Swaps.RefundSwap)
			swaps.PUT("/:hashlock/slippage", requireAuth, deps.Swaps.UpdateSlippage)
		}

		// Bridge estimates
		bridge := v1.Group("/bridge")
		{
			bridge.GET("/delay", deps.Swaps.BridgeDelay)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "disabled",
				Redis:    "disabled",
			},
		}

		if db != nil {
			response.Services.Database = "ok"
			if err := db.HealthCheck(c.Request.Context()); err != nil {
				response.Services.Database = "error"
				response.Status = "degraded"
			}
		}

		if redis != nil {
			response.Services.Redis = "ok"
			if err := redis.HealthCheck(c.Request.Context()); err != nil {
				response.Services.Redis = "error"
				response.Status = "degraded"
			}
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
