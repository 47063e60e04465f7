package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/api/handlers"
	"github.com/jafarshop/delifast/internal/api/middleware"
	"github.com/jafarshop/delifast/internal/config"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, svc *handlers.Services, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Delifast for Shopify",
			"endpoints": []string{
				"GET /health",
				"GET /metrics",
				"POST /webhooks/orders/create",
				"POST /webhooks/orders/paid",
				"POST /webhooks/orders/updated",
				"POST /webhooks/app/uninstalled",
				"POST /webhooks/app/scopes_update",
				"POST /webhooks/customers/data_request",
				"POST /webhooks/customers/redact",
				"POST /webhooks/shop/redact",
				"GET /v1/shops/:shop/shipments",
				"GET /v1/shops/:shop/shipments/:orderId",
				"POST /v1/shops/:shop/shipments/:orderId/refresh",
				"PUT /v1/shops/:shop/shipments/:orderId/shipment-id",
				"POST /v1/shops/:shop/orders/:orderId/send",
				"GET /v1/shops/:shop/settings",
				"PUT /v1/shops/:shop/settings",
				"POST /v1/shops/:shop/install",
				"POST /v1/shops/:shop/webhooks/register",
				"GET /v1/shops/:shop/webhook-events",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if cfg.Metrics.Enabled && svc.Metrics != nil {
		router.GET(cfg.Metrics.Path, gin.WrapH(svc.Metrics.Handler()))
	}

	// Shopify webhooks: HMAC-verified, always 200 once verified
	webhooks := router.Group("/webhooks")
	for topic, process := range handlers.WebhookRoutes(svc) {
		webhooks.POST("/"+topic, handlers.HandleShopifyWebhook(cfg, svc, topic, process, logger))
	}

	// API v1 routes
	v1 := router.Group("/v1")
	{
		shopRoutes := v1.Group("/shops/:shop")
		sessions := middleware.NewSessionVerifier(cfg.Shopify.APIKey, cfg.Shopify.APISecret)
		shopRoutes.Use(middleware.AdminAuthMiddleware(cfg.Admin.APIKeyHash, sessions, logger))
		{
			shopRoutes.GET("/shipments", handlers.HandleListShipments(svc, logger))
			shopRoutes.GET("/shipments/:orderId", handlers.HandleGetShipment(svc, logger))
			shopRoutes.POST("/shipments/:orderId/refresh", handlers.HandleRefreshShipment(svc, logger))
			shopRoutes.PUT("/shipments/:orderId/shipment-id", handlers.HandleReplaceShipmentID(svc, logger))
			shopRoutes.POST("/orders/:orderId/send", handlers.HandleSendOrder(svc, logger))

			shopRoutes.GET("/settings", handlers.HandleGetSettings(svc, logger))
			shopRoutes.PUT("/settings", handlers.HandlePutSettings(svc, logger))

			shopRoutes.POST("/install", handlers.HandleInstall(svc, logger))
			shopRoutes.POST("/webhooks/register", handlers.HandleRegisterWebhooks(svc, logger))
			shopRoutes.GET("/webhook-events", handlers.HandleListWebhookEvents(svc, logger))
		}
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
