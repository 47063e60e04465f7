package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/cache"
	"github.com/jafarshop/delifast/internal/metrics"
	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/internal/service"
	"github.com/jafarshop/delifast/internal/shopify"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

// OrderFetcher loads a Shopify order for manual sends
type OrderFetcher interface {
	GetOrder(ctx context.Context, shop, orderID string) (*shopify.Order, error)
}

// Services groups what the handlers call into
type Services struct {
	Repos    *repository.Repositories
	Workflow *service.OrderWorkflow
	Shops    *service.ShopService
	Settings *service.SettingsService
	Orders   OrderFetcher
	Dedupe   cache.WebhookDedupe
	Metrics  *metrics.Metrics
}

// shopParam returns the normalized :shop path parameter
func shopParam(c *gin.Context) string {
	return shopify.NormalizeShopDomain(c.Param("shop"))
}

// respondError maps service errors to HTTP responses. notFoundStatus lets routes
// that treat a missing record as a server failure override the default 404.
func respondError(c *gin.Context, logger *zap.Logger, err error, notFoundStatus int) {
	var nf *pkgerrors.ErrNotFound
	var verr *pkgerrors.ErrValidation
	var conflict *pkgerrors.ErrConflict
	var unauthorized *pkgerrors.ErrUnauthorized

	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": verr.Error()}
		if len(verr.Fields) > 0 {
			body["fields"] = verr.Fields
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &nf):
		c.JSON(notFoundStatus, gin.H{"error": nf.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
	case errors.As(err, &unauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": unauthorized.Error()})
	case errors.Is(err, service.ErrNoAccessToken):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	default:
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("shop", c.Param("shop")),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "details": err.Error()})
	}
}
