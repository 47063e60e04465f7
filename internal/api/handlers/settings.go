package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
)

// HandleGetSettings handles GET /v1/shops/:shop/settings
func HandleGetSettings(svc *Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, stored, err := svc.Settings.Get(c.Request.Context(), shopParam(c))
		if err != nil {
			respondError(c, logger, err, http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{"settings": settings, "configured": stored})
	}
}

// HandlePutSettings handles PUT /v1/shops/:shop/settings
func HandlePutSettings(svc *Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req domain.StoreSettings
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		saved, err := svc.Settings.Save(c.Request.Context(), shopParam(c), &req)
		if err != nil {
			respondError(c, logger, err, http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{"settings": saved, "configured": true})
	}
}
