package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
)

type installRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
	Scopes      string `json:"scopes"`
}

// HandleInstall handles POST /v1/shops/:shop/install. The embedded app posts the
// offline token it obtained through OAuth.
func HandleInstall(svc *Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req installRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		shop := shopParam(c)
		if err := svc.Shops.SaveInstall(c.Request.Context(), shop, req.AccessToken, req.Scopes); err != nil {
			respondError(c, logger, err, http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "shop": shop})
	}
}

// HandleRegisterWebhooks handles POST /v1/shops/:shop/webhooks/register
func HandleRegisterWebhooks(svc *Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Shops.RegisterWebhooks(c.Request.Context(), shopParam(c))
		if err != nil {
			respondError(c, logger, err, http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type webhookEventResponse struct {
	WebhookID  string  `json:"webhook_id"`
	Topic      string  `json:"topic"`
	Outcome    string  `json:"outcome"`
	Error      *string `json:"error"`
	ReceivedAt string  `json:"received_at"`
}

// HandleListWebhookEvents handles GET /v1/shops/:shop/webhook-events?outcome=failed&limit=50
func HandleListWebhookEvents(svc *Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 || limit > 200 {
			limit = 50
		}
		outcome := domain.WebhookOutcome(c.Query("outcome"))

		list, err := svc.Repos.WebhookEvent.ListByShop(c.Request.Context(), shopParam(c), outcome, limit)
		if err != nil {
			respondError(c, logger, err, http.StatusNotFound)
			return
		}

		data := make([]webhookEventResponse, 0, len(list))
		for _, e := range list {
			data = append(data, webhookEventResponse{
				WebhookID:  e.WebhookID,
				Topic:      e.Topic,
				Outcome:    string(e.Outcome),
				Error:      e.Error,
				ReceivedAt: e.ReceivedAt.Format(timeLayout),
			})
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
	}
}
