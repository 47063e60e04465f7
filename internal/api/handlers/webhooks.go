package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/cache"
	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/shopify"
)

// Webhook topics
const (
	TopicOrdersCreate         = "orders/create"
	TopicOrdersPaid           = "orders/paid"
	TopicOrdersUpdated        = "orders/updated"
	TopicAppUninstalled       = "app/uninstalled"
	TopicAppScopesUpdate      = "app/scopes_update"
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
)

// webhookProcessor handles a verified, non-duplicate delivery
type webhookProcessor func(ctx context.Context, shop string, body []byte) error

// WebhookRoutes maps each topic to its processor
func WebhookRoutes(svc *Services) map[string]webhookProcessor {
	return map[string]webhookProcessor{
		TopicOrdersCreate:  orderProcessor(svc.Workflow.HandleOrderCreated),
		TopicOrdersPaid:    orderProcessor(svc.Workflow.HandleOrderPaid),
		TopicOrdersUpdated: orderProcessor(svc.Workflow.HandleOrderUpdated),
		TopicAppUninstalled: func(ctx context.Context, shop string, body []byte) error {
			return svc.Shops.HandleUninstalled(ctx, shop)
		},
		TopicAppScopesUpdate: func(ctx context.Context, shop string, body []byte) error {
			var payload shopify.ScopesUpdatePayload
			if err := json.Unmarshal(body, &payload); err != nil {
				return fmt.Errorf("invalid scopes_update payload: %w", err)
			}
			return svc.Shops.HandleScopesUpdate(ctx, shop, &payload)
		},
		TopicCustomersDataRequest: func(ctx context.Context, shop string, body []byte) error {
			var payload shopify.CustomersDataRequestPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				return fmt.Errorf("invalid customers/data_request payload: %w", err)
			}
			return svc.Shops.HandleCustomersDataRequest(ctx, shop, &payload)
		},
		TopicCustomersRedact: func(ctx context.Context, shop string, body []byte) error {
			var payload shopify.CustomersRedactPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				return fmt.Errorf("invalid customers/redact payload: %w", err)
			}
			return svc.Shops.HandleCustomersRedact(ctx, shop, &payload)
		},
		TopicShopRedact: func(ctx context.Context, shop string, body []byte) error {
			_, err := svc.Shops.HandleShopRedact(ctx, shop)
			return err
		},
	}
}

func orderProcessor(handle func(ctx context.Context, shop string, order *shopify.Order) error) webhookProcessor {
	return func(ctx context.Context, shop string, body []byte) error {
		var order shopify.Order
		if err := json.Unmarshal(body, &order); err != nil {
			return fmt.Errorf("invalid order payload: %w", err)
		}
		if order.ID == 0 {
			return fmt.Errorf("order payload has no id")
		}
		return handle(ctx, shop, &order)
	}
}

// HandleShopifyWebhook handles POST /webhooks/<topic>. Deliveries with a bad
// signature get 401; everything after verification is acknowledged with 200 so
// Shopify stops retrying, and failures are kept in webhook_events instead.
func HandleShopifyWebhook(cfg *config.Config, svc *Services, topic string, process webhookProcessor, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Shopify signs the raw bytes
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		if !shopify.VerifyWebhookHMAC(cfg.Shopify.APISecret, body, c.GetHeader(shopify.HeaderHmac)) {
			logger.Warn("Webhook signature rejected", zap.String("topic", topic))
			svc.Metrics.WebhookReceived(topic, "rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
			return
		}

		ctx := c.Request.Context()
		shop := shopify.NormalizeShopDomain(c.GetHeader(shopify.HeaderShopDomain))
		webhookID := c.GetHeader(shopify.HeaderWebhookID)
		logger := logger.With(zap.String("topic", topic), zap.String("shop", shop), zap.String("webhook_id", webhookID))

		if shop == "" {
			logger.Warn("Webhook without shop domain header")
			svc.Metrics.WebhookReceived(topic, string(domain.WebhookOutcomeIgnored))
			c.JSON(http.StatusOK, gin.H{"ok": true, "status": domain.WebhookOutcomeIgnored})
			return
		}

		if webhookID != "" && svc.Dedupe != nil {
			claimed, err := svc.Dedupe.Claim(ctx, webhookID, cache.DefaultWebhookTTL)
			if err != nil {
				// fall through: the repository guards still hold
				logger.Warn("Webhook dedupe unavailable", zap.Error(err))
			} else if !claimed {
				logger.Info("Duplicate webhook delivery")
				recordWebhook(ctx, svc, logger, webhookID, shop, topic, domain.WebhookOutcomeDuplicate, nil)
				svc.Metrics.WebhookReceived(topic, string(domain.WebhookOutcomeDuplicate))
				c.JSON(http.StatusOK, gin.H{"ok": true, "status": domain.WebhookOutcomeDuplicate})
				return
			}
		}

		outcome := domain.WebhookOutcomeProcessed
		if err := process(ctx, shop, body); err != nil {
			logger.Error("Webhook processing failed", zap.Error(err))
			outcome = domain.WebhookOutcomeFailed
			recordWebhook(ctx, svc, logger, webhookID, shop, topic, outcome, err)
		} else if topic != TopicShopRedact {
			// nothing is kept for a shop after shop/redact
			recordWebhook(ctx, svc, logger, webhookID, shop, topic, outcome, nil)
		}

		svc.Metrics.WebhookReceived(topic, string(outcome))
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": outcome})
	}
}

func recordWebhook(ctx context.Context, svc *Services, logger *zap.Logger, webhookID, shop, topic string, outcome domain.WebhookOutcome, cause error) {
	event := &domain.WebhookEvent{
		WebhookID: webhookID,
		Shop:      shop,
		Topic:     topic,
		Outcome:   outcome,
	}
	if cause != nil {
		msg := cause.Error()
		event.Error = &msg
	}
	if err := svc.Repos.WebhookEvent.Create(ctx, event); err != nil {
		logger.Error("Failed to record webhook event", zap.Error(err))
	}
}
