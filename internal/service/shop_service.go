package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/internal/shopify"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

// WebhookSubscriber creates webhook subscriptions for a shop
type WebhookSubscriber interface {
	CreateWebhookSubscription(ctx context.Context, shop, topic, callbackURL string) error
}

// RegisterResult is the outcome of RegisterWebhooks
type RegisterResult struct {
	AlreadyRegistered bool     `json:"already_registered"`
	Topics            []string `json:"topics,omitempty"`
}

// RedactResult reports what shop/redact removed
type RedactResult struct {
	Shipments     int64 `json:"shipments"`
	WebhookEvents int64 `json:"webhook_events"`
}

// ShopService handles install, uninstall and compliance requests
type ShopService struct {
	repos      *repository.Repositories
	subscriber WebhookSubscriber
	appURL     string
	logger     *zap.Logger
	now        func() time.Time
}

// NewShopService creates a new shop service
func NewShopService(repos *repository.Repositories, subscriber WebhookSubscriber, appURL string, logger *zap.Logger) *ShopService {
	return &ShopService{
		repos:      repos,
		subscriber: subscriber,
		appURL:     strings.TrimSuffix(appURL, "/"),
		logger:     logger,
		now:        time.Now,
	}
}

// SaveInstall stores the offline access token handed over after OAuth
func (s *ShopService) SaveInstall(ctx context.Context, shop, accessToken, scopes string) error {
	if strings.TrimSpace(accessToken) == "" {
		return &pkgerrors.ErrValidation{Message: "access_token is required"}
	}
	if err := s.repos.Shop.UpsertInstall(ctx, shop, accessToken, scopes); err != nil {
		return fmt.Errorf("failed to save install: %w", err)
	}
	s.logger.Info("Shop installed", zap.String("shop", shop), zap.String("scopes", scopes))
	return nil
}

// RegisterWebhooks subscribes the shop to the app's webhook topics once. The
// registration record is claimed before any Shopify call and released on failure.
func (s *ShopService) RegisterWebhooks(ctx context.Context, shop string) (*RegisterResult, error) {
	if s.appURL == "" {
		return nil, &pkgerrors.ErrValidation{Message: "SHOPIFY_APP_URL is not configured"}
	}

	claimed, err := s.repos.Shop.ClaimWebhookRegistration(ctx, shop, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to claim webhook registration: %w", err)
	}
	if !claimed {
		s.logger.Debug("Webhooks already registered", zap.String("shop", shop))
		return &RegisterResult{AlreadyRegistered: true}, nil
	}

	result := &RegisterResult{}
	for _, t := range shopify.AppWebhookTopics {
		if err := s.subscriber.CreateWebhookSubscription(ctx, shop, t.Topic, s.appURL+t.Path); err != nil {
			if rerr := s.repos.Shop.ReleaseWebhookRegistration(context.WithoutCancel(ctx), shop); rerr != nil {
				s.logger.Error("Failed to release webhook registration", zap.String("shop", shop), zap.Error(rerr))
			}
			return nil, fmt.Errorf("failed to register %s: %w", t.Topic, err)
		}
		result.Topics = append(result.Topics, t.Topic)
	}

	s.logger.Info("Webhooks registered", zap.String("shop", shop), zap.Strings("topics", result.Topics))
	return result, nil
}

// HandleUninstalled drops the token and the registration record; shipment data is
// kept until shop/redact
func (s *ShopService) HandleUninstalled(ctx context.Context, shop string) error {
	if err := s.repos.Shop.MarkUninstalled(ctx, shop); err != nil {
		return fmt.Errorf("failed to mark shop uninstalled: %w", err)
	}
	s.logger.Info("Shop uninstalled", zap.String("shop", shop))
	return nil
}

// HandleScopesUpdate stores the currently granted scopes
func (s *ShopService) HandleScopesUpdate(ctx context.Context, shop string, payload *shopify.ScopesUpdatePayload) error {
	scopes := strings.Join(payload.Current, ",")
	if err := s.repos.Shop.UpdateScopes(ctx, shop, scopes); err != nil {
		return fmt.Errorf("failed to update scopes: %w", err)
	}
	s.logger.Info("Shop scopes updated", zap.String("shop", shop), zap.String("scopes", scopes))
	return nil
}

// HandleCustomersDataRequest acknowledges a data request. Shipments hold order ids
// and numbers only, so there is no customer data to export.
func (s *ShopService) HandleCustomersDataRequest(ctx context.Context, shop string, payload *shopify.CustomersDataRequestPayload) error {
	s.logger.Info("Customer data request received",
		zap.String("shop", shop),
		zap.Int64("customer_id", payload.Customer.ID),
		zap.Int("orders_requested", len(payload.OrdersRequested)),
	)
	return nil
}

// HandleCustomersRedact acknowledges a customer redaction; nothing customer-specific is stored
func (s *ShopService) HandleCustomersRedact(ctx context.Context, shop string, payload *shopify.CustomersRedactPayload) error {
	s.logger.Info("Customer redact request received",
		zap.String("shop", shop),
		zap.Int64("customer_id", payload.Customer.ID),
		zap.Int("orders_to_redact", len(payload.OrdersToRedact)),
	)
	return nil
}

// HandleShopRedact deletes everything stored for the shop
func (s *ShopService) HandleShopRedact(ctx context.Context, shop string) (*RedactResult, error) {
	shipments, err := s.repos.Shipment.DeleteByShop(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to delete shipments: %w", err)
	}
	if err := s.repos.StoreSettings.Delete(ctx, shop); err != nil {
		return nil, fmt.Errorf("failed to delete store settings: %w", err)
	}
	events, err := s.repos.WebhookEvent.DeleteByShop(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to delete webhook events: %w", err)
	}
	if err := s.repos.Shop.Delete(ctx, shop); err != nil {
		return nil, fmt.Errorf("failed to delete shop: %w", err)
	}

	result := &RedactResult{Shipments: shipments, WebhookEvents: events}
	s.logger.Info("Shop data redacted",
		zap.String("shop", shop),
		zap.Int64("shipments", result.Shipments),
		zap.Int64("webhook_events", result.WebhookEvents),
	)
	return result, nil
}
