package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/internal/shopify"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

// ErrNoAccessToken is returned when neither a stored install nor the configured
// single-shop fallback has a token for the shop
var ErrNoAccessToken = errors.New("no shopify access token for shop")

// Metafield is one delifast.<key> value written on an order
type Metafield struct {
	Key   string
	Value string
}

// ShopifyService calls the Admin API on behalf of installed shops
type ShopifyService struct {
	cfg     config.ShopifyConfig
	shops   repository.ShopRepository
	logger  *zap.Logger
	baseURL string
}

// NewShopifyService creates a new Shopify service
func NewShopifyService(cfg config.ShopifyConfig, shops repository.ShopRepository, logger *zap.Logger) *ShopifyService {
	return &ShopifyService{
		cfg:    cfg,
		shops:  shops,
		logger: logger,
	}
}

// clientFor resolves the shop's offline token. The configured shop/token pair is
// used when nothing was stored for the shop.
func (s *ShopifyService) clientFor(ctx context.Context, shop string) (*shopify.Client, error) {
	shop = shopify.NormalizeShopDomain(shop)

	token := ""
	record, err := s.shops.Get(ctx, shop)
	var nf *pkgerrors.ErrNotFound
	switch {
	case err == nil:
		if record.AccessToken != nil && record.UninstalledAt == nil {
			token = *record.AccessToken
		}
	case errors.As(err, &nf):
	default:
		return nil, fmt.Errorf("failed to load shop: %w", err)
	}

	if token == "" && shop == shopify.NormalizeShopDomain(s.cfg.ShopDomain) {
		token = s.cfg.AccessToken
	}
	if token == "" {
		return nil, ErrNoAccessToken
	}

	client := shopify.NewClient(shop, token, s.cfg.APIVersion, s.logger)
	if s.baseURL != "" {
		client.WithBaseURL(s.baseURL)
	}
	return client, nil
}

// GetOrder fetches the REST representation of an order
func (s *ShopifyService) GetOrder(ctx context.Context, shop, orderID string) (*shopify.Order, error) {
	client, err := s.clientFor(ctx, shop)
	if err != nil {
		return nil, err
	}
	order, err := client.GetOrder(ctx, orderID)
	if errors.Is(err, shopify.ErrOrderNotFound) {
		return nil, &pkgerrors.ErrNotFound{Resource: "shopify_order", ID: orderID}
	}
	return order, err
}

// SetOrderMetafields writes delifast.* metafields on an order
func (s *ShopifyService) SetOrderMetafields(ctx context.Context, shop, orderID string, fields ...Metafield) error {
	if len(fields) == 0 {
		return nil
	}
	client, err := s.clientFor(ctx, shop)
	if err != nil {
		return err
	}

	inputs := make([]shopify.MetafieldsSetInput, 0, len(fields))
	for _, f := range fields {
		inputs = append(inputs, shopify.OrderMetafield(orderID, f.Key, f.Value))
	}

	resp, err := client.Execute(ctx, shopify.MetafieldsSetMutation, map[string]interface{}{
		"metafields": inputs,
	})
	if err != nil {
		return fmt.Errorf("failed to set order metafields: %w", err)
	}

	var result struct {
		MetafieldsSet struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse metafieldsSet response: %w", err)
	}
	return userErrors(result.MetafieldsSet.UserErrors)
}

// AddOrderTags adds tags to an order; existing tags are kept
func (s *ShopifyService) AddOrderTags(ctx context.Context, shop, orderID string, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	client, err := s.clientFor(ctx, shop)
	if err != nil {
		return err
	}

	resp, err := client.Execute(ctx, shopify.TagsAddMutation, map[string]interface{}{
		"id":   shopify.OrderGID(orderID),
		"tags": tags,
	})
	if err != nil {
		return fmt.Errorf("failed to add order tags: %w", err)
	}

	var result struct {
		TagsAdd struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"tagsAdd"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse tagsAdd response: %w", err)
	}
	return userErrors(result.TagsAdd.UserErrors)
}

// CreateWebhookSubscription subscribes the shop to one topic
func (s *ShopifyService) CreateWebhookSubscription(ctx context.Context, shop, topic, callbackURL string) error {
	client, err := s.clientFor(ctx, shop)
	if err != nil {
		return err
	}

	resp, err := client.Execute(ctx, shopify.WebhookSubscriptionCreateMutation, map[string]interface{}{
		"topic": topic,
		"webhookSubscription": shopify.WebhookSubscriptionInput{
			CallbackURL: callbackURL,
			Format:      "JSON",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create webhook subscription %s: %w", topic, err)
	}

	var result struct {
		WebhookSubscriptionCreate struct {
			UserErrors []shopify.UserError `json:"userErrors"`
		} `json:"webhookSubscriptionCreate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse webhookSubscriptionCreate response: %w", err)
	}
	// An existing subscription for the same address is not a failure
	for _, ue := range result.WebhookSubscriptionCreate.UserErrors {
		if strings.Contains(strings.ToLower(ue.Message), "already been taken") {
			s.logger.Info("Webhook subscription already exists", zap.String("shop", shop), zap.String("topic", topic))
			return nil
		}
	}
	return userErrors(result.WebhookSubscriptionCreate.UserErrors)
}

// WebhookSubscription is one registered topic/callback pair
type WebhookSubscription struct {
	ID          string `json:"id"`
	Topic       string `json:"topic"`
	CallbackURL string `json:"callback_url"`
}

// ListWebhookSubscriptions returns the subscriptions Shopify holds for the app on the shop
func (s *ShopifyService) ListWebhookSubscriptions(ctx context.Context, shop string) ([]WebhookSubscription, error) {
	client, err := s.clientFor(ctx, shop)
	if err != nil {
		return nil, err
	}

	resp, err := client.Execute(ctx, shopify.WebhookSubscriptionsQuery, map[string]interface{}{"first": 50})
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook subscriptions: %w", err)
	}

	var result struct {
		WebhookSubscriptions struct {
			Edges []struct {
				Node struct {
					ID       string `json:"id"`
					Topic    string `json:"topic"`
					Endpoint struct {
						CallbackURL string `json:"callbackUrl"`
					} `json:"endpoint"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"webhookSubscriptions"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse webhookSubscriptions response: %w", err)
	}

	subs := make([]WebhookSubscription, 0, len(result.WebhookSubscriptions.Edges))
	for _, e := range result.WebhookSubscriptions.Edges {
		subs = append(subs, WebhookSubscription{
			ID:          e.Node.ID,
			Topic:       e.Node.Topic,
			CallbackURL: e.Node.Endpoint.CallbackURL,
		})
	}
	return subs, nil
}

func userErrors(errs []shopify.UserError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		if len(e.Field) > 0 {
			msgs[i] = strings.Join(e.Field, ".") + ": " + e.Message
		} else {
			msgs[i] = e.Message
		}
	}
	return fmt.Errorf("shopify user errors: %s", strings.Join(msgs, "; "))
}
