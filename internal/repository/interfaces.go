package repository

import (
	"context"
	"time"

	"github.com/jafarshop/delifast/internal/domain"
)

// ShipmentFilter narrows ListByShop
type ShipmentFilter struct {
	Status domain.ShipmentStatus
	Limit  int
	Offset int
}

// SentShipment carries the fields written after a successful carrier call
type SentShipment struct {
	Shop               string
	ShopifyOrderID     string
	ShopifyOrderNumber string
	ShipmentID         string
	IsTemporaryID      bool
	StatusDetails      string
	SentAt             time.Time
	NextLookupAt       *time.Time
}

// ShipmentRepository defines shipment data access methods. Every method is keyed
// by (shop, shopifyOrderID); writes that may run before the row exists are upserts.
type ShipmentRepository interface {
	// EnsureRow creates the row with initial status if absent. On an existing row it
	// refreshes the order number and only moves pending -> ready while no shipment id
	// is stored. Returns the row as stored.
	EnsureRow(ctx context.Context, shop, shopifyOrderID, orderNumber string, initial domain.ShipmentStatus) (*domain.Shipment, error)
	Get(ctx context.Context, shop, shopifyOrderID string) (*domain.Shipment, error)
	ListByShop(ctx context.Context, shop string, filter ShipmentFilter) ([]*domain.Shipment, int, error)
	MarkSent(ctx context.Context, sent SentShipment) error
	MarkError(ctx context.Context, shop, shopifyOrderID, orderNumber, details string) error
	UpdateStatus(ctx context.Context, shop, shopifyOrderID string, status domain.ShipmentStatus, details *string) error
	ReplaceShipmentID(ctx context.Context, shop, shopifyOrderID, shipmentID string) error
	// ClaimSend atomically takes the per-order send lock until the given time.
	// Returns false when another send holds an unexpired lock.
	ClaimSend(ctx context.Context, shop, shopifyOrderID string, until time.Time) (bool, error)
	ReleaseSend(ctx context.Context, shop, shopifyOrderID string) error
	ListDueLookups(ctx context.Context, now time.Time, limit int) ([]*domain.Shipment, error)
	RecordLookupAttempt(ctx context.Context, shop, shopifyOrderID string, next *time.Time, details string) error
	DeleteByShop(ctx context.Context, shop string) (int64, error)
}

// StoreSettingsRepository defines store settings data access methods
type StoreSettingsRepository interface {
	// Get returns nil, nil when the shop has no settings yet
	Get(ctx context.Context, shop string) (*domain.StoreSettings, error)
	Upsert(ctx context.Context, settings *domain.StoreSettings) error
	Delete(ctx context.Context, shop string) error
}

// ShopRepository defines installed shop data access methods
type ShopRepository interface {
	Get(ctx context.Context, shop string) (*domain.Shop, error)
	UpsertInstall(ctx context.Context, shop, accessToken, scopes string) error
	UpdateScopes(ctx context.Context, shop, scopes string) error
	MarkUninstalled(ctx context.Context, shop string) error
	// ClaimWebhookRegistration atomically sets webhooks_registered_at when unset.
	// Returns false when the shop is already registered.
	ClaimWebhookRegistration(ctx context.Context, shop string, at time.Time) (bool, error)
	ReleaseWebhookRegistration(ctx context.Context, shop string) error
	Delete(ctx context.Context, shop string) error
}

// WebhookEventRepository defines webhook audit data access methods
type WebhookEventRepository interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
	ListByShop(ctx context.Context, shop string, outcome domain.WebhookOutcome, limit int) ([]*domain.WebhookEvent, error)
	DeleteByShop(ctx context.Context, shop string) (int64, error)
}

// Repositories aggregates all repositories
type Repositories struct {
	Shipment      ShipmentRepository
	StoreSettings StoreSettingsRepository
	Shop          ShopRepository
	WebhookEvent  WebhookEventRepository
}
