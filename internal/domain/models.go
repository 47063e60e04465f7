package domain

import (
	"time"

	"github.com/google/uuid"
)

// Shipment tracks one Shopify order at Delifast. Unique per (Shop, ShopifyOrderID).
type Shipment struct {
	ID                 uuid.UUID
	Shop               string
	ShopifyOrderID     string
	ShopifyOrderNumber string
	ShipmentID         *string
	IsTemporaryID      bool
	Status             ShipmentStatus
	StatusDetails      *string
	SentAt             *time.Time
	NextLookupAt       *time.Time
	LookupAttempts     int
	SendLockedUntil    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasRealShipmentID reports whether the order already reached Delifast with a
// resolvable id
func (s *Shipment) HasRealShipmentID() bool {
	if s == nil || s.ShipmentID == nil || *s.ShipmentID == "" {
		return false
	}
	return !s.IsTemporaryID && !IsTemporaryID(*s.ShipmentID)
}

// IsTemporary reports whether the stored id is a placeholder
func (s *Shipment) IsTemporary() bool {
	if s == nil {
		return false
	}
	return s.IsTemporaryID || (s.ShipmentID != nil && IsTemporaryID(*s.ShipmentID))
}

// StoreSettings is the merchant configuration for a shop
type StoreSettings struct {
	Shop           string          `json:"shop"`
	Mode           DeliveryMode    `json:"mode" validate:"required,oneof=auto manual"`
	AutoSendStatus AutoSendTrigger `json:"auto_send_status" validate:"required,oneof=created paid fulfilled"`
	DefaultCityID  string          `json:"default_city_id" validate:"required,max=32"`
	FeesOnSender   bool            `json:"fees_on_sender"`
	FeesPaid       bool            `json:"fees_paid"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Shop is an installed store. WebhooksRegisteredAt doubles as the idempotency
// record for webhook registration.
type Shop struct {
	Shop                 string
	AccessToken          *string
	Scopes               string
	InstalledAt          time.Time
	UninstalledAt        *time.Time
	WebhooksRegisteredAt *time.Time
	UpdatedAt            time.Time
}

// WebhookEvent is an audit record of a verified webhook delivery
type WebhookEvent struct {
	ID         uuid.UUID
	WebhookID  string
	Shop       string
	Topic      string
	Outcome    WebhookOutcome
	Error      *string
	ReceivedAt time.Time
}
