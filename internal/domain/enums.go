package domain

import "strings"

// ShipmentStatus is the lifecycle status of a shipment row. Besides the local
// statuses below, any status string reported by Delifast is stored as-is.
type ShipmentStatus string

const (
	// PENDING - order seen, waiting for auto-send or a manual send
	ShipmentStatusPending ShipmentStatus = "pending"
	// READY - order paid, still not sent
	ShipmentStatusReady ShipmentStatus = "ready"
	// NEW - shipment created at Delifast (id may still be temporary)
	ShipmentStatusNew ShipmentStatus = "new"
	// ERROR - last send attempt failed, see status details
	ShipmentStatusError ShipmentStatus = "error"
)

// IsLocal reports whether the status is one this service assigns itself
// (as opposed to a carrier-defined status)
func (s ShipmentStatus) IsLocal() bool {
	switch s {
	case ShipmentStatusPending, ShipmentStatusReady, ShipmentStatusNew, ShipmentStatusError:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks whether an order webhook may move a not-yet-sent row
// to newStatus. Sends, refreshes and id corrections write statuses directly.
func (s ShipmentStatus) CanTransitionTo(newStatus ShipmentStatus) bool {
	switch s {
	case ShipmentStatusPending:
		return newStatus == ShipmentStatusReady
	default:
		return false
	}
}

// ShopifyTag returns the order tag mirroring a status, e.g. "delifast-new"
// or "delifast-out-for-delivery" for a carrier status "Out for delivery".
func (s ShipmentStatus) ShopifyTag() string {
	v := strings.ToLower(strings.TrimSpace(string(s)))
	v = strings.Join(strings.FieldsFunc(v, func(r rune) bool {
		return r == ' ' || r == '_' || r == '/' || r == '-'
	}), "-")
	if v == "" {
		v = "unknown"
	}
	return "delifast-" + v
}

// DeliveryMode is the store's delivery mode
type DeliveryMode string

const (
	DeliveryModeAuto   DeliveryMode = "auto"
	DeliveryModeManual DeliveryMode = "manual"
)

// AutoSendTrigger is the order event that triggers an automatic send
type AutoSendTrigger string

const (
	AutoSendTriggerCreated   AutoSendTrigger = "created"
	AutoSendTriggerPaid      AutoSendTrigger = "paid"
	AutoSendTriggerFulfilled AutoSendTrigger = "fulfilled"
)

// WebhookOutcome records what happened to a verified webhook delivery
type WebhookOutcome string

const (
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeFailed    WebhookOutcome = "failed"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
)

// TemporaryIDPrefix marks locally generated shipment ids. Delifast ids are numeric
// so the prefix can never collide with a real id.
const TemporaryIDPrefix = "TEMP-"

// GenerateTemporaryID builds the placeholder shipment id for an order number
func GenerateTemporaryID(orderNumber string) string {
	return TemporaryIDPrefix + strings.TrimPrefix(strings.TrimSpace(orderNumber), "#")
}

// IsTemporaryID reports whether a shipment id is a local placeholder
func IsTemporaryID(shipmentID string) bool {
	return strings.HasPrefix(shipmentID, TemporaryIDPrefix)
}
