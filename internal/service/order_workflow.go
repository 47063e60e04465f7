package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/delifast"
	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/events"
	"github.com/jafarshop/delifast/internal/mapper"
	"github.com/jafarshop/delifast/internal/metrics"
	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/internal/shopify"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

const (
	// DefaultLookupDelay is how long Delifast usually needs to assign an id
	DefaultLookupDelay = 15 * time.Minute
	// sendLockTTL bounds how long a crashed send can block the order
	sendLockTTL = 2 * time.Minute

	temporaryIDDetails = "Shipment created, waiting for Delifast to assign an id"
)

// CarrierClient is the part of the Delifast client the workflow uses
type CarrierClient interface {
	CreateShipment(ctx context.Context, shop string, order *delifast.OrderData) (*delifast.CreateShipmentResult, error)
	GetShipmentStatus(ctx context.Context, shop, shipmentID string) (*delifast.ShipmentStatusResult, error)
	FindShipmentByReference(ctx context.Context, shop, reference string) (string, error)
}

// OrderAnnotator writes shipment state back onto Shopify orders
type OrderAnnotator interface {
	SetOrderMetafields(ctx context.Context, shop, orderID string, fields ...Metafield) error
	AddOrderTags(ctx context.Context, shop, orderID string, tags ...string) error
}

// SendSource tells the workflow who asked for a send
type SendSource string

const (
	// SendSourceWebhook sends are skipped when the order already has a real shipment id
	SendSourceWebhook SendSource = "webhook"
	// SendSourceManual sends always reach the carrier
	SendSourceManual SendSource = "manual"
)

// SendResult is the outcome of SendOrder
type SendResult struct {
	ShipmentID  string                `json:"shipment_id"`
	IsTemporary bool                  `json:"is_temporary"`
	Status      domain.ShipmentStatus `json:"status"`
	AlreadySent bool                  `json:"already_sent"`
}

// StatusResult is the outcome of RefreshStatus
type StatusResult struct {
	ShipmentID    string                `json:"shipment_id"`
	Status        domain.ShipmentStatus `json:"status"`
	StatusDetails string                `json:"status_details,omitempty"`
	IsTemporary   bool                  `json:"is_temporary"`
}

// OrderWorkflow moves Shopify orders through the Delifast shipment lifecycle
type OrderWorkflow struct {
	repos       *repository.Repositories
	carrier     CarrierClient
	annotator   OrderAnnotator
	publisher   events.Publisher
	metrics     *metrics.Metrics
	logger      *zap.Logger
	lookupDelay time.Duration
	now         func() time.Time
}

// NewOrderWorkflow creates the order workflow
func NewOrderWorkflow(repos *repository.Repositories, carrier CarrierClient, annotator OrderAnnotator, publisher events.Publisher, logger *zap.Logger) *OrderWorkflow {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OrderWorkflow{
		repos:       repos,
		carrier:     carrier,
		annotator:   annotator,
		publisher:   publisher,
		logger:      logger,
		lookupDelay: DefaultLookupDelay,
		now:         time.Now,
	}
}

// WithLookupDelay overrides the delay before the first id lookup
func (w *OrderWorkflow) WithLookupDelay(d time.Duration) *OrderWorkflow {
	if d > 0 {
		w.lookupDelay = d
	}
	return w
}

// WithMetrics counts sends and lookups in m
func (w *OrderWorkflow) WithMetrics(m *metrics.Metrics) *OrderWorkflow {
	w.metrics = m
	return w
}

// HandleOrderCreated records the order and sends it when the store auto-sends on creation
func (w *OrderWorkflow) HandleOrderCreated(ctx context.Context, shop string, order *shopify.Order) error {
	orderID := order.IDString()
	logger := w.logger.With(zap.String("shop", shop), zap.String("order_id", orderID))
	logger.Info("Order created", zap.Any("order", mapper.ExtractOrderInfo(order)))

	if _, err := w.repos.Shipment.EnsureRow(ctx, shop, orderID, order.OrderNumberString(), domain.ShipmentStatusPending); err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}

	return w.autoSend(ctx, shop, order, domain.AutoSendTriggerCreated)
}

// HandleOrderPaid promotes the order to ready and sends it when the store auto-sends on payment
func (w *OrderWorkflow) HandleOrderPaid(ctx context.Context, shop string, order *shopify.Order) error {
	orderID := order.IDString()
	logger := w.logger.With(zap.String("shop", shop), zap.String("order_id", orderID))

	row, err := w.repos.Shipment.EnsureRow(ctx, shop, orderID, order.OrderNumberString(), domain.ShipmentStatusReady)
	if err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}
	if row.HasRealShipmentID() {
		logger.Info("Order already sent to Delifast, ignoring paid webhook", zap.String("shipment_id", *row.ShipmentID))
		return nil
	}

	return w.autoSend(ctx, shop, order, domain.AutoSendTriggerPaid)
}

// HandleOrderUpdated only logs; updates do not change shipment state
func (w *OrderWorkflow) HandleOrderUpdated(ctx context.Context, shop string, order *shopify.Order) error {
	w.logger.Info("Order updated",
		zap.String("shop", shop),
		zap.String("order_id", order.IDString()),
		zap.String("financial_status", order.FinancialStatus),
		zap.String("fulfillment_status", order.FulfillmentStatus),
	)
	return nil
}

func (w *OrderWorkflow) autoSend(ctx context.Context, shop string, order *shopify.Order, trigger domain.AutoSendTrigger) error {
	settings, err := w.repos.StoreSettings.Get(ctx, shop)
	if err != nil {
		return fmt.Errorf("failed to load store settings: %w", err)
	}
	if !mapper.ShouldAutoSend(settings, trigger) {
		w.logger.Debug("Auto-send not configured for trigger",
			zap.String("shop", shop),
			zap.String("order_id", order.IDString()),
			zap.String("trigger", string(trigger)),
		)
		return nil
	}

	_, err = w.SendOrder(ctx, shop, order, SendSourceWebhook)
	var conflict *pkgerrors.ErrConflict
	if errors.As(err, &conflict) {
		// another delivery of the same order is sending it
		w.logger.Info("Send already in progress", zap.String("shop", shop), zap.String("order_id", order.IDString()))
		return nil
	}
	return err
}

// SendOrder creates the Delifast shipment for an order
func (w *OrderWorkflow) SendOrder(ctx context.Context, shop string, order *shopify.Order, source SendSource) (*SendResult, error) {
	orderID := order.IDString()
	orderNumber := order.OrderNumberString()
	logger := w.logger.With(zap.String("shop", shop), zap.String("order_id", orderID), zap.String("source", string(source)))

	row, err := w.repos.Shipment.EnsureRow(ctx, shop, orderID, orderNumber, domain.ShipmentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}
	if source == SendSourceWebhook && row.HasRealShipmentID() {
		return alreadySent(row), nil
	}

	claimed, err := w.repos.Shipment.ClaimSend(ctx, shop, orderID, w.now().Add(sendLockTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to lock order for sending: %w", err)
	}
	if !claimed {
		return nil, &pkgerrors.ErrConflict{Message: fmt.Sprintf("order %s is already being sent", orderID)}
	}
	defer func() {
		if err := w.repos.Shipment.ReleaseSend(context.WithoutCancel(ctx), shop, orderID); err != nil {
			logger.Warn("Failed to release send lock", zap.Error(err))
		}
	}()

	// a concurrent delivery may have finished between EnsureRow and the claim
	if source == SendSourceWebhook {
		row, err = w.repos.Shipment.Get(ctx, shop, orderID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload shipment: %w", err)
		}
		if row.HasRealShipmentID() {
			return alreadySent(row), nil
		}
	}

	settings, err := w.repos.StoreSettings.Get(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to load store settings: %w", err)
	}
	if settings == nil {
		return nil, w.failSend(ctx, shop, orderID, orderNumber, &pkgerrors.ErrNotFound{Resource: "store_settings", ID: shop})
	}

	prepared, err := mapper.PrepareOrder(order, settings)
	if err != nil {
		return nil, w.failSend(ctx, shop, orderID, orderNumber, err)
	}
	if prepared.Payment.Fallback {
		logger.Warn("Order is neither cash on delivery nor paid, sending as cash on delivery",
			zap.String("gateway", prepared.Payment.Gateway),
			zap.String("financial_status", prepared.Payment.FinancialStatus),
		)
	}

	created, err := w.carrier.CreateShipment(ctx, shop, prepared.Order)
	if err != nil {
		return nil, w.failSend(ctx, shop, orderID, orderNumber, fmt.Errorf("failed to create delifast shipment: %w", err))
	}

	now := w.now()
	result := &SendResult{
		ShipmentID: created.ShipmentID,
		Status:     domain.ShipmentStatusNew,
	}
	sent := repository.SentShipment{
		Shop:               shop,
		ShopifyOrderID:     orderID,
		ShopifyOrderNumber: orderNumber,
		ShipmentID:         created.ShipmentID,
		SentAt:             now,
	}
	if created.ShipmentID == "" || created.NeedsLookup {
		next := now.Add(w.lookupDelay)
		result.ShipmentID = domain.GenerateTemporaryID(orderNumber)
		result.IsTemporary = true
		sent.ShipmentID = result.ShipmentID
		sent.IsTemporaryID = true
		sent.StatusDetails = temporaryIDDetails
		sent.NextLookupAt = &next
	}

	if err := w.repos.Shipment.MarkSent(ctx, sent); err != nil {
		return nil, fmt.Errorf("failed to save shipment: %w", err)
	}
	if result.IsTemporary {
		w.metrics.ShipmentSend(metrics.SendTemporary)
	} else {
		w.metrics.ShipmentSend(metrics.SendSent)
	}

	logger.Info("Order sent to Delifast",
		zap.String("shipment_id", result.ShipmentID),
		zap.Bool("is_temporary", result.IsTemporary),
		zap.Bool("cod", prepared.Payment.IsCOD || prepared.Payment.Fallback),
	)

	w.annotate(ctx, shop, orderID,
		[]Metafield{
			{Key: shopify.MetafieldShipmentID, Value: result.ShipmentID},
			{Key: shopify.MetafieldStatus, Value: string(result.Status)},
			{Key: shopify.MetafieldIsTemporary, Value: strconv.FormatBool(result.IsTemporary)},
		},
		result.Status.ShopifyTag(), "delifast-sent",
	)

	w.publish(ctx, events.ShipmentEvent{
		Type:           events.TypeShipmentSent,
		Shop:           shop,
		ShopifyOrderID: orderID,
		OrderNumber:    orderNumber,
		ShipmentID:     result.ShipmentID,
		IsTemporaryID:  result.IsTemporary,
		Status:         string(result.Status),
		PreviousStatus: string(row.Status),
	})

	return result, nil
}

func alreadySent(row *domain.Shipment) *SendResult {
	return &SendResult{
		ShipmentID:  *row.ShipmentID,
		Status:      row.Status,
		AlreadySent: true,
	}
}

// failSend persists the error on the row and returns cause
func (w *OrderWorkflow) failSend(ctx context.Context, shop, orderID, orderNumber string, cause error) error {
	w.logger.Error("Failed to send order to Delifast",
		zap.String("shop", shop),
		zap.String("order_id", orderID),
		zap.Error(cause),
	)
	w.metrics.ShipmentSend(metrics.SendFailed)
	if err := w.repos.Shipment.MarkError(ctx, shop, orderID, orderNumber, cause.Error()); err != nil {
		w.logger.Error("Failed to save shipment error", zap.String("order_id", orderID), zap.Error(err))
	}
	w.publish(ctx, events.ShipmentEvent{
		Type:           events.TypeShipmentFailed,
		Shop:           shop,
		ShopifyOrderID: orderID,
		OrderNumber:    orderNumber,
		Status:         string(domain.ShipmentStatusError),
		Details:        cause.Error(),
	})
	return cause
}

// RefreshStatus pulls the carrier status for a sent order
func (w *OrderWorkflow) RefreshStatus(ctx context.Context, shop, orderID string) (*StatusResult, error) {
	row, err := w.repos.Shipment.Get(ctx, shop, orderID)
	if err != nil {
		return nil, err
	}
	if row.ShipmentID == nil || *row.ShipmentID == "" {
		return nil, &pkgerrors.ErrNotFound{Resource: "shipment_id", ID: shop + "/" + orderID}
	}
	if row.IsTemporary() {
		return &StatusResult{
			ShipmentID:  *row.ShipmentID,
			Status:      domain.ShipmentStatusNew,
			IsTemporary: true,
		}, nil
	}

	status, err := w.carrier.GetShipmentStatus(ctx, shop, *row.ShipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get delifast status: %w", err)
	}

	newStatus := domain.ShipmentStatus(status.Status)
	var details *string
	if status.StatusDetails != "" {
		details = &status.StatusDetails
	}
	if err := w.repos.Shipment.UpdateStatus(ctx, shop, orderID, newStatus, details); err != nil {
		return nil, fmt.Errorf("failed to save shipment status: %w", err)
	}

	w.annotate(ctx, shop, orderID,
		[]Metafield{
			{Key: shopify.MetafieldStatus, Value: status.Status},
			{Key: shopify.MetafieldStatusDetails, Value: status.StatusDetails},
		},
		newStatus.ShopifyTag(),
	)

	if newStatus != row.Status {
		w.publish(ctx, events.ShipmentEvent{
			Type:           events.TypeShipmentStatusChanged,
			Shop:           shop,
			ShopifyOrderID: orderID,
			OrderNumber:    row.ShopifyOrderNumber,
			ShipmentID:     *row.ShipmentID,
			Status:         status.Status,
			PreviousStatus: string(row.Status),
			Details:        status.StatusDetails,
		})
	}

	return &StatusResult{
		ShipmentID:    *row.ShipmentID,
		Status:        newStatus,
		StatusDetails: status.StatusDetails,
	}, nil
}

// ReplaceTemporaryID stores the real Delifast id for an order and refreshes its status once
func (w *OrderWorkflow) ReplaceTemporaryID(ctx context.Context, shop, orderID, shipmentID string) (*StatusResult, error) {
	if shipmentID == "" {
		return nil, &pkgerrors.ErrValidation{Message: "shipment_id is required"}
	}
	if domain.IsTemporaryID(shipmentID) {
		return nil, &pkgerrors.ErrValidation{Message: "shipment_id must be a Delifast id, not a temporary one"}
	}

	row, err := w.repos.Shipment.Get(ctx, shop, orderID)
	if err != nil {
		return nil, err
	}
	if err := w.repos.Shipment.ReplaceShipmentID(ctx, shop, orderID, shipmentID); err != nil {
		return nil, fmt.Errorf("failed to replace shipment id: %w", err)
	}

	previous := ""
	if row.ShipmentID != nil {
		previous = *row.ShipmentID
	}
	w.logger.Info("Shipment id replaced",
		zap.String("shop", shop),
		zap.String("order_id", orderID),
		zap.String("previous_shipment_id", previous),
		zap.String("shipment_id", shipmentID),
	)

	w.annotate(ctx, shop, orderID, []Metafield{
		{Key: shopify.MetafieldShipmentID, Value: shipmentID},
		{Key: shopify.MetafieldIsTemporary, Value: "false"},
	})

	w.publish(ctx, events.ShipmentEvent{
		Type:           events.TypeShipmentIDReplaced,
		Shop:           shop,
		ShopifyOrderID: orderID,
		OrderNumber:    row.ShopifyOrderNumber,
		ShipmentID:     shipmentID,
		Status:         string(domain.ShipmentStatusNew),
		PreviousStatus: string(row.Status),
		Details:        previous,
	})

	return w.RefreshStatus(ctx, shop, orderID)
}

// GetShipment returns the stored shipment for an order
func (w *OrderWorkflow) GetShipment(ctx context.Context, shop, orderID string) (*domain.Shipment, error) {
	return w.repos.Shipment.Get(ctx, shop, orderID)
}

// ListShipments pages through a shop's shipments, newest first
func (w *OrderWorkflow) ListShipments(ctx context.Context, shop string, filter repository.ShipmentFilter) ([]*domain.Shipment, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return w.repos.Shipment.ListByShop(ctx, shop, filter)
}

// annotate writes metafields and tags, logging failures without returning them
func (w *OrderWorkflow) annotate(ctx context.Context, shop, orderID string, fields []Metafield, tags ...string) {
	if w.annotator == nil {
		return
	}
	if err := w.annotator.SetOrderMetafields(ctx, shop, orderID, fields...); err != nil {
		w.logger.Warn("Failed to update order metafields", zap.String("shop", shop), zap.String("order_id", orderID), zap.Error(err))
	}
	if len(tags) == 0 {
		return
	}
	if err := w.annotator.AddOrderTags(ctx, shop, orderID, tags...); err != nil {
		w.logger.Warn("Failed to add order tags", zap.String("shop", shop), zap.String("order_id", orderID), zap.Error(err))
	}
}

func (w *OrderWorkflow) publish(ctx context.Context, event events.ShipmentEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = w.now().UTC()
	}
	if err := w.publisher.Publish(ctx, event); err != nil {
		w.logger.Warn("Failed to publish shipment event", zap.String("type", event.Type), zap.Error(err))
	}
}
