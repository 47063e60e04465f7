// Package memory keeps repositories in process memory. It backs STORE_DRIVER=memory
// for local runs and the service tests, and mirrors the postgres semantics.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/pkg/errors"
)

// NewRepositories creates a new set of in-memory repositories
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		Shipment:      NewShipmentRepository(),
		StoreSettings: NewStoreSettingsRepository(),
		Shop:          NewShopRepository(),
		WebhookEvent:  NewWebhookEventRepository(),
	}
}

type shipmentKey struct {
	shop    string
	orderID string
}

type ShipmentRepository struct {
	mu   sync.Mutex
	rows map[shipmentKey]*domain.Shipment
	now  func() time.Time
}

// NewShipmentRepository creates an empty shipment repository
func NewShipmentRepository() *ShipmentRepository {
	return &ShipmentRepository{
		rows: make(map[shipmentKey]*domain.Shipment),
		now:  time.Now,
	}
}

func copyShipment(s *domain.Shipment) *domain.Shipment {
	c := *s
	return &c
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *ShipmentRepository) EnsureRow(ctx context.Context, shop, orderID, orderNumber string, initial domain.ShipmentStatus) (*domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	key := shipmentKey{shop, orderID}
	row, ok := r.rows[key]
	if !ok {
		row = &domain.Shipment{
			ID:                 uuid.New(),
			Shop:               shop,
			ShopifyOrderID:     orderID,
			ShopifyOrderNumber: orderNumber,
			Status:             initial,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		r.rows[key] = row
		return copyShipment(row), nil
	}

	if orderNumber != "" {
		row.ShopifyOrderNumber = orderNumber
	}
	if row.ShipmentID == nil && row.Status.CanTransitionTo(initial) {
		row.Status = initial
	}
	row.UpdatedAt = now
	return copyShipment(row), nil
}

func (r *ShipmentRepository) Get(ctx context.Context, shop, orderID string) (*domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[shipmentKey{shop, orderID}]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "shipment", ID: shop + "/" + orderID}
	}
	return copyShipment(row), nil
}

func (r *ShipmentRepository) ListByShop(ctx context.Context, shop string, filter repository.ShipmentFilter) ([]*domain.Shipment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*domain.Shipment
	for _, row := range r.rows {
		if row.Shop != shop {
			continue
		}
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		matched = append(matched, copyShipment(row))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*domain.Shipment{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

func (r *ShipmentRepository) upsert(shop, orderID, orderNumber string) *domain.Shipment {
	key := shipmentKey{shop, orderID}
	row, ok := r.rows[key]
	if !ok {
		now := r.now()
		row = &domain.Shipment{
			ID:                 uuid.New(),
			Shop:               shop,
			ShopifyOrderID:     orderID,
			ShopifyOrderNumber: orderNumber,
			CreatedAt:          now,
		}
		r.rows[key] = row
	}
	return row
}

func (r *ShipmentRepository) MarkSent(ctx context.Context, sent repository.SentShipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.upsert(sent.Shop, sent.ShopifyOrderID, sent.ShopifyOrderNumber)
	id := sent.ShipmentID
	sentAt := sent.SentAt
	row.ShipmentID = &id
	row.IsTemporaryID = sent.IsTemporaryID
	row.Status = domain.ShipmentStatusNew
	row.StatusDetails = strPtr(sent.StatusDetails)
	row.SentAt = &sentAt
	row.NextLookupAt = sent.NextLookupAt
	row.LookupAttempts = 0
	row.UpdatedAt = r.now()
	return nil
}

func (r *ShipmentRepository) MarkError(ctx context.Context, shop, orderID, orderNumber, details string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.upsert(shop, orderID, orderNumber)
	row.Status = domain.ShipmentStatusError
	row.StatusDetails = strPtr(details)
	row.UpdatedAt = r.now()
	return nil
}

func (r *ShipmentRepository) UpdateStatus(ctx context.Context, shop, orderID string, status domain.ShipmentStatus, details *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[shipmentKey{shop, orderID}]
	if !ok {
		return &errors.ErrNotFound{Resource: "shipment", ID: shop + "/" + orderID}
	}
	row.Status = status
	row.StatusDetails = details
	row.UpdatedAt = r.now()
	return nil
}

func (r *ShipmentRepository) ReplaceShipmentID(ctx context.Context, shop, orderID, shipmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[shipmentKey{shop, orderID}]
	if !ok {
		return &errors.ErrNotFound{Resource: "shipment", ID: shop + "/" + orderID}
	}
	id := shipmentID
	row.ShipmentID = &id
	row.IsTemporaryID = false
	row.Status = domain.ShipmentStatusNew
	row.StatusDetails = nil
	row.LookupAttempts = 0
	row.NextLookupAt = nil
	row.UpdatedAt = r.now()
	return nil
}

func (r *ShipmentRepository) ClaimSend(ctx context.Context, shop, orderID string, until time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[shipmentKey{shop, orderID}]
	if !ok {
		return false, nil
	}
	if row.SendLockedUntil != nil && row.SendLockedUntil.After(r.now()) {
		return false, nil
	}
	u := until
	row.SendLockedUntil = &u
	return true, nil
}

func (r *ShipmentRepository) ReleaseSend(ctx context.Context, shop, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row, ok := r.rows[shipmentKey{shop, orderID}]; ok {
		row.SendLockedUntil = nil
	}
	return nil
}

func (r *ShipmentRepository) ListDueLookups(ctx context.Context, now time.Time, limit int) ([]*domain.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*domain.Shipment
	for _, row := range r.rows {
		if row.IsTemporaryID && row.NextLookupAt != nil && !row.NextLookupAt.After(now) {
			due = append(due, copyShipment(row))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextLookupAt.Before(*due[j].NextLookupAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *ShipmentRepository) RecordLookupAttempt(ctx context.Context, shop, orderID string, next *time.Time, details string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[shipmentKey{shop, orderID}]
	if !ok {
		return &errors.ErrNotFound{Resource: "shipment", ID: shop + "/" + orderID}
	}
	row.LookupAttempts++
	row.NextLookupAt = next
	row.StatusDetails = strPtr(details)
	row.UpdatedAt = r.now()
	return nil
}

func (r *ShipmentRepository) DeleteByShop(ctx context.Context, shop string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key := range r.rows {
		if key.shop == shop {
			delete(r.rows, key)
			n++
		}
	}
	return n, nil
}

type StoreSettingsRepository struct {
	mu   sync.Mutex
	rows map[string]*domain.StoreSettings
}

// NewStoreSettingsRepository creates an empty settings repository
func NewStoreSettingsRepository() *StoreSettingsRepository {
	return &StoreSettingsRepository{rows: make(map[string]*domain.StoreSettings)}
}

func (r *StoreSettingsRepository) Get(ctx context.Context, shop string) (*domain.StoreSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[shop]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r *StoreSettingsRepository) Upsert(ctx context.Context, settings *domain.StoreSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	c := *settings
	if existing, ok := r.rows[settings.Shop]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.rows[settings.Shop] = &c
	settings.CreatedAt = c.CreatedAt
	settings.UpdatedAt = c.UpdatedAt
	return nil
}

func (r *StoreSettingsRepository) Delete(ctx context.Context, shop string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, shop)
	return nil
}

type ShopRepository struct {
	mu   sync.Mutex
	rows map[string]*domain.Shop
}

// NewShopRepository creates an empty shop repository
func NewShopRepository() *ShopRepository {
	return &ShopRepository{rows: make(map[string]*domain.Shop)}
}

func (r *ShopRepository) Get(ctx context.Context, shop string) (*domain.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[shop]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "shop", ID: shop}
	}
	c := *s
	return &c, nil
}

func (r *ShopRepository) UpsertInstall(ctx context.Context, shop, accessToken, scopes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	s, ok := r.rows[shop]
	if !ok {
		s = &domain.Shop{Shop: shop, InstalledAt: now}
		r.rows[shop] = s
	}
	token := accessToken
	s.AccessToken = &token
	s.Scopes = scopes
	s.UninstalledAt = nil
	s.UpdatedAt = now
	return nil
}

func (r *ShopRepository) UpdateScopes(ctx context.Context, shop, scopes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[shop]
	if !ok {
		return &errors.ErrNotFound{Resource: "shop", ID: shop}
	}
	s.Scopes = scopes
	s.UpdatedAt = time.Now()
	return nil
}

func (r *ShopRepository) MarkUninstalled(ctx context.Context, shop string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[shop]
	if !ok {
		return nil
	}
	now := time.Now()
	s.AccessToken = nil
	s.UninstalledAt = &now
	s.WebhooksRegisteredAt = nil
	s.UpdatedAt = now
	return nil
}

func (r *ShopRepository) ClaimWebhookRegistration(ctx context.Context, shop string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[shop]
	if !ok {
		return false, &errors.ErrNotFound{Resource: "shop", ID: shop}
	}
	if s.WebhooksRegisteredAt != nil {
		return false, nil
	}
	t := at
	s.WebhooksRegisteredAt = &t
	return true, nil
}

func (r *ShopRepository) ReleaseWebhookRegistration(ctx context.Context, shop string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.rows[shop]; ok {
		s.WebhooksRegisteredAt = nil
	}
	return nil
}

func (r *ShopRepository) Delete(ctx context.Context, shop string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, shop)
	return nil
}

type WebhookEventRepository struct {
	mu     sync.Mutex
	events []*domain.WebhookEvent
}

// NewWebhookEventRepository creates an empty webhook event repository
func NewWebhookEventRepository() *WebhookEventRepository {
	return &WebhookEventRepository{}
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}
	c := *event
	r.events = append(r.events, &c)
	return nil
}

func (r *WebhookEventRepository) ListByShop(ctx context.Context, shop string, outcome domain.WebhookOutcome, limit int) ([]*domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.WebhookEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.Shop != shop || (outcome != "" && e.Outcome != outcome) {
			continue
		}
		c := *e
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *WebhookEventRepository) DeleteByShop(ctx context.Context, shop string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	var n int64
	for _, e := range r.events {
		if e.Shop == shop {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return n, nil
}
