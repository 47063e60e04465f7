package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/pkg/errors"
)

const shipmentColumns = `id, shop, shopify_order_id, shopify_order_number, shipment_id, is_temporary_id,
	status, status_details, sent_at, next_lookup_at, lookup_attempts, send_locked_until,
	created_at, updated_at`

type shipmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewShipmentRepository creates a new shipment repository
func NewShipmentRepository(db *sql.DB, logger *zap.Logger) *shipmentRepository {
	return &shipmentRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (*domain.Shipment, error) {
	var s domain.Shipment
	var shipmentID sql.NullString
	var statusDetails sql.NullString
	var sentAt sql.NullTime
	var nextLookupAt sql.NullTime
	var sendLockedUntil sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.Shop,
		&s.ShopifyOrderID,
		&s.ShopifyOrderNumber,
		&shipmentID,
		&s.IsTemporaryID,
		&s.Status,
		&statusDetails,
		&sentAt,
		&nextLookupAt,
		&s.LookupAttempts,
		&sendLockedUntil,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if shipmentID.Valid {
		s.ShipmentID = &shipmentID.String
	}
	if statusDetails.Valid {
		s.StatusDetails = &statusDetails.String
	}
	if sentAt.Valid {
		s.SentAt = &sentAt.Time
	}
	if nextLookupAt.Valid {
		s.NextLookupAt = &nextLookupAt.Time
	}
	if sendLockedUntil.Valid {
		s.SendLockedUntil = &sendLockedUntil.Time
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func notFound(shop, orderID string) error {
	return &errors.ErrNotFound{Resource: "shipment", ID: shop + "/" + orderID}
}

func (r *shipmentRepository) EnsureRow(ctx context.Context, shop, orderID, orderNumber string, initial domain.ShipmentStatus) (*domain.Shipment, error) {
	query := `
		INSERT INTO shipments (id, shop, shopify_order_id, shopify_order_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (shop, shopify_order_id) DO UPDATE SET
			shopify_order_number = COALESCE(NULLIF(EXCLUDED.shopify_order_number, ''), shipments.shopify_order_number),
			status = CASE
				WHEN shipments.shipment_id IS NULL AND shipments.status = 'pending' AND EXCLUDED.status = 'ready'
				THEN EXCLUDED.status
				ELSE shipments.status
			END,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + shipmentColumns

	row := r.db.QueryRowContext(ctx, query, uuid.New(), shop, orderID, orderNumber, initial, time.Now())
	s, err := scanShipment(row)
	if err != nil {
		r.logger.Error("Failed to ensure shipment row",
			zap.String("shop", shop),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, err
	}
	return s, nil
}

func (r *shipmentRepository) Get(ctx context.Context, shop, orderID string) (*domain.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE shop = $1 AND shopify_order_id = $2`

	s, err := scanShipment(r.db.QueryRowContext(ctx, query, shop, orderID))
	if err == sql.ErrNoRows {
		return nil, notFound(shop, orderID)
	}
	if err != nil {
		r.logger.Error("Failed to get shipment", zap.String("shop", shop), zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}
	return s, nil
}

func (r *shipmentRepository) ListByShop(ctx context.Context, shop string, filter repository.ShipmentFilter) ([]*domain.Shipment, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM shipments WHERE shop = $1 AND ($2 = '' OR status = $2)`
	if err := r.db.QueryRowContext(ctx, countQuery, shop, string(filter.Status)).Scan(&total); err != nil {
		r.logger.Error("Failed to count shipments", zap.String("shop", shop), zap.Error(err))
		return nil, 0, err
	}

	query := `
		SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE shop = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, query, shop, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		r.logger.Error("Failed to list shipments", zap.String("shop", shop), zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	shipments := []*domain.Shipment{}
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, 0, err
		}
		shipments = append(shipments, s)
	}
	return shipments, total, rows.Err()
}

func (r *shipmentRepository) MarkSent(ctx context.Context, sent repository.SentShipment) error {
	query := `
		INSERT INTO shipments (
			id, shop, shopify_order_id, shopify_order_number, shipment_id, is_temporary_id,
			status, status_details, sent_at, next_lookup_at, lookup_attempts, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $11)
		ON CONFLICT (shop, shopify_order_id) DO UPDATE SET
			shipment_id = EXCLUDED.shipment_id,
			is_temporary_id = EXCLUDED.is_temporary_id,
			status = EXCLUDED.status,
			status_details = EXCLUDED.status_details,
			sent_at = EXCLUDED.sent_at,
			next_lookup_at = EXCLUDED.next_lookup_at,
			lookup_attempts = 0,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New(),
		sent.Shop,
		sent.ShopifyOrderID,
		sent.ShopifyOrderNumber,
		sent.ShipmentID,
		sent.IsTemporaryID,
		domain.ShipmentStatusNew,
		nullString(sent.StatusDetails),
		sent.SentAt,
		sent.NextLookupAt,
		time.Now(),
	)
	if err != nil {
		r.logger.Error("Failed to mark shipment sent",
			zap.String("shop", sent.Shop),
			zap.String("order_id", sent.ShopifyOrderID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (r *shipmentRepository) MarkError(ctx context.Context, shop, orderID, orderNumber, details string) error {
	query := `
		INSERT INTO shipments (id, shop, shopify_order_id, shopify_order_number, status, status_details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (shop, shopify_order_id) DO UPDATE SET
			status = EXCLUDED.status,
			status_details = EXCLUDED.status_details,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New(), shop, orderID, orderNumber, domain.ShipmentStatusError, nullString(details), time.Now())
	if err != nil {
		r.logger.Error("Failed to mark shipment error", zap.String("shop", shop), zap.String("order_id", orderID), zap.Error(err))
		return err
	}
	return nil
}

func (r *shipmentRepository) UpdateStatus(ctx context.Context, shop, orderID string, status domain.ShipmentStatus, details *string) error {
	query := `
		UPDATE shipments
		SET status = $3, status_details = $4, updated_at = $5
		WHERE shop = $1 AND shopify_order_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, shop, orderID, status, details, time.Now())
	if err != nil {
		r.logger.Error("Failed to update shipment status", zap.String("shop", shop), zap.String("order_id", orderID), zap.Error(err))
		return err
	}
	return requireAffected(result, shop, orderID)
}

func (r *shipmentRepository) ReplaceShipmentID(ctx context.Context, shop, orderID, shipmentID string) error {
	query := `
		UPDATE shipments
		SET shipment_id = $3,
			is_temporary_id = FALSE,
			status = $4,
			status_details = NULL,
			lookup_attempts = 0,
			next_lookup_at = NULL,
			updated_at = $5
		WHERE shop = $1 AND shopify_order_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, shop, orderID, shipmentID, domain.ShipmentStatusNew, time.Now())
	if err != nil {
		r.logger.Error("Failed to replace shipment id", zap.String("shop", shop), zap.String("order_id", orderID), zap.Error(err))
		return err
	}
	return requireAffected(result, shop, orderID)
}

func (r *shipmentRepository) ClaimSend(ctx context.Context, shop, orderID string, until time.Time) (bool, error) {
	query := `
		UPDATE shipments
		SET send_locked_until = $3
		WHERE shop = $1 AND shopify_order_id = $2
			AND (send_locked_until IS NULL OR send_locked_until < NOW())
	`

	result, err := r.db.ExecContext(ctx, query, shop, orderID, until)
	if err != nil {
		r.logger.Error("Failed to claim send lock", zap.String("shop", shop), zap.String("order_id", orderID), zap.Error(err))
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *shipmentRepository) ReleaseSend(ctx context.Context, shop, orderID string) error {
	query := `UPDATE shipments SET send_locked_until = NULL WHERE shop = $1 AND shopify_order_id = $2`

	if _, err := r.db.ExecContext(ctx, query, shop, orderID); err != nil {
		r.logger.Error("Failed to release send lock", zap.String("shop", shop), zap.String("order_id", orderID), zap.Error(err))
		return err
	}
	return nil
}

func (r *shipmentRepository) ListDueLookups(ctx context.Context, now time.Time, limit int) ([]*domain.Shipment, error) {
	query := `
		SELECT ` + shipmentColumns + `
		FROM shipments
		WHERE is_temporary_id AND next_lookup_at IS NOT NULL AND next_lookup_at <= $1
		ORDER BY next_lookup_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		r.logger.Error("Failed to list due lookups", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var due []*domain.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, s)
	}
	return due, rows.Err()
}

func (r *shipmentRepository) RecordLookupAttempt(ctx context.Context, shop, orderID string, next *time.Time, details string) error {
	query := `
		UPDATE shipments
		SET lookup_attempts = lookup_attempts + 1,
			next_lookup_at = $3,
			status_details = $4,
			updated_at = $5
		WHERE shop = $1 AND shopify_order_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, shop, orderID, next, nullString(details), time.Now())
	if err != nil {
		r.logger.Error("Failed to record lookup attempt", zap.String("shop", shop), zap.String("order_id", orderID), zap.Error(err))
		return err
	}
	return requireAffected(result, shop, orderID)
}

func (r *shipmentRepository) DeleteByShop(ctx context.Context, shop string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM shipments WHERE shop = $1`, shop)
	if err != nil {
		r.logger.Error("Failed to delete shipments", zap.String("shop", shop), zap.Error(err))
		return 0, err
	}
	return result.RowsAffected()
}

func requireAffected(result sql.Result, shop, orderID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(shop, orderID)
	}
	return nil
}
