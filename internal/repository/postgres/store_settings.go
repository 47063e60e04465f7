package postgres

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
)

type storeSettingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStoreSettingsRepository creates a new store settings repository
func NewStoreSettingsRepository(db *sql.DB, logger *zap.Logger) *storeSettingsRepository {
	return &storeSettingsRepository{
		db:     db,
		logger: logger,
	}
}

func (r *storeSettingsRepository) Get(ctx context.Context, shop string) (*domain.StoreSettings, error) {
	query := `
		SELECT shop, mode, auto_send_status, default_city_id, fees_on_sender, fees_paid, created_at, updated_at
		FROM store_settings
		WHERE shop = $1
	`

	var s domain.StoreSettings
	err := r.db.QueryRowContext(ctx, query, shop).Scan(
		&s.Shop,
		&s.Mode,
		&s.AutoSendStatus,
		&s.DefaultCityID,
		&s.FeesOnSender,
		&s.FeesPaid,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get store settings", zap.String("shop", shop), zap.Error(err))
		return nil, err
	}
	return &s, nil
}

func (r *storeSettingsRepository) Upsert(ctx context.Context, settings *domain.StoreSettings) error {
	query := `
		INSERT INTO store_settings (shop, mode, auto_send_status, default_city_id, fees_on_sender, fees_paid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (shop) DO UPDATE SET
			mode = EXCLUDED.mode,
			auto_send_status = EXCLUDED.auto_send_status,
			default_city_id = EXCLUDED.default_city_id,
			fees_on_sender = EXCLUDED.fees_on_sender,
			fees_paid = EXCLUDED.fees_paid,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		settings.Shop,
		settings.Mode,
		settings.AutoSendStatus,
		settings.DefaultCityID,
		settings.FeesOnSender,
		settings.FeesPaid,
		time.Now(),
	).Scan(&settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert store settings", zap.String("shop", settings.Shop), zap.Error(err))
		return constraintError(err)
	}
	return nil
}

func (r *storeSettingsRepository) Delete(ctx context.Context, shop string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM store_settings WHERE shop = $1`, shop); err != nil {
		r.logger.Error("Failed to delete store settings", zap.String("shop", shop), zap.Error(err))
		return err
	}
	return nil
}
