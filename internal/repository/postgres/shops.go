package postgres

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/pkg/errors"
)

type shopRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewShopRepository creates a new shop repository
func NewShopRepository(db *sql.DB, logger *zap.Logger) *shopRepository {
	return &shopRepository{
		db:     db,
		logger: logger,
	}
}

func (r *shopRepository) Get(ctx context.Context, shop string) (*domain.Shop, error) {
	query := `
		SELECT shop, access_token, scopes, installed_at, uninstalled_at, webhooks_registered_at, updated_at
		FROM shops
		WHERE shop = $1
	`

	var s domain.Shop
	var accessToken sql.NullString
	var uninstalledAt sql.NullTime
	var registeredAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, shop).Scan(
		&s.Shop,
		&accessToken,
		&s.Scopes,
		&s.InstalledAt,
		&uninstalledAt,
		&registeredAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "shop", ID: shop}
	}
	if err != nil {
		r.logger.Error("Failed to get shop", zap.String("shop", shop), zap.Error(err))
		return nil, err
	}

	if accessToken.Valid {
		s.AccessToken = &accessToken.String
	}
	if uninstalledAt.Valid {
		s.UninstalledAt = &uninstalledAt.Time
	}
	if registeredAt.Valid {
		s.WebhooksRegisteredAt = &registeredAt.Time
	}
	return &s, nil
}

func (r *shopRepository) UpsertInstall(ctx context.Context, shop, accessToken, scopes string) error {
	query := `
		INSERT INTO shops (shop, access_token, scopes, installed_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (shop) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			scopes = EXCLUDED.scopes,
			uninstalled_at = NULL,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, shop, accessToken, scopes, time.Now()); err != nil {
		r.logger.Error("Failed to save shop install", zap.String("shop", shop), zap.Error(err))
		return err
	}
	return nil
}

func (r *shopRepository) UpdateScopes(ctx context.Context, shop, scopes string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE shops SET scopes = $2, updated_at = $3 WHERE shop = $1`, shop, scopes, time.Now())
	if err != nil {
		r.logger.Error("Failed to update shop scopes", zap.String("shop", shop), zap.Error(err))
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &errors.ErrNotFound{Resource: "shop", ID: shop}
	}
	return nil
}

func (r *shopRepository) MarkUninstalled(ctx context.Context, shop string) error {
	query := `
		UPDATE shops
		SET access_token = NULL, uninstalled_at = $2, webhooks_registered_at = NULL, updated_at = $2
		WHERE shop = $1
	`

	if _, err := r.db.ExecContext(ctx, query, shop, time.Now()); err != nil {
		r.logger.Error("Failed to mark shop uninstalled", zap.String("shop", shop), zap.Error(err))
		return err
	}
	return nil
}

func (r *shopRepository) ClaimWebhookRegistration(ctx context.Context, shop string, at time.Time) (bool, error) {
	query := `
		UPDATE shops
		SET webhooks_registered_at = $2, updated_at = $2
		WHERE shop = $1 AND webhooks_registered_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, shop, at)
	if err != nil {
		r.logger.Error("Failed to claim webhook registration", zap.String("shop", shop), zap.Error(err))
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	// Nothing updated: either registered already or the shop is unknown
	if _, err := r.Get(ctx, shop); err != nil {
		return false, err
	}
	return false, nil
}

func (r *shopRepository) ReleaseWebhookRegistration(ctx context.Context, shop string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE shops SET webhooks_registered_at = NULL WHERE shop = $1`, shop); err != nil {
		r.logger.Error("Failed to release webhook registration", zap.String("shop", shop), zap.Error(err))
		return err
	}
	return nil
}

func (r *shopRepository) Delete(ctx context.Context, shop string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shops WHERE shop = $1`, shop); err != nil {
		r.logger.Error("Failed to delete shop", zap.String("shop", shop), zap.Error(err))
		return err
	}
	return nil
}
