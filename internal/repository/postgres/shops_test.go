package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

func shopRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"shop", "access_token", "scopes", "installed_at", "uninstalled_at", "webhooks_registered_at", "updated_at",
	})
}

func TestShopRepository_ClaimWebhookRegistration(t *testing.T) {
	at := time.Now()

	t.Run("first claim wins", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewShopRepository(db, zap.NewNop())

		mock.ExpectExec(regexp.QuoteMeta("WHERE shop = $1 AND webhooks_registered_at IS NULL")).
			WithArgs("demo.myshopify.com", at).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.ClaimWebhookRegistration(context.Background(), "demo.myshopify.com", at)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already registered", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewShopRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE shops").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FROM shops").
			WithArgs("demo.myshopify.com").
			WillReturnRows(shopRows().AddRow("demo.myshopify.com", "tok", "read_orders", at, nil, at, at))

		ok, err := repo.ClaimWebhookRegistration(context.Background(), "demo.myshopify.com", at)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown shop", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewShopRepository(db, zap.NewNop())

		mock.ExpectExec("UPDATE shops").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FROM shops").WillReturnRows(shopRows())

		_, err = repo.ClaimWebhookRegistration(context.Background(), "ghost.myshopify.com", at)
		var nf *pkgerrors.ErrNotFound
		assert.True(t, errors.As(err, &nf))
	})
}

func TestShopRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewShopRepository(db, zap.NewNop())
	now := time.Now()

	mock.ExpectQuery("FROM shops").
		WithArgs("demo.myshopify.com").
		WillReturnRows(shopRows().AddRow("demo.myshopify.com", nil, "read_orders", now, now, nil, now))

	shop, err := repo.Get(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	assert.Nil(t, shop.AccessToken)
	assert.NotNil(t, shop.UninstalledAt)
	assert.Nil(t, shop.WebhooksRegisteredAt)
}

func TestStoreSettingsRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewStoreSettingsRepository(db, zap.NewNop())
	now := time.Now()

	mock.ExpectQuery("FROM store_settings").
		WithArgs("demo.myshopify.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"shop", "mode", "auto_send_status", "default_city_id", "fees_on_sender", "fees_paid", "created_at", "updated_at",
		}).AddRow("demo.myshopify.com", "auto", "paid", "1", true, false, now, now))

	s, err := repo.Get(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryModeAuto, s.Mode)
	assert.Equal(t, domain.AutoSendTriggerPaid, s.AutoSendStatus)
	assert.False(t, s.FeesPaid)

	mock.ExpectQuery("FROM store_settings").WillReturnRows(sqlmock.NewRows([]string{"shop"}))
	missing, err := repo.Get(context.Background(), "other.myshopify.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWebhookEventRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewWebhookEventRepository(db, zap.NewNop())

	msg := "carrier down"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO webhook_events")).
		WithArgs(sqlmock.AnyArg(), "wh-1", "demo.myshopify.com", "orders/paid", domain.WebhookOutcomeFailed, &msg, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := &domain.WebhookEvent{
		WebhookID: "wh-1",
		Shop:      "demo.myshopify.com",
		Topic:     "orders/paid",
		Outcome:   domain.WebhookOutcomeFailed,
		Error:     &msg,
	}
	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEqual(t, "", event.ID.String())
	assert.False(t, event.ReceivedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSettingsRepository_UpsertCheckViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewStoreSettingsRepository(db, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO store_settings")).
		WillReturnError(&pq.Error{Code: "23514", Constraint: "store_settings_mode_check"})

	err = repo.Upsert(context.Background(), &domain.StoreSettings{Shop: "demo.myshopify.com", Mode: "always"})
	var verr *pkgerrors.ErrValidation
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "store_settings_mode_check")
}

func TestConstraintError(t *testing.T) {
	var conflict *pkgerrors.ErrConflict
	assert.True(t, errors.As(constraintError(&pq.Error{Code: "23505"}), &conflict))

	other := errors.New("connection reset")
	assert.Equal(t, other, constraintError(other))
	fk := &pq.Error{Code: "23503"}
	assert.Equal(t, error(fk), constraintError(fk))
}
