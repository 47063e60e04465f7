package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/repository"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *shipmentRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, NewShipmentRepository(db, zap.NewNop())
}

func shipmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "shop", "shopify_order_id", "shopify_order_number", "shipment_id", "is_temporary_id",
		"status", "status_details", "sent_at", "next_lookup_at", "lookup_attempts", "send_locked_until",
		"created_at", "updated_at",
	})
}

func TestShipmentRepository_EnsureRow(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Now()
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (shop, shopify_order_id) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "demo.myshopify.com", "1001", "1001", domain.ShipmentStatusReady, sqlmock.AnyArg()).
		WillReturnRows(shipmentRows().AddRow(
			id.String(), "demo.myshopify.com", "1001", "1001", "5512", false,
			"new", nil, now, nil, 0, nil, now, now,
		))

	s, err := repo.EnsureRow(context.Background(), "demo.myshopify.com", "1001", "1001", domain.ShipmentStatusReady)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, domain.ShipmentStatusNew, s.Status)
	require.NotNil(t, s.ShipmentID)
	assert.Equal(t, "5512", *s.ShipmentID)
	assert.True(t, s.HasRealShipmentID())
	assert.Nil(t, s.StatusDetails)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepository_Get(t *testing.T) {
	t.Run("maps nullable columns", func(t *testing.T) {
		mock, repo := newMock(t)
		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta("FROM shipments WHERE shop = $1 AND shopify_order_id = $2")).
			WithArgs("demo.myshopify.com", "7").
			WillReturnRows(shipmentRows().AddRow(
				uuid.NewString(), "demo.myshopify.com", "7", "1007", "TEMP-1007", true,
				"new", "Shipment created, awaiting id", now, now.Add(15*time.Minute), 2, nil, now, now,
			))

		s, err := repo.Get(context.Background(), "demo.myshopify.com", "7")
		require.NoError(t, err)
		assert.True(t, s.IsTemporary())
		assert.False(t, s.HasRealShipmentID())
		require.NotNil(t, s.NextLookupAt)
		assert.Equal(t, 2, s.LookupAttempts)
		assert.Nil(t, s.SendLockedUntil)
	})

	t.Run("missing row is not found", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectQuery("FROM shipments").WillReturnRows(shipmentRows())

		_, err := repo.Get(context.Background(), "demo.myshopify.com", "404")
		var nf *pkgerrors.ErrNotFound
		assert.True(t, errors.As(err, &nf))
	})
}

func TestShipmentRepository_ListByShop(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM shipments")).
		WithArgs("demo.myshopify.com", "error").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs("demo.myshopify.com", "error", 2, 0).
		WillReturnRows(shipmentRows().
			AddRow(uuid.NewString(), "demo.myshopify.com", "1", "1", nil, false, "error", "boom", nil, nil, 0, nil, now, now).
			AddRow(uuid.NewString(), "demo.myshopify.com", "2", "2", nil, false, "error", "boom", nil, nil, 0, nil, now, now))

	list, total, err := repo.ListByShop(context.Background(), "demo.myshopify.com", repository.ShipmentFilter{
		Status: domain.ShipmentStatusError,
		Limit:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepository_MarkSent(t *testing.T) {
	mock, repo := newMock(t)
	sentAt := time.Now()
	next := sentAt.Add(15 * time.Minute)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO shipments")).
		WithArgs(sqlmock.AnyArg(), "demo.myshopify.com", "1", "1001", "TEMP-1001", true,
			domain.ShipmentStatusNew, sqlmock.AnyArg(), sentAt, &next, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSent(context.Background(), repository.SentShipment{
		Shop:               "demo.myshopify.com",
		ShopifyOrderID:     "1",
		ShopifyOrderNumber: "1001",
		ShipmentID:         "TEMP-1001",
		IsTemporaryID:      true,
		StatusDetails:      "awaiting id",
		SentAt:             sentAt,
		NextLookupAt:       &next,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepository_UpdateStatusNotFound(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE shipments")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "demo.myshopify.com", "1", "Delivered", nil)
	var nf *pkgerrors.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestShipmentRepository_ReplaceShipmentID(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("SET shipment_id = $3")).
		WithArgs("demo.myshopify.com", "1", "778899", domain.ShipmentStatusNew, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ReplaceShipmentID(context.Background(), "demo.myshopify.com", "1", "778899"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShipmentRepository_ClaimSend(t *testing.T) {
	until := time.Now().Add(time.Minute)

	t.Run("claimed", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("send_locked_until IS NULL OR send_locked_until < NOW()")).
			WithArgs("demo.myshopify.com", "1", until).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.ClaimSend(context.Background(), "demo.myshopify.com", "1", until)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("held by another send", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectExec("UPDATE shipments").WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.ClaimSend(context.Background(), "demo.myshopify.com", "1", until)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestShipmentRepository_ListDueLookups(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_temporary_id AND next_lookup_at IS NOT NULL AND next_lookup_at <= $1")).
		WithArgs(now, 50).
		WillReturnRows(shipmentRows().AddRow(
			uuid.NewString(), "demo.myshopify.com", "1", "1001", "TEMP-1001", true,
			"new", nil, now, now, 0, nil, now, now,
		))

	due, err := repo.ListDueLookups(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "TEMP-1001", *due[0].ShipmentID)
}

func TestShipmentRepository_DeleteByShop(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM shipments WHERE shop = $1")).
		WithArgs("demo.myshopify.com").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteByShop(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
