//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/repository"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

// newIntegrationDB starts a throwaway postgres and applies the embedded migrations.
// Run with: go test -tags integration ./internal/repository/postgres/
func newIntegrationDB(t *testing.T) *repository.Repositories {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("delifast_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))

	logger := zap.NewNop()
	require.NoError(t, RunMigrations(db, logger))
	return NewRepositories(db, logger)
}

func TestIntegration_ShipmentLifecycle(t *testing.T) {
	repos := newIntegrationDB(t)
	ctx := context.Background()
	const shop = "demo.myshopify.com"

	row, err := repos.Shipment.EnsureRow(ctx, shop, "5001", "1042", domain.ShipmentStatusPending)
	require.NoError(t, err)
	assert.Equal(t, domain.ShipmentStatusPending, row.Status)

	row, err = repos.Shipment.EnsureRow(ctx, shop, "5001", "1042", domain.ShipmentStatusReady)
	require.NoError(t, err)
	assert.Equal(t, domain.ShipmentStatusReady, row.Status)

	claimed, err := repos.Shipment.ClaimSend(ctx, shop, "5001", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = repos.Shipment.ClaimSend(ctx, shop, "5001", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, claimed, "lock is held")

	next := time.Now().Add(-time.Second)
	require.NoError(t, repos.Shipment.MarkSent(ctx, repository.SentShipment{
		Shop:               shop,
		ShopifyOrderID:     "5001",
		ShopifyOrderNumber: "1042",
		ShipmentID:         domain.GenerateTemporaryID("1042"),
		IsTemporaryID:      true,
		StatusDetails:      "waiting",
		SentAt:             time.Now(),
		NextLookupAt:       &next,
	}))
	require.NoError(t, repos.Shipment.ReleaseSend(ctx, shop, "5001"))

	due, err := repos.Shipment.ListDueLookups(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "TEMP-1042", *due[0].ShipmentID)

	require.NoError(t, repos.Shipment.RecordLookupAttempt(ctx, shop, "5001", nil, "gave up"))
	due, err = repos.Shipment.ListDueLookups(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, repos.Shipment.ReplaceShipmentID(ctx, shop, "5001", "700123"))
	got, err := repos.Shipment.Get(ctx, shop, "5001")
	require.NoError(t, err)
	assert.Equal(t, "700123", *got.ShipmentID)
	assert.False(t, got.IsTemporaryID)
	assert.Equal(t, 0, got.LookupAttempts)

	list, total, err := repos.Shipment.ListByShop(ctx, shop, repository.ShipmentFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	n, err := repos.Shipment.DeleteByShop(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var notFound *pkgerrors.ErrNotFound
	_, err = repos.Shipment.Get(ctx, shop, "5001")
	assert.True(t, errors.As(err, &notFound))
}

func TestIntegration_ConstraintsMapToTypedErrors(t *testing.T) {
	repos := newIntegrationDB(t)
	ctx := context.Background()

	err := repos.StoreSettings.Upsert(ctx, &domain.StoreSettings{
		Shop:           "demo.myshopify.com",
		Mode:           domain.DeliveryMode("sometimes"),
		AutoSendStatus: domain.AutoSendTriggerPaid,
		DefaultCityID:  "1",
	})
	var validation *pkgerrors.ErrValidation
	assert.True(t, errors.As(err, &validation), "check constraint on mode")

	err = repos.WebhookEvent.Create(ctx, &domain.WebhookEvent{
		Shop:    "demo.myshopify.com",
		Topic:   "orders/paid",
		Outcome: domain.WebhookOutcome("exploded"),
	})
	assert.True(t, errors.As(err, &validation), "check constraint on outcome")
}

func TestIntegration_WebhookRegistrationClaim(t *testing.T) {
	repos := newIntegrationDB(t)
	ctx := context.Background()
	const shop = "demo.myshopify.com"

	require.NoError(t, repos.Shop.UpsertInstall(ctx, shop, "shpat_x", "read_orders"))

	ok, err := repos.Shop.ClaimWebhookRegistration(ctx, shop, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repos.Shop.ClaimWebhookRegistration(ctx, shop, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repos.Shop.ReleaseWebhookRegistration(ctx, shop))
	ok, err = repos.Shop.ClaimWebhookRegistration(ctx, shop, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}
