package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/internal/repository/memory"
	"github.com/jafarshop/delifast/internal/shopify"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

type fakeSubscriber struct {
	calls   []string
	failOn  string
	failErr error
}

func (s *fakeSubscriber) CreateWebhookSubscription(ctx context.Context, shop, topic, callbackURL string) error {
	s.calls = append(s.calls, topic+" "+callbackURL)
	if topic == s.failOn {
		return s.failErr
	}
	return nil
}

func newShopService(t *testing.T) (*ShopService, *fakeSubscriber, *repository.Repositories) {
	t.Helper()
	repos := memory.NewRepositories()
	sub := &fakeSubscriber{}
	svc := NewShopService(repos, sub, "https://app.example.com/", zap.NewNop())
	require.NoError(t, svc.SaveInstall(context.Background(), testShop, "shpat_x", "read_orders,write_orders"))
	return svc, sub, repos
}

func TestRegisterWebhooks_IsIdempotent(t *testing.T) {
	svc, sub, _ := newShopService(t)
	ctx := context.Background()

	res, err := svc.RegisterWebhooks(ctx, testShop)
	require.NoError(t, err)
	assert.False(t, res.AlreadyRegistered)
	assert.Len(t, res.Topics, len(shopify.AppWebhookTopics))
	assert.Contains(t, sub.calls, "ORDERS_PAID https://app.example.com/webhooks/orders/paid")

	res, err = svc.RegisterWebhooks(ctx, testShop)
	require.NoError(t, err)
	assert.True(t, res.AlreadyRegistered)
	assert.Len(t, sub.calls, len(shopify.AppWebhookTopics), "no Shopify calls on the second run")
}

func TestRegisterWebhooks_FailureReleasesClaim(t *testing.T) {
	svc, sub, _ := newShopService(t)
	ctx := context.Background()
	sub.failOn = "ORDERS_UPDATED"
	sub.failErr = errors.New("throttled")

	_, err := svc.RegisterWebhooks(ctx, testShop)
	require.Error(t, err)

	sub.failOn = ""
	res, err := svc.RegisterWebhooks(ctx, testShop)
	require.NoError(t, err)
	assert.False(t, res.AlreadyRegistered)
}

func TestRegisterWebhooks_AfterUninstallRegistersAgain(t *testing.T) {
	svc, _, repos := newShopService(t)
	ctx := context.Background()

	_, err := svc.RegisterWebhooks(ctx, testShop)
	require.NoError(t, err)
	require.NoError(t, svc.HandleUninstalled(ctx, testShop))

	shop, err := repos.Shop.Get(ctx, testShop)
	require.NoError(t, err)
	assert.Nil(t, shop.AccessToken)

	require.NoError(t, svc.SaveInstall(ctx, testShop, "shpat_y", "read_orders"))
	res, err := svc.RegisterWebhooks(ctx, testShop)
	require.NoError(t, err)
	assert.False(t, res.AlreadyRegistered)
}

func TestSaveInstall_RequiresToken(t *testing.T) {
	svc := NewShopService(memory.NewRepositories(), &fakeSubscriber{}, "https://app.example.com", zap.NewNop())
	err := svc.SaveInstall(context.Background(), testShop, " ", "")
	var verr *pkgerrors.ErrValidation
	assert.True(t, errors.As(err, &verr))
}

func TestHandleScopesUpdate(t *testing.T) {
	svc, _, repos := newShopService(t)
	ctx := context.Background()

	require.NoError(t, svc.HandleScopesUpdate(ctx, testShop, &shopify.ScopesUpdatePayload{Current: []string{"read_orders"}}))
	shop, err := repos.Shop.Get(ctx, testShop)
	require.NoError(t, err)
	assert.Equal(t, "read_orders", shop.Scopes)
}

func TestHandleShopRedact(t *testing.T) {
	svc, _, repos := newShopService(t)
	ctx := context.Background()

	_, err := repos.Shipment.EnsureRow(ctx, testShop, "1", "1001", domain.ShipmentStatusPending)
	require.NoError(t, err)
	require.NoError(t, repos.StoreSettings.Upsert(ctx, DefaultSettings(testShop)))
	require.NoError(t, repos.WebhookEvent.Create(ctx, &domain.WebhookEvent{Shop: testShop, Topic: "orders/create", Outcome: domain.WebhookOutcomeProcessed}))

	res, err := svc.HandleShopRedact(ctx, testShop)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Shipments)
	assert.Equal(t, int64(1), res.WebhookEvents)

	settings, err := repos.StoreSettings.Get(ctx, testShop)
	require.NoError(t, err)
	assert.Nil(t, settings)
	_, err = repos.Shop.Get(ctx, testShop)
	var nf *pkgerrors.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestSettingsService(t *testing.T) {
	repos := memory.NewRepositories()
	svc := NewSettingsService(repos.StoreSettings, zap.NewNop())
	ctx := context.Background()

	s, stored, err := svc.Get(ctx, testShop)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Equal(t, domain.DeliveryModeManual, s.Mode)

	_, err = svc.Save(ctx, testShop, &domain.StoreSettings{Mode: "sometimes", AutoSendStatus: domain.AutoSendTriggerPaid})
	var verr *pkgerrors.ErrValidation
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "oneof", verr.Fields["mode"])
	assert.Equal(t, "required", verr.Fields["default_city_id"])

	saved, err := svc.Save(ctx, testShop, autoSettings(domain.AutoSendTriggerCreated))
	require.NoError(t, err)
	assert.Equal(t, testShop, saved.Shop)

	s, stored, err = svc.Get(ctx, testShop)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, domain.AutoSendTriggerCreated, s.AutoSendStatus)
}
