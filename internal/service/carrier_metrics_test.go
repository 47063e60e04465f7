package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/delifast"
	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestWorkflowMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	f := newFixture(t, autoSettings(domain.AutoSendTriggerPaid))
	f.workflow.WithMetrics(m)
	f.workflow.carrier = InstrumentCarrier(f.carrier, m)

	f.carrier.createResult = &delifast.CreateShipmentResult{NeedsLookup: true}
	_, err := f.workflow.SendOrder(ctx, testShop, testOrder(), SendSourceManual)
	require.NoError(t, err)

	f.carrier.lookupErr = delifast.ErrShipmentNotFound
	f.now = f.now.Add(time.Hour)
	f.workflow.RunLookupOnce(ctx, config.LookupConfig{Delay: time.Minute, MaxAttempts: 5, BatchSize: 10})

	other := testOrder()
	other.ID = 5002
	f.carrier.createErr = errors.New("delifast down")
	_, err = f.workflow.SendOrder(ctx, testShop, other, SendSourceManual)
	require.Error(t, err)

	out := scrape(t, m)
	assert.Contains(t, out, `delifast_shipment_sends_total{result="temporary"} 1`)
	assert.Contains(t, out, `delifast_shipment_sends_total{result="failed"} 1`)
	assert.Contains(t, out, `delifast_shipment_id_lookups_total{result="pending"} 1`)
	assert.Contains(t, out, `delifast_carrier_request_duration_seconds_count{operation="create_shipment",success="true"} 1`)
	assert.Contains(t, out, `delifast_carrier_request_duration_seconds_count{operation="create_shipment",success="false"} 1`)
	assert.Contains(t, out, `delifast_carrier_request_duration_seconds_count{operation="find_by_reference",success="false"} 1`)
}

func TestInstrumentCarrier_NilMetrics(t *testing.T) {
	c := &fakeCarrier{}
	assert.Same(t, c, InstrumentCarrier(c, nil))
}

func TestRunLookupOnce_RateLimitedStopsOnCancel(t *testing.T) {
	f := newFixture(t, autoSettings(domain.AutoSendTriggerPaid))
	f.carrier.createResult = &delifast.CreateShipmentResult{}
	_, err := f.workflow.SendOrder(context.Background(), testShop, testOrder(), SendSourceManual)
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := config.LookupConfig{Delay: time.Minute, MaxAttempts: 3, BatchSize: 10, RatePerSecond: 1}
	assert.Equal(t, 0, f.workflow.RunLookupOnce(ctx, cfg))
	assert.Empty(t, f.carrier.lookupCalls)
}
