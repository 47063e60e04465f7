package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.WebhookReceived("orders/paid", "processed")
	m.WebhookReceived("orders/paid", "processed")
	m.WebhookReceived("orders/paid", "duplicate")
	m.ShipmentSend(SendTemporary)
	m.Lookup(LookupReplaced)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.webhooksTotal.WithLabelValues("orders/paid", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooksTotal.WithLabelValues("orders/paid", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sendsTotal.WithLabelValues(SendTemporary)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sendsTotal.WithLabelValues(SendFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookupsTotal.WithLabelValues(LookupReplaced)))
}

func TestMetrics_ObserveCarrier(t *testing.T) {
	m := New()
	m.ObserveCarrier("create_shipment", time.Now(), nil)
	m.ObserveCarrier("create_shipment", time.Now(), errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.carrierDuration, "delifast_carrier_request_duration_seconds"))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ShipmentSend(SendSent)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), `delifast_shipment_sends_total{result="sent"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.WebhookReceived("orders/paid", "processed")
		m.ShipmentSend(SendFailed)
		m.Lookup(LookupPending)
		m.ObserveCarrier("get_status", time.Now(), nil)
	})

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
