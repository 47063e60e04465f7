// Package metrics exposes Prometheus counters for webhooks, shipment sends,
// id lookups and Delifast API latency. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "delifast"

// Send results
const (
	SendSent      = "sent"
	SendTemporary = "temporary"
	SendFailed    = "failed"
)

// Lookup results
const (
	LookupReplaced = "replaced"
	LookupPending  = "pending"
	LookupGaveUp   = "gave_up"
)

// Metrics holds the service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	webhooksTotal   *prometheus.CounterVec
	sendsTotal      *prometheus.CounterVec
	lookupsTotal    *prometheus.CounterVec
	carrierDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Shopify webhook deliveries by topic and outcome.",
		}, []string{"topic", "outcome"}),
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipment_sends_total",
			Help:      "Attempts to create a Delifast shipment by result.",
		}, []string{"result"}),
		lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipment_id_lookups_total",
			Help:      "Temporary shipment id lookups by result.",
		}, []string{"result"}),
		carrierDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "carrier_request_duration_seconds",
			Help:      "Delifast API call latency by operation and success.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "success"}),
	}

	m.registry.MustRegister(
		m.webhooksTotal,
		m.sendsTotal,
		m.lookupsTotal,
		m.carrierDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) WebhookReceived(topic, outcome string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(topic, outcome).Inc()
}

func (m *Metrics) ShipmentSend(result string) {
	if m == nil {
		return
	}
	m.sendsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(result).Inc()
}

// ObserveCarrier records one Delifast API call started at start
func (m *Metrics) ObserveCarrier(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	success := "true"
	if err != nil {
		success = "false"
	}
	m.carrierDuration.WithLabelValues(operation, success).Observe(time.Since(start).Seconds())
}
