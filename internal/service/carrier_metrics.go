package service

import (
	"context"
	"time"

	"github.com/jafarshop/delifast/internal/delifast"
	"github.com/jafarshop/delifast/internal/metrics"
)

// instrumentedCarrier times every Delifast call
type instrumentedCarrier struct {
	next    CarrierClient
	metrics *metrics.Metrics
}

// InstrumentCarrier wraps c so each call is observed in m. Returns c when m is nil.
func InstrumentCarrier(c CarrierClient, m *metrics.Metrics) CarrierClient {
	if m == nil {
		return c
	}
	return &instrumentedCarrier{next: c, metrics: m}
}

func (c *instrumentedCarrier) CreateShipment(ctx context.Context, shop string, order *delifast.OrderData) (*delifast.CreateShipmentResult, error) {
	start := time.Now()
	res, err := c.next.CreateShipment(ctx, shop, order)
	c.metrics.ObserveCarrier("create_shipment", start, err)
	return res, err
}

func (c *instrumentedCarrier) GetShipmentStatus(ctx context.Context, shop, shipmentID string) (*delifast.ShipmentStatusResult, error) {
	start := time.Now()
	res, err := c.next.GetShipmentStatus(ctx, shop, shipmentID)
	c.metrics.ObserveCarrier("get_status", start, err)
	return res, err
}

func (c *instrumentedCarrier) FindShipmentByReference(ctx context.Context, shop, reference string) (string, error) {
	start := time.Now()
	id, err := c.next.FindShipmentByReference(ctx, shop, reference)
	c.metrics.ObserveCarrier("find_by_reference", start, err)
	return id, err
}
