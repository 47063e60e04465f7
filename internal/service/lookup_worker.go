package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/delifast"
	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/metrics"
)

var lookupMu sync.Mutex

// RunLookupOnce resolves temporary shipment ids whose lookup is due. Returns the
// number of ids replaced.
func (w *OrderWorkflow) RunLookupOnce(ctx context.Context, cfg config.LookupConfig) int {
	now := w.now()
	due, err := w.repos.Shipment.ListDueLookups(ctx, now, cfg.BatchSize)
	if err != nil {
		w.logger.Error("Lookup: failed to list due shipments", zap.Error(err))
		return 0
	}
	if len(due) == 0 {
		return 0
	}

	// spread carrier calls; a full batch must not burst Delifast
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	replaced := 0
	for _, s := range due {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		} else if ctx.Err() != nil {
			break
		}
		if w.lookupShipment(ctx, cfg, s) {
			replaced++
		}
	}
	w.logger.Info("Lookup: pass finished", zap.Int("due", len(due)), zap.Int("replaced", replaced))
	return replaced
}

func (w *OrderWorkflow) lookupShipment(ctx context.Context, cfg config.LookupConfig, s *domain.Shipment) bool {
	logger := w.logger.With(zap.String("shop", s.Shop), zap.String("order_id", s.ShopifyOrderID))

	// same reference the mapper sent as billing_ref
	reference := s.ShopifyOrderNumber
	if reference == "" {
		reference = s.ShopifyOrderID
	}
	id, err := w.carrier.FindShipmentByReference(ctx, s.Shop, reference)
	if err == nil && id != "" && !domain.IsTemporaryID(id) {
		if _, err := w.ReplaceTemporaryID(ctx, s.Shop, s.ShopifyOrderID, id); err != nil {
			// the id is stored even if the follow-up refresh failed
			logger.Warn("Lookup: replaced id but status refresh failed", zap.String("shipment_id", id), zap.Error(err))
		}
		w.metrics.Lookup(metrics.LookupReplaced)
		return true
	}

	details := "Delifast has not assigned a shipment id yet"
	if err != nil && !errors.Is(err, delifast.ErrShipmentNotFound) {
		logger.Warn("Lookup: delifast request failed", zap.Error(err))
		details = fmt.Sprintf("Shipment id lookup failed: %v", err)
	}

	attempts := s.LookupAttempts + 1
	var next *time.Time
	if attempts < cfg.MaxAttempts {
		t := w.now().Add(cfg.Delay * time.Duration(attempts))
		next = &t
		w.metrics.Lookup(metrics.LookupPending)
	} else {
		w.metrics.Lookup(metrics.LookupGaveUp)
		details = fmt.Sprintf("Shipment id not found after %d lookups; set it manually", attempts)
		logger.Warn("Lookup: giving up", zap.Int("attempts", attempts))
	}

	if err := w.repos.Shipment.RecordLookupAttempt(ctx, s.Shop, s.ShopifyOrderID, next, details); err != nil {
		logger.Error("Lookup: failed to record attempt", zap.Error(err))
	}
	return false
}

// RunLookupLoop runs a lookup pass once, then every cfg.Interval. Call from a goroutine.
func RunLookupLoop(ctx context.Context, w *OrderWorkflow, cfg config.LookupConfig, logger *zap.Logger) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	lookupMu.Lock()
	w.RunLookupOnce(ctx, cfg)
	lookupMu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Lookup loop stopped")
			return
		case <-ticker.C:
			lookupMu.Lock()
			w.RunLookupOnce(ctx, cfg)
			lookupMu.Unlock()
		}
	}
}
