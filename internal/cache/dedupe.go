// Package cache remembers which webhook deliveries were already seen
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultWebhookTTL covers Shopify's retry window for a delivery
const DefaultWebhookTTL = 24 * time.Hour

// WebhookDedupe claims webhook delivery ids
type WebhookDedupe interface {
	// Claim returns true the first time an id is seen within ttl
	Claim(ctx context.Context, webhookID string, ttl time.Duration) (bool, error)
	// Forget drops a claim so a retried delivery is processed again
	Forget(ctx context.Context, webhookID string) error
}

// RedisDedupe implements WebhookDedupe with SETNX, shared across instances
type RedisDedupe struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisDedupe connects to redis and verifies the connection
func NewRedisDedupe(ctx context.Context, addr, password string, db int) (*RedisDedupe, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisDedupeWithClient(client, ""), nil
}

// NewRedisDedupeWithClient wraps an existing client
func NewRedisDedupeWithClient(client *redis.Client, keyPrefix string) *RedisDedupe {
	if keyPrefix == "" {
		keyPrefix = "delifast:webhook:"
	}
	return &RedisDedupe{client: client, keyPrefix: keyPrefix}
}

func (d *RedisDedupe) Claim(ctx context.Context, webhookID string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.keyPrefix+webhookID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook id: %w", err)
	}
	return ok, nil
}

func (d *RedisDedupe) Forget(ctx context.Context, webhookID string) error {
	if err := d.client.Del(ctx, d.keyPrefix+webhookID).Err(); err != nil {
		return fmt.Errorf("failed to forget webhook id: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (d *RedisDedupe) Close() error {
	return d.client.Close()
}

// MemoryDedupe implements WebhookDedupe for a single instance
type MemoryDedupe struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryDedupe creates an empty in-process dedupe set
func NewMemoryDedupe() *MemoryDedupe {
	return &MemoryDedupe{seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDedupe) Claim(ctx context.Context, webhookID string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expires, ok := d.seen[webhookID]; ok && now.Before(expires) {
		return false, nil
	}
	d.seen[webhookID] = now.Add(ttl)

	// opportunistic sweep keeps the map bounded
	if len(d.seen) > 10000 {
		for id, expires := range d.seen {
			if !now.Before(expires) {
				delete(d.seen, id)
			}
		}
	}
	return true, nil
}

func (d *MemoryDedupe) Forget(ctx context.Context, webhookID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, webhookID)
	return nil
}

var (
	_ WebhookDedupe = (*RedisDedupe)(nil)
	_ WebhookDedupe = (*MemoryDedupe)(nil)
)
