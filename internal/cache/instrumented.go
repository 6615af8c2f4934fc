package cache

import (
	"context"
	"time"

	"notes-sync-service/internal/metrics"
)

// Instrumented считает попадания, промахи и инвалидации вложенного кэша
type Instrumented struct {
	Cache
	metrics *metrics.Metrics
}

// WithMetrics оборачивает кэш счетчиками. При m == nil возвращает c без изменений.
func WithMetrics(c Cache, m *metrics.Metrics) Cache {
	if m == nil {
		return c
	}
	return &Instrumented{Cache: c, metrics: m}
}

func (c *Instrumented) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, ok := c.Cache.Get(ctx, key)
	c.metrics.CacheLookup(ok)
	return payload, ok
}

func (c *Instrumented) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	c.Cache.Put(ctx, key, payload, ttl)
}

func (c *Instrumented) Invalidate(ctx context.Context, key string) {
	c.Cache.Invalidate(ctx, key)
	c.metrics.CacheInvalidated()
}
