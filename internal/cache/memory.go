package cache

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

var _ Cache = (*MemoryCache)(nil)

const (
	memoryShards    = 10
	memoryEvictPct  = 10
	defaultCapacity = 10000
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCache локальный кэш процесса на sturdyc.
// sturdyc держит один TTL на клиента, поэтому срок жизни Put хранится в самой записи.
type MemoryCache struct {
	client *sturdyc.Client[memoryEntry]
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryCache создает кэш на capacity записей с TTL по умолчанию ttl
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryCache{
		client: sturdyc.New[memoryEntry](capacity, memoryShards, ttl, memoryEvictPct),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	entry, ok := c.client.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.client.Delete(key)
		return nil, false
	}
	return entry.payload, true
}

func (c *MemoryCache) Put(_ context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.client.Set(key, memoryEntry{payload: payload, expiresAt: c.now().Add(ttl)})
}

func (c *MemoryCache) Invalidate(_ context.Context, key string) {
	c.client.Delete(key)
}
