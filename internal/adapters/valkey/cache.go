package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/jmaguas/azenha/internal/pkg/metrics"
)

// clientCacheTTL bounds how long a read may be served from the library's
// client-side cache. Server-assisted invalidation usually clears entries
// sooner; the TTL is the upper bound when tracking messages are lost.
const clientCacheTTL = 30 * time.Second

// Cache implements ports.CacheService using Valkey (Redis-compatible).
// Reads go through valkey-go's server-assisted client-side cache, which
// suits a catalog that changes a handful of times a day.
type Cache struct {
	client valkey.Client
	prefix string
}

// New creates a new Valkey cache client. All keys live under the given
// prefix so the instance can be shared with other tools.
func New(addr, prefix string) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client, prefix: prefix}, nil
}

func (c *Cache) key(k string) string { return c.prefix + ":" + k }

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := c.client.DoCache(ctx, c.client.B().Get().Key(c.key(key)).Cache(), clientCacheTTL)
	if cmd.Error() != nil {
		metrics.CacheMisses.WithLabelValues("get").Inc()
		return nil, cmd.Error()
	}
	metrics.CacheHits.WithLabelValues("get").Inc()
	return cmd.AsBytes()
}

// Set stores a value with a TTL in seconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	cmd := c.client.Do(ctx,
		c.client.B().Set().Key(c.key(key)).Value(string(value)).Ex(time.Duration(ttlSeconds)*time.Second).Build(),
	)
	return cmd.Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	cmd := c.client.Do(ctx, c.client.B().Del().Key(c.key(key)).Build())
	return cmd.Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
