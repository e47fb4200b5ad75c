package cache

import (
	"context"
	"encoding/json"
	"time"

	"ai-marketchat-be/internal/pkg/logger"
	"ai-marketchat-be/pkg/marketdata"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL  = 60 * time.Second
	keyPrefix   = "quote:"
	redisBudget = 500 * time.Millisecond
)

// CachedProvider serves recent snapshots from process memory first, then from redis (shared
// between instances), and only then asks the wrapped provider. Failures are never cached.
type CachedProvider struct {
	inner  marketdata.Provider
	local  *gocache.Cache
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.ILogger
}

var _ marketdata.Provider = &CachedProvider{}

// NewCachedProvider wraps inner. rdb may be nil, in which case only the in-process layer is used.
func NewCachedProvider(inner marketdata.Provider, rdb *redis.Client, ttl time.Duration, log logger.ILogger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedProvider{
		inner:  inner,
		local:  gocache.New(ttl, 2*ttl),
		rdb:    rdb,
		ttl:    ttl,
		logger: log,
	}
}

func (c *CachedProvider) Name() string {
	return c.inner.Name()
}

func (c *CachedProvider) Quote(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	key := keyPrefix + marketdata.NormalizeSymbol(symbol)

	if x, found := c.local.Get(key); found {
		return copySnapshot(x.(*marketdata.Snapshot)), nil
	}

	if snap := c.fromRedis(ctx, key); snap != nil {
		c.local.Set(key, snap, gocache.DefaultExpiration)
		return copySnapshot(snap), nil
	}

	snap, err := c.inner.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.local.Set(key, snap, gocache.DefaultExpiration)
	c.toRedis(ctx, key, snap)

	return copySnapshot(snap), nil
}

func (c *CachedProvider) fromRedis(ctx context.Context, key string) *marketdata.Snapshot {
	if c.rdb == nil {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, redisBudget)
	defer cancel()

	raw, err := c.rdb.Get(rctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("QUOTE_CACHE", "Redis read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return nil
	}

	var snap marketdata.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.logger.Warn("QUOTE_CACHE", "Discarding unreadable cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		return nil
	}
	return &snap
}

func (c *CachedProvider) toRedis(ctx context.Context, key string, snap *marketdata.Snapshot) {
	if c.rdb == nil {
		return
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}

	rctx, cancel := context.WithTimeout(ctx, redisBudget)
	defer cancel()

	if err := c.rdb.Set(rctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("QUOTE_CACHE", "Redis write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// Callers may annotate the snapshot (InputSymbol), so hand out copies.
func copySnapshot(s *marketdata.Snapshot) *marketdata.Snapshot {
	out := *s
	out.History = append([]marketdata.DailyBar(nil), s.History...)
	out.Last5Days = append([]marketdata.DailyBar(nil), s.Last5Days...)
	return &out
}
