// Package cache memoises search responses in two tiers: an in-process
// expiring LRU in front of Redis. Keys include the index build id, so a
// cached response is never served for a different index.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/resilience"
)

const (
	keyPrefix     = "lyric:"
	remoteTimeout = 50 * time.Millisecond
)

// Remote is the shared tier. *pkgredis.Client satisfies it.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Config struct {
	// Namespace separates caches sharing one Redis; invalidation only
	// reaches keys under its own namespace.
	Namespace string
	LocalSize int
	LocalTTL  time.Duration
	RemoteTTL time.Duration
	Breaker   resilience.BreakerConfig
}

// QueryCache caches values of type T. Remote may be nil for a local-only
// cache; m may be nil.
type QueryCache[T any] struct {
	buildID string
	prefix  string
	local   *expirable.LRU[string, T]
	remote  Remote
	breaker *gobreaker.CircuitBreaker[[]byte]
	cfg     Config
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func New[T any](buildID string, remote Remote, cfg Config, m *metrics.Metrics) *QueryCache[T] {
	if cfg.LocalSize <= 0 {
		cfg.LocalSize = 4096
	}
	prefix := keyPrefix
	if cfg.Namespace != "" {
		prefix += cfg.Namespace + ":"
	}
	c := &QueryCache[T]{
		buildID: buildID,
		prefix:  prefix,
		local:   expirable.NewLRU[string, T](cfg.LocalSize, nil, cfg.LocalTTL),
		remote:  remote,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache", "namespace", cfg.Namespace),
	}
	if remote != nil {
		name := "redis-cache"
		if cfg.Namespace != "" {
			name += "-" + cfg.Namespace
		}
		c.breaker = resilience.NewBreaker[[]byte](name, cfg.Breaker, func(name string, to gobreaker.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		})
	}
	return c
}

// Key identifies a request of the given kind over the normalized query and
// result count.
func (c *QueryCache[T]) Key(kind, normalized string, n int) string {
	h := xxhash.New()
	h.WriteString(c.buildID)
	h.WriteString("|")
	h.WriteString(kind)
	h.WriteString("|")
	h.WriteString(normalized)
	h.WriteString("|")
	h.WriteString(strconv.Itoa(n))
	return c.prefix + strconv.FormatUint(h.Sum64(), 16)
}

// Get looks in the local tier then the remote tier. Remote hits are
// promoted into the local tier.
func (c *QueryCache[T]) Get(ctx context.Context, key string) (T, bool) {
	if v, ok := c.local.Get(key); ok {
		c.hit("local")
		return v, true
	}
	var zero T
	if c.remote == nil {
		c.miss()
		return zero, false
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return resilience.Timed(ctx, remoteTimeout, "cache-get", func(ctx context.Context) ([]byte, error) {
			b, err := c.remote.Get(ctx, key)
			if pkgredis.IsNilError(err) {
				return nil, nil
			}
			return b, err
		})
	})
	if err != nil {
		if !resilience.IsOpen(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return zero, false
	}
	if data == nil {
		c.miss()
		return zero, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return zero, false
	}
	c.local.Add(key, v)
	c.hit("redis")
	return v, true
}

func (c *QueryCache[T]) Set(ctx context.Context, key string, v T) {
	c.local.Add(key, v)
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	_, err = c.breaker.Execute(func() ([]byte, error) {
		return nil, resilience.WithTimeout(ctx, remoteTimeout, "cache-set", func(ctx context.Context) error {
			return c.remote.Set(ctx, key, data, c.cfg.RemoteTTL)
		})
	})
	if err != nil && !resilience.IsOpen(err) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value or computes and stores it.
// Concurrent misses for one key share a single compute.
func (c *QueryCache[T]) GetOrCompute(ctx context.Context, key string, compute func() (T, error)) (T, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.local.Get(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return v, err
		}
		c.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate empties the local tier and deletes this cache's remote keys.
func (c *QueryCache[T]) Invalidate(ctx context.Context) (int64, error) {
	localKeys := int64(c.local.Len())
	c.local.Purge()
	if c.remote == nil {
		c.logger.Info("cache invalidate", "keys_deleted", localKeys)
		return localKeys, nil
	}
	deleted, err := c.remote.FlushByPattern(ctx, c.prefix+"*")
	if err != nil {
		return localKeys, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "local_keys", localKeys, "remote_keys", deleted)
	return localKeys + deleted, nil
}

type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	LocalKeys int     `json:"local_keys"`
	Remote    bool    `json:"remote"`
	Breaker   string  `json:"breaker,omitempty"`
}

func (c *QueryCache[T]) Stats() Stats {
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		LocalKeys: c.local.Len(),
		Remote:    c.remote != nil,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	if c.breaker != nil {
		s.Breaker = c.breaker.State().String()
	}
	return s
}

func (c *QueryCache[T]) hit(tier string) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *QueryCache[T]) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
