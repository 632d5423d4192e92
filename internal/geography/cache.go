package geography

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/ontario-health/healthmap/internal/shared/errors"
	"github.com/ontario-health/healthmap/internal/shared/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const boundaryKey = "boundaries:phu"

// staleRetryInterval spaces upstream attempts while a stale copy is served.
// A shorter TTL takes precedence.
const staleRetryInterval = time.Minute

// Snapshot is one cached copy of the boundary layer.
type Snapshot struct {
	Collection *FeatureCollection
	Raw        []byte
	FetchedAt  time.Time
	// Stale is set when the upstream refresh failed and an expired copy
	// was served instead.
	Stale bool
}

type redisEntry struct {
	FetchedAt time.Time       `json:"fetchedAt"`
	Data      json.RawMessage `json:"data"`
}

// BoundaryCache keeps the boundary layer in process memory for a TTL,
// optionally backed by Redis so restarts and replicas share one copy.
// Concurrent misses trigger a single upstream fetch.
type BoundaryCache struct {
	source BoundarySource
	ttl    time.Duration
	redis  *redis.Client
	key    string
	logger zerolog.Logger
	now    func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	current *Snapshot
	// retryAt is the earliest time a stale current may be refetched.
	retryAt time.Time
}

// NewBoundaryCache creates a cache over source. rdb may be nil.
func NewBoundaryCache(source BoundarySource, ttl time.Duration, rdb *redis.Client, prefix string, logger zerolog.Logger) *BoundaryCache {
	return &BoundaryCache{
		source: source,
		ttl:    ttl,
		redis:  rdb,
		key:    prefix + boundaryKey,
		logger: logger,
		now:    time.Now,
	}
}

func (c *BoundaryCache) fresh(s *Snapshot) bool {
	return s != nil && !s.Stale && (c.ttl <= 0 || c.now().Sub(s.FetchedAt) < c.ttl)
}

// usable reports whether s may be served without asking upstream: it is
// fresh, or it is a stale fallback whose retry window has not passed.
func (c *BoundaryCache) usable(s *Snapshot, retryAt time.Time) bool {
	if s != nil && s.Stale {
		return c.now().Before(retryAt)
	}
	return c.fresh(s)
}

func (c *BoundaryCache) snapshot() (*Snapshot, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.retryAt
}

func (c *BoundaryCache) retryInterval() time.Duration {
	if c.ttl > 0 && c.ttl < staleRetryInterval {
		return c.ttl
	}
	return staleRetryInterval
}

// Get returns the cached layer, loading it when absent or expired. When
// the upstream fails and an expired copy exists, that copy is returned
// with Stale set and served without further upstream calls until the
// retry interval passes. With nothing cached the error is an Upstream
// AppError.
func (c *BoundaryCache) Get(ctx context.Context) (*Snapshot, error) {
	if s, retryAt := c.snapshot(); c.usable(s, retryAt) {
		metrics.RecordBoundaryCache("memory", true)
		return s, nil
	}
	metrics.RecordBoundaryCache("memory", false)

	v, err, _ := c.group.Do(c.key, func() (any, error) {
		return c.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (c *BoundaryCache) load(ctx context.Context) (*Snapshot, error) {
	previous, retryAt := c.snapshot()
	if c.usable(previous, retryAt) {
		return previous, nil
	}

	if s := c.readRedis(ctx); s != nil {
		c.store(s)
		return s, nil
	}

	start := c.now()
	raw, err := c.source.FetchBoundaries(ctx)
	var fc *FeatureCollection
	if err == nil {
		fc, err = Decode(raw)
	}
	metrics.RecordBoundaryRefresh(err == nil, c.now().Sub(start))

	if err != nil {
		if previous != nil {
			c.logger.Warn().Err(err).Time("fetched_at", previous.FetchedAt).Msg("boundary refresh failed, serving stale copy")
			stale := *previous
			stale.Stale = true
			c.mu.Lock()
			c.current, c.retryAt = &stale, c.now().Add(c.retryInterval())
			c.mu.Unlock()
			return &stale, nil
		}
		c.logger.Error().Err(err).Msg("boundary fetch failed")
		return nil, errors.Upstream("boundary service", err)
	}

	s := &Snapshot{Collection: fc, Raw: raw, FetchedAt: c.now()}
	c.store(s)
	c.writeRedis(ctx, s)
	c.logger.Info().Int("features", len(fc.Features)).Msg("boundaries loaded")
	return s, nil
}

func (c *BoundaryCache) store(s *Snapshot) {
	c.mu.Lock()
	c.current, c.retryAt = s, time.Time{}
	c.mu.Unlock()
}

func (c *BoundaryCache) readRedis(ctx context.Context) *Snapshot {
	if c.redis == nil {
		return nil
	}
	data, err := c.redis.Get(ctx, c.key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		metrics.RecordBoundaryCache("redis", false)
		return nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("redis boundary lookup failed")
		return nil
	}

	var entry redisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn().Err(err).Msg("discarding corrupt redis boundary entry")
		return nil
	}
	if c.ttl > 0 && c.now().Sub(entry.FetchedAt) >= c.ttl {
		metrics.RecordBoundaryCache("redis", false)
		return nil
	}
	fc, err := Decode(entry.Data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("discarding corrupt redis boundary entry")
		return nil
	}
	metrics.RecordBoundaryCache("redis", true)
	return &Snapshot{Collection: fc, Raw: entry.Data, FetchedAt: entry.FetchedAt}
}

func (c *BoundaryCache) writeRedis(ctx context.Context, s *Snapshot) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(redisEntry{FetchedAt: s.FetchedAt, Data: s.Raw})
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode boundary entry")
		return
	}
	if err := c.redis.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store boundaries in redis")
	}
}

// Invalidate drops the cached copy from every tier.
func (c *BoundaryCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	c.current, c.retryAt = nil, time.Time{}
	c.mu.Unlock()
	c.group.Forget(c.key)
	return c.deleteRedis(ctx)
}

// Refresh reloads the layer from upstream. The previous copy is kept as
// the stale fallback should the reload fail.
func (c *BoundaryCache) Refresh(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	if c.current != nil {
		expired := *c.current
		expired.Stale = true
		c.current = &expired
	}
	c.retryAt = time.Time{}
	c.mu.Unlock()
	c.group.Forget(c.key)

	if err := c.deleteRedis(ctx); err != nil {
		return nil, err
	}
	return c.Get(ctx)
}

func (c *BoundaryCache) deleteRedis(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, c.key).Err(); err != nil {
		return errors.Wrap(err, "failed to invalidate redis boundaries")
	}
	return nil
}
