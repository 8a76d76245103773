package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

const (
	lookupKeyVersion  = "v1"
	lookupLoadTimeout = 15 * time.Second
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// LookupCache holds reference pages (states, batches) shared by every
// workspace. Concurrent misses for the same page share one upstream call.
// Without a repository every read goes to the loader.
type LookupCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	flights singleflight.Group
}

// NewLookupCache constructs a lookup cache. repo may be nil.
func NewLookupCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *LookupCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

// Enabled reports whether a backing store is configured.
func (c *LookupCache) Enabled() bool {
	return c != nil && c.repo != nil
}

func (c *LookupCache) key(page string) string {
	return fmt.Sprintf("lookups:%s:%s", lookupKeyVersion, page)
}

// Invalidate drops the cached records of page so the next read reloads them.
func (c *LookupCache) Invalidate(ctx context.Context, page string) error {
	if !c.Enabled() {
		return nil
	}
	key := c.key(page)
	c.flights.Forget(key)
	if err := c.repo.DeleteByPattern(ctx, key); err != nil {
		c.logger.Warn("lookup invalidation failed", zap.String("page", page), zap.Error(err))
		return err
	}
	return nil
}

func (c *LookupCache) read(ctx context.Context, key string, dest interface{}) bool {
	start := time.Now()
	err := c.repo.Get(ctx, key, dest)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		c.logger.Warn("lookup read failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

func (c *LookupCache) write(ctx context.Context, key string, value interface{}) {
	start := time.Now()
	err := c.repo.Set(ctx, key, value, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("lookup write failed", zap.String("key", key), zap.Error(err))
	}
}

// cachedLookup serves page records from the cache and falls back to load on
// a miss or a store failure. Store failures never fail the read.
func cachedLookup[T any](ctx context.Context, c *LookupCache, page string, load func(context.Context) ([]T, error)) ([]T, error) {
	if !c.Enabled() {
		return load(ctx)
	}
	key := c.key(page)
	var cached []T
	if c.read(ctx, key, &cached) {
		return cached, nil
	}

	// The shared load outlives any one caller; each caller still stops
	// waiting when its own request ends.
	flight := c.flights.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupLoadTimeout)
		defer cancel()
		records, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.write(loadCtx, key, records)
		return records, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-flight:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		c.logger.Debug("lookup load shared", zap.String("page", page))
	}
	return res.Val.([]T), nil
}
