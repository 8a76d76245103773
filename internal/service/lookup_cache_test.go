package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/models"
)

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, interface{}) error { return errors.New("connection refused") }
func (brokenCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenCache) DeleteByPattern(context.Context, string) error { return errors.New("connection refused") }

func TestLookupCacheWithoutStoreAlwaysLoads(t *testing.T) {
	var cache *LookupCache
	var calls int
	load := func(context.Context) ([]models.State, error) {
		calls++
		return []models.State{{ID: "s1"}}, nil
	}

	for i := 0; i < 2; i++ {
		states, err := cachedLookup(context.Background(), cache, PageStates, load)
		require.NoError(t, err)
		assert.Len(t, states, 1)
	}
	assert.Equal(t, 2, calls)
	assert.NoError(t, cache.Invalidate(context.Background(), PageStates))
}

func TestLookupCacheStoreFailureFallsBackToLoader(t *testing.T) {
	cache := NewLookupCache(brokenCache{}, nil, time.Minute, zap.NewNop())

	batches, err := cachedLookup(context.Background(), cache, PageBatches, func(context.Context) ([]models.Batch, error) {
		return []models.Batch{{ID: "b1", Name: "Morning"}}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Morning", batches[0].Name)
	assert.Error(t, cache.Invalidate(context.Background(), PageBatches))
}

func TestLookupCacheSharesConcurrentMisses(t *testing.T) {
	cache := NewLookupCache(newMemoryCache(), nil, time.Minute, zap.NewNop())
	release := make(chan struct{})
	var calls int32
	load := func(context.Context) ([]models.State, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []models.State{{ID: "s1", Name: "Kerala"}}, nil
	}

	var wg sync.WaitGroup
	results := make([][]models.State, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cachedLookup(context.Background(), cache, PageStates, load)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, states := range results {
		require.Len(t, states, 1)
		assert.Equal(t, "Kerala", states[0].Name)
	}

	require.NoError(t, cache.Invalidate(context.Background(), PageStates))
	_, err := cachedLookup(context.Background(), cache, PageStates, func(context.Context) ([]models.State, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestLookupCacheCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	cache := NewLookupCache(newMemoryCache(), nil, time.Minute, zap.NewNop())
	entered := make(chan struct{})
	release := make(chan struct{})
	var loadErr error
	var once sync.Once
	load := func(ctx context.Context) ([]models.Batch, error) {
		once.Do(func() { close(entered) })
		<-release
		loadErr = ctx.Err()
		return []models.Batch{{ID: "b1"}}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cachedLookup(firstCtx, cache, PageBatches, load)
		firstErr <- err
	}()
	<-entered

	second := make(chan []models.Batch, 1)
	go func() {
		batches, err := cachedLookup(context.Background(), cache, PageBatches, load)
		assert.NoError(t, err)
		second <- batches
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	select {
	case batches := <-second:
		require.Len(t, batches, 1)
		assert.Equal(t, "b1", batches[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never received the shared load")
	}
	assert.NoError(t, loadErr)
}
