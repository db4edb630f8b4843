package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/school-api/pkg/errors"
)

// memoryCache stores JSON like the redis repository and matches glob patterns.
type memoryCache struct {
	values map[string][]byte
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.values {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.values, key)
		}
	}
	return nil
}

func TestRememberLoadsOnceAndCountsLookups(t *testing.T) {
	store := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewCacheService(store, metrics, time.Minute, zap.NewNop(), true)

	loads := 0
	load := func(ctx context.Context) (map[string]int, error) {
		loads++
		return map[string]int{"Math": 2}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Remember(context.Background(), svc, "school:test", 0, load)
		require.NoError(t, err)
		assert.Equal(t, 2, got["Math"])
	}
	assert.Equal(t, 1, loads)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestRememberServesLoaderWhenCacheFails(t *testing.T) {
	store := newMemoryCache()
	store.getErr = errors.New("connection refused")
	svc := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)

	got, err := Remember(context.Background(), svc, "school:test", time.Minute, func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestRememberBypassedWhenDisabled(t *testing.T) {
	store := newMemoryCache()
	svc := NewCacheService(store, nil, time.Minute, zap.NewNop(), false)

	_, err := Remember(context.Background(), svc, "school:test", time.Minute, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.Empty(t, store.values)

	var nilSvc *CacheService
	got, err := Remember(context.Background(), nilSvc, "school:test", time.Minute, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestInvalidateDropsMatchingKeys(t *testing.T) {
	store := newMemoryCache()
	svc := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "school:sessions:statistics:a", 1, 0))
	require.NoError(t, store.Set(ctx, "school:absences:students:s-1:statistics", 1, 0))

	svc.Invalidate(ctx, "school:sessions:*")
	assert.NotContains(t, store.values, "school:sessions:statistics:a")
	assert.Contains(t, store.values, "school:absences:students:s-1:statistics")
}
