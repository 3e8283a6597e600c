package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache is an in-process Cache used to exercise GetOrSet
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (m *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *mapCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *mapCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapCache) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	b, _ := json.Marshal(value)
	m.data[key] = b
	return true, nil
}

type cachedStatus struct {
	Status string `json:"status"`
	Paid   int64  `json:"paid"`
}

func TestGetOrSetCallsFnOnce(t *testing.T) {
	cache := newMapCache()
	calls := 0
	fn := func() (cachedStatus, error) {
		calls++
		return cachedStatus{Status: "partial", Paid: 2000}, nil
	}

	first, err := GetOrSet(cache, context.Background(), "k", time.Minute, fn)
	require.NoError(t, err)
	second, err := GetOrSet(cache, context.Background(), "k", time.Minute, fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestGetOrSetDoesNotCacheErrors(t *testing.T) {
	cache := newMapCache()
	_, err := GetOrSet(cache, context.Background(), "k", time.Minute, func() (cachedStatus, error) {
		return cachedStatus{}, errors.New("db down")
	})
	assert.Error(t, err)

	var out cachedStatus
	assert.ErrorIs(t, cache.Get(context.Background(), "k", &out), ErrCacheMiss)
}

func TestNoopCache(t *testing.T) {
	var c Cache = NoopCache{}
	ok, err := c.SetNX(context.Background(), "lock", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	calls := 0
	for i := 0; i < 2; i++ {
		_, err := GetOrSet(c, context.Background(), "k", time.Minute, func() (int, error) {
			calls++
			return 1, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}
