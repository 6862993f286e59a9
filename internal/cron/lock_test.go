package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if v, ok := m.values[key]; ok && v == expected {
		delete(m.values, key)
		return true, nil
	}
	return false, nil
}

func (m *memoryLockStore) LockKey(name string) string { return "sr:lock:" + name }

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "cron:test", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "cron:test", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "sr:lock:cron:test", first.Key())

	ctx := context.Background()
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, store.ttls[first.Key()])

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, first.Key())

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockLeavesForeignLease(t *testing.T) {
	store := newMemoryLockStore()
	lock, err := NewRedisLock(store, "cron:test", 0)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, defaultLockTTL, store.ttls[lock.Key()])

	// lease expired and another worker took it
	store.values[lock.Key()] = "someone-else"
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "someone-else", store.values[lock.Key()])
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "x", 0)
	require.Error(t, err)
	_, err = NewRedisLock(newMemoryLockStore(), "", 0)
	require.Error(t, err)
}

func TestRedisLockTokenNamesHolder(t *testing.T) {
	t.Setenv("STOCKROOM_INSTANCE_ID", "cron-2")
	store := newMemoryLockStore()
	lock, err := NewRedisLock(store, "cron:test", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(store.values[lock.Key()], "cron-2/"))
}
