package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryMarkRejectsReuse(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewTTLCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := c.TryMark(ctx, "n1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = c.TryMark(ctx, "n1", time.Minute)
	require.False(t, ok)

	ok, _ = c.TryMark(ctx, "n2", time.Minute)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = c.TryMark(ctx, "n1", time.Minute)
	require.True(t, ok)
}

func TestReleaseAllowsRemark(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()

	ok, _ := c.TryMark(ctx, "n1", time.Minute)
	require.True(t, ok)
	require.NoError(t, c.Release(ctx, "n1"))
	require.Zero(t, c.Len())

	ok, _ = c.TryMark(ctx, "n1", time.Minute)
	require.True(t, ok)
	require.NoError(t, c.Release(ctx, "absent"))
}

func TestTryMarkConcurrent(t *testing.T) {
	c := NewTTLCache()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := c.TryMark(context.Background(), "same", time.Minute); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins)
}

func TestSweep(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewTTLCache()
	c.now = func() time.Time { return now }
	c.Set("a", 1, time.Second)
	c.Set("b", 2, 0)

	now = now.Add(time.Minute)
	require.Equal(t, 1, c.Sweep())
	require.Equal(t, 1, c.Len())
	v, ok := c.Get("b")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestNewReplayGuard(t *testing.T) {
	g, err := NewReplayGuard(BackendNone, RedisConfig{})
	require.NoError(t, err)
	require.Nil(t, g)

	g, err = NewReplayGuard(BackendMemory, RedisConfig{})
	require.NoError(t, err)
	require.IsType(t, &TTLCache{}, g)

	g, err = NewReplayGuard(BackendRedis, RedisConfig{Addr: "localhost:0"})
	require.NoError(t, err)
	require.IsType(t, &RedisCache{}, g)

	_, err = NewReplayGuard("etcd", RedisConfig{})
	require.Error(t, err)
}
