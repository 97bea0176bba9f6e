package replay_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/metrics"
	"github.com/jrsteele09/go-auth-engine/replay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const skew = time.Minute

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newGuard(t *testing.T) (*replay.Guard, *clock) {
	t.Helper()
	c := &clock{now: time.Unix(1700000000, 0)}
	store := replay.NewMemoryStore(c.Now)
	return replay.NewGuard(store, replay.WithNowFunc(c.Now), replay.WithLogger(zerolog.Nop())), c
}

func TestReplayRejectedWithinWindow(t *testing.T) {
	g, c := newGuard(t)
	ctx := context.Background()
	ts := c.Now().Unix()

	require.True(t, g.Validate(ctx, "app1", "n1", ts, skew))
	require.False(t, g.Validate(ctx, "app1", "n1", ts, skew))

	t.Run("nonce is scoped per client", func(t *testing.T) {
		require.True(t, g.Validate(ctx, "app2", "n1", ts, skew))
	})

	t.Run("accepted again after ttl", func(t *testing.T) {
		c.Advance(skew + time.Second)
		require.True(t, g.Validate(ctx, "app1", "n1", c.Now().Unix(), skew))
	})
}

func TestSkewWindow(t *testing.T) {
	g, c := newGuard(t)
	ctx := context.Background()
	now := c.Now().Unix()

	require.True(t, g.Validate(ctx, "app1", "a", now-60, skew), "exactly at the window edge")
	require.True(t, g.Validate(ctx, "app1", "b", now+60, skew))
	require.False(t, g.Validate(ctx, "app1", "c", now-61, skew), "too old")
	require.False(t, g.Validate(ctx, "app1", "d", now+61, skew), "too far in the future")
}

func TestConcurrentReplay(t *testing.T) {
	g, c := newGuard(t)
	ctx := context.Background()
	ts := c.Now().Unix()

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Validate(ctx, "app1", "shared", ts, skew) {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), accepted.Load())
}

type failingStore struct{}

func (failingStore) Add(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func TestStoreErrorFailsClosed(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := metrics.New(reg)
	require.NoError(t, err)

	g := replay.NewGuard(failingStore{}, replay.WithLogger(zerolog.Nop()), replay.WithMetrics(recorder))
	require.False(t, g.Validate(context.Background(), "app1", "n1", time.Now().Unix(), skew))

	count, err := testutil.GatherAndCount(reg, "authengine_replay_rejections_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMemoryStoreCleanup(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	store := replay.NewMemoryStore(c.Now)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		added, err := store.Add(ctx, key, time.Second)
		require.NoError(t, err)
		require.True(t, added)
	}
	require.Equal(t, 3, store.Len())

	c.Advance(2 * time.Second)
	store.Cleanup()
	require.Equal(t, 0, store.Len())
}

func TestFutureTimestampHeldUntilWindowCloses(t *testing.T) {
	g, c := newGuard(t)
	ctx := context.Background()
	ts := c.Now().Add(skew).Unix()

	require.True(t, g.Validate(ctx, "app1", "n1", ts, skew))

	c.Advance(skew + time.Second)
	require.False(t, g.Validate(ctx, "app1", "n1", ts, skew), "timestamp still inside the window")

	c.Advance(skew)
	require.False(t, g.Validate(ctx, "app1", "n1", ts, skew), "timestamp now outside the window")
	require.True(t, g.Validate(ctx, "app1", "n1", c.Now().Unix(), skew), "fresh timestamp after both windows")
}

func TestKey(t *testing.T) {
	require.Equal(t, "4:app1:n1", replay.Key("app1", "n1"))
	require.NotEqual(t, replay.Key("a:b", "c"), replay.Key("a", "b:c"))

	t.Run("clients cannot spend each other's nonces", func(t *testing.T) {
		g, c := newGuard(t)
		ctx := context.Background()
		ts := c.Now().Unix()
		require.True(t, g.Validate(ctx, "a:b", "c", ts, skew))
		require.True(t, g.Validate(ctx, "a", "b:c", ts, skew))
	})
}
