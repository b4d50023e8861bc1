package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, ttl), mr
}

func sessionStores(t *testing.T) map[string]SessionStore {
	redisStore, _ := newRedisStore(t, time.Minute)
	return map[string]SessionStore{
		"memory": NewMemorySessionStore(time.Minute),
		"redis":  redisStore,
	}
}

func TestGuard_Transitions(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			g := NewGuard(store, 3)

			for i, want := range []GuardState{
				{Failures: 1, Remaining: 2},
				{Failures: 2, Remaining: 1},
				{Failures: 3, Remaining: 0, Locked: true},
			} {
				n, err := g.Begin(ctx, "sid")
				require.NoError(t, err)
				assert.Equal(t, i+1, n)
				assert.Equal(t, want.Remaining, g.Remaining(n))

				state, err := g.State(ctx, "sid")
				require.NoError(t, err)
				assert.Equal(t, want, state)
			}

			_, err := g.Begin(ctx, "sid")
			assert.ErrorIs(t, err, ErrLockedOut)

			state, err := g.State(ctx, "sid")
			require.NoError(t, err)
			assert.True(t, state.Locked)
			assert.Equal(t, 3, state.Failures)

			// Other sessions start open.
			n, err := g.Begin(ctx, "another")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestGuard_SucceedResets(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			g := NewGuard(store, 3)

			_, err := g.Begin(ctx, "sid")
			require.NoError(t, err)
			_, err = g.Begin(ctx, "sid")
			require.NoError(t, err)

			require.NoError(t, g.Succeed(ctx, "sid"))

			state, err := g.State(ctx, "sid")
			require.NoError(t, err)
			assert.Equal(t, GuardState{Remaining: 3}, state)

			n, err := g.Begin(ctx, "sid")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestGuard_Release(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			g := NewGuard(store, 3)

			_, err := g.Begin(ctx, "sid")
			require.NoError(t, err)
			_, err = g.Begin(ctx, "sid")
			require.NoError(t, err)

			require.NoError(t, g.Release(ctx, "sid"))
			state, err := g.State(ctx, "sid")
			require.NoError(t, err)
			assert.Equal(t, GuardState{Failures: 1, Remaining: 2}, state)

			require.NoError(t, g.Release(ctx, "sid"))
			state, err = g.State(ctx, "sid")
			require.NoError(t, err)
			assert.Equal(t, GuardState{Remaining: 3}, state)

			// Never goes below zero.
			require.NoError(t, g.Release(ctx, "sid"))
			require.NoError(t, g.Release(ctx, "missing"))
			n, err := store.Count(ctx, "missing")
			require.NoError(t, err)
			assert.Zero(t, n)

			n, err = g.Begin(ctx, "sid")
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestRedisSessionStore_DecrementKeepsTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()
	key := loginAttemptsPrefix + "sid"

	for range 3 {
		_, err := store.Increment(ctx, "sid")
		require.NoError(t, err)
	}
	mr.FastForward(20 * time.Second)

	require.NoError(t, store.Decrement(ctx, "sid"))
	n, err := store.Count(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 40*time.Second, mr.TTL(key))

	require.NoError(t, store.Decrement(ctx, "sid"))
	require.NoError(t, store.Decrement(ctx, "sid"))
	assert.False(t, mr.Exists(key))
}

func TestGuard_ConcurrentAttemptsBounded(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			g := NewGuard(store, 3)

			const workers = 20
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				allowed int
				locked  int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := g.Begin(ctx, "sid")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						allowed++
					case errors.Is(err, ErrLockedOut):
						locked++
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 3, allowed)
			assert.Equal(t, workers-3, locked)
		})
	}
}

func TestGuard_EmptySession(t *testing.T) {
	g := NewGuard(NewMemorySessionStore(time.Minute), 3)

	_, err := g.Begin(context.Background(), "")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockedOut)

	state, err := g.State(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, GuardState{Remaining: 3}, state)
}

func TestGuard_DefaultMaxAttempts(t *testing.T) {
	g := NewGuard(NewMemorySessionStore(time.Minute), 0)
	assert.Equal(t, 3, g.MaxAttempts())
}

func TestGuard_StoreFailureFailsClosed(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	g := NewGuard(store, 3)
	mr.Close()

	_, err := g.Begin(context.Background(), "sid")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockedOut)
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Increment(ctx, "sid")
		require.NoError(t, err)
	}

	n, err := store.Count(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	now = now.Add(2 * time.Minute)
	n, err = store.Count(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = store.Increment(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemorySessionStore_Sweep(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Increment(ctx, "old")
	require.NoError(t, err)
	now = now.Add(45 * time.Second)
	_, err = store.Increment(ctx, "fresh")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, store.Sweep())
	assert.Len(t, store.entries, 1)

	n, err := store.Count(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Zero(t, NewMemorySessionStore(0).Sweep())
}

func TestRedisSessionStore_Expiry(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	n, err := store.Increment(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, time.Minute, mr.TTL(loginAttemptsPrefix+"sid"))

	mr.FastForward(2 * time.Minute)

	n, err = store.Count(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAttemptsMessage(t *testing.T) {
	tests := []struct {
		remaining int
		want      string
	}{
		{2, "Please check your login details and try again. 2 login attempts remaining"},
		{1, "Please check your login details and try again. 1 login attempt remaining"},
		{0, "Number of incorrect logins exceeded"},
		{-1, "Number of incorrect logins exceeded"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AttemptsMessage(tt.remaining))
	}
}
