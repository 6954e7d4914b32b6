package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cachekit/internal/index"
)

func TestIsStale(t *testing.T) {
	t.Parallel()

	fresh := &index.IndexItem{CachedAt: baseTime.Add(-2 * time.Hour)}
	old := &index.IndexItem{CachedAt: baseTime.Add(-30 * time.Hour)}

	assert.False(t, IsStale(fresh, 24*time.Hour, baseTime))
	assert.True(t, IsStale(old, 24*time.Hour, baseTime))
	assert.True(t, IsStale(old, 0, baseTime), "zero threshold falls back to the 24h default")
}

func TestRefreshPriority(t *testing.T) {
	t.Parallel()

	t.Run("monotonic in access count", func(t *testing.T) {
		t.Parallel()
		hot := &index.IndexItem{CachedAt: baseTime.Add(-30 * time.Hour), SizeBytes: 4096, AccessCount: 100}
		cold := &index.IndexItem{CachedAt: baseTime.Add(-30 * time.Hour), SizeBytes: 4096, AccessCount: 1}

		assert.Greater(t,
			RefreshPriority(hot, 24*time.Hour, baseTime),
			RefreshPriority(cold, 24*time.Hour, baseTime))
	})

	t.Run("large items score lower", func(t *testing.T) {
		t.Parallel()
		small := &index.IndexItem{CachedAt: baseTime.Add(-30 * time.Hour), SizeBytes: 1024, AccessCount: 5}
		large := &index.IndexItem{CachedAt: baseTime.Add(-30 * time.Hour), SizeBytes: 50 * 1024 * 1024, AccessCount: 5}

		assert.Greater(t,
			RefreshPriority(small, 24*time.Hour, baseTime),
			RefreshPriority(large, 24*time.Hour, baseTime))
	})

	t.Run("age beyond threshold deprioritizes", func(t *testing.T) {
		t.Parallel()
		recent := &index.IndexItem{CachedAt: baseTime.Add(-30 * time.Hour), SizeBytes: 1024, AccessCount: 5}
		ancient := &index.IndexItem{CachedAt: baseTime.Add(-200 * time.Hour), SizeBytes: 1024, AccessCount: 5}

		assert.Greater(t,
			RefreshPriority(recent, 24*time.Hour, baseTime),
			RefreshPriority(ancient, 24*time.Hour, baseTime))
	})
}

func TestStaleItems(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seed(t, "two hours old", 2*time.Hour)
	old := env.seed(t, "thirty hours old", 30*time.Hour)

	r := NewRefresher(env.store, env.index, env.clock())
	stale := r.StaleItems(24 * time.Hour)
	require.Len(t, stale, 1)
	assert.Equal(t, old, stale[0].Hash)
}

func TestSortByPriority(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	r := NewRefresher(env.store, env.index, env.clock())

	items := []index.IndexItem{
		{Hash: "cold", CachedAt: baseTime.Add(-30 * time.Hour), AccessCount: 1},
		{Hash: "hot", CachedAt: baseTime.Add(-30 * time.Hour), AccessCount: 50},
		{Hash: "warm", CachedAt: baseTime.Add(-30 * time.Hour), AccessCount: 10},
	}
	sorted := r.SortByPriority(items, 24*time.Hour)
	assert.Equal(t, []string{"hot", "warm", "cold"},
		[]string{sorted[0].Hash, sorted[1].Hash, sorted[2].Hash})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	t.Run("replaces stale entries with fresh content", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		old := env.seed(t, "stale content", 30*time.Hour)

		r := NewRefresher(env.store, env.index, env.clock())
		outcomes := r.Refresh(24*time.Hour, func(item index.IndexItem) (any, error) {
			return "fresh content", nil
		})
		require.Len(t, outcomes, 1)
		require.NoError(t, outcomes[0].Err)
		assert.Equal(t, old, outcomes[0].Hash)
		assert.NotEqual(t, old, outcomes[0].NewHash)

		// Old entry invalidated, new one registered.
		assert.False(t, env.store.Exists(old))
		_, ok := env.index.GetItem(old)
		assert.False(t, ok)
		assert.True(t, env.store.Exists(outcomes[0].NewHash))
		_, ok = env.index.GetItem(outcomes[0].NewHash)
		assert.True(t, ok)
	})

	t.Run("unchanged content keeps its hash", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		old := env.seed(t, "stable content", 30*time.Hour)

		r := NewRefresher(env.store, env.index, env.clock())
		outcomes := r.Refresh(24*time.Hour, func(item index.IndexItem) (any, error) {
			return "stable content", nil
		})
		require.Len(t, outcomes, 1)
		require.NoError(t, outcomes[0].Err)
		assert.Equal(t, old, outcomes[0].NewHash)
		assert.True(t, env.store.Exists(old))
	})

	t.Run("one failure does not stop the batch", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.seed(t, "first stale", 30*time.Hour)
		env.seed(t, "second stale", 40*time.Hour)

		boom := errors.New("upstream unavailable")
		var calls int
		r := NewRefresher(env.store, env.index, env.clock())
		outcomes := r.Refresh(24*time.Hour, func(item index.IndexItem) (any, error) {
			calls++
			if calls == 1 {
				return nil, boom
			}
			return "recovered", nil
		})
		require.Len(t, outcomes, 2)
		assert.ErrorIs(t, outcomes[0].Err, boom)
		assert.NoError(t, outcomes[1].Err)
	})
}
