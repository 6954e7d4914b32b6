package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cachekit/internal/index"
)

// seedAccessed seeds a payload and backdates its last access.
func (env *testEnv) seedAccessed(t *testing.T, data any, accessedAgo time.Duration) string {
	t.Helper()
	hash := env.seed(t, data, 10*24*time.Hour)

	doc := env.index.Load()
	for i := range doc.Items {
		if doc.Items[i].Hash == hash {
			at := env.now.Add(-accessedAgo)
			doc.Items[i].LastAccessedAt = &at
		}
	}
	require.NoError(t, env.index.Save(doc))
	return hash
}

func TestSizeInfo(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	a := env.seed(t, "first payload", time.Hour)
	b := env.seed(t, "second, longer payload", time.Hour)

	p := NewPruner(env.store, env.index, env.clock())
	info := p.SizeInfo()
	assert.Equal(t, 2, info.ItemCount)
	assert.Equal(t, env.store.Size(a)+env.store.Size(b), info.TotalBytes)
}

func TestPruneableItems(t *testing.T) {
	t.Parallel()

	t.Run("oldest access first, never-accessed before all", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		recent := env.seedAccessed(t, "recently used", time.Hour)
		stale := env.seedAccessed(t, "long unused", 72*time.Hour)
		never := env.seed(t, "never accessed", 10*24*time.Hour)

		p := NewPruner(env.store, env.index, env.clock())
		items := p.PruneableItems(0)
		require.Len(t, items, 3)
		assert.Equal(t, never, items[0].Hash)
		assert.Equal(t, stale, items[1].Hash)
		assert.Equal(t, recent, items[2].Hash)
	})

	t.Run("minKeep protects the most recently used", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.seedAccessed(t, "a", 3*time.Hour)
		env.seedAccessed(t, "b", 2*time.Hour)
		protected := env.seedAccessed(t, "c", 1*time.Hour)

		p := NewPruner(env.store, env.index, env.clock())
		items := p.PruneableItems(1)
		require.Len(t, items, 2)
		for _, item := range items {
			assert.NotEqual(t, protected, item.Hash)
		}

		assert.Nil(t, p.PruneableItems(5), "minKeep above item count leaves nothing pruneable")
	})
}

func TestPruneLRU(t *testing.T) {
	t.Parallel()

	t.Run("evicts in LRU order until under threshold", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		oldest := env.seedAccessed(t, "oldest access, should go first", 96*time.Hour)
		middle := env.seedAccessed(t, "middle access", 48*time.Hour)
		newest := env.seedAccessed(t, "newest access, should survive", 1*time.Hour)

		p := NewPruner(env.store, env.index, env.clock())
		total := p.SizeInfo().TotalBytes
		threshold := total - env.store.Size(oldest) - env.store.Size(middle) + 1

		result := p.PruneLRU(threshold, 0)
		assert.True(t, result.OK())
		assert.Equal(t, 2, result.RemovedCount)
		assert.False(t, env.store.Exists(oldest))
		assert.False(t, env.store.Exists(middle))
		assert.True(t, env.store.Exists(newest))
		assert.LessOrEqual(t, p.SizeInfo().TotalBytes, threshold)
		assert.Greater(t, result.BytesFreed, int64(0))
	})

	t.Run("no-op when already under threshold", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.seed(t, "small", time.Hour)

		p := NewPruner(env.store, env.index, env.clock())
		result := p.PruneLRU(1<<30, 0)
		assert.Zero(t, result.RemovedCount)
		assert.Equal(t, 1, p.SizeInfo().ItemCount)
	})

	t.Run("stops cleanly when minKeep blocks the threshold", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.seedAccessed(t, "a", 3*time.Hour)
		env.seedAccessed(t, "b", 2*time.Hour)

		p := NewPruner(env.store, env.index, env.clock())
		result := p.PruneLRU(0, 2)
		assert.True(t, result.OK(), "unreachable threshold is not an error")
		assert.Zero(t, result.RemovedCount)
		assert.Equal(t, 2, p.SizeInfo().ItemCount)
	})
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "1 MB", FormatBytes(1024*1024))
	assert.Equal(t, "2.5 GB", FormatBytes(5*1024*1024*1024/2))
}

func TestAccessTimeKey(t *testing.T) {
	t.Parallel()

	at := baseTime
	accessed := &index.IndexItem{CachedAt: baseTime.Add(-time.Hour), LastAccessedAt: &at}
	assert.Equal(t, at, accessTime(accessed))

	never := &index.IndexItem{CachedAt: baseTime.Add(-time.Hour)}
	assert.Equal(t, baseTime.Add(-time.Hour), accessTime(never))
}
