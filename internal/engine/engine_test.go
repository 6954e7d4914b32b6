package engine

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	billyutil "github.com/go-git/go-billy/v5/util"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cachekit/internal/common"
	"cachekit/internal/config"
	"cachekit/internal/util"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testEngine struct {
	*Engine
	now time.Time
}

func newTestEngine(t *testing.T) (*testEngine, func(path, content string)) {
	t.Helper()
	cachefs := memfs.New()
	srcfs := memfs.New()

	te := &testEngine{now: baseTime}
	clock := util.ClockFunc(func() time.Time { return te.now })
	te.Engine = NewWithFS(cachefs, ".", srcfs, config.Default(), clock, nil, nil)
	require.True(t, te.Initialize().OK())

	writeSource := func(path, content string) {
		require.NoError(t, billyutil.WriteFile(srcfs, path, []byte(content), 0644))
	}
	return te, writeSource
}

func TestPutGetDelete(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)

	res, err := e.Put(map[string]any{"rows": float64(3)}, "api/rows", "remote-call", nil)
	require.NoError(t, err)

	// Put registers in the index with accessCount 1.
	item, ok := e.Index.GetItem(res.Hash)
	require.True(t, ok)
	assert.Equal(t, 1, item.AccessCount)
	assert.Equal(t, "api/rows", item.Source)

	// Get returns the payload and counts the access.
	p, err := e.Get(res.Hash)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rows": float64(3)}, p.Data)
	item, _ = e.Index.GetItem(res.Hash)
	assert.Equal(t, 2, item.AccessCount)
	require.NotNil(t, item.LastAccessedAt)

	// Delete removes both file and entry.
	removed, err := e.Delete(res.Hash)
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = e.Get(res.Hash)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, ok = e.Index.GetItem(res.Hash)
	assert.False(t, ok)
}

func TestPutDedupTouchesExistingEntry(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)

	first, err := e.Put("same content", "src", "call", nil)
	require.NoError(t, err)
	second, err := e.Put("same content", "src", "call", nil)
	require.NoError(t, err)

	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.Hash, second.Hash)

	item, ok := e.Index.GetItem(first.Hash)
	require.True(t, ok)
	assert.Equal(t, 2, item.AccessCount, "dedup save counts as an access")
	assert.Equal(t, 1, e.Index.Stats().TotalItems)
}

func TestPutRecoversLostIndexEntry(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)

	res, err := e.Put("orphan-to-be", "src", "call", nil)
	require.NoError(t, err)
	_, err = e.Index.Remove(res.Hash)
	require.NoError(t, err)

	again, err := e.Put("orphan-to-be", "src", "call", nil)
	require.NoError(t, err)
	assert.True(t, again.Deduplicated)
	_, ok := e.Index.GetItem(res.Hash)
	assert.True(t, ok, "dedup against an unindexed file re-registers it")
}

func TestMaintenance(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)

	fresh, err := e.Put("fresh entry", "src", "call", nil)
	require.NoError(t, err)

	// Age one entry past the 7-day retention window.
	old, err := e.Put("expired entry", "src", "call", nil)
	require.NoError(t, err)
	doc := e.Index.Load()
	for i := range doc.Items {
		if doc.Items[i].Hash == old.Hash {
			doc.Items[i].CachedAt = baseTime.Add(-8 * 24 * time.Hour)
		}
	}
	require.NoError(t, e.Index.Save(doc))

	result := e.Maintenance()
	assert.True(t, result.Retention.OK())
	assert.Equal(t, 1, result.Retention.RemovedCount)
	assert.True(t, result.Prune.OK())
	assert.Zero(t, result.Prune.RemovedCount, "well under the size threshold")

	assert.False(t, e.Store.Exists(old.Hash))
	assert.True(t, e.Store.Exists(fresh.Hash))
}

func TestWatchInvalidatesOnSourceChange(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	e, writeSource := newTestEngine(t)

	writeSource("report-input.csv", "a,b,c")
	res, err := e.Put("rendered report", "report-input.csv", "report", nil)
	require.NoError(t, err)
	require.True(t, e.Detector.Register("report-input.csv", []string{res.Hash}))

	writeSource("report-input.csv", "a,b,c,d")

	// The immediate first pass on Watch picks up the change.
	s, err := e.Watch(time.Minute)
	require.NoError(t, err)
	defer s.Stop()

	g.Eventually(func() bool { return e.Store.Exists(res.Hash) }).
		WithTimeout(time.Second).WithPolling(10 * time.Millisecond).
		Should(BeFalse())
	g.Eventually(func() bool { _, ok := e.Index.GetItem(res.Hash); return ok }).
		WithTimeout(time.Second).WithPolling(10 * time.Millisecond).
		Should(BeFalse())
}
