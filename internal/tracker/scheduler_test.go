package tracker

import (
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cachekit/internal/common"
)

// manualTicker drives a Scheduler by hand.
func manualTicker() (chan time.Time, TickerFactory) {
	ch := make(chan time.Time)
	factory := func(interval time.Duration) (<-chan time.Time, func()) {
		return ch, func() {}
	}
	return ch, factory
}

func TestSchedulerImmediateFirstPass(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, factory := manualTicker()
	s := NewScheduler(factory)

	var passes atomic.Int32
	require.NoError(t, s.Start(time.Minute, func() { passes.Add(1) }))
	defer s.Stop()

	g.Eventually(func() int32 { return passes.Load() }).
		WithTimeout(time.Second).WithPolling(10 * time.Millisecond).
		Should(Equal(int32(1)), "one pass runs immediately on start")
}

func TestSchedulerTicks(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	ticks, factory := manualTicker()
	s := NewScheduler(factory)

	var passes atomic.Int32
	require.NoError(t, s.Start(time.Minute, func() { passes.Add(1) }))
	defer s.Stop()

	g.Eventually(func() int32 { return passes.Load() }).Should(Equal(int32(1)))

	ticks <- time.Now()
	ticks <- time.Now()
	g.Eventually(func() int32 { return passes.Load() }).
		WithTimeout(time.Second).WithPolling(10 * time.Millisecond).
		Should(Equal(int32(3)))
}

func TestSchedulerNoOverlap(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, factory := manualTicker()
	s := NewScheduler(factory)

	block := make(chan struct{})
	var passes atomic.Int32
	require.NoError(t, s.Start(time.Minute, func() {
		passes.Add(1)
		<-block
	}))

	g.Eventually(func() int32 { return passes.Load() }).Should(Equal(int32(1)))

	// A concurrent run attempt while the first pass is blocked is skipped.
	s.run(func() { passes.Add(1) })
	assert.Equal(t, int32(1), passes.Load(), "re-entrant pass must be skipped")

	close(block)
	s.Stop()
}

func TestSchedulerStop(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	ticks, factory := manualTicker()
	s := NewScheduler(factory)

	var passes atomic.Int32
	require.NoError(t, s.Start(time.Minute, func() { passes.Add(1) }))

	g.Eventually(func() int32 { return passes.Load() }).Should(Equal(int32(1)))

	s.Stop()
	s.Stop() // idempotent

	// Ticks after Stop are ignored; nobody is listening.
	select {
	case ticks <- time.Now():
		t.Fatal("tick should not be consumed after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(1), passes.Load())

	assert.ErrorIs(t, s.Start(time.Minute, func() {}), common.ErrStopped)
}

func TestScheduleRunsDetection(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	env := newTestEnv(t)
	env.writeSource(t, "watched.txt", "v1")
	hash := env.cachePayload(t, "watched.txt", "derived")

	ticks, factory := manualTicker()
	s, err := env.detector.ScheduleWithTicker(time.Minute, factory)
	require.NoError(t, err)
	defer s.Stop()

	// Immediate pass sees no change.
	g.Consistently(func() bool { return env.store.Exists(hash) }).
		WithTimeout(100 * time.Millisecond).Should(BeTrue())

	env.writeSource(t, "watched.txt", "v2")
	ticks <- time.Now()

	g.Eventually(func() bool { return env.store.Exists(hash) }).
		WithTimeout(time.Second).WithPolling(10 * time.Millisecond).
		Should(BeFalse(), "changed source invalidates the derived entry")
}
