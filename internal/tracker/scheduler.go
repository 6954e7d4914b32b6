// Copyright 2025 CacheKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracker

import (
	"sync"
	"sync/atomic"
	"time"

	logrus "github.com/sirupsen/logrus"

	"cachekit/internal/common"
)

// DefaultDetectInterval is the default change-detection interval.
const DefaultDetectInterval = 5 * time.Minute

// TickerFactory builds the tick source for a Scheduler. Tests substitute
// a manual channel so interval behavior is deterministic; the default
// wraps time.NewTicker.
type TickerFactory func(interval time.Duration) (ticks <-chan time.Time, stop func())

func defaultTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// Scheduler runs a tick function on a fixed interval until stopped.
// One detection pass runs immediately on Start. A tick that fires while
// a previous pass is still in flight is skipped rather than overlapped.
type Scheduler struct {
	newTicker TickerFactory

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	stopped bool

	inFlight atomic.Bool
}

// NewScheduler creates a Scheduler. A nil factory uses real timers.
func NewScheduler(factory TickerFactory) *Scheduler {
	if factory == nil {
		factory = defaultTicker
	}
	return &Scheduler{newTicker: factory}
}

// Start runs tick immediately, then on every interval until Stop.
// Returns common.ErrStopped if the scheduler was already started or
// stopped; a Scheduler is single-use.
func (s *Scheduler) Start(interval time.Duration, tick func()) error {
	if interval <= 0 {
		interval = DefaultDetectInterval
	}

	s.mu.Lock()
	if s.stopped || s.stopCh != nil {
		s.mu.Unlock()
		return common.ErrStopped
	}
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticks, stop := s.newTicker(interval)
		defer stop()

		s.run(tick)
		for {
			select {
			case <-stopCh:
				return
			case <-ticks:
				s.run(tick)
			}
		}
	}()
	return nil
}

// run executes one pass, skipping if a previous pass is still in flight.
func (s *Scheduler) run(tick func()) {
	if !s.inFlight.CompareAndSwap(false, true) {
		logrus.Debugf("tracker: detection pass still running, skipping tick")
		return
	}
	defer s.inFlight.Store(false)
	tick()
}

// Stop prevents any further ticks and waits for an in-flight pass to
// finish. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	stopCh := s.stopCh
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	s.wg.Wait()
}

// Schedule starts a new Scheduler running detection passes on the given
// interval and returns it as a cancellable handle.
func (d *Detector) Schedule(interval time.Duration) (*Scheduler, error) {
	return d.ScheduleWithTicker(interval, nil)
}

// ScheduleWithTicker is Schedule with an injectable tick source.
func (d *Detector) ScheduleWithTicker(interval time.Duration, factory TickerFactory) (*Scheduler, error) {
	s := NewScheduler(factory)
	err := s.Start(interval, func() {
		result := d.DetectAndInvalidate()
		if !result.OK() {
			logrus.Warnf("tracker: scheduled detection finished with %d errors", len(result.Errors))
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
