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

// Package policy implements the three independent cache maintenance
// policies: age-based retention, size-based LRU pruning, and
// staleness-based refresh prioritization.
//
// Every policy follows the same discipline: decide against the index,
// execute against store and index (delete the payload file, then remove
// the catalog entry). A failure on one item is collected and the sweep
// continues; policies never abort a batch early.
package policy

import (
	"fmt"
	"time"

	logrus "github.com/sirupsen/logrus"

	"cachekit/internal/index"
	"cachekit/internal/payload"
	"cachekit/internal/util"
)

// DefaultRetentionAge is the default retention window.
const DefaultRetentionAge = 7 * 24 * time.Hour

// RetentionResult describes an expiry sweep.
type RetentionResult struct {
	RemovedCount int
	Errors       []error
}

// OK reports whether the sweep completed without errors.
func (r *RetentionResult) OK() bool { return len(r.Errors) == 0 }

// Retention evicts entries older than a configured age, regardless of
// size or access frequency.
type Retention struct {
	store *payload.Store
	index *index.Index
	clock util.Clock
}

// NewRetention creates a Retention policy over the given store and index.
func NewRetention(store *payload.Store, idx *index.Index, clock util.Clock) *Retention {
	if clock == nil {
		clock = util.SystemClock
	}
	return &Retention{store: store, index: idx, clock: clock}
}

// CalculateAge returns the age of an item at the given instant.
func CalculateAge(item *index.IndexItem, now time.Time) time.Duration {
	return now.Sub(item.CachedAt)
}

// FormatAge renders a duration using its largest applicable unit,
// e.g. "3 days", "2 hours", "45 minutes", "20 seconds".
func FormatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	var n int
	var unit string
	switch {
	case d >= 24*time.Hour:
		n, unit = int(d.Hours()/24), "day"
	case d >= time.Hour:
		n, unit = int(d.Hours()), "hour"
	case d >= time.Minute:
		n, unit = int(d.Minutes()), "minute"
	default:
		n, unit = int(d.Seconds()), "second"
	}
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// ExpiredItems returns the items whose age exceeds maxAge.
func (r *Retention) ExpiredItems(maxAge time.Duration) []index.IndexItem {
	if maxAge <= 0 {
		maxAge = DefaultRetentionAge
	}
	now := r.clock.Now()

	var expired []index.IndexItem
	for _, item := range r.index.Search(index.Filter{}) {
		if CalculateAge(&item, now) > maxAge {
			expired = append(expired, item)
		}
	}
	return expired
}

// Apply deletes every expired payload and its index entry. A failure on
// one item is recorded and processing continues with the next.
func (r *Retention) Apply(maxAge time.Duration) *RetentionResult {
	result := &RetentionResult{}

	for _, item := range r.ExpiredItems(maxAge) {
		// A missing payload file is a recoverable inconsistency, not a
		// failure; the entry is still pruned from the index.
		deleted := r.store.Delete(item.Hash)
		removed, err := r.index.Remove(item.Hash)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("expire %s: %w", item.Hash, err))
			continue
		}
		if deleted || removed {
			result.RemovedCount++
			logrus.Debugf("retention: expired %s (age %s)", item.Hash, FormatAge(CalculateAge(&item, r.clock.Now())))
		}
	}
	return result
}
