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

package policy

import (
	"fmt"
	"sort"
	"time"

	logrus "github.com/sirupsen/logrus"

	"cachekit/internal/index"
	"cachekit/internal/payload"
	"cachekit/internal/util"
)

// DefaultStaleThreshold is the default staleness threshold.
const DefaultStaleThreshold = 24 * time.Hour

// RefreshFunc supplies fresh data for a stale entry. Refresh logic
// (e.g. re-fetching from a remote source) belongs to the caller; the
// policy only decides which entries are worth refreshing, and in what
// order.
type RefreshFunc func(item index.IndexItem) (any, error)

// RefreshOutcome records the per-item result of a refresh batch.
type RefreshOutcome struct {
	Hash    string // hash before the refresh
	NewHash string // hash after the refresh; equals Hash when content was unchanged
	Err     error
}

// Refresher ranks stale entries by a recency/usage score and hands them
// to an external refresh callback.
type Refresher struct {
	store *payload.Store
	index *index.Index
	clock util.Clock
}

// NewRefresher creates a Refresher over the given store and index.
func NewRefresher(store *payload.Store, idx *index.Index, clock util.Clock) *Refresher {
	if clock == nil {
		clock = util.SystemClock
	}
	return &Refresher{store: store, index: idx, clock: clock}
}

// IsStale reports whether the item's age since cachedAt exceeds the
// threshold at the given instant.
func IsStale(item *index.IndexItem, threshold time.Duration, now time.Time) bool {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return CalculateAge(item, now) > threshold
}

// RefreshPriority scores an item for proactive refresh. The score rises
// with access count (frequently used items matter more) and falls with
// size and with age beyond the staleness threshold, so small, hot
// entries are refreshed before large, cold, ancient ones.
func RefreshPriority(item *index.IndexItem, threshold time.Duration, now time.Time) float64 {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	score := float64(item.AccessCount) * 10
	score -= float64(item.SizeBytes) / (64 * 1024)
	if over := CalculateAge(item, now) - threshold; over > 0 {
		score -= over.Hours()
	}
	return score
}

// StaleItems returns the items older than the threshold.
func (r *Refresher) StaleItems(threshold time.Duration) []index.IndexItem {
	now := r.clock.Now()

	var stale []index.IndexItem
	for _, item := range r.index.Search(index.Filter{}) {
		if IsStale(&item, threshold, now) {
			stale = append(stale, item)
		}
	}
	return stale
}

// SortByPriority orders items by descending refresh priority, in place,
// and returns the slice.
func (r *Refresher) SortByPriority(items []index.IndexItem, threshold time.Duration) []index.IndexItem {
	now := r.clock.Now()
	sort.SliceStable(items, func(i, j int) bool {
		return RefreshPriority(&items[i], threshold, now) > RefreshPriority(&items[j], threshold, now)
	})
	return items
}

// Refresh invokes fn for every stale item in priority order. Fresh data
// is saved through the store and re-registered in the index; when the
// content hash changed, the old entry is invalidated. A failure from fn
// is recorded per item and does not stop the batch.
func (r *Refresher) Refresh(threshold time.Duration, fn RefreshFunc) []RefreshOutcome {
	items := r.SortByPriority(r.StaleItems(threshold), threshold)

	outcomes := make([]RefreshOutcome, 0, len(items))
	for _, item := range items {
		outcome := RefreshOutcome{Hash: item.Hash}

		newData, err := fn(item)
		if err != nil {
			outcome.Err = fmt.Errorf("refresh %s: %w", item.Hash, err)
			outcomes = append(outcomes, outcome)
			continue
		}

		res, err := r.store.Save(newData, item.Source, item.Type, nil)
		if err != nil {
			outcome.Err = fmt.Errorf("refresh %s: %w", item.Hash, err)
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.NewHash = res.Hash

		if res.Hash != item.Hash {
			if err := r.registerRefreshed(res); err != nil {
				outcome.Err = err
				outcomes = append(outcomes, outcome)
				continue
			}
			r.store.Delete(item.Hash)
			if _, err := r.index.Remove(item.Hash); err != nil {
				outcome.Err = fmt.Errorf("refresh %s: %w", item.Hash, err)
			}
			logrus.Debugf("refresh: %s replaced by %s", item.Hash, res.Hash)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (r *Refresher) registerRefreshed(res *payload.SaveResult) error {
	p := res.Payload
	if p == nil {
		// Dedup hit against a payload saved outside this batch.
		var err error
		p, err = r.store.Load(res.Hash)
		if err != nil {
			return fmt.Errorf("register refreshed %s: %w", res.Hash, err)
		}
	}
	if err := r.index.Add(p, r.store.Size(res.Hash)); err != nil {
		return fmt.Errorf("register refreshed %s: %w", res.Hash, err)
	}
	return nil
}
