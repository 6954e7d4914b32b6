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

// DefaultMinKeep is the number of most-recently-used entries that are
// never eviction candidates, regardless of size pressure.
const DefaultMinKeep = 10

// SizeInfo summarizes current cache size, derived from the index.
type SizeInfo struct {
	TotalBytes int64
	ItemCount  int
}

// PruneResult describes an LRU pruning sweep.
type PruneResult struct {
	RemovedCount int
	BytesFreed   int64
	Errors       []error
}

// OK reports whether the sweep completed without errors.
func (r *PruneResult) OK() bool { return len(r.Errors) == 0 }

// Pruner keeps total cache size under a byte threshold by evicting
// least-recently-used entries first.
type Pruner struct {
	store *payload.Store
	index *index.Index
	clock util.Clock
}

// NewPruner creates a Pruner over the given store and index.
func NewPruner(store *payload.Store, idx *index.Index, clock util.Clock) *Pruner {
	if clock == nil {
		clock = util.SystemClock
	}
	return &Pruner{store: store, index: idx, clock: clock}
}

// SizeInfo returns total size and item count from the index.
func (p *Pruner) SizeInfo() SizeInfo {
	stats := p.index.Stats()
	return SizeInfo{TotalBytes: stats.TotalSizeBytes, ItemCount: stats.TotalItems}
}

// accessTime is the LRU sort key: never-accessed items sort by their
// cache time, which always precedes any recorded access.
func accessTime(item *index.IndexItem) time.Time {
	if item.LastAccessedAt != nil {
		return *item.LastAccessedAt
	}
	return item.CachedAt
}

// PruneableItems returns eviction candidates sorted least-recently-used
// first. The minKeep most-recently-used items are excluded.
func (p *Pruner) PruneableItems(minKeep int) []index.IndexItem {
	if minKeep < 0 {
		minKeep = DefaultMinKeep
	}

	items := p.index.Search(index.Filter{})
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := accessTime(&items[i]), accessTime(&items[j])
		// Never-accessed items come before items accessed at the same
		// instant they were cached.
		if ti.Equal(tj) {
			return items[i].LastAccessedAt == nil && items[j].LastAccessedAt != nil
		}
		return ti.Before(tj)
	})

	if len(items) <= minKeep {
		return nil
	}
	return items[:len(items)-minKeep]
}

// PruneLRU evicts least-recently-used entries until total size drops to
// the threshold or no candidates remain. Stops without error if the
// threshold cannot be reached while respecting minKeep.
func (p *Pruner) PruneLRU(thresholdBytes int64, minKeep int) *PruneResult {
	result := &PruneResult{}

	total := p.SizeInfo().TotalBytes
	if total <= thresholdBytes {
		return result
	}

	for _, item := range p.PruneableItems(minKeep) {
		if total <= thresholdBytes {
			break
		}
		deleted := p.store.Delete(item.Hash)
		removed, err := p.index.Remove(item.Hash)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("prune %s: %w", item.Hash, err))
			continue
		}
		if deleted || removed {
			total -= item.SizeBytes
			result.RemovedCount++
			result.BytesFreed += item.SizeBytes
			logrus.Debugf("prune: evicted %s (%s freed)", item.Hash, FormatBytes(item.SizeBytes))
		}
	}
	return result
}

// FormatBytes renders a byte count with binary (1024-based) units,
// e.g. "512 B", "1 KB", "1.5 MB".
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	units := []string{"KB", "MB", "GB", "TB", "PB"}
	value := float64(n)
	unit := ""
	for _, u := range units {
		value /= 1024
		unit = u
		if value < 1024 {
			break
		}
	}
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d %s", int64(value), unit)
	}
	return fmt.Sprintf("%.1f %s", value, unit)
}
