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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"
	logrus "github.com/sirupsen/logrus"

	"cachekit/internal/index"
	"cachekit/internal/payload"
	"cachekit/internal/util"
)

// DetectResult describes one detection pass.
type DetectResult struct {
	FilesScanned            int
	FilesChanged            int
	CacheEntriesInvalidated int
	Errors                  []error
}

// OK reports whether the pass completed without errors. Partial progress
// is committed either way.
func (r *DetectResult) OK() bool { return len(r.Errors) == 0 }

// Detector tracks source-file content hashes and invalidates the cache
// entries derived from a file when its hash changes.
type Detector struct {
	registry *registryStore
	srcfs    billy.Filesystem
	store    *payload.Store
	index    *index.Index
	clock    util.Clock
}

// NewDetector creates a Detector. fs/root locate the registry document;
// srcfs is the filesystem tracked source files are read from (usually
// the OS filesystem, since sources live outside the cache root).
func NewDetector(fs billy.Filesystem, root string, srcfs billy.Filesystem, store *payload.Store, idx *index.Index, clock util.Clock, locker util.Locker) *Detector {
	if clock == nil {
		clock = util.SystemClock
	}
	if locker == nil {
		locker = util.NopLocker{}
	}
	return &Detector{
		registry: &registryStore{fs: fs, root: root, clock: clock, locker: locker},
		srcfs:    srcfs,
		store:    store,
		index:    idx,
		clock:    clock,
	}
}

// FileHash returns the hex-encoded SHA-256 of a source file's content,
// or "" on any read failure. Never returns an error.
func (d *Detector) FileHash(filePath string) string {
	f, err := d.srcfs.Open(filePath)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

// LoadRegistry returns the current registry document.
func (d *Detector) LoadRegistry() *HashRegistry {
	return d.registry.load()
}

// SaveRegistry persists the registry document.
func (d *Detector) SaveRegistry(reg *HashRegistry) error {
	release, err := d.registry.locker.Acquire()
	if err != nil {
		return err
	}
	defer release()
	return d.registry.save(reg)
}

// Register computes the file's current hash and upserts its record.
// Returns false if the hash cannot be computed (file unreadable).
func (d *Detector) Register(filePath string, relatedCacheHashes []string) bool {
	hash := d.FileHash(filePath)
	if hash == "" {
		return false
	}

	release, err := d.registry.locker.Acquire()
	if err != nil {
		logrus.Warnf("tracker: register %s: %v", filePath, err)
		return false
	}
	defer release()

	reg := d.registry.load()
	record := FileHashRecord{
		FilePath:           filePath,
		Hash:               hash,
		ComputedAt:         d.clock.Now().UTC(),
		RelatedCacheHashes: relatedCacheHashes,
	}
	if i := reg.find(filePath); i >= 0 {
		// Re-registering merges the related hashes instead of dropping
		// earlier associations.
		record.RelatedCacheHashes = mergeHashes(reg.Files[i].RelatedCacheHashes, relatedCacheHashes)
		reg.Files[i] = record
	} else {
		reg.Files = append(reg.Files, record)
	}

	if err := d.registry.save(reg); err != nil {
		logrus.Warnf("tracker: register %s: %v", filePath, err)
		return false
	}
	return true
}

// Tracked returns the registered file records.
func (d *Detector) Tracked() []FileHashRecord {
	return d.registry.load().Files
}

// Untrack removes a file's record. Returns false if it was not tracked.
func (d *Detector) Untrack(filePath string) bool {
	release, err := d.registry.locker.Acquire()
	if err != nil {
		return false
	}
	defer release()

	reg := d.registry.load()
	i := reg.find(filePath)
	if i < 0 {
		return false
	}
	reg.Files = append(reg.Files[:i], reg.Files[i+1:]...)
	if err := d.registry.save(reg); err != nil {
		logrus.Warnf("tracker: untrack %s: %v", filePath, err)
		return false
	}
	return true
}

// DetectAndInvalidate scans every registered file. A missing file counts
// as changed; a hash mismatch updates the stored hash. Either way all
// related cache entries are invalidated (payload deleted, index entry
// removed). Per-item failures are collected and the scan continues; the
// registry is persisted once at the end if anything changed.
func (d *Detector) DetectAndInvalidate() *DetectResult {
	result := &DetectResult{}

	reg := d.registry.load()
	dirty := false

	for i := range reg.Files {
		record := &reg.Files[i]
		result.FilesScanned++

		current := d.FileHash(record.FilePath)
		if current == record.Hash {
			continue
		}
		result.FilesChanged++

		invalidated := d.invalidate(record.RelatedCacheHashes, result)
		result.CacheEntriesInvalidated += invalidated

		if current == "" {
			// File is gone (or unreadable): leave the record stale so the
			// caller can Untrack it; there is no new hash to store.
			logrus.Debugf("tracker: %s missing, invalidated %d entries", record.FilePath, invalidated)
			continue
		}

		record.Hash = current
		record.ComputedAt = d.clock.Now().UTC()
		dirty = true
		logrus.Debugf("tracker: %s changed, invalidated %d entries", record.FilePath, invalidated)
	}

	if dirty {
		release, err := d.registry.locker.Acquire()
		if err != nil {
			result.Errors = append(result.Errors, err)
			return result
		}
		defer release()
		if err := d.registry.save(reg); err != nil {
			result.Errors = append(result.Errors, err)
		}
	}
	return result
}

// invalidate deletes the payload and index entry for each hash, counting
// entries that were actually removed from either place.
func (d *Detector) invalidate(hashes []string, result *DetectResult) int {
	count := 0
	for _, hash := range hashes {
		deleted := d.store.Delete(hash)
		removed, err := d.index.Remove(hash)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("invalidate %s: %w", hash, err))
			continue
		}
		if deleted || removed {
			count++
		}
	}
	return count
}

func mergeHashes(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, h := range append(existing, incoming...) {
		if !seen[h] {
			seen[h] = true
			merged = append(merged, h)
		}
	}
	return merged
}
