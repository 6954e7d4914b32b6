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

// Package index maintains the metadata catalog for stored payloads.
//
// The catalog is a single JSON document ({root}/cache-index.json) holding
// one record per payload: size, timestamps, access count. It is the only
// mutable shared structure in the cache engine, so every read-modify-write
// cycle runs under a Locker and every write goes through a temp file plus
// rename. The index and the payload store are eventually consistent by
// design: an index entry without a backing file (or the reverse) is a
// recoverable inconsistency handled by Rebuild, never a fatal error.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	billy "github.com/go-git/go-billy/v5"
	billyutil "github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	logrus "github.com/sirupsen/logrus"

	"cachekit/internal/common"
	"cachekit/internal/payload"
	"cachekit/internal/util"
)

// Version is the index document schema version.
const Version = "1.0.0"

// IndexItem is one catalog record per stored payload.
type IndexItem struct {
	Hash           string     `json:"hash"`
	Source         string     `json:"source"`
	Type           string     `json:"type"`
	CachedAt       time.Time  `json:"cachedAt"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty"`
	SizeBytes      int64      `json:"sizeBytes"`
	AccessCount    int        `json:"accessCount"`
}

// CacheIndex is the serialized catalog document.
// Invariant: item hashes are unique.
type CacheIndex struct {
	Version        string      `json:"version"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	TotalItems     int         `json:"totalItems"`
	TotalSizeBytes int64       `json:"totalSizeBytes"`
	Items          []IndexItem `json:"items"`
}

// NewDocument returns an empty, freshly-versioned index document.
func NewDocument(now time.Time) *CacheIndex {
	return &CacheIndex{
		Version:   Version,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
		Items:     []IndexItem{},
	}
}

func (ci *CacheIndex) recalcTotals() {
	ci.TotalItems = len(ci.Items)
	var total int64
	for i := range ci.Items {
		total += ci.Items[i].SizeBytes
	}
	ci.TotalSizeBytes = total
}

func (ci *CacheIndex) find(hash string) int {
	for i := range ci.Items {
		if ci.Items[i].Hash == hash {
			return i
		}
	}
	return -1
}

// Filter selects index items by exact match on the set fields.
// A zero Filter matches everything.
type Filter struct {
	Source string
	Type   string
}

func (f Filter) matches(item *IndexItem) bool {
	if f.Source != "" && item.Source != f.Source {
		return false
	}
	if f.Type != "" && item.Type != f.Type {
		return false
	}
	return true
}

// Stats summarizes the catalog. Derived purely from the index document,
// not from scanning the filesystem, so it may be stale relative to the
// payload store; Rebuild is the repair operation.
type Stats struct {
	TotalItems     int
	TotalSizeBytes int64
	ByType         map[string]int
	BySource       map[string]int
	OldestCachedAt *time.Time
	NewestCachedAt *time.Time
}

// RebuildResult describes a reconciliation pass.
type RebuildResult struct {
	Kept      int // entries whose payload file still exists
	Recovered int // payload files that had no entry
	Dropped   int // orphaned entries removed
	Errors    []error
}

// Index provides locked access to the catalog document.
type Index struct {
	fs     billy.Filesystem
	root   string
	clock  util.Clock
	locker util.Locker
}

// New creates an Index over the given filesystem and cache root.
// A nil clock defaults to the system clock; a nil locker to NopLocker.
func New(fs billy.Filesystem, root string, clock util.Clock, locker util.Locker) *Index {
	if clock == nil {
		clock = util.SystemClock
	}
	if locker == nil {
		locker = util.NopLocker{}
	}
	return &Index{fs: fs, root: root, clock: clock, locker: locker}
}

// Load reads the index document. An absent or unparsable file yields an
// empty, freshly-versioned index; corruption is logged, never propagated.
func (idx *Index) Load() *CacheIndex {
	return idx.load()
}

// Save persists the document, bumping updatedAt.
func (idx *Index) Save(doc *CacheIndex) error {
	release, err := idx.locker.Acquire()
	if err != nil {
		return err
	}
	defer release()
	return idx.save(doc)
}

// Bootstrap writes an empty index document if none exists.
func (idx *Index) Bootstrap() error {
	release, err := idx.locker.Acquire()
	if err != nil {
		return err
	}
	defer release()

	if _, err := idx.fs.Stat(idx.path()); err == nil {
		return nil
	}
	return idx.save(NewDocument(idx.clock.Now()))
}

// Add upserts an IndexItem derived from a stored payload. A fresh entry
// starts with accessCount 1; re-adding an existing hash replaces the entry.
func (idx *Index) Add(p *payload.CachedPayload, sizeBytes int64) error {
	release, err := idx.locker.Acquire()
	if err != nil {
		return err
	}
	defer release()

	doc := idx.load()
	item := IndexItem{
		Hash:        p.Hash,
		Source:      p.Source,
		Type:        p.Type,
		CachedAt:    p.CachedAt,
		SizeBytes:   sizeBytes,
		AccessCount: 1,
	}
	if i := doc.find(p.Hash); i >= 0 {
		doc.Items[i] = item
	} else {
		doc.Items = append(doc.Items, item)
	}
	doc.recalcTotals()
	return idx.save(doc)
}

// Remove deletes the entry for hash. Returns false if no entry existed.
func (idx *Index) Remove(hash string) (bool, error) {
	release, err := idx.locker.Acquire()
	if err != nil {
		return false, err
	}
	defer release()

	doc := idx.load()
	i := doc.find(hash)
	if i < 0 {
		return false, nil
	}
	doc.Items = append(doc.Items[:i], doc.Items[i+1:]...)
	doc.recalcTotals()
	return true, idx.save(doc)
}

// Search returns items matching the filter, in catalog order.
func (idx *Index) Search(filter Filter) []IndexItem {
	doc := idx.load()
	var out []IndexItem
	for i := range doc.Items {
		if filter.matches(&doc.Items[i]) {
			out = append(out, doc.Items[i])
		}
	}
	return out
}

// GetItem returns the entry for hash, or false if absent.
func (idx *Index) GetItem(hash string) (*IndexItem, bool) {
	doc := idx.load()
	if i := doc.find(hash); i >= 0 {
		item := doc.Items[i]
		return &item, true
	}
	return nil, false
}

// Touch records an access: sets lastAccessedAt to now and increments
// accessCount. Returns false if the item does not exist.
func (idx *Index) Touch(hash string) (bool, error) {
	release, err := idx.locker.Acquire()
	if err != nil {
		return false, err
	}
	defer release()

	doc := idx.load()
	i := doc.find(hash)
	if i < 0 {
		return false, nil
	}
	now := idx.clock.Now().UTC()
	doc.Items[i].LastAccessedAt = &now
	doc.Items[i].AccessCount++
	return true, idx.save(doc)
}

// Stats aggregates catalog metadata.
func (idx *Index) Stats() *Stats {
	doc := idx.load()
	stats := &Stats{
		TotalItems:     doc.TotalItems,
		TotalSizeBytes: doc.TotalSizeBytes,
		ByType:         make(map[string]int),
		BySource:       make(map[string]int),
	}
	for i := range doc.Items {
		item := &doc.Items[i]
		stats.ByType[item.Type]++
		stats.BySource[item.Source]++
		if stats.OldestCachedAt == nil || item.CachedAt.Before(*stats.OldestCachedAt) {
			t := item.CachedAt
			stats.OldestCachedAt = &t
		}
		if stats.NewestCachedAt == nil || item.CachedAt.After(*stats.NewestCachedAt) {
			t := item.CachedAt
			stats.NewestCachedAt = &t
		}
	}
	return stats
}

// Rebuild reconciles the index against the payload store: orphaned
// entries (no backing file) are dropped, unindexed payload files are
// recovered with fresh access stats, and sizes are refreshed from disk.
func (idx *Index) Rebuild(store *payload.Store) *RebuildResult {
	result := &RebuildResult{}

	release, err := idx.locker.Acquire()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}
	defer release()

	doc := idx.load()
	existing := make(map[string]IndexItem, len(doc.Items))
	for _, item := range doc.Items {
		existing[item.Hash] = item
	}

	var items []IndexItem
	for _, hash := range store.ListAll() {
		size := store.Size(hash)
		if item, ok := existing[hash]; ok {
			item.SizeBytes = size
			items = append(items, item)
			delete(existing, hash)
			result.Kept++
			continue
		}
		p, err := store.Load(hash)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("recover %s: %w", hash, err))
			continue
		}
		items = append(items, IndexItem{
			Hash:        p.Hash,
			Source:      p.Source,
			Type:        p.Type,
			CachedAt:    p.CachedAt,
			SizeBytes:   size,
			AccessCount: 1,
		})
		result.Recovered++
	}
	result.Dropped = len(existing)

	doc.Items = items
	doc.recalcTotals()
	if err := idx.save(doc); err != nil {
		result.Errors = append(result.Errors, err)
	}
	return result
}

func (idx *Index) path() string {
	return idx.fs.Join(idx.root, common.IndexFileName)
}

// load reads the document without taking the lock.
func (idx *Index) load() *CacheIndex {
	raw, err := billyutil.ReadFile(idx.fs, idx.path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logrus.Warnf("index: read %s: %v, starting fresh", common.IndexFileName, err)
		}
		return NewDocument(idx.clock.Now())
	}

	var doc CacheIndex
	if err := json.Unmarshal(raw, &doc); err != nil {
		logrus.Warnf("index: %s is corrupt (%v), starting fresh", common.IndexFileName, err)
		return NewDocument(idx.clock.Now())
	}
	if doc.Items == nil {
		doc.Items = []IndexItem{}
	}
	return &doc
}

// save writes the document without taking the lock.
// Callers must hold the lock.
func (idx *Index) save(doc *CacheIndex) error {
	doc.UpdatedAt = idx.clock.Now().UTC()
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize index: %w", err)
	}

	if err := idx.fs.MkdirAll(idx.fs.Join(idx.root, common.TempDirName), 0755); err != nil {
		return err
	}
	tempPath := idx.fs.Join(idx.root, common.TempDirName, "index-"+uuid.New().String()+".tmp")
	if err := billyutil.WriteFile(idx.fs, tempPath, encoded, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := idx.fs.Rename(tempPath, idx.path()); err != nil {
		idx.fs.Remove(tempPath)
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}
