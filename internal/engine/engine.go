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

// Package engine wires the payload store, cache index, maintenance
// policies and change detector into one cache engine value owning an
// explicit root path. The engine is also where the "register in the
// index after a successful save" contract lives: Put and Get keep the
// catalog in step with the store, so callers never touch both.
package engine

import (
	"fmt"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"cachekit/internal/common"
	"cachekit/internal/config"
	"cachekit/internal/index"
	"cachekit/internal/payload"
	"cachekit/internal/policy"
	"cachekit/internal/structure"
	"cachekit/internal/tracker"
	"cachekit/internal/util"
)

// Engine is the cache engine facade.
type Engine struct {
	cfg   *config.Config
	root  string
	clock util.Clock

	Structure *structure.Manager
	Store     *payload.Store
	Index     *index.Index
	Retention *policy.Retention
	Pruner    *policy.Pruner
	Refresher *policy.Refresher
	Detector  *tracker.Detector
}

// New creates an engine over the OS filesystem rooted at rootPath.
// Index and registry writes are guarded by flock-based lock files so two
// processes sharing the root cannot lose updates to the shared documents.
func New(rootPath string, cfg *config.Config) (*Engine, error) {
	if rootPath == "" {
		return nil, fmt.Errorf("engine: root path required")
	}
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve root path: %w", err)
	}

	indexLock := util.NewFileLocker(filepath.Join(abs, common.IndexLockName))
	registryLock := util.NewFileLocker(filepath.Join(abs, common.RegistryLockName))
	return NewWithFS(osfs.New(abs), ".", osfs.New("/"), cfg, util.SystemClock, indexLock, registryLock), nil
}

// NewWithFS creates an engine over explicit filesystems: fs/root hold
// the cache layout, srcfs is where tracked source files are read from.
// Tests pass memfs and NopLockers.
func NewWithFS(fs billy.Filesystem, root string, srcfs billy.Filesystem, cfg *config.Config, clock util.Clock, indexLock, registryLock util.Locker) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if clock == nil {
		clock = util.SystemClock
	}

	store := payload.NewStore(fs, root, clock)
	idx := index.New(fs, root, clock, indexLock)
	return &Engine{
		cfg:       cfg,
		root:      root,
		clock:     clock,
		Structure: structure.NewManager(fs, root, clock, idx),
		Store:     store,
		Index:     idx,
		Retention: policy.NewRetention(store, idx, clock),
		Pruner:    policy.NewPruner(store, idx, clock),
		Refresher: policy.NewRefresher(store, idx, clock),
		Detector:  tracker.NewDetector(fs, root, srcfs, store, idx, clock, registryLock),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Clock returns the engine clock.
func (e *Engine) Clock() util.Clock { return e.clock }

// Initialize bootstraps the on-disk layout.
func (e *Engine) Initialize() *structure.InitResult {
	return e.Structure.Initialize()
}

// Put saves data to the store and registers it in the index. For a
// deduplicated save the existing entry is touched instead, so access
// stats keep counting.
func (e *Engine) Put(data any, source, typ string, metadata map[string]any) (*payload.SaveResult, error) {
	res, err := e.Store.Save(data, source, typ, metadata)
	if err != nil {
		return nil, err
	}

	if res.Deduplicated {
		touched, err := e.Index.Touch(res.Hash)
		if err != nil {
			return res, err
		}
		if !touched {
			// File existed but the catalog lost track of it: re-register.
			p, err := e.Store.Load(res.Hash)
			if err != nil {
				return res, err
			}
			if err := e.Index.Add(p, e.Store.Size(res.Hash)); err != nil {
				return res, err
			}
		}
		return res, nil
	}

	if err := e.Index.Add(res.Payload, e.Store.Size(res.Hash)); err != nil {
		return res, err
	}
	return res, nil
}

// Get loads a payload and records the access in the index. A payload
// missing from the index is still returned; the catalog being behind
// the store is a recoverable inconsistency.
func (e *Engine) Get(hash string) (*payload.CachedPayload, error) {
	p, err := e.Store.Load(hash)
	if err != nil {
		return nil, err
	}
	if _, err := e.Index.Touch(hash); err != nil {
		return p, err
	}
	return p, nil
}

// Delete removes a payload and its index entry. Returns true if either
// existed.
func (e *Engine) Delete(hash string) (bool, error) {
	deleted := e.Store.Delete(hash)
	removed, err := e.Index.Remove(hash)
	return deleted || removed, err
}

// MaintenanceResult aggregates one full maintenance pass.
type MaintenanceResult struct {
	Retention        *policy.RetentionResult
	Prune            *policy.PruneResult
	TempFilesRemoved int
}

// Maintenance runs retention, LRU pruning, and scratch cleanup using
// the configured thresholds.
func (e *Engine) Maintenance() *MaintenanceResult {
	return &MaintenanceResult{
		Retention:        e.Retention.Apply(e.cfg.RetentionAge()),
		Prune:            e.Pruner.PruneLRU(e.cfg.PruneThresholdBytes(), e.cfg.MinKeep),
		TempFilesRemoved: e.Structure.CleanupTempFiles(e.cfg.TempMaxAge()),
	}
}

// Watch starts periodic change detection on the configured interval and
// returns the cancellable scheduler handle.
func (e *Engine) Watch(interval time.Duration) (*tracker.Scheduler, error) {
	if interval <= 0 {
		interval = e.cfg.DetectInterval()
	}
	return e.Detector.Schedule(interval)
}
