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

// Package structure creates and validates the on-disk cache layout.
package structure

import (
	"fmt"
	"time"

	billy "github.com/go-git/go-billy/v5"
	logrus "github.com/sirupsen/logrus"

	"cachekit/internal/common"
	"cachekit/internal/index"
	"cachekit/internal/util"
)

// InitResult describes a layout bootstrap.
type InitResult struct {
	Paths  []string // directories that exist after the call
	Errors []error
}

// OK reports whether every directory was created.
func (r *InitResult) OK() bool { return len(r.Errors) == 0 }

// Manager ensures the cache root and its subdirectories exist and that
// an empty index is bootstrapped when absent.
type Manager struct {
	fs    billy.Filesystem
	root  string
	clock util.Clock
	index *index.Index
}

// NewManager creates a Manager over the given filesystem and cache root.
func NewManager(fs billy.Filesystem, root string, clock util.Clock, idx *index.Index) *Manager {
	if clock == nil {
		clock = util.SystemClock
	}
	return &Manager{fs: fs, root: root, clock: clock, index: idx}
}

func (m *Manager) dirs() []string {
	return []string{
		m.fs.Join(m.root, common.PayloadDirName),
		m.fs.Join(m.root, common.ProcessedDirName),
		m.fs.Join(m.root, common.TempDirName),
	}
}

// Initialize creates each required directory independently: a failure on
// one is recorded but does not prevent attempting the others. Re-running
// on an already-initialized root is a no-op that still succeeds.
func (m *Manager) Initialize() *InitResult {
	result := &InitResult{}

	for _, dir := range m.dirs() {
		if err := m.fs.MkdirAll(dir, 0755); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("create %s: %w", dir, err))
			continue
		}
		result.Paths = append(result.Paths, dir)
	}

	if m.index != nil {
		if err := m.index.Bootstrap(); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("bootstrap index: %w", err))
		}
	}
	return result
}

// Valid reports whether all required directories exist and are writable.
// Writability is probed with a real write, not inferred from mode bits.
func (m *Manager) Valid() bool {
	for _, dir := range m.dirs() {
		info, err := m.fs.Stat(dir)
		if err != nil || !info.IsDir() {
			return false
		}
		if !m.writable(dir) {
			return false
		}
	}
	return true
}

func (m *Manager) writable(dir string) bool {
	f, err := m.fs.TempFile(dir, ".probe-")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	m.fs.Remove(name)
	return true
}

// CleanupTempFiles deletes scratch files older than maxAge. An unreadable
// scratch directory yields 0 rather than an error.
func (m *Manager) CleanupTempFiles(maxAge time.Duration) int {
	cutoff := m.clock.Now().Add(-maxAge)

	tempDir := m.fs.Join(m.root, common.TempDirName)
	entries, err := m.fs.ReadDir(tempDir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || entry.ModTime().After(cutoff) {
			continue
		}
		if err := m.fs.Remove(m.fs.Join(tempDir, entry.Name())); err != nil {
			logrus.Warnf("structure: remove temp file %s: %v", entry.Name(), err)
			continue
		}
		count++
	}
	return count
}
