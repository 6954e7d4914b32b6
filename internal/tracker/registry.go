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

// Package tracker invalidates cache entries whose source files changed.
//
// A hash registry ({root}/hash-registry.json) records the content hash
// each tracked file had when last observed, together with the cache
// hashes derived from it. A detection pass recomputes hashes and, on
// mismatch or a missing file, deletes the derived cache entries.
package tracker

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
	"cachekit/internal/util"
)

// RegistryVersion is the registry document schema version.
const RegistryVersion = "1.0.0"

// FileHashRecord states: this source file, when last observed, had this
// content hash, and these cache entries were derived from it. One source
// file may fan out to many cache hashes.
type FileHashRecord struct {
	FilePath           string    `json:"filePath"`
	Hash               string    `json:"hash"`
	ComputedAt         time.Time `json:"computedAt"`
	RelatedCacheHashes []string  `json:"relatedCacheHashes"`
}

// HashRegistry is the serialized registry document.
// Invariant: records are unique by file path.
type HashRegistry struct {
	Version   string           `json:"version"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Files     []FileHashRecord `json:"files"`
}

// NewRegistry returns an empty, freshly-versioned registry document.
func NewRegistry(now time.Time) *HashRegistry {
	return &HashRegistry{
		Version:   RegistryVersion,
		UpdatedAt: now.UTC(),
		Files:     []FileHashRecord{},
	}
}

func (r *HashRegistry) find(filePath string) int {
	for i := range r.Files {
		if r.Files[i].FilePath == filePath {
			return i
		}
	}
	return -1
}

// registryStore persists the registry with the same corruption handling
// and locked atomic writes as the cache index.
type registryStore struct {
	fs     billy.Filesystem
	root   string
	clock  util.Clock
	locker util.Locker
}

func (s *registryStore) path() string {
	return s.fs.Join(s.root, common.RegistryFileName)
}

// load reads the registry. An absent or unparsable file yields an empty
// registry; corruption is logged, never propagated.
func (s *registryStore) load() *HashRegistry {
	raw, err := billyutil.ReadFile(s.fs, s.path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logrus.Warnf("tracker: read %s: %v, starting fresh", common.RegistryFileName, err)
		}
		return NewRegistry(s.clock.Now())
	}

	var reg HashRegistry
	if err := json.Unmarshal(raw, &reg); err != nil {
		logrus.Warnf("tracker: %s is corrupt (%v), starting fresh", common.RegistryFileName, err)
		return NewRegistry(s.clock.Now())
	}
	if reg.Files == nil {
		reg.Files = []FileHashRecord{}
	}
	return &reg
}

// save writes the registry without taking the lock.
// Callers must hold the lock.
func (s *registryStore) save(reg *HashRegistry) error {
	reg.UpdatedAt = s.clock.Now().UTC()
	encoded, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize registry: %w", err)
	}

	if err := s.fs.MkdirAll(s.fs.Join(s.root, common.TempDirName), 0755); err != nil {
		return err
	}
	tempPath := s.fs.Join(s.root, common.TempDirName, "registry-"+uuid.New().String()+".tmp")
	if err := billyutil.WriteFile(s.fs, tempPath, encoded, 0644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := s.fs.Rename(tempPath, s.path()); err != nil {
		s.fs.Remove(tempPath)
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
