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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	billyutil "github.com/go-git/go-billy/v5/util"
	ignore "github.com/sabhiram/go-gitignore"
	logrus "github.com/sirupsen/logrus"
)

// TreeResult describes a RegisterTree walk.
type TreeResult struct {
	Registered int
	Skipped    int
	Errors     []error
}

// RegisterTree walks dir on the source filesystem and registers every
// regular file, honoring gitignore-style exclude patterns. Files are
// registered with no related cache hashes; associations are added later
// via Register, which merges. Unreadable files are counted as skipped.
func (d *Detector) RegisterTree(dir string, ignoreLines []string) *TreeResult {
	result := &TreeResult{}

	matcher := ignore.CompileIgnoreLines(ignoreLines...)

	// One read-modify-write cycle for the whole walk.
	release, err := d.registry.locker.Acquire()
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}
	defer release()

	reg := d.registry.load()
	dirty := false

	walkErr := billyutil.Walk(d.srcfs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("walk %s: %w", path, err))
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), "/")
		if rel == "" {
			return nil
		}
		if matcher.MatchesPath(rel) {
			result.Skipped++
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		hash := d.FileHash(path)
		if hash == "" {
			result.Skipped++
			return nil
		}
		record := FileHashRecord{
			FilePath:           path,
			Hash:               hash,
			ComputedAt:         d.clock.Now().UTC(),
			RelatedCacheHashes: []string{},
		}
		if i := reg.find(path); i >= 0 {
			record.RelatedCacheHashes = reg.Files[i].RelatedCacheHashes
			reg.Files[i] = record
		} else {
			reg.Files = append(reg.Files, record)
		}
		dirty = true
		result.Registered++
		return nil
	})
	if walkErr != nil {
		result.Errors = append(result.Errors, fmt.Errorf("walk %s: %w", dir, walkErr))
	}

	if dirty {
		if err := d.registry.save(reg); err != nil {
			result.Errors = append(result.Errors, err)
		}
	}
	if result.Registered > 0 {
		logrus.Debugf("tracker: registered %d files under %s (%d skipped)", result.Registered, dir, result.Skipped)
	}
	return result
}
