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

package util

import (
	"context"
	"fmt"

	"github.com/gofrs/flock"

	"cachekit/internal/common"
)

// Locker serializes read-modify-write cycles on a shared document (the
// cache index or the hash registry). Acquire blocks until the lock is
// held and returns the release function.
type Locker interface {
	Acquire() (release func(), err error)
}

// NopLocker is a Locker that does nothing. Used when the backing
// filesystem is in-memory (tests) where no other process can interfere.
type NopLocker struct{}

// Acquire returns immediately.
func (NopLocker) Acquire() (func(), error) {
	return func() {}, nil
}

// FileLocker guards a document with an OS advisory lock on a sibling
// lock file. Writers in other processes using the same lock file are
// excluded for the duration of a read-modify-write cycle.
type FileLocker struct {
	path string
}

// NewFileLocker creates a FileLocker for the given lock file path.
// The path must be a real OS filesystem path.
func NewFileLocker(path string) *FileLocker {
	return &FileLocker{path: path}
}

// Acquire takes the lock, retrying briefly on contention.
func (l *FileLocker) Acquire() (func(), error) {
	fl := flock.New(l.path)
	err := Retry(context.Background(), func() error {
		locked, err := fl.TryLock()
		if err != nil {
			return err
		}
		if !locked {
			return common.ErrLocked
		}
		return nil
	}, LockRetryOptions(context.Background())...)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	return func() {
		fl.Unlock()
	}, nil
}
