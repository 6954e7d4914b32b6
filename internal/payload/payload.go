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

// Package payload implements content-addressed storage of cached payloads.
//
// A payload is identified solely by the SHA-256 hash of its canonical
// serialization, so saving identical content twice is a no-op after the
// first write. The store knows nothing about the cache index; callers
// register saved payloads there separately.
package payload

import (
	"crypto/sha256"
	"encoding/hex"
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

// CachedPayload is the on-disk structure of a single payload file.
// Immutable once written; identity is the hash.
type CachedPayload struct {
	Hash     string         `json:"hash"`
	Data     any            `json:"data"`
	Source   string         `json:"source"`
	Type     string         `json:"type"`
	CachedAt time.Time      `json:"cachedAt"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SaveResult describes the outcome of a Save call.
type SaveResult struct {
	Hash         string
	FilePath     string
	Deduplicated bool // an identical payload already existed; nothing was written

	// Payload is the stored document. Nil when Deduplicated (the existing
	// file was not re-read).
	Payload *CachedPayload
}

// Store provides durable, deduplicated storage of payloads under
// {root}/payloads. Writes go through a uuid-named temp file in {root}/tmp
// followed by a rename, so a crash never leaves a half-written payload
// under its final name.
type Store struct {
	fs    billy.Filesystem
	root  string
	clock util.Clock
}

// NewStore creates a Store over the given filesystem and cache root.
// A nil clock defaults to the system clock.
func NewStore(fs billy.Filesystem, root string, clock util.Clock) *Store {
	if clock == nil {
		clock = util.SystemClock
	}
	return &Store{fs: fs, root: root, clock: clock}
}

// HashContent canonicalizes content and returns its hex-encoded SHA-256
// digest. Strings and byte slices hash verbatim; everything else hashes
// its JSON serialization. Pure function, no I/O.
func HashContent(data any) (string, error) {
	var raw []byte
	switch v := data.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		var err error
		raw, err = json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("canonicalize content: %w", err)
		}
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Save stores data under its content hash. If a payload with the same
// hash already exists the call succeeds without rewriting it.
func (s *Store) Save(data any, source, typ string, metadata map[string]any) (*SaveResult, error) {
	hash, err := HashContent(data)
	if err != nil {
		return nil, err
	}

	filePath := s.payloadPath(hash)
	if s.Exists(hash) {
		logrus.Debugf("payload: dedup hit for %s", hash)
		return &SaveResult{Hash: hash, FilePath: filePath, Deduplicated: true}, nil
	}

	p := &CachedPayload{
		Hash:     hash,
		Data:     data,
		Source:   source,
		Type:     typ,
		CachedAt: s.clock.Now().UTC(),
		Metadata: metadata,
	}
	encoded, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize payload %s: %w", hash, err)
	}

	if err := s.writeAtomic(filePath, encoded); err != nil {
		return nil, fmt.Errorf("write payload %s: %w", hash, err)
	}

	return &SaveResult{Hash: hash, FilePath: filePath, Payload: p}, nil
}

// Load reads a payload by hash.
// Returns common.ErrNotFound if no file exists for the hash, and a
// common.ErrCorrupt-wrapped error if the file cannot be parsed.
func (s *Store) Load(hash string) (*CachedPayload, error) {
	raw, err := billyutil.ReadFile(s.fs, s.payloadPath(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("payload %s: %w", hash, common.ErrNotFound)
		}
		return nil, fmt.Errorf("read payload %s: %w", hash, err)
	}

	var p CachedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse payload %s: %w", hash, common.ErrCorrupt)
	}
	return &p, nil
}

// Delete removes a payload file. Returns false if the file did not exist;
// never raises on missing files.
func (s *Store) Delete(hash string) bool {
	err := s.fs.Remove(s.payloadPath(hash))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logrus.Warnf("payload: delete %s: %v", hash, err)
		}
		return false
	}
	return true
}

// Exists reports whether a payload file exists for the hash.
func (s *Store) Exists(hash string) bool {
	info, err := s.fs.Stat(s.payloadPath(hash))
	return err == nil && !info.IsDir()
}

// Size returns the payload file size in bytes, or -1 if it does not exist.
func (s *Store) Size(hash string) int64 {
	info, err := s.fs.Stat(s.payloadPath(hash))
	if err != nil || info.IsDir() {
		return -1
	}
	return info.Size()
}

// ListAll returns the hashes of every stored payload. Non-payload files
// (the index document, temp files) are excluded. Returns nil if the
// payload directory cannot be read.
func (s *Store) ListAll() []string {
	entries, err := s.fs.ReadDir(s.fs.Join(s.root, common.PayloadDirName))
	if err != nil {
		return nil
	}

	var hashes []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if hash, ok := common.HashFromFileName(entry.Name()); ok {
			hashes = append(hashes, hash)
		}
	}
	return hashes
}

func (s *Store) payloadPath(hash string) string {
	return s.fs.Join(s.root, common.PayloadDirName, common.PayloadFileName(hash))
}

// writeAtomic writes data to a scratch file and renames it into place.
func (s *Store) writeAtomic(filePath string, data []byte) error {
	if err := s.fs.MkdirAll(s.fs.Join(s.root, common.PayloadDirName), 0755); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.fs.Join(s.root, common.TempDirName), 0755); err != nil {
		return err
	}

	tempPath := s.fs.Join(s.root, common.TempDirName, "payload-"+uuid.New().String()+".tmp")
	if err := billyutil.WriteFile(s.fs, tempPath, data, 0644); err != nil {
		return err
	}
	if err := s.fs.Rename(tempPath, filePath); err != nil {
		s.fs.Remove(tempPath)
		return err
	}
	return nil
}
