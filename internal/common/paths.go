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

package common

import (
	"regexp"
	"strings"
)

// On-disk layout relative to the cache root. The root contains three
// subdirectories plus the index and registry documents.
const (
	PayloadDirName   = "payloads"
	ProcessedDirName = "processed"
	TempDirName      = "tmp"

	IndexFileName    = "cache-index.json"
	RegistryFileName = "hash-registry.json"
	ConfigFileName   = "cachekit.yaml"

	IndexLockName    = "cache-index.lock"
	RegistryLockName = "hash-registry.lock"
)

// payloadExt is the extension used for payload files ({hash}.json).
const payloadExt = ".json"

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// IsValidHash reports whether s looks like a hex-encoded SHA-256 digest.
func IsValidHash(s string) bool {
	return hashPattern.MatchString(s)
}

// PayloadFileName returns the file name for a payload hash.
func PayloadFileName(hash string) string {
	return hash + payloadExt
}

// HashFromFileName extracts the payload hash from a file name.
// Returns false for the index file, lock files, temp files, or anything
// that is not a {hash}.json payload file.
func HashFromFileName(name string) (string, bool) {
	if name == IndexFileName || name == RegistryFileName {
		return "", false
	}
	hash, found := strings.CutSuffix(name, payloadExt)
	if !found || !IsValidHash(hash) {
		return "", false
	}
	return hash, true
}
