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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testHash = "a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3"

func TestIsValidHash(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidHash(testHash))
	assert.False(t, IsValidHash(""))
	assert.False(t, IsValidHash("abc123"))
	assert.False(t, IsValidHash(strings.ToUpper(testHash)), "uppercase hex is not canonical")
	assert.False(t, IsValidHash(testHash+"00"))
}

func TestPayloadFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, testHash+".json", PayloadFileName(testHash))
}

func TestHashFromFileName(t *testing.T) {
	t.Parallel()

	hash, ok := HashFromFileName(testHash + ".json")
	assert.True(t, ok)
	assert.Equal(t, testHash, hash)

	// The index and registry documents are not payloads.
	_, ok = HashFromFileName(IndexFileName)
	assert.False(t, ok)
	_, ok = HashFromFileName(RegistryFileName)
	assert.False(t, ok)

	// Temp files and junk are skipped.
	_, ok = HashFromFileName("payload-1234.tmp")
	assert.False(t, ok)
	_, ok = HashFromFileName("notahash.json")
	assert.False(t, ok)
}
