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

package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cachekit/internal/common"
)

var getDataOnly bool

var getCmd = &cobra.Command{
	Use:   "get <hash>",
	Short: "Retrieve a cached payload by content hash",
	Long: `Print the cached payload for a content hash as JSON and record the
access in the index.

Examples:
  cachekit get 9f86d081884c7d65...
  cachekit get --data-only 9f86d081884c7d65...`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().BoolVar(&getDataOnly, "data-only", false, "print only the payload data, not the envelope")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	hash := args[0]
	if !common.IsValidHash(hash) {
		return fmt.Errorf("invalid content hash: %s", hash)
	}

	e, err := newEngine()
	if err != nil {
		return err
	}

	p, err := e.Get(hash)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("no cached payload for %s", hash)
		}
		return err
	}

	var out []byte
	if getDataOnly {
		out, err = json.MarshalIndent(p.Data, "", "  ")
	} else {
		out, err = json.MarshalIndent(p, "", "  ")
	}
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
