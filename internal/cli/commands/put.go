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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	putSource string
	putType   string
)

var putCmd = &cobra.Command{
	Use:   "put [file]",
	Short: "Store a JSON payload in the cache",
	Long: `Read a JSON document from a file (or stdin when no file is given),
store it under its content hash, and register it in the cache index.

Storing the same content twice is a no-op apart from the access count.

Examples:
  cachekit put response.json --source api/users --type remote-call
  curl -s https://api.example.com/users | cachekit put --source api/users --type remote-call`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPut,
}

func init() {
	putCmd.Flags().StringVar(&putSource, "source", "", "origin of the payload (file path, URL, computation id)")
	putCmd.Flags().StringVar(&putType, "type", "generic", "payload category (remote-call, computation, ...)")
	rootCmd.AddCommand(putCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if len(args) > 0 {
		raw, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if putSource == "" {
			putSource = args[0]
		}
	} else {
		raw, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		if putSource == "" {
			putSource = "stdin"
		}
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("input is not valid JSON: %w", err)
	}

	e, err := newEngine()
	if err != nil {
		return err
	}

	res, err := e.Put(data, putSource, putType, nil)
	if err != nil {
		return err
	}

	if res.Deduplicated {
		fmt.Printf("Already cached: %s\n", res.Hash)
	} else {
		fmt.Printf("Cached: %s\n", res.Hash)
	}
	return nil
}
