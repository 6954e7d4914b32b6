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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cachekit/internal/artifacts"
	"cachekit/internal/common"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the cache directory structure",
	Long: `Create the cache root with its payload, processed and tmp directories,
an empty cache index, and a default configuration file.

Running init on an existing cache is safe: directories and files that
already exist are left alone.

Examples:
  cachekit init
  cachekit init --root /var/cache/myapp`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	result := e.Initialize()
	for _, p := range result.Paths {
		fmt.Printf("Created %s\n", p)
	}
	if !result.OK() {
		for _, initErr := range result.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", initErr)
		}
		return fmt.Errorf("initialization incomplete")
	}

	// Drop a default config next to the index unless one already exists.
	cfgPath := filepath.Join(cacheRoot(), common.ConfigFileName)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := os.WriteFile(cfgPath, artifacts.DefaultConfig, 0644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Created %s\n", cfgPath)
	}

	fmt.Printf("Cache initialized at %s\n", cacheRoot())
	return nil
}
