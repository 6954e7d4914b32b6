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

	"github.com/spf13/cobra"

	"cachekit/internal/policy"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run one full maintenance pass",
	Long: `Run retention, LRU pruning and stale temp-file cleanup in one pass,
using the configured thresholds. This is the command to put in cron.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	result := e.Maintenance()
	fmt.Printf("Retention: removed %d expired entries\n", result.Retention.RemovedCount)
	fmt.Printf("Prune:     evicted %d entries, freed %s\n",
		result.Prune.RemovedCount, policy.FormatBytes(result.Prune.BytesFreed))
	fmt.Printf("Temp:      removed %d stale files\n", result.TempFilesRemoved)

	var errs []error
	errs = append(errs, result.Retention.Errors...)
	errs = append(errs, result.Prune.Errors...)
	for _, cleanupErr := range errs {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", cleanupErr)
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup finished with %d errors", len(errs))
	}
	return nil
}
