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

var (
	pruneThresholdMB int64
	pruneMinKeep     int
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict least-recently-used entries over the size threshold",
	Long: `When the total cache size exceeds the threshold, evict the least
recently used entries until the cache fits, always keeping at least
--min-keep entries.

Examples:
  cachekit prune
  cachekit prune --threshold 100 --min-keep 20`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().Int64Var(&pruneThresholdMB, "threshold", 0, "size threshold in MB (default from config)")
	pruneCmd.Flags().IntVar(&pruneMinKeep, "min-keep", -1, "minimum entries to keep (default from config)")
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	threshold := pruneThresholdMB * 1024 * 1024
	if threshold <= 0 {
		threshold = e.Config().PruneThresholdBytes()
	}
	minKeep := pruneMinKeep
	if minKeep < 0 {
		minKeep = e.Config().MinKeep
	}

	before := e.Pruner.SizeInfo()
	fmt.Printf("Cache size: %s (threshold %s)\n",
		policy.FormatBytes(before.TotalBytes), policy.FormatBytes(threshold))

	result := e.Pruner.PruneLRU(threshold, minKeep)
	if result.RemovedCount == 0 {
		fmt.Println("Nothing to prune")
	} else {
		fmt.Printf("Evicted %d entries, freed %s\n",
			result.RemovedCount, policy.FormatBytes(result.BytesFreed))
	}
	for _, pruneErr := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", pruneErr)
	}
	if !result.OK() {
		return fmt.Errorf("prune finished with %d errors", len(result.Errors))
	}
	return nil
}
