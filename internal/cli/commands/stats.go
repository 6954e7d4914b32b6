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
	"sort"

	"github.com/spf13/cobra"

	"cachekit/internal/policy"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long: `Summarize the cache index: entry count, total size, per-type and
per-source breakdowns, and the oldest/newest entries.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	stats := e.Index.Stats()
	fmt.Printf("Entries:    %d\n", stats.TotalItems)
	fmt.Printf("Total size: %s\n", policy.FormatBytes(stats.TotalSizeBytes))
	if stats.OldestCachedAt != nil {
		fmt.Printf("Oldest:     %s\n", stats.OldestCachedAt.Format("2006-01-02 15:04:05"))
	}
	if stats.NewestCachedAt != nil {
		fmt.Printf("Newest:     %s\n", stats.NewestCachedAt.Format("2006-01-02 15:04:05"))
	}

	printBreakdown("By type", stats.ByType)
	printBreakdown("By source", stats.BySource)
	return nil
}

func printBreakdown(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %s: %d\n", k, counts[k])
	}
}
