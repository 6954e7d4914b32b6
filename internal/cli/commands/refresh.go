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
	"time"

	"github.com/spf13/cobra"

	"cachekit/internal/policy"
)

var (
	refreshThreshold time.Duration
	refreshDryRun    bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "List stale entries in refresh priority order",
	Long: `Rank entries older than the staleness threshold by refresh priority
(frequently used, small, very stale entries first).

Refreshing requires recomputing the payload at its source, which the CLI
cannot do, so this command always reports rather than rewrites; use the
library's Refresher with a refresh callback to actually re-fetch.

Examples:
  cachekit refresh --dry-run
  cachekit refresh --dry-run --threshold 6h`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().DurationVar(&refreshThreshold, "threshold", 0, "staleness threshold override (e.g. 6h)")
	refreshCmd.Flags().BoolVar(&refreshDryRun, "dry-run", false, "report stale entries without touching them")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	threshold := refreshThreshold
	if threshold <= 0 {
		threshold = e.Config().StaleThreshold()
	}
	if !refreshDryRun {
		fmt.Fprintln(cmd.ErrOrStderr(), "note: the CLI has no refresh callback; reporting only")
	}

	stale := e.Refresher.StaleItems(threshold)
	if len(stale) == 0 {
		fmt.Println("No stale entries")
		return nil
	}

	stale = e.Refresher.SortByPriority(stale, threshold)
	now := e.Clock().Now()
	fmt.Printf("%d stale entries (threshold %s):\n", len(stale), threshold)
	for i := range stale {
		item := &stale[i]
		fmt.Printf("  %s  %-14s %-24s age %s, %d accesses, priority %.1f\n",
			item.Hash[:12],
			item.Type,
			item.Source,
			policy.FormatAge(policy.CalculateAge(item, now)),
			item.AccessCount,
			policy.RefreshPriority(item, threshold, now),
		)
	}
	return nil
}
