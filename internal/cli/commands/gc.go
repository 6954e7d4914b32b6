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
)

var gcMaxAge time.Duration

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove entries older than the retention window",
	Long: `Delete cached payloads whose age exceeds the retention window, along
with their index entries. The window comes from the configuration unless
--max-age overrides it.

Examples:
  cachekit gc
  cachekit gc --max-age 72h`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().DurationVar(&gcMaxAge, "max-age", 0, "retention window override (e.g. 72h)")
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	maxAge := gcMaxAge
	if maxAge <= 0 {
		maxAge = e.Config().RetentionAge()
	}

	result := e.Retention.Apply(maxAge)
	fmt.Printf("Removed %d expired entries\n", result.RemovedCount)
	for _, gcErr := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", gcErr)
	}
	if !result.OK() {
		return fmt.Errorf("gc finished with %d errors", len(result.Errors))
	}
	return nil
}
