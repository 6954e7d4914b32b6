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
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var detectList bool

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect source changes and invalidate derived entries",
	Long: `Rehash every tracked source file. Files whose content changed (or
disappeared) have their associated cache entries removed from the store
and the index.

Examples:
  cachekit detect
  cachekit detect --list`,
	Args: cobra.NoArgs,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().BoolVar(&detectList, "list", false, "list tracked files instead of detecting")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	if detectList {
		tracked := e.Detector.Tracked()
		if len(tracked) == 0 {
			fmt.Println("No tracked files")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tHASH\tDERIVED ENTRIES")
		for _, rec := range tracked {
			fmt.Fprintf(w, "%s\t%s\t%d\n", rec.FilePath, rec.Hash[:12], len(rec.RelatedCacheHashes))
		}
		return w.Flush()
	}

	result := e.Detector.DetectAndInvalidate()
	fmt.Printf("Scanned %d files, %d changed, %d cache entries invalidated\n",
		result.FilesScanned, result.FilesChanged, result.CacheEntriesInvalidated)
	for _, detectErr := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", detectErr)
	}
	if !result.OK() {
		return fmt.Errorf("detection finished with %d errors", len(result.Errors))
	}
	return nil
}
