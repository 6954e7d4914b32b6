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
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	trackRelated []string
	trackIgnore  []string
	trackTree    bool
)

var trackCmd = &cobra.Command{
	Use:   "track <path>...",
	Short: "Track source files for change detection",
	Long: `Record the current content hash of one or more source files so later
detect runs can notice changes and invalidate derived cache entries.

With --tree each path is walked as a directory, filtering files through
gitignore-style --ignore patterns.

Examples:
  cachekit track data/input.csv --related 9f86d081884c7d65...
  cachekit track --tree ./configs --ignore '*.log' --ignore 'build/'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTrack,
}

var untrackCmd = &cobra.Command{
	Use:   "untrack <path>...",
	Short: "Stop tracking source files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUntrack,
}

func init() {
	trackCmd.Flags().StringSliceVar(&trackRelated, "related", nil, "cache hashes derived from this file")
	trackCmd.Flags().StringSliceVar(&trackIgnore, "ignore", nil, "gitignore-style pattern to skip (with --tree)")
	trackCmd.Flags().BoolVar(&trackTree, "tree", false, "track every file under each path recursively")
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(untrackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	if trackTree {
		for _, dir := range args {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("failed to resolve path: %w", err)
			}
			result := e.Detector.RegisterTree(abs, trackIgnore)
			fmt.Printf("%s: tracked %d files, skipped %d\n", dir, result.Registered, result.Skipped)
			for _, treeErr := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", treeErr)
			}
		}
		return nil
	}

	for _, path := range args {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		if e.Detector.Register(abs, trackRelated) {
			fmt.Printf("Tracking %s\n", path)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "Cannot read %s, not tracked\n", path)
		}
	}
	return nil
}

func runUntrack(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	for _, path := range args {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		if e.Detector.Untrack(abs) {
			fmt.Printf("Untracked %s\n", path)
		} else {
			fmt.Printf("Not tracked: %s\n", path)
		}
	}
	return nil
}
