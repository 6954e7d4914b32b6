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
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Rebuild the index from the payload files on disk",
	Long: `Reconcile the index with the payload store: entries whose file is
gone are dropped, and payload files missing from the index are
re-registered. Use after a crash or a corrupted index.`,
	Args: cobra.NoArgs,
	RunE: runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	result := e.Index.Rebuild(e.Store)
	fmt.Printf("Kept %d entries, recovered %d, dropped %d\n",
		result.Kept, result.Recovered, result.Dropped)
	for _, repairErr := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", repairErr)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("repair finished with %d errors", len(result.Errors))
	}
	return nil
}
