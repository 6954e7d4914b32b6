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

	"cachekit/internal/index"
	"cachekit/internal/policy"
)

var (
	listSource string
	listType   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached entries",
	Long: `List index entries, newest first, optionally filtered by source
and/or type (exact match).

Examples:
  cachekit list
  cachekit list --source api/users
  cachekit list --type remote-call`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listSource, "source", "", "filter by source")
	listCmd.Flags().StringVar(&listType, "type", "", "filter by type")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	items := e.Index.Search(index.Filter{Source: listSource, Type: listType})
	if len(items) == 0 {
		fmt.Println("No cached entries")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HASH\tTYPE\tSOURCE\tSIZE\tAGE\tACCESSES")
	for i := range items {
		item := &items[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			item.Hash[:12],
			item.Type,
			item.Source,
			policy.FormatBytes(item.SizeBytes),
			policy.FormatAge(policy.CalculateAge(item, e.Clock().Now())),
			item.AccessCount,
		)
	}
	return w.Flush()
}
