package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	jsonOutput bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed code entities",
		Long: `Search the published code entities across processed repositories.

Matches entity names, signatures, and code content.

Examples:
  codescout search "HandleRequest"
  codescout search "payment retry" --limit 5
  codescout search "parse config" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			env, err := newRuntime(root, true)
			if err != nil {
				return err
			}
			defer env.close()

			hits, err := env.service.Search(cmd.Context(), query, opts.limit)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(hits)
			}

			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintf(out, "No results for %q\n", query)
				return nil
			}
			for i, hit := range hits {
				doc := hit.Document
				fmt.Fprintf(out, "%d. %s [%s]\n", i+1, doc.Title, doc.EntityType)
				fmt.Fprintf(out, "   %s:%d", doc.FilePath, doc.LineNumber)
				if doc.RepositoryName != "" {
					fmt.Fprintf(out, " (%s)", doc.RepositoryName)
				}
				fmt.Fprintln(out)
				if doc.Signature != "" {
					fmt.Fprintf(out, "   %s\n", doc.Signature)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}
