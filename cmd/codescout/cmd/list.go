package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered repositories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := newRuntime(root, true)
			if err != nil {
				return err
			}
			defer env.close()

			repos, err := env.service.ListRepositories(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(repos)
			}

			if len(repos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No repositories registered. Run 'codescout process <location>' first.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tBRANCH\tSTATUS\tFILES\tLINES\tREADY\tLOCATION")
			for _, repo := range repos {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%v\t%s\n",
					repo.ID, repo.Name, repo.Branch, repo.Status,
					repo.TotalFiles, repo.TotalLines, repo.IndexReady, repo.Location)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
