package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/pipeline"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <location>",
		Short: "Show processing status of a repository",
		Long: `Display the processing status of a registered repository:
current phase, progress percentage, file counts, and whether the
search index is ready to serve queries for it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newRuntime(root, true)
			if err != nil {
				return err
			}
			defer env.close()

			status, err := env.service.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}
			printStatus(cmd, status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// printStatus renders one status payload as text.
func printStatus(cmd *cobra.Command, status *pipeline.StatusPayload) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Repository: %s (id %d)\n", status.RepositoryName, status.RepositoryID)
	fmt.Fprintf(out, "Status:     %s (%.1f%%)\n", status.Status, status.ProcessingProgress)
	if status.Message != "" {
		fmt.Fprintf(out, "Message:    %s\n", status.Message)
	}
	fmt.Fprintf(out, "Files:      %d/%d processed", status.FilesProcessed, status.FilesTotal)
	if status.Truncated {
		fmt.Fprint(out, " (truncated at file ceiling)")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Search:     ready=%v\n", status.ToolReady)
}
