package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <location>",
		Short: "Delete a repository and retract its search records",
		Long: `Remove a registered repository: every search record it published is
retracted from the index and its local state is deleted.

Fails while the repository is being processed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newRuntime(root, true)
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.service.DeleteRepository(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	return cmd
}
