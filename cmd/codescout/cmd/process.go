package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/pipeline"
)

// processOptions holds CLI flags for process.
type processOptions struct {
	branch string
	force  bool
	async  bool
}

func newProcessCmd(root *rootOptions) *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process <location>",
		Short: "Process a repository into the search index",
		Long: `Process a repository: fetch it, extract code entities, and publish
them to the search index.

The location is a git URL or a local directory path. Repeated runs are
incremental: unchanged files are skipped, stale search records are
retracted.

Examples:
  codescout process https://github.com/acme/payments.git
  codescout process ./my-project --force
  codescout process https://github.com/acme/payments.git --branch develop`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), cmd, args[0], root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.branch, "branch", "b", "", "Branch to process (git sources)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Reprocess all files even when unchanged")
	cmd.Flags().BoolVar(&opts.async, "async", false, "Start processing and return immediately")

	return cmd
}

func runProcess(ctx context.Context, cmd *cobra.Command, location string, root *rootOptions, opts processOptions) error {
	env, err := newRuntime(root, true)
	if err != nil {
		return err
	}
	defer env.close()

	procOpts := pipeline.ProcessOptions{Branch: opts.branch, Force: opts.force}

	if opts.async {
		claimed, err := env.service.ProcessRepository(ctx, location, procOpts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Processing started (job %s)\nPoll with: codescout status %s\n",
			claimed.ID, location)
		env.service.Wait()
		return nil
	}

	if _, err := env.service.ProcessRepositorySync(ctx, location, procOpts); err != nil {
		return err
	}

	status, err := env.service.Status(ctx, location)
	if err != nil {
		return err
	}
	printStatus(cmd, status)
	return nil
}
