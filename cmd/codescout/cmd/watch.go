package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/pipeline"
	"github.com/codescout-dev/codescout/internal/watch"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a local repository and reprocess on change",
		Long: `Process a local repository, then keep watching it: file changes are
debounced into incremental reprocessing runs. Unchanged files are
skipped by fingerprint, so a run after a small edit is cheap.

Stops on Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return runWatch(cmd.Context(), cmd, dir, root, debounce)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before reprocessing")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, dir string, root *rootOptions, debounce time.Duration) error {
	env, err := newRuntime(root, true)
	if err != nil {
		return err
	}
	defer env.close()

	// Initial run so the watcher starts from an indexed baseline.
	if _, err := env.service.ProcessRepositorySync(ctx, dir, pipeline.ProcessOptions{}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initial processing done, watching %s\n", dir)

	w := watch.New(dir, debounce, func(ctx context.Context) error {
		_, err := env.service.ProcessRepository(ctx, dir, pipeline.ProcessOptions{})
		return err
	}, env.logger)

	err = w.Run(ctx)
	env.service.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
