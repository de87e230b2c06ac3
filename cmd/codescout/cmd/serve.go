package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codescout-dev/codescout/internal/mcpserver"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tool surface over stdio",
		Long: `Run the Model Context Protocol server on stdin/stdout.

AI clients use three tools: process_repository to start a run,
processing_status to poll it, and search_code to query the published
entities.

Stdout carries the protocol exclusively; logs go to the log file in
the data directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Protocol owns stdout/stderr; log to file only.
			env, err := newRuntime(root, false)
			if err != nil {
				return err
			}
			defer env.close()

			srv, err := mcpserver.NewServer(env.service, env.logger)
			if err != nil {
				return err
			}

			err = srv.Run(cmd.Context())
			if err != nil {
				env.logger.Error("mcp server stopped", slog.String("error", err.Error()))
			}
			// Let queued runs finish before tearing the stack down.
			env.service.Wait()
			return err
		},
	}

	return cmd
}
