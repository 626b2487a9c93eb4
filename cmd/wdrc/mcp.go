package main

import (
	"github.com/spf13/cobra"

	"github.com/choplin/wdrc/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp [config]",
		Short: "Start MCP server",
		Long:  "Start a Model Context Protocol server on stdio that answers questions about recorded changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := openApp(cmd, args)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			return mcp.NewServer(app.DB, version).Run(ctx)
		},
	}

	return cmd
}
