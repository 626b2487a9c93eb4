package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/choplin/wdrc/internal/application"
)

// configPath prefers the positional config argument over --config.
func configPath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return configFlag
}

func openApp(cmd *cobra.Command, args []string) (*application.App, error) {
	return application.Load(configPath(args), cmd.ErrOrStderr())
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func checkFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
	}
}

func outputJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
