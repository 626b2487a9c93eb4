package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/watermark"
)

func newWatermarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watermark",
		Short: "Inspect or move sync watermarks",
	}
	cmd.AddCommand(newWatermarkGetCmd())
	cmd.AddCommand(newWatermarkSetCmd())
	return cmd
}

func newWatermarkGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <stream>",
		Short: "Print the watermark of a stream (changes, redirects, deletions)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := watermark.ParseStream(args[0])
			if err != nil {
				return err
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			value, err := watermark.New(database.NewMetaRepository(app.DB)).Get(cmd.Context(), stream)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newWatermarkSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <stream> <when>",
		Short: "Set the watermark of a stream",
		Long: "Set the watermark of a stream (changes, redirects, deletions). <when> is a " +
			"YYYYMMDDHHMMSS timestamp or an expression such as \"3 hours ago\" or \"yesterday 10:00\". " +
			"The watermark may move backwards.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := watermark.ParseStream(args[0])
			if err != nil {
				return err
			}
			value, err := parseWhen(strings.Join(args[1:], " "), time.Now())
			if err != nil {
				return err
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			if err := watermark.New(database.NewMetaRepository(app.DB)).Set(cmd.Context(), stream, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", stream, value)
			return nil
		},
	}
}

// parseWhen accepts a watermark timestamp or a natural-language time relative to now.
func parseWhen(text string, now time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if _, err := watermark.ParseTimestamp(text); err == nil {
		return text, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(text, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse time %q: %w", text, err)
	}
	if result == nil {
		return "", fmt.Errorf("unrecognised time %q", text)
	}
	return watermark.FormatTimestamp(result.Time), nil
}
