package main

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/choplin/wdrc/internal/usecase"
)

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status [config]",
		Short: "Show watermarks and table row counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			app, err := openApp(cmd, args)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			status, err := app.Query().Status(context.Background())
			if err != nil {
				return err
			}

			if format == "json" {
				return outputJSON(cmd, statusOutput(status))
			}
			outputStatusTable(cmd, status)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

type statusJSON struct {
	Watermarks map[string]string `json:"watermarks"`
	Rows       map[string]int64  `json:"rows"`
}

func statusOutput(status *usecase.Status) statusJSON {
	out := statusJSON{
		Watermarks: make(map[string]string, len(status.Streams)),
		Rows:       make(map[string]int64, len(status.Tables)),
	}
	for _, s := range status.Streams {
		out.Watermarks[string(s.Stream)] = s.Watermark
	}
	for _, t := range status.Tables {
		out.Rows[t.Table] = t.Rows
	}
	return out
}

func outputStatusTable(cmd *cobra.Command, status *usecase.Status) {
	streams := table.NewWriter()
	streams.SetOutputMirror(cmd.OutOrStdout())
	streams.SetStyle(table.StyleLight)
	streams.AppendHeader(table.Row{"Stream", "Watermark"})
	for _, s := range status.Streams {
		value := s.Watermark
		if value == "" {
			value = "(unset)"
		}
		streams.AppendRow(table.Row{s.Stream, value})
	}
	streams.Render()

	rows := table.NewWriter()
	rows.SetOutputMirror(cmd.OutOrStdout())
	rows.SetStyle(table.StyleLight)
	rows.AppendHeader(table.Row{"Table", "Rows"})
	var total int64
	for _, t := range status.Tables {
		rows.AppendRow(table.Row{t.Table, t.Rows})
		total += t.Rows
	}
	rows.AppendFooter(table.Row{"Total", total})
	rows.Render()
}
