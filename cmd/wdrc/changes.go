package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/usecase"
	"github.com/choplin/wdrc/internal/watermark"
)

func newChangesCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "changes <item>",
		Short: "Show recorded changes of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			result, err := app.Query().ItemChanges(context.Background(), args[0], limit)
			if err != nil {
				return err
			}

			if format == "json" {
				return outputJSON(cmd, changesOutput(result))
			}
			outputChangesTable(cmd, result, getTerminalWidth())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", usecase.DefaultChangeLimit, "Maximum rows per change table")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

type labelChangeJSON struct {
	Revision  uint64 `json:"revision"`
	Timestamp string `json:"timestamp"`
	Subject   string `json:"subject"`
	Type      string `json:"type"`
	Key       string `json:"key"`
}

type statementChangeJSON struct {
	Revision  uint64 `json:"revision"`
	Timestamp string `json:"timestamp"`
	Property  string `json:"property"`
	Type      string `json:"type"`
}

type changesJSON struct {
	Item       string                `json:"item"`
	Labels     []labelChangeJSON     `json:"labels"`
	Statements []statementChangeJSON `json:"statements"`
}

func changesOutput(result *database.ItemChanges) changesJSON {
	out := changesJSON{
		Item:       fmt.Sprintf("Q%d", result.Item),
		Labels:     make([]labelChangeJSON, 0, len(result.Labels)),
		Statements: make([]statementChangeJSON, 0, len(result.Statements)),
	}
	for _, l := range result.Labels {
		out.Labels = append(out.Labels, labelChangeJSON{
			Revision:  l.Revision,
			Timestamp: l.Timestamp,
			Subject:   l.Subject.String(),
			Type:      l.ChangeType.String(),
			Key:       l.Key,
		})
	}
	for _, s := range result.Statements {
		out.Statements = append(out.Statements, statementChangeJSON{
			Revision:  s.Revision,
			Timestamp: s.Timestamp,
			Property:  fmt.Sprintf("P%d", s.Property),
			Type:      s.ChangeType.String(),
		})
	}
	return out
}

func getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// Fixed columns of the label table: revision, timestamp, subject and type, plus
// borders and padding.
const labelFixedWidth = 12 + 19 + 12 + 7 + 5*3

// keyColumnWidth is the room left for the key column, never below 8.
func keyColumnWidth(termWidth int, useShortDate bool) int {
	fixed := labelFixedWidth
	if useShortDate {
		fixed -= 8
	}
	width := termWidth - fixed
	if width < 8 {
		width = 8
	}
	return width
}

// displayTimestamp renders a stored timestamp for humans, keeping unparseable
// values as they are.
func displayTimestamp(ts string, short bool) string {
	t, err := watermark.ParseTimestamp(ts)
	if err != nil {
		return ts
	}
	if short {
		return t.Format("01-02 15:04")
	}
	return t.Format("2006-01-02 15:04:05")
}

func outputChangesTable(cmd *cobra.Command, result *database.ItemChanges, termWidth int) {
	useShortDate := termWidth < 80
	keyWidth := keyColumnWidth(termWidth, useShortDate)

	labels := table.NewWriter()
	labels.SetOutputMirror(cmd.OutOrStdout())
	labels.SetStyle(table.StyleLight)
	labels.SetTitle(fmt.Sprintf("Q%d terms and sitelinks", result.Item))
	labels.AppendHeader(table.Row{"Revision", "Timestamp", "Subject", "Type", "Key"})
	for _, l := range result.Labels {
		labels.AppendRow(table.Row{
			l.Revision,
			displayTimestamp(l.Timestamp, useShortDate),
			l.Subject,
			l.ChangeType,
			runewidth.Truncate(l.Key, keyWidth, "..."),
		})
	}
	labels.Render()

	statements := table.NewWriter()
	statements.SetOutputMirror(cmd.OutOrStdout())
	statements.SetStyle(table.StyleLight)
	statements.SetTitle(fmt.Sprintf("Q%d statements", result.Item))
	statements.AppendHeader(table.Row{"Revision", "Timestamp", "Property", "Type"})
	for _, s := range result.Statements {
		statements.AppendRow(table.Row{
			s.Revision,
			displayTimestamp(s.Timestamp, useShortDate),
			fmt.Sprintf("P%d", s.Property),
			s.ChangeType,
		})
	}
	statements.Render()
}
