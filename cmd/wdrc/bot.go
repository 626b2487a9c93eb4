package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choplin/wdrc/internal/usecase"
)

func newBotCmd() *cobra.Command {
	var cycles int

	cmd := &cobra.Command{
		Use:   "bot [config]",
		Short: "Run sync cycles continuously",
		Long:  "Run sync cycles until interrupted. Failed cycles are retried with exponential backoff.",
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

			syncer, err := app.NewSync(ctx)
			if err != nil {
				return err
			}

			opts := app.LoopOptions()
			opts.Cycles = cycles
			err = syncer.Loop(ctx, opts)
			if errors.Is(err, context.Canceled) {
				app.Logger.Info("stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVar(&cycles, "cycles", 0, "Stop after this many cycles (0 runs until interrupted)")

	return cmd
}

func newRunCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "run [config]",
		Short: "Run a single sync cycle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "" {
				if err := checkFormat(format); err != nil {
					return err
				}
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := openApp(cmd, args)
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			syncer, err := app.NewSync(ctx)
			if err != nil {
				return err
			}

			report, err := syncer.RunOnce(ctx)
			switch format {
			case "json":
				if encErr := outputJSON(cmd, reportOutput(report)); encErr != nil {
					return encErr
				}
			case "table":
				printReport(cmd, report)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Print the cycle report: table or json")

	return cmd
}

type cycleOutput struct {
	WindowLow    string `json:"window_low"`
	WindowHigh   string `json:"window_high"`
	Events       int    `json:"events"`
	NewItems     int    `json:"new_items"`
	ChangedItems int    `json:"changed_items"`
	Records      int    `json:"records"`
	Failures     int    `json:"failures"`
	Labels       int64  `json:"labels"`
	Statements   int64  `json:"statements"`
	Creations    int64  `json:"creations"`
	Redirects    int64  `json:"redirects"`
	Deletions    int64  `json:"deletions"`
	Watermark    string `json:"watermark"`
	RedirectErr  string `json:"redirect_error,omitempty"`
	DeletionErr  string `json:"deletion_error,omitempty"`
}

func reportOutput(r usecase.CycleReport) cycleOutput {
	out := cycleOutput{
		WindowLow:    r.WindowLow,
		WindowHigh:   r.WindowHigh,
		Events:       r.Events,
		NewItems:     r.NewItems,
		ChangedItems: r.ChangedItems,
		Records:      r.Records,
		Failures:     r.Failures,
		Labels:       r.Changes.Labels,
		Statements:   r.Changes.Statements,
		Creations:    r.Creations.Created,
		Redirects:    r.Redirects.Written,
		Deletions:    r.Deletions.Written,
		Watermark:    r.Watermark,
	}
	if r.RedirectErr != nil {
		out.RedirectErr = r.RedirectErr.Error()
	}
	if r.DeletionErr != nil {
		out.DeletionErr = r.DeletionErr.Error()
	}
	return out
}

func printReport(cmd *cobra.Command, r usecase.CycleReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "window:     %s .. %s\n", r.WindowLow, r.WindowHigh)
	fmt.Fprintf(out, "events:     %d (new %d, changed %d)\n", r.Events, r.NewItems, r.ChangedItems)
	fmt.Fprintf(out, "records:    %d (failed items %d)\n", r.Records, r.Failures)
	fmt.Fprintf(out, "written:    labels %d, statements %d, creations %d, redirects %d, deletions %d\n",
		r.Changes.Labels, r.Changes.Statements, r.Creations.Created, r.Redirects.Written, r.Deletions.Written)
	fmt.Fprintf(out, "watermark:  %s\n", r.Watermark)
}
