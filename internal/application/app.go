// Package application wires configuration, logging and stores into the sync and
// query use cases.
package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/choplin/wdrc/internal/config"
	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/feed"
	"github.com/choplin/wdrc/internal/logging"
	"github.com/choplin/wdrc/internal/revision"
	"github.com/choplin/wdrc/internal/usecase"
)

// App holds the long-lived resources of one command invocation.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *database.Context

	closers []func() error
}

// Open builds the logger and opens the change store. logOutput is used when the
// configuration does not name a log file; nil means stderr.
func Open(cfg *config.Config, logOutput io.Writer) (*App, error) {
	logger, closeLog := logging.New(logging.Options{
		Enabled: cfg.Logging,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Output:  logOutput,
	})

	dbCtx, err := database.CreateDatabase(cfg.Store)
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, DB: dbCtx}
	app.closers = append(app.closers, closeLog, func() error { return database.CloseDatabase(dbCtx) })
	return app, nil
}

// Load reads the configuration at path and opens it.
func Load(path string, logOutput io.Writer) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return Open(cfg, logOutput)
}

// NewSync connects to the upstream replica and builds the sync use case. The feed is
// closed with the App.
func (a *App) NewSync(ctx context.Context) (*usecase.Sync, error) {
	upstream, err := feed.Open(ctx, a.Config.Wikidata)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, upstream.Close)

	source := revision.NewHTTPSource(revision.HTTPSourceOptions{
		APIURL:     a.Config.APIURL,
		UserAgent:  a.Config.UserAgent,
		HTTPClient: &http.Client{Timeout: a.Config.FetchTimeout},
	})
	pipeline := revision.NewPipeline(source, revision.PipelineOptions{
		MaxConcurrent: a.Config.MaxConcurrent,
		TaskTimeout:   a.Config.FetchTimeout,
		Logger:        logging.Component(a.Logger, "pipeline"),
	})

	return usecase.NewSync(a.DB, upstream, pipeline, usecase.SyncOptions{
		MaxRecentChanges: a.Config.MaxRecentChanges,
		BatchSize:        a.Config.BatchSize,
		Logger:           logging.Component(a.Logger, "sync"),
	}), nil
}

// LoopOptions returns the continuous mode settings of the configuration.
func (a *App) LoopOptions() usecase.LoopOptions {
	return usecase.LoopOptions{
		Interval:       a.Config.CycleInterval,
		BackoffInitial: a.Config.BackoffInitial,
		BackoffMax:     a.Config.BackoffMax,
	}
}

// Query returns the read-only query use case.
func (a *App) Query() *usecase.Query {
	return usecase.NewQuery(a.DB)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
