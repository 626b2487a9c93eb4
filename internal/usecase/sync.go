// Package usecase runs the sync cycle that turns upstream recent changes into
// recorded field-level changes.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/feed"
	"github.com/choplin/wdrc/internal/recentchanges"
	"github.com/choplin/wdrc/internal/revision"
	"github.com/choplin/wdrc/internal/services"
	"github.com/choplin/wdrc/internal/textcache"
	"github.com/choplin/wdrc/internal/watermark"
)

// DefaultMaxRecentChanges caps the feed rows read per cycle.
const DefaultMaxRecentChanges = 500

// SyncOptions configures a Sync. Zero values select defaults.
type SyncOptions struct {
	MaxRecentChanges int
	BatchSize        int
	Logger           *slog.Logger
}

// Sync owns the state of one sync loop: the text cache and the write path.
type Sync struct {
	feed             feed.Feed
	pipeline         *revision.Pipeline
	changeLog        *services.ChangeLog
	sideTables       *services.SideTables
	marks            *watermark.Store
	maxRecentChanges int
	logger           *slog.Logger
}

// CycleReport describes what one cycle read and wrote.
type CycleReport struct {
	WindowLow    string
	WindowHigh   string
	Events       int
	NewItems     int
	ChangedItems int
	Records      int
	Failures     int
	Watermark    string

	Changes     services.PersistResult
	Creations   services.NewItemsResult
	Redirects   services.StreamResult
	Deletions   services.StreamResult
	RedirectErr error
	DeletionErr error
}

func NewSync(dbCtx *database.Context, upstream feed.Feed, pipeline *revision.Pipeline, opts SyncOptions) *Sync {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxRecentChanges := opts.MaxRecentChanges
	if maxRecentChanges <= 0 {
		maxRecentChanges = DefaultMaxRecentChanges
	}
	texts := textcache.New(database.NewTextRepository(dbCtx))
	return &Sync{
		feed:             upstream,
		pipeline:         pipeline,
		changeLog:        services.NewChangeLog(dbCtx, texts, opts.BatchSize, logger),
		sideTables:       services.NewSideTables(dbCtx, opts.BatchSize, logger),
		marks:            watermark.New(database.NewMetaRepository(dbCtx)),
		maxRecentChanges: maxRecentChanges,
		logger:           logger,
	}
}

// RunOnce runs a single cycle. Redirect and deletion refresh failures are recorded in
// the report and logged. Failures on the main change path are returned and leave the
// main watermark where it was.
func (s *Sync) RunOnce(ctx context.Context) (CycleReport, error) {
	var report CycleReport

	var g errgroup.Group
	g.Go(func() error {
		report.Redirects, report.RedirectErr = s.refreshRedirects(ctx)
		return nil
	})
	g.Go(func() error {
		report.Deletions, report.DeletionErr = s.refreshDeletions(ctx)
		return nil
	})
	_ = g.Wait()
	if report.RedirectErr != nil {
		s.logger.Error("redirect refresh failed", "error", report.RedirectErr)
	}
	if report.DeletionErr != nil {
		s.logger.Error("deletion refresh failed", "error", report.DeletionErr)
	}

	current, err := s.marks.Get(ctx, watermark.StreamChanges)
	if err != nil {
		return report, err
	}
	report.WindowLow, report.WindowHigh = watermark.Window(current)
	report.Watermark = current

	events, err := s.feed.RecentChanges(ctx, report.WindowLow, report.WindowHigh, s.maxRecentChanges)
	if err != nil {
		return report, err
	}
	report.Events = len(events)

	batch := recentchanges.Aggregate(events)
	report.NewItems = len(batch.NewItems)
	report.ChangedItems = len(batch.ChangedItems)
	s.logger.Info("recent changes",
		"window_low", report.WindowLow,
		"window_high", report.WindowHigh,
		"events", report.Events,
		"new", report.NewItems,
		"changed", report.ChangedItems)

	records, failures := s.pipeline.Run(ctx, batch.ChangedItems)
	report.Records = len(records)
	report.Failures = len(failures)

	mark := ""
	if len(batch.ChangedItems) > 0 {
		mark = recentchanges.LastTimestamp(batch.ChangedItems, current)
	}
	report.Changes, err = s.changeLog.Persist(ctx, records, watermark.StreamChanges, mark)
	if err != nil {
		return report, fmt.Errorf("failed to persist changes: %w", err)
	}
	if report.Changes.Advanced {
		report.Watermark = mark
	}

	report.Creations, err = s.sideTables.RecordNewItems(ctx, batch.NewItems)
	if err != nil {
		return report, fmt.Errorf("failed to record new items: %w", err)
	}

	s.logger.Info("cycle finished",
		"records", report.Records,
		"failures", report.Failures,
		"labels", report.Changes.Labels,
		"statements", report.Changes.Statements,
		"creations", report.Creations.Created,
		"watermark", report.Watermark)
	return report, nil
}

func (s *Sync) refreshRedirects(ctx context.Context) (services.StreamResult, error) {
	low, err := s.marks.Get(ctx, watermark.StreamRedirects)
	if err != nil {
		return services.StreamResult{}, err
	}
	rows, err := s.feed.RecentRedirects(ctx, low)
	if err != nil {
		return services.StreamResult{Watermark: low}, err
	}
	return s.sideTables.RecordRedirects(ctx, rows, low)
}

func (s *Sync) refreshDeletions(ctx context.Context) (services.StreamResult, error) {
	low, err := s.marks.Get(ctx, watermark.StreamDeletions)
	if err != nil {
		return services.StreamResult{}, err
	}
	rows, err := s.feed.RecentDeletions(ctx, low)
	if err != nil {
		return services.StreamResult{Watermark: low}, err
	}
	return s.sideTables.RecordDeletions(ctx, rows, low)
}

// LoopOptions configures continuous mode.
type LoopOptions struct {
	// Interval is the pause after a successful cycle.
	Interval time.Duration
	// BackoffInitial is the pause after the first failed cycle; it doubles up to
	// BackoffMax while cycles keep failing.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// Cycles stops the loop after that many cycles when positive.
	Cycles int
	// OnCycle is called after every cycle.
	OnCycle func(CycleReport, error)
}

// Loop runs cycles until ctx is cancelled. It returns ctx.Err() on cancellation and
// nil when Cycles is reached.
func (s *Sync) Loop(ctx context.Context, opts LoopOptions) error {
	initial := opts.BackoffInitial
	if initial <= 0 {
		initial = time.Second
	}
	maxBackoff := max(opts.BackoffMax, initial)
	backoff := initial

	for cycle := 1; ; cycle++ {
		report, err := s.RunOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if opts.OnCycle != nil {
			opts.OnCycle(report, err)
		}

		wait := opts.Interval
		if err != nil {
			s.logger.Error("cycle failed", "cycle", cycle, "retry_in", backoff, "error", err)
			wait = backoff
			backoff = min(backoff*2, maxBackoff)
		} else {
			backoff = initial
		}

		if opts.Cycles > 0 && cycle >= opts.Cycles {
			return nil
		}
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
