package revision

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/choplin/wdrc/internal/change"
	"github.com/choplin/wdrc/internal/entity"
	"github.com/choplin/wdrc/internal/recentchanges"
)

const (
	// DefaultMaxConcurrent bounds simultaneous fetch-and-diff tasks.
	DefaultMaxConcurrent = 50
	// DefaultTaskTimeout bounds a single revision fetch.
	DefaultTaskTimeout = 30 * time.Second
)

// PipelineOptions configures a Pipeline. Zero values select defaults.
type PipelineOptions struct {
	MaxConcurrent int
	TaskTimeout   time.Duration
	Logger        *slog.Logger
}

// Pipeline fetches and diffs changed items with bounded concurrency.
type Pipeline struct {
	source        Source
	maxConcurrent int
	taskTimeout   time.Duration
	logger        *slog.Logger
}

// Outcome is the result of one fetch-and-diff task.
type Outcome struct {
	Item    recentchanges.ChangedItem
	Records []change.Record
	Err     error
}

// Failure pairs an item with the reason it contributed no records.
type Failure struct {
	Item recentchanges.ChangedItem
	Err  error
}

func NewPipeline(source Source, opts PipelineOptions) *Pipeline {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	taskTimeout := opts.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		source:        source,
		maxConcurrent: maxConcurrent,
		taskTimeout:   taskTimeout,
		logger:        logger,
	}
}

// MaxConcurrent returns the concurrency cap in effect.
func (p *Pipeline) MaxConcurrent() int { return p.maxConcurrent }

// Run returns the change records of every item that could be fetched and diffed,
// and the items that could not. Failed items contribute no records and are logged.
func (p *Pipeline) Run(ctx context.Context, items []recentchanges.ChangedItem) ([]change.Record, []Failure) {
	records, failures := Reduce(p.RunOutcomes(ctx, items))
	for _, f := range failures {
		p.logger.Warn("skipping item",
			"item", f.Item.Title,
			"old_revision", f.Item.OldRevision,
			"new_revision", f.Item.NewRevision,
			"error", f.Err)
	}
	return records, failures
}

// RunOutcomes runs one task per item and returns the outcomes in completion order.
// A failing task never cancels its siblings.
func (p *Pipeline) RunOutcomes(ctx context.Context, items []recentchanges.ChangedItem) []Outcome {
	var (
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, len(items))
	)
	var g errgroup.Group
	g.SetLimit(p.maxConcurrent)
	for _, item := range items {
		g.Go(func() error {
			outcome := p.process(ctx, item)
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Pipeline) process(ctx context.Context, item recentchanges.ChangedItem) Outcome {
	id, err := entity.ParseID(item.Title)
	if err != nil {
		return Outcome{Item: item, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{Item: item, Err: err}
	}

	taskCtx, cancel := context.WithTimeout(ctx, p.taskTimeout)
	defer cancel()
	oldDoc, newDoc, err := p.source.Revisions(taskCtx, item.Title, item.OldRevision, item.NewRevision)
	if err != nil {
		if !errors.Is(err, ErrRevisionFetch) {
			err = &FetchError{Title: item.Title, Old: item.OldRevision, New: item.NewRevision, Err: err}
		}
		return Outcome{Item: item, Err: err}
	}
	return Outcome{
		Item:    item,
		Records: Diff(oldDoc, newDoc, id, item.NewRevision, item.Timestamp),
	}
}

// Reduce separates successful records from failed items.
func Reduce(outcomes []Outcome) ([]change.Record, []Failure) {
	var (
		records  []change.Record
		failures []Failure
	)
	for _, o := range outcomes {
		if o.Err != nil {
			failures = append(failures, Failure{Item: o.Item, Err: o.Err})
			continue
		}
		records = append(records, o.Records...)
	}
	return records, failures
}
