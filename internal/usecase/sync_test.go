package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/choplin/wdrc/internal/config"
	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/entity"
	"github.com/choplin/wdrc/internal/feed"
	"github.com/choplin/wdrc/internal/recentchanges"
	"github.com/choplin/wdrc/internal/revision"
	"github.com/choplin/wdrc/internal/watermark"
)

type fakeFeed struct {
	mu        sync.Mutex
	events    []recentchanges.Event
	redirects []feed.Redirect
	deletions []feed.Deletion
	changeErr error
	redirErr  error
	windows   [][2]string
}

func (f *fakeFeed) RecentChanges(_ context.Context, low, high string, limit int) ([]recentchanges.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, [2]string{low, high})
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	events := f.events
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (f *fakeFeed) RecentRedirects(context.Context, string) ([]feed.Redirect, error) {
	if f.redirErr != nil {
		return nil, f.redirErr
	}
	return f.redirects, nil
}

func (f *fakeFeed) RecentDeletions(context.Context, string) ([]feed.Deletion, error) {
	return f.deletions, nil
}

type fakeSource struct {
	docs map[string][2]string
}

func (s *fakeSource) Revisions(_ context.Context, title string, _, _ uint64) (revision.Document, revision.Document, error) {
	pair, ok := s.docs[title]
	if !ok {
		return nil, nil, errors.New("no such page")
	}
	oldDoc, err := revision.ParseDocument([]byte(pair[0]))
	if err != nil {
		return nil, nil, err
	}
	newDoc, err := revision.ParseDocument([]byte(pair[1]))
	if err != nil {
		return nil, nil, err
	}
	return oldDoc, newDoc, nil
}

func setupSyncDB(t *testing.T) *database.Context {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wdrc.db")
	ctx, err := database.CreateDatabase(config.StoreConfig{Driver: config.DriverSQLite, Database: path})
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() {
		if err := database.CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})
	return ctx
}

func newTestSync(dbCtx *database.Context, upstream feed.Feed, source revision.Source) *Sync {
	pipeline := revision.NewPipeline(source, revision.PipelineOptions{MaxConcurrent: 4, TaskTimeout: time.Second})
	return NewSync(dbCtx, upstream, pipeline, SyncOptions{MaxRecentChanges: 100, BatchSize: 2})
}

func TestSyncRunOnce(t *testing.T) {
	dbCtx := setupSyncDB(t)
	ctx := context.Background()

	upstream := &fakeFeed{
		events: []recentchanges.Event{
			{Title: "Q1", Timestamp: "20240101000000", IsNew: true, NewRevision: 10},
			{Title: "Q2", Timestamp: "20240101000100", OldRevision: 100, NewRevision: 101},
			{Title: "Q2", Timestamp: "20240101000200", OldRevision: 101, NewRevision: 105},
			{Title: "Q3", Timestamp: "20240101000150", OldRevision: 200, NewRevision: 201},
		},
		redirects: []feed.Redirect{{Source: "Q8", Target: "Q9", Timestamp: "20240101000300"}},
		deletions: []feed.Deletion{{Title: "Q7", Timestamp: "20240101000400"}},
	}
	source := &fakeSource{docs: map[string][2]string{
		"Q2": {
			`{"labels":{"en":{"value":"old"}},"claims":{}}`,
			`{"labels":{"en":{"value":"old"},"de":{"value":"neu"}},"claims":{"P31":[{"id":"Q2$a"}]}}`,
		},
	}}

	s := newTestSync(dbCtx, upstream, source)
	report, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	if report.WindowLow != "" || report.WindowHigh != watermark.OpenUpperBound {
		t.Fatalf("unexpected window %q..%q", report.WindowLow, report.WindowHigh)
	}
	if report.Events != 4 || report.NewItems != 1 || report.ChangedItems != 2 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.Records != 2 || report.Failures != 1 {
		t.Fatalf("expected 2 records and 1 failure, got %+v", report)
	}
	if report.Changes.Labels != 1 || report.Changes.Statements != 1 {
		t.Fatalf("unexpected persist result: %+v", report.Changes)
	}
	if report.Watermark != "20240101000200" {
		t.Fatalf("expected watermark at latest changed item, got %q", report.Watermark)
	}
	if report.Creations.Created != 1 {
		t.Fatalf("expected one creation, got %+v", report.Creations)
	}
	if report.RedirectErr != nil || report.DeletionErr != nil {
		t.Fatalf("unexpected side stream errors: %v / %v", report.RedirectErr, report.DeletionErr)
	}

	marks := watermark.New(database.NewMetaRepository(dbCtx))
	all, err := marks.All(ctx)
	if err != nil {
		t.Fatalf("All returned error: %v", err)
	}
	if all[watermark.StreamChanges] != "20240101000200" ||
		all[watermark.StreamRedirects] != "20240101000300" ||
		all[watermark.StreamDeletions] != "20240101000400" {
		t.Fatalf("unexpected watermarks: %v", all)
	}

	changes, err := database.NewChangeRepository(dbCtx, 0).ListByItem(ctx, 2, 10)
	if err != nil {
		t.Fatalf("ListByItem returned error: %v", err)
	}
	if len(changes.Labels) != 1 || changes.Labels[0].Key != "de" || changes.Labels[0].Revision != 105 {
		t.Fatalf("unexpected label changes: %+v", changes.Labels)
	}
	if len(changes.Statements) != 1 || changes.Statements[0].Property != entity.ItemID(31) {
		t.Fatalf("unexpected statement changes: %+v", changes.Statements)
	}

	side := database.NewSideTableRepository(dbCtx, 0)
	if _, err := side.FindCreation(ctx, 1); err != nil {
		t.Fatalf("expected creation for Q1: %v", err)
	}
	if r, err := side.FindRedirect(ctx, 8); err != nil || r.Target != 9 {
		t.Fatalf("expected redirect Q8->Q9, got %+v / %v", r, err)
	}
	if _, err := side.FindDeletion(ctx, 7); err != nil {
		t.Fatalf("expected deletion for Q7: %v", err)
	}

	// A second cycle queries the next window and writes nothing new.
	upstream.events = nil
	report, err = s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second RunOnce returned error: %v", err)
	}
	if report.WindowLow != "20240101000200" || report.WindowHigh != "20240101010200" {
		t.Fatalf("unexpected second window %q..%q", report.WindowLow, report.WindowHigh)
	}
	if report.Changes.Advanced || report.Watermark != "20240101000200" {
		t.Fatalf("empty cycle must keep the watermark, got %+v", report)
	}
}

func TestSyncRunOnceFeedFailureKeepsWatermark(t *testing.T) {
	dbCtx := setupSyncDB(t)
	ctx := context.Background()
	marks := watermark.New(database.NewMetaRepository(dbCtx))
	if err := marks.Set(ctx, watermark.StreamChanges, "20240101000000"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	upstream := &fakeFeed{changeErr: errors.New("replica down")}
	s := newTestSync(dbCtx, upstream, &fakeSource{})
	if _, err := s.RunOnce(ctx); err == nil {
		t.Fatalf("expected feed error")
	}

	got, err := marks.Get(ctx, watermark.StreamChanges)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != "20240101000000" {
		t.Fatalf("watermark moved on failure: %q", got)
	}
}

func TestSyncRunOnceSideStreamErrorIsReported(t *testing.T) {
	dbCtx := setupSyncDB(t)
	upstream := &fakeFeed{redirErr: errors.New("redirect query failed")}

	report, err := newTestSync(dbCtx, upstream, &fakeSource{}).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("side stream failure must not fail the cycle: %v", err)
	}
	if report.RedirectErr == nil {
		t.Fatalf("expected redirect error in report")
	}
	if report.Redirects.Watermark != watermark.SideStreamDefault {
		t.Fatalf("unexpected redirect watermark %q", report.Redirects.Watermark)
	}
}

func TestSyncLoopStopsAfterCycles(t *testing.T) {
	dbCtx := setupSyncDB(t)
	upstream := &fakeFeed{changeErr: errors.New("replica down")}
	s := newTestSync(dbCtx, upstream, &fakeSource{})

	var errs int
	err := s.Loop(context.Background(), LoopOptions{
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
		Cycles:         3,
		OnCycle: func(_ CycleReport, err error) {
			if err != nil {
				errs++
			}
		},
	})
	if err != nil {
		t.Fatalf("Loop returned error: %v", err)
	}
	if errs != 3 || len(upstream.windows) != 3 {
		t.Fatalf("expected 3 failed cycles, got %d errors and %d queries", errs, len(upstream.windows))
	}
}

func TestSyncLoopStopsOnCancel(t *testing.T) {
	dbCtx := setupSyncDB(t)
	s := newTestSync(dbCtx, &fakeFeed{}, &fakeSource{})

	ctx, cancel := context.WithCancel(context.Background())
	err := s.Loop(ctx, LoopOptions{
		Interval: time.Hour,
		OnCycle:  func(CycleReport, error) { cancel() },
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
