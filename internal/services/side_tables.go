package services

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/entity"
	"github.com/choplin/wdrc/internal/feed"
	"github.com/choplin/wdrc/internal/recentchanges"
	"github.com/choplin/wdrc/internal/watermark"
)

// SideTables maintains the creations, deletions and redirects tables.
type SideTables struct {
	ctx       *database.Context
	batchSize int
	logger    *slog.Logger
}

// NewItemsResult summarises RecordNewItems.
type NewItemsResult struct {
	Created   int64
	Undeleted int64
	Skipped   int
}

// StreamResult summarises a redirects or deletions refresh.
type StreamResult struct {
	Written   int64
	Skipped   int
	Watermark string
	Advanced  bool
}

func NewSideTables(ctx *database.Context, batchSize int, logger *slog.Logger) *SideTables {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SideTables{ctx: ctx, batchSize: batchSize, logger: logger}
}

// RecordNewItems upserts creations and removes deletion rows of the same items, since
// a re-creation supersedes a deletion. Items with invalid titles are skipped.
func (s *SideTables) RecordNewItems(ctx context.Context, items []recentchanges.NewItem) (NewItemsResult, error) {
	var (
		result  NewItemsResult
		records []database.ItemEventRecord
		ids     []entity.ItemID
	)
	for _, item := range items {
		id, err := entity.ParseID(item.Title)
		if err != nil {
			result.Skipped++
			s.logger.Debug("skipping new item", "item", item.Title, "error", err)
			continue
		}
		records = append(records, database.ItemEventRecord{Item: id, Timestamp: item.Timestamp})
		ids = append(ids, id)
	}
	if len(records) == 0 {
		return result, nil
	}

	err := database.WithTx(ctx, s.ctx, func(tx *database.Context) error {
		repo := database.NewSideTableRepository(tx, s.batchSize)
		created, err := repo.UpsertCreations(ctx, records)
		if err != nil {
			return err
		}
		undeleted, err := repo.DeleteDeletions(ctx, ids)
		if err != nil {
			return err
		}
		result.Created = created
		result.Undeleted = undeleted
		return nil
	})
	if err != nil {
		return NewItemsResult{Skipped: result.Skipped}, err
	}
	return result, nil
}

// RecordRedirects upserts redirects and advances the redirect watermark to the latest
// written timestamp. Rows with an invalid source or target are skipped and do not
// move the watermark.
func (s *SideTables) RecordRedirects(ctx context.Context, redirects []feed.Redirect, current string) (StreamResult, error) {
	result := StreamResult{Watermark: current}
	var records []database.RedirectRecord
	for _, r := range redirects {
		source, err := entity.ParseID(r.Source)
		if err != nil {
			result.Skipped++
			continue
		}
		target, err := entity.ParseID(r.Target)
		if err != nil {
			result.Skipped++
			continue
		}
		if r.Timestamp > result.Watermark {
			result.Watermark = r.Timestamp
		}
		records = append(records, database.RedirectRecord{Source: source, Target: target, Timestamp: r.Timestamp})
	}
	if len(records) == 0 {
		return result, nil
	}
	sortRedirectsByTimestamp(records)

	err := database.WithTx(ctx, s.ctx, func(tx *database.Context) error {
		written, err := database.NewSideTableRepository(tx, s.batchSize).UpsertRedirects(ctx, records)
		if err != nil {
			return err
		}
		result.Written = written
		advanced, err := watermark.New(database.NewMetaRepository(tx)).Advance(ctx, watermark.StreamRedirects, result.Watermark)
		if err != nil {
			return err
		}
		result.Advanced = advanced
		return nil
	})
	if err != nil {
		return StreamResult{Watermark: current, Skipped: result.Skipped}, err
	}
	return result, nil
}

// RecordDeletions upserts deletions and advances the deletion watermark. Rows with an
// invalid title are skipped and do not move the watermark.
func (s *SideTables) RecordDeletions(ctx context.Context, deletions []feed.Deletion, current string) (StreamResult, error) {
	result := StreamResult{Watermark: current}
	var records []database.ItemEventRecord
	for _, d := range deletions {
		id, err := entity.ParseID(d.Title)
		if err != nil {
			result.Skipped++
			continue
		}
		if d.Timestamp > result.Watermark {
			result.Watermark = d.Timestamp
		}
		records = append(records, database.ItemEventRecord{Item: id, Timestamp: d.Timestamp})
	}
	if len(records) == 0 {
		return result, nil
	}

	err := database.WithTx(ctx, s.ctx, func(tx *database.Context) error {
		written, err := database.NewSideTableRepository(tx, s.batchSize).UpsertDeletions(ctx, records)
		if err != nil {
			return err
		}
		result.Written = written
		advanced, err := watermark.New(database.NewMetaRepository(tx)).Advance(ctx, watermark.StreamDeletions, result.Watermark)
		if err != nil {
			return err
		}
		result.Advanced = advanced
		return nil
	})
	if err != nil {
		return StreamResult{Watermark: current, Skipped: result.Skipped}, err
	}
	return result, nil
}

// sortRedirectsByTimestamp orders records oldest first so the latest row of a source
// wins when rows are collapsed per source.
func sortRedirectsByTimestamp(records []database.RedirectRecord) {
	slices.SortStableFunc(records, func(a, b database.RedirectRecord) int {
		return strings.Compare(a.Timestamp, b.Timestamp)
	})
}
