package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/choplin/wdrc/internal/change"
	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/entity"
	"github.com/choplin/wdrc/internal/textcache"
	"github.com/choplin/wdrc/internal/watermark"
)

// ChangeLog writes diff output to the labels and statements tables.
type ChangeLog struct {
	ctx       *database.Context
	texts     *textcache.Cache
	batchSize int
	logger    *slog.Logger
}

// PersistResult summarises one Persist call.
type PersistResult struct {
	Labels     int64
	Statements int64
	Skipped    int
	Advanced   bool
}

// NewChangeLog creates a ChangeLog. texts must be the cache owned by the caller's
// sync loop.
func NewChangeLog(ctx *database.Context, texts *textcache.Cache, batchSize int, logger *slog.Logger) *ChangeLog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ChangeLog{ctx: ctx, texts: texts, batchSize: batchSize, logger: logger}
}

// Persist interns the language and site codes of records, then writes all rows and
// advances stream to mark in one transaction. Statement records whose property is not
// a valid identifier are skipped. An empty mark leaves the watermark untouched.
func (s *ChangeLog) Persist(ctx context.Context, records []change.Record, stream watermark.Stream, mark string) (PersistResult, error) {
	var (
		result     PersistResult
		labels     []database.LabelChangeRecord
		statements []database.StatementChangeRecord
	)

	// Interning happens before the transaction opens so that text inserts never wait on it.
	for _, r := range records {
		if r.IsStatement() {
			property, err := entity.ParseID(r.Property)
			if err != nil {
				result.Skipped++
				s.logger.Debug("skipping statement change", "item", r.ItemID, "property", r.Property, "error", err)
				continue
			}
			statements = append(statements, database.StatementChangeRecord{
				Item:       r.ItemID,
				Revision:   r.RevisionID,
				Property:   property,
				Timestamp:  r.Timestamp,
				ChangeType: r.Type,
			})
			continue
		}

		keyID, err := s.texts.ID(ctx, r.Key())
		if err != nil {
			return result, fmt.Errorf("failed to intern %q: %w", r.Key(), err)
		}
		labels = append(labels, database.LabelChangeRecord{
			Item:       r.ItemID,
			Revision:   r.RevisionID,
			Subject:    r.Subject,
			Timestamp:  r.Timestamp,
			ChangeType: r.Type,
			KeyID:      keyID,
		})
	}

	err := database.WithTx(ctx, s.ctx, func(tx *database.Context) error {
		repo := database.NewChangeRepository(tx, s.batchSize)
		n, err := repo.InsertLabelChanges(ctx, labels)
		if err != nil {
			return err
		}
		result.Labels = n

		n, err = repo.InsertStatementChanges(ctx, statements)
		if err != nil {
			return err
		}
		result.Statements = n

		if mark == "" {
			return nil
		}
		advanced, err := watermark.New(database.NewMetaRepository(tx)).Advance(ctx, stream, mark)
		if err != nil {
			return err
		}
		result.Advanced = advanced
		return nil
	})
	if err != nil {
		return PersistResult{Skipped: result.Skipped}, err
	}
	return result, nil
}
