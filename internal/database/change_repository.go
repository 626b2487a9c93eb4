package database

import (
	"context"
	"fmt"

	"github.com/choplin/wdrc/internal/entity"
)

// ChangeRepository writes and reads the labels and statements tables.
type ChangeRepository struct {
	ctx       *Context
	batchSize int
}

// NewChangeRepository returns a repository that inserts at most batchSize rows per
// statement. A non-positive batchSize selects the default of 500.
func NewChangeRepository(dbCtx *Context, batchSize int) *ChangeRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &ChangeRepository{ctx: dbCtx, batchSize: batchSize}
}

// InsertLabelChanges writes records in batches. Records already present are ignored.
// It returns the number of rows written.
func (r *ChangeRepository) InsertLabelChanges(ctx context.Context, records []LabelChangeRecord) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("change repository: missing database context")
	}

	var written int64
	for _, batch := range chunk(mapRows(records, labelChangeToRow), r.batchSize) {
		n, err := queries.InsertLabelChanges(ctx, batch)
		if err != nil {
			return written, persistenceError("insert label changes", err)
		}
		written += n
	}
	return written, nil
}

// InsertStatementChanges writes records in batches. Records already present are
// ignored. It returns the number of rows written.
func (r *ChangeRepository) InsertStatementChanges(ctx context.Context, records []StatementChangeRecord) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("change repository: missing database context")
	}

	var written int64
	for _, batch := range chunk(mapRows(records, statementChangeToRow), r.batchSize) {
		n, err := queries.InsertStatementChanges(ctx, batch)
		if err != nil {
			return written, persistenceError("insert statement changes", err)
		}
		written += n
	}
	return written, nil
}

// ListByItem returns up to limit label-type and limit statement changes of item,
// newest first.
func (r *ChangeRepository) ListByItem(ctx context.Context, item entity.ItemID, limit int) (*ItemChanges, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("change repository: missing database context")
	}
	if limit <= 0 {
		limit = 100
	}

	labels, err := queries.ListLabelChangesByItem(ctx, int64(item), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list label changes: %w", err)
	}
	statements, err := queries.ListStatementChangesByItem(ctx, int64(item), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list statement changes: %w", err)
	}

	return &ItemChanges{
		Item:       item,
		Labels:     mapRows(labels, LabelChangeRecordFromRow),
		Statements: mapRows(statements, StatementChangeRecordFromRow),
	}, nil
}
