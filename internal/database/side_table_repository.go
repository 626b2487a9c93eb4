package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/choplin/wdrc/internal/entity"
)

// SideTableRepository maintains the creations, deletions and redirects tables.
type SideTableRepository struct {
	ctx       *Context
	batchSize int
}

func NewSideTableRepository(dbCtx *Context, batchSize int) *SideTableRepository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &SideTableRepository{ctx: dbCtx, batchSize: batchSize}
}

func (r *SideTableRepository) UpsertCreations(ctx context.Context, records []ItemEventRecord) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("side table repository: missing database context")
	}

	var written int64
	for _, batch := range chunk(mapRows(lastItemEvents(records), itemEventToRow), r.batchSize) {
		n, err := queries.UpsertCreations(ctx, batch)
		if err != nil {
			return written, persistenceError("upsert creations", err)
		}
		written += n
	}
	return written, nil
}

func (r *SideTableRepository) UpsertDeletions(ctx context.Context, records []ItemEventRecord) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("side table repository: missing database context")
	}

	var written int64
	for _, batch := range chunk(mapRows(lastItemEvents(records), itemEventToRow), r.batchSize) {
		n, err := queries.UpsertDeletions(ctx, batch)
		if err != nil {
			return written, persistenceError("upsert deletions", err)
		}
		written += n
	}
	return written, nil
}

// DeleteDeletions removes the deletion rows of items. It returns the number removed.
func (r *SideTableRepository) DeleteDeletions(ctx context.Context, items []entity.ItemID) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("side table repository: missing database context")
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, int64(item))
	}

	var removed int64
	for _, batch := range chunk(ids, r.batchSize) {
		n, err := queries.DeleteDeletions(ctx, batch)
		if err != nil {
			return removed, persistenceError("delete deletions", err)
		}
		removed += n
	}
	return removed, nil
}

func (r *SideTableRepository) UpsertRedirects(ctx context.Context, records []RedirectRecord) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("side table repository: missing database context")
	}

	var written int64
	for _, batch := range chunk(mapRows(lastRedirects(records), redirectToRow), r.batchSize) {
		n, err := queries.UpsertRedirects(ctx, batch)
		if err != nil {
			return written, persistenceError("upsert redirects", err)
		}
		written += n
	}
	return written, nil
}

// FindCreation returns nil when item has no creation row.
func (r *SideTableRepository) FindCreation(ctx context.Context, item entity.ItemID) (*ItemEventRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("side table repository: missing database context")
	}

	row, err := queries.GetCreation(ctx, int64(item))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	record := itemEventRecordFromRow(row)
	return &record, nil
}

// FindDeletion returns nil when item has no deletion row.
func (r *SideTableRepository) FindDeletion(ctx context.Context, item entity.ItemID) (*ItemEventRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("side table repository: missing database context")
	}

	row, err := queries.GetDeletion(ctx, int64(item))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	record := itemEventRecordFromRow(row)
	return &record, nil
}

// FindRedirect returns nil when item is not a redirect source.
func (r *SideTableRepository) FindRedirect(ctx context.Context, item entity.ItemID) (*RedirectRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("side table repository: missing database context")
	}

	row, err := queries.GetRedirect(ctx, int64(item))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	record := redirectRecordFromRow(row)
	return &record, nil
}

// lastItemEvents keeps the last record per item. An upsert may not touch the same
// key twice in one statement.
func lastItemEvents(records []ItemEventRecord) []ItemEventRecord {
	index := make(map[entity.ItemID]int, len(records))
	out := make([]ItemEventRecord, 0, len(records))
	for _, r := range records {
		if i, seen := index[r.Item]; seen {
			out[i] = r
			continue
		}
		index[r.Item] = len(out)
		out = append(out, r)
	}
	return out
}

func lastRedirects(records []RedirectRecord) []RedirectRecord {
	index := make(map[entity.ItemID]int, len(records))
	out := make([]RedirectRecord, 0, len(records))
	for _, r := range records {
		if i, seen := index[r.Source]; seen {
			out[i] = r
			continue
		}
		index[r.Source] = len(out)
		out = append(out, r)
	}
	return out
}
