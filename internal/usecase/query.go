package usecase

import (
	"context"
	"fmt"

	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/entity"
	"github.com/choplin/wdrc/internal/watermark"
)

// DefaultChangeLimit caps the rows returned per change table by ItemChanges.
const DefaultChangeLimit = 50

// Query answers read-only questions about the change store.
type Query struct {
	dbCtx *database.Context
}

func NewQuery(dbCtx *database.Context) *Query {
	return &Query{dbCtx: dbCtx}
}

// ItemChanges returns the newest recorded changes of the item named by title, e.g. "Q42".
func (q *Query) ItemChanges(ctx context.Context, title string, limit int) (*database.ItemChanges, error) {
	id, err := entity.ParseID(title)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultChangeLimit
	}
	return database.NewChangeRepository(q.dbCtx, 0).ListByItem(ctx, id, limit)
}

// StreamStatus is the watermark of one stream.
type StreamStatus struct {
	Stream    watermark.Stream
	Watermark string
}

// Status is a snapshot of sync progress.
type Status struct {
	Streams []StreamStatus
	Tables  []database.TableCount
}

// Status returns every watermark and the row count of every table.
func (q *Query) Status(ctx context.Context) (*Status, error) {
	marks, err := watermark.New(database.NewMetaRepository(q.dbCtx)).All(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := database.NewStatusRepository(q.dbCtx).Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	status := &Status{Tables: counts}
	for _, stream := range watermark.Streams {
		status.Streams = append(status.Streams, StreamStatus{Stream: stream, Watermark: marks[stream]})
	}
	return status, nil
}
