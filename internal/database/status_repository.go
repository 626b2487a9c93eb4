package database

import (
	"context"
	"fmt"

	"github.com/choplin/wdrc/internal/database/sqldb"
)

// TableCount is the row count of one change store table.
type TableCount struct {
	Table string
	Rows  int64
}

// StatusRepository reports table sizes for operators.
type StatusRepository struct {
	ctx *Context
}

func NewStatusRepository(dbCtx *Context) *StatusRepository {
	return &StatusRepository{ctx: dbCtx}
}

// Counts returns the row count of every table in creation order.
func (r *StatusRepository) Counts(ctx context.Context) ([]TableCount, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("status repository: missing database context")
	}

	counts := make([]TableCount, 0, len(sqldb.Tables))
	for _, table := range sqldb.Tables {
		n, err := queries.CountRows(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts = append(counts, TableCount{Table: table, Rows: n})
	}
	return counts, nil
}
