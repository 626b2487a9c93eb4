package database

import (
	"github.com/choplin/wdrc/internal/database/sqldb"
)

const defaultBatchSize = 500

func queriesFromContext(ctx *Context) *sqldb.Queries {
	if ctx == nil {
		return nil
	}
	if ctx.Queries != nil {
		return ctx.Queries
	}
	if ctx.DB == nil {
		return nil
	}
	return sqldb.New(ctx.DB)
}

// chunk splits rows into slices of at most size elements.
func chunk[T any](rows []T, size int) [][]T {
	if size <= 0 {
		size = defaultBatchSize
	}
	var out [][]T
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}
