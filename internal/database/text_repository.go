package database

import (
	"context"
	"fmt"
)

// TextRepository reads and appends rows of the texts interning table.
type TextRepository struct {
	ctx *Context
}

func NewTextRepository(dbCtx *Context) *TextRepository {
	return &TextRepository{ctx: dbCtx}
}

// LoadAll returns every interned text keyed by value. When a value was stored more
// than once the lowest id wins.
func (r *TextRepository) LoadAll(ctx context.Context) (map[string]int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("text repository: missing database context")
	}

	rows, err := queries.ListTexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load texts: %w", err)
	}

	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		if _, seen := result[row.Value]; !seen {
			result[row.Value] = row.ID
		}
	}
	return result, nil
}

// Insert appends value and returns its assigned id.
func (r *TextRepository) Insert(ctx context.Context, value string) (int64, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return 0, fmt.Errorf("text repository: missing database context")
	}

	id, err := queries.InsertText(ctx, value)
	if err != nil {
		return 0, persistenceError("insert text", err)
	}
	return id, nil
}
