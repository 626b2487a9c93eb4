package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// MetaRepository stores key/value pairs such as watermarks.
type MetaRepository struct {
	ctx *Context
}

func NewMetaRepository(dbCtx *Context) *MetaRepository {
	return &MetaRepository{ctx: dbCtx}
}

// Get returns ErrNotFound when key has never been set.
func (r *MetaRepository) Get(ctx context.Context, key string) (string, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return "", fmt.Errorf("meta repository: missing database context")
	}

	value, err := queries.GetMeta(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *MetaRepository) Set(ctx context.Context, key, value string) error {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return fmt.Errorf("meta repository: missing database context")
	}

	if err := queries.SetMeta(ctx, key, value); err != nil {
		return persistenceError("set meta "+key, err)
	}
	return nil
}

func (r *MetaRepository) List(ctx context.Context) ([]MetaRecord, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, fmt.Errorf("meta repository: missing database context")
	}

	rows, err := queries.ListMeta(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]MetaRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, MetaRecord{Key: row.Key, Value: row.Value})
	}
	return result, nil
}
