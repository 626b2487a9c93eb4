package sqldb

import (
	"context"

	"github.com/jmoiron/sqlx"
)

const getMeta = `SELECT value FROM meta WHERE key = ?`

// GetMeta returns sql.ErrNoRows when key is not set.
func (q *Queries) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := sqlx.GetContext(ctx, q.db, &value, q.rebind(getMeta), key)
	return value, err
}

const setMeta = `INSERT INTO meta (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`

func (q *Queries) SetMeta(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, q.rebind(setMeta), key, value)
	return err
}

const listMeta = `SELECT key, value FROM meta ORDER BY key`

func (q *Queries) ListMeta(ctx context.Context) ([]Meta, error) {
	var rows []Meta
	if err := sqlx.SelectContext(ctx, q.db, &rows, listMeta); err != nil {
		return nil, err
	}
	return rows, nil
}
