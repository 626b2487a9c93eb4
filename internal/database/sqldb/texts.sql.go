package sqldb

import (
	"context"

	"github.com/jmoiron/sqlx"
)

const listTexts = `SELECT id, value FROM texts ORDER BY id`

func (q *Queries) ListTexts(ctx context.Context) ([]Text, error) {
	var rows []Text
	if err := sqlx.SelectContext(ctx, q.db, &rows, listTexts); err != nil {
		return nil, err
	}
	return rows, nil
}

const insertText = `INSERT INTO texts (value) VALUES (?) RETURNING id`

func (q *Queries) InsertText(ctx context.Context, value string) (int64, error) {
	var id int64
	err := q.db.QueryRowxContext(ctx, q.rebind(insertText), value).Scan(&id)
	return id, err
}
