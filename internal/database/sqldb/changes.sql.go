package sqldb

import (
	"context"

	"github.com/jmoiron/sqlx"
)

const deleteDeletions = `DELETE FROM deletions WHERE q IN (?)`

// DeleteDeletions removes the deletion rows of re-created items.
func (q *Queries) DeleteDeletions(ctx context.Context, items []int64) (int64, error) {
	perStatement := q.rowsPerStatement(1)
	var deleted int64
	for start := 0; start < len(items); start += perStatement {
		end := min(start+perStatement, len(items))
		query, args, err := sqlx.In(deleteDeletions, items[start:end])
		if err != nil {
			return deleted, err
		}
		res, err := q.db.ExecContext(ctx, q.rebind(query), args...)
		if err != nil {
			return deleted, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}

const listLabelChangesByItem = `SELECT l.item, l.revision, l.type, l.timestamp, l.change_type, l.language,
       COALESCE(t.value, '') AS key
FROM labels l
LEFT JOIN texts t ON t.id = l.language
WHERE l.item = ?
ORDER BY l.timestamp DESC, l.revision DESC, l.type, l.change_type, l.language
LIMIT ?`

func (q *Queries) ListLabelChangesByItem(ctx context.Context, item int64, limit int) ([]LabelChangeView, error) {
	var rows []LabelChangeView
	if err := sqlx.SelectContext(ctx, q.db, &rows, q.rebind(listLabelChangesByItem), item, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

const listStatementChangesByItem = `SELECT item, revision, property, timestamp, change_type
FROM statements
WHERE item = ?
ORDER BY timestamp DESC, revision DESC, property, change_type
LIMIT ?`

func (q *Queries) ListStatementChangesByItem(ctx context.Context, item int64, limit int) ([]StatementChange, error) {
	var rows []StatementChange
	if err := sqlx.SelectContext(ctx, q.db, &rows, q.rebind(listStatementChangesByItem), item, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

const getCreation = `SELECT q, timestamp FROM creations WHERE q = ?`

// GetCreation returns sql.ErrNoRows when the item has no creation row.
func (q *Queries) GetCreation(ctx context.Context, item int64) (ItemEvent, error) {
	var row ItemEvent
	err := sqlx.GetContext(ctx, q.db, &row, q.rebind(getCreation), item)
	return row, err
}

const getDeletion = `SELECT q, timestamp FROM deletions WHERE q = ?`

// GetDeletion returns sql.ErrNoRows when the item has no deletion row.
func (q *Queries) GetDeletion(ctx context.Context, item int64) (ItemEvent, error) {
	var row ItemEvent
	err := sqlx.GetContext(ctx, q.db, &row, q.rebind(getDeletion), item)
	return row, err
}

const getRedirect = `SELECT source, target, timestamp FROM redirects WHERE source = ?`

// GetRedirect returns sql.ErrNoRows when the item is not a redirect source.
func (q *Queries) GetRedirect(ctx context.Context, source int64) (Redirect, error) {
	var row Redirect
	err := sqlx.GetContext(ctx, q.db, &row, q.rebind(getRedirect), source)
	return row, err
}
