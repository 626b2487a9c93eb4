package sqldb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Tables lists the change store tables in creation order.
var Tables = []string{"texts", "labels", "statements", "creations", "deletions", "redirects", "meta"}

// CountRows returns the number of rows in table, which must be one of Tables.
func (q *Queries) CountRows(ctx context.Context, table string) (int64, error) {
	known := false
	for _, t := range Tables {
		if t == table {
			known = true
			break
		}
	}
	if !known {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int64
	err := sqlx.GetContext(ctx, q.db, &n, "SELECT COUNT(*) FROM "+table)
	return n, err
}

// DeleteAll empties every change store table.
func (q *Queries) DeleteAll(ctx context.Context) error {
	for i := len(Tables) - 1; i >= 0; i-- {
		if _, err := q.db.ExecContext(ctx, "DELETE FROM "+Tables[i]); err != nil {
			return fmt.Errorf("failed to delete %s: %w", Tables[i], err)
		}
	}
	return nil
}
