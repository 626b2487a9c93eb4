package sqldb

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Bind variable limits of one statement: SQLite's default SQLITE_MAX_VARIABLE_NUMBER
// and the 16-bit parameter count of the Postgres protocol.
const (
	sqliteMaxVariables   = 32766
	postgresMaxVariables = 65535
)

func (q *Queries) maxVariables() int {
	if sqlx.BindType(q.db.DriverName()) == sqlx.DOLLAR {
		return postgresMaxVariables
	}
	return sqliteMaxVariables
}

// rowsPerStatement is the largest row count whose placeholders fit in one statement.
func (q *Queries) rowsPerStatement(columns int) int {
	return max(1, q.maxVariables()/max(1, columns))
}

// buildInsert renders a multi-row INSERT with one placeholder group per row.
func buildInsert(table string, columns []string, rows int, suffix string) string {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(group)
	}
	if suffix != "" {
		b.WriteString(" ")
		b.WriteString(suffix)
	}
	return b.String()
}

// execBatch inserts rows, splitting them over as many statements as the driver's bind
// variable limit requires. It returns the total number of rows affected.
func (q *Queries) execBatch(ctx context.Context, table string, columns []string, suffix string, rows int, args []any) (int64, error) {
	perStatement := q.rowsPerStatement(len(columns))
	var written int64
	for start := 0; start < rows; start += perStatement {
		end := min(start+perStatement, rows)
		query := q.rebind(buildInsert(table, columns, end-start, suffix))
		res, err := q.db.ExecContext(ctx, query, args[start*len(columns):end*len(columns)]...)
		if err != nil {
			return written, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

const ignoreDuplicates = "ON CONFLICT DO NOTHING"

var labelColumns = []string{"item", "revision", "type", "timestamp", "change_type", "language"}

// InsertLabelChanges inserts rows, in one statement unless the bind variable limit
// forces a split. Rows whose primary key already exists are dropped. It returns the number of rows written.
func (q *Queries) InsertLabelChanges(ctx context.Context, rows []LabelChange) (int64, error) {
	args := make([]any, 0, len(rows)*len(labelColumns))
	for _, r := range rows {
		args = append(args, r.Item, r.Revision, r.Type, r.Timestamp, r.ChangeType, r.Language)
	}
	return q.execBatch(ctx, "labels", labelColumns, ignoreDuplicates, len(rows), args)
}

var statementColumns = []string{"item", "revision", "property", "timestamp", "change_type"}

// InsertStatementChanges inserts rows, dropping duplicates.
func (q *Queries) InsertStatementChanges(ctx context.Context, rows []StatementChange) (int64, error) {
	args := make([]any, 0, len(rows)*len(statementColumns))
	for _, r := range rows {
		args = append(args, r.Item, r.Revision, r.Property, r.Timestamp, r.ChangeType)
	}
	return q.execBatch(ctx, "statements", statementColumns, ignoreDuplicates, len(rows), args)
}

var itemEventColumns = []string{"q", "timestamp"}

const upsertItemEvent = "ON CONFLICT (q) DO UPDATE SET timestamp = excluded.timestamp"

func (q *Queries) UpsertCreations(ctx context.Context, rows []ItemEvent) (int64, error) {
	return q.upsertItemEvents(ctx, "creations", rows)
}

func (q *Queries) UpsertDeletions(ctx context.Context, rows []ItemEvent) (int64, error) {
	return q.upsertItemEvents(ctx, "deletions", rows)
}

func (q *Queries) upsertItemEvents(ctx context.Context, table string, rows []ItemEvent) (int64, error) {
	args := make([]any, 0, len(rows)*len(itemEventColumns))
	for _, r := range rows {
		args = append(args, r.Q, r.Timestamp)
	}
	return q.execBatch(ctx, table, itemEventColumns, upsertItemEvent, len(rows), args)
}

var redirectColumns = []string{"source", "target", "timestamp"}

const upsertRedirect = "ON CONFLICT (source) DO UPDATE SET target = excluded.target, timestamp = excluded.timestamp"

func (q *Queries) UpsertRedirects(ctx context.Context, rows []Redirect) (int64, error) {
	args := make([]any, 0, len(rows)*len(redirectColumns))
	for _, r := range rows {
		args = append(args, r.Source, r.Target, r.Timestamp)
	}
	return q.execBatch(ctx, "redirects", redirectColumns, upsertRedirect, len(rows), args)
}
