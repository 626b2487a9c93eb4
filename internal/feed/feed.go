// Package feed reads recent changes, redirects and deletions from a MediaWiki
// database replica.
package feed

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/choplin/wdrc/internal/config"
	"github.com/choplin/wdrc/internal/recentchanges"

	// Register database/sql drivers.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Redirect is an item page that now redirects to another item.
type Redirect struct {
	Source    string `db:"source"`
	Target    string `db:"target"`
	Timestamp string `db:"timestamp"`
}

// Deletion is a deleted item page.
type Deletion struct {
	Title     string `db:"q"`
	Timestamp string `db:"timestamp"`
}

// Feed is the read-only upstream change source.
type Feed interface {
	RecentChanges(ctx context.Context, low, high string, limit int) ([]recentchanges.Event, error)
	RecentRedirects(ctx context.Context, low string) ([]Redirect, error)
	RecentDeletions(ctx context.Context, low string) ([]Deletion, error)
}

// SQLFeed queries the recentchanges, redirect and logging tables.
type SQLFeed struct {
	db *sqlx.DB
}

// Open connects to the replica described by store.
func Open(ctx context.Context, store config.StoreConfig) (*SQLFeed, error) {
	driver := store.Driver
	if driver == "" {
		driver = config.DriverMySQL
		store.Driver = driver
	}
	dsn, err := store.DataSourceName()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping feed database: %w", err)
	}
	return NewSQLFeed(db), nil
}

func NewSQLFeed(db *sqlx.DB) *SQLFeed {
	return &SQLFeed{db: db}
}

func (f *SQLFeed) Close() error {
	if f == nil || f.db == nil {
		return nil
	}
	return f.db.Close()
}

type changeRow struct {
	ID        int64  `db:"rc_id"`
	Timestamp string `db:"rc_timestamp"`
	Title     string `db:"rc_title"`
	IsNew     bool   `db:"rc_new"`
	ThisOldID uint64 `db:"rc_this_oldid"`
	LastOldID uint64 `db:"rc_last_oldid"`
}

const recentChangesQuery = `SELECT rc_id, rc_timestamp, rc_title, rc_new, rc_this_oldid, rc_last_oldid
FROM recentchanges
WHERE rc_namespace = 0 AND rc_timestamp >= ? AND rc_timestamp <= ?
ORDER BY rc_timestamp, rc_title, rc_id
LIMIT ?`

// RecentChanges returns up to limit main-namespace changes with low <= timestamp <=
// high, ordered by timestamp, title and row id. Rows without a revision, such as log
// entries, are dropped.
func (f *SQLFeed) RecentChanges(ctx context.Context, low, high string, limit int) ([]recentchanges.Event, error) {
	var rows []changeRow
	if err := f.db.SelectContext(ctx, &rows, f.db.Rebind(recentChangesQuery), low, high, limit); err != nil {
		return nil, fmt.Errorf("failed to query recent changes: %w", err)
	}

	events := make([]recentchanges.Event, 0, len(rows))
	for _, row := range rows {
		if !row.IsNew && row.ThisOldID == 0 {
			continue
		}
		events = append(events, recentchanges.Event{
			Title:       row.Title,
			Timestamp:   row.Timestamp,
			IsNew:       row.IsNew,
			OldRevision: row.LastOldID,
			NewRevision: row.ThisOldID,
		})
	}
	return events, nil
}

const recentRedirectsQuery = `SELECT rc_title AS source, rd_title AS target, MAX(rc_timestamp) AS timestamp
FROM recentchanges, redirect
WHERE rc_namespace = 0 AND rd_from = rc_cur_id AND rd_namespace = 0 AND rc_timestamp >= ?
GROUP BY rc_title, rd_title`

// RecentRedirects returns item pages changed since low that are redirects, with
// the latest change timestamp per source and target.
func (f *SQLFeed) RecentRedirects(ctx context.Context, low string) ([]Redirect, error) {
	var rows []Redirect
	if err := f.db.SelectContext(ctx, &rows, f.db.Rebind(recentRedirectsQuery), low); err != nil {
		return nil, fmt.Errorf("failed to query recent redirects: %w", err)
	}
	return rows, nil
}

const recentDeletionsQuery = `SELECT log_title AS q, log_timestamp AS timestamp
FROM logging
WHERE log_type = 'delete' AND log_action = 'delete' AND log_timestamp >= ? AND log_namespace = 0`

// RecentDeletions returns item pages deleted since low.
func (f *SQLFeed) RecentDeletions(ctx context.Context, low string) ([]Deletion, error) {
	var rows []Deletion
	if err := f.db.SelectContext(ctx, &rows, f.db.Rebind(recentDeletionsQuery), low); err != nil {
		return nil, fmt.Errorf("failed to query recent deletions: %w", err)
	}
	return rows, nil
}
