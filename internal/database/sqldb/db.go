// Package sqldb holds the SQL statements of the change store. Statements are written
// with ? placeholders and rebound to the driver's bindvar style at execution time.
package sqldb

import (
	"github.com/jmoiron/sqlx"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx.
type DBTX interface {
	sqlx.ExtContext
}

// Queries wraps a DBTX and exposes the change store statements.
type Queries struct {
	db DBTX
}

// New constructs a Queries helper around the provided DB interface.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of the Queries helper scoped to the supplied transaction.
func (q *Queries) WithTx(tx *sqlx.Tx) *Queries {
	return &Queries{db: tx}
}

func (q *Queries) rebind(query string) string {
	return q.db.Rebind(query)
}
