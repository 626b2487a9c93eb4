package database

import (
	"github.com/choplin/wdrc/internal/change"
	"github.com/choplin/wdrc/internal/entity"
)

// LabelChangeRecord represents a row in the labels table. Labels, descriptions,
// aliases and sitelinks share it; KeyID is the texts id of the language or site code.
type LabelChangeRecord struct {
	Item       entity.ItemID
	Revision   uint64
	Subject    change.Subject
	Timestamp  string
	ChangeType change.Type
	KeyID      int64
	// Key is the resolved language or site code. It is only filled on reads.
	Key string
}

// StatementChangeRecord represents a row in the statements table.
type StatementChangeRecord struct {
	Item       entity.ItemID
	Revision   uint64
	Property   entity.ItemID
	Timestamp  string
	ChangeType change.Type
}

// ItemEventRecord is a creation or deletion of an item.
type ItemEventRecord struct {
	Item      entity.ItemID
	Timestamp string
}

// RedirectRecord maps a redirected item to its target.
type RedirectRecord struct {
	Source    entity.ItemID
	Target    entity.ItemID
	Timestamp string
}

// MetaRecord is a key/value row of the meta table.
type MetaRecord struct {
	Key   string
	Value string
}

// ItemChanges collects the recorded changes of one item, newest first.
type ItemChanges struct {
	Item       entity.ItemID
	Labels     []LabelChangeRecord
	Statements []StatementChangeRecord
}
