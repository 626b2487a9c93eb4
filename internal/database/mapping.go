package database

import (
	"github.com/choplin/wdrc/internal/change"
	"github.com/choplin/wdrc/internal/database/sqldb"
	"github.com/choplin/wdrc/internal/entity"
)

func labelChangeToRow(r LabelChangeRecord) sqldb.LabelChange {
	return sqldb.LabelChange{
		Item:       int64(r.Item),
		Revision:   int64(r.Revision),
		Type:       r.Subject.String(),
		Timestamp:  r.Timestamp,
		ChangeType: r.ChangeType.String(),
		Language:   r.KeyID,
	}
}

// LabelChangeRecordFromRow converts a resolved labels row to a LabelChangeRecord.
func LabelChangeRecordFromRow(row sqldb.LabelChangeView) LabelChangeRecord {
	return LabelChangeRecord{
		Item:       entity.ItemID(row.Item),
		Revision:   uint64(row.Revision),
		Subject:    change.Subject(row.Type),
		Timestamp:  row.Timestamp,
		ChangeType: change.Type(row.ChangeType),
		KeyID:      row.Language,
		Key:        row.Key,
	}
}

func statementChangeToRow(r StatementChangeRecord) sqldb.StatementChange {
	return sqldb.StatementChange{
		Item:       int64(r.Item),
		Revision:   int64(r.Revision),
		Property:   int64(r.Property),
		Timestamp:  r.Timestamp,
		ChangeType: r.ChangeType.String(),
	}
}

// StatementChangeRecordFromRow converts a statements row to a StatementChangeRecord.
func StatementChangeRecordFromRow(row sqldb.StatementChange) StatementChangeRecord {
	return StatementChangeRecord{
		Item:       entity.ItemID(row.Item),
		Revision:   uint64(row.Revision),
		Property:   entity.ItemID(row.Property),
		Timestamp:  row.Timestamp,
		ChangeType: change.Type(row.ChangeType),
	}
}

func itemEventToRow(r ItemEventRecord) sqldb.ItemEvent {
	return sqldb.ItemEvent{Q: int64(r.Item), Timestamp: r.Timestamp}
}

func itemEventRecordFromRow(row sqldb.ItemEvent) ItemEventRecord {
	return ItemEventRecord{Item: entity.ItemID(row.Q), Timestamp: row.Timestamp}
}

func redirectToRow(r RedirectRecord) sqldb.Redirect {
	return sqldb.Redirect{Source: int64(r.Source), Target: int64(r.Target), Timestamp: r.Timestamp}
}

func redirectRecordFromRow(row sqldb.Redirect) RedirectRecord {
	return RedirectRecord{
		Source:    entity.ItemID(row.Source),
		Target:    entity.ItemID(row.Target),
		Timestamp: row.Timestamp,
	}
}

func mapRows[R, T any](rows []R, fn func(R) T) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		out = append(out, fn(row))
	}
	return out
}
