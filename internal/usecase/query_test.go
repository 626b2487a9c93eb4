package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/choplin/wdrc/internal/change"
	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/entity"
	"github.com/choplin/wdrc/internal/services"
	"github.com/choplin/wdrc/internal/textcache"
	"github.com/choplin/wdrc/internal/watermark"
)

func TestQueryItemChanges(t *testing.T) {
	dbCtx := setupSyncDB(t)
	ctx := context.Background()

	texts := textcache.New(database.NewTextRepository(dbCtx))
	records := []change.Record{
		{Subject: change.SubjectLabels, Type: change.TypeAdded, Language: "en", Text: "x", ItemID: 42, RevisionID: 1, Timestamp: "20240101000000"},
		{Subject: change.SubjectSitelinks, Type: change.TypeChanged, Site: "enwiki", Title: "X", ItemID: 42, RevisionID: 2, Timestamp: "20240101000100"},
		{Subject: change.SubjectClaims, Type: change.TypeRemoved, Property: "P31", ClaimID: "Q42$a", ItemID: 42, RevisionID: 2, Timestamp: "20240101000100"},
	}
	if _, err := services.NewChangeLog(dbCtx, texts, 0, nil).Persist(ctx, records, watermark.StreamChanges, ""); err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}

	q := NewQuery(dbCtx)
	got, err := q.ItemChanges(ctx, "Q42", 0)
	if err != nil {
		t.Fatalf("ItemChanges returned error: %v", err)
	}
	if got.Item != 42 || len(got.Labels) != 2 || len(got.Statements) != 1 {
		t.Fatalf("unexpected changes: %+v", got)
	}
	if got.Labels[0].Key != "enwiki" || got.Labels[1].Key != "en" {
		t.Fatalf("expected newest first with resolved keys, got %+v", got.Labels)
	}

	if _, err := q.ItemChanges(ctx, "Qx", 0); !errors.Is(err, entity.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestQueryStatus(t *testing.T) {
	dbCtx := setupSyncDB(t)
	ctx := context.Background()

	if err := watermark.New(database.NewMetaRepository(dbCtx)).Set(ctx, watermark.StreamChanges, "20240101000000"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	status, err := NewQuery(dbCtx).Status(ctx)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if len(status.Streams) != len(watermark.Streams) {
		t.Fatalf("expected %d streams, got %d", len(watermark.Streams), len(status.Streams))
	}
	if status.Streams[0].Watermark != "20240101000000" || status.Streams[1].Watermark != watermark.SideStreamDefault {
		t.Fatalf("unexpected stream status: %+v", status.Streams)
	}
	for _, tc := range status.Tables {
		if tc.Table == "meta" && tc.Rows != 1 {
			t.Fatalf("expected 1 meta row, got %d", tc.Rows)
		}
	}
}
