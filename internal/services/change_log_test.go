package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/choplin/wdrc/internal/change"
	"github.com/choplin/wdrc/internal/config"
	"github.com/choplin/wdrc/internal/database"
	"github.com/choplin/wdrc/internal/textcache"
	"github.com/choplin/wdrc/internal/watermark"
)

func setupServiceDB(t *testing.T) *database.Context {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wdrc.db")
	ctx, err := database.CreateDatabase(config.StoreConfig{Driver: config.DriverSQLite, Database: path})
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}

	t.Cleanup(func() {
		if err := database.CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})

	return ctx
}

func countRows(t *testing.T, dbCtx *database.Context, table string) int {
	t.Helper()
	var n int
	if err := dbCtx.DB.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestChangeLogPersist(t *testing.T) {
	dbCtx := setupServiceDB(t)
	ctx := context.Background()
	texts := textcache.New(database.NewTextRepository(dbCtx))
	log := NewChangeLog(dbCtx, texts, 2, nil)

	records := []change.Record{
		{Subject: change.SubjectLabels, Type: change.TypeAdded, Language: "de", Text: "neu", ItemID: 7, RevisionID: 101, Timestamp: "20240101000100"},
		{Subject: change.SubjectAliases, Type: change.TypeRemoved, Language: "de", Text: "alt", ItemID: 7, RevisionID: 101, Timestamp: "20240101000100"},
		{Subject: change.SubjectSitelinks, Type: change.TypeChanged, Site: "dewiki", Title: "Neu", ItemID: 7, RevisionID: 101, Timestamp: "20240101000100"},
		{Subject: change.SubjectClaims, Type: change.TypeAdded, Property: "P31", ClaimID: "Q7$x", ItemID: 7, RevisionID: 101, Timestamp: "20240101000100"},
		{Subject: change.SubjectClaims, Type: change.TypeAdded, Property: "bogus", ClaimID: "Q7$y", ItemID: 7, RevisionID: 101, Timestamp: "20240101000100"},
	}

	result, err := log.Persist(ctx, records, watermark.StreamChanges, "20240101000100")
	if err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}
	if result.Labels != 3 || result.Statements != 1 || result.Skipped != 1 || !result.Advanced {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := countRows(t, dbCtx, "texts"); got != 2 {
		t.Fatalf("expected 2 interned texts (de, dewiki), got %d", got)
	}

	mark, err := watermark.New(database.NewMetaRepository(dbCtx)).Get(ctx, watermark.StreamChanges)
	if err != nil || mark != "20240101000100" {
		t.Fatalf("expected advanced watermark, got %q (%v)", mark, err)
	}

	changes, err := database.NewChangeRepository(dbCtx, 0).ListByItem(ctx, 7, 10)
	if err != nil {
		t.Fatalf("ListByItem returned error: %v", err)
	}
	keys := map[string]bool{}
	for _, l := range changes.Labels {
		keys[l.Key] = true
	}
	if !keys["de"] || !keys["dewiki"] {
		t.Fatalf("expected de and dewiki keys, got %v", keys)
	}
	if len(changes.Statements) != 1 || changes.Statements[0].Property != 31 {
		t.Fatalf("unexpected statements %#v", changes.Statements)
	}

	again, err := log.Persist(ctx, records, watermark.StreamChanges, "20240101000000")
	if err != nil {
		t.Fatalf("second Persist returned error: %v", err)
	}
	if again.Labels != 0 || again.Statements != 0 || again.Advanced {
		t.Fatalf("expected re-processing to be ignored, got %+v", again)
	}
	if got := countRows(t, dbCtx, "texts"); got != 2 {
		t.Fatalf("expected no new texts, got %d", got)
	}
}

func TestChangeLogPersistEmptyMarkKeepsWatermark(t *testing.T) {
	dbCtx := setupServiceDB(t)
	ctx := context.Background()
	log := NewChangeLog(dbCtx, textcache.New(database.NewTextRepository(dbCtx)), 0, nil)

	result, err := log.Persist(ctx, nil, watermark.StreamChanges, "")
	if err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}
	if result.Advanced {
		t.Fatalf("expected watermark to stay untouched")
	}
	if got := countRows(t, dbCtx, "meta"); got != 0 {
		t.Fatalf("expected no meta rows, got %d", got)
	}
}

func TestChangeLogPersistFailureKeepsWatermark(t *testing.T) {
	dbCtx := setupServiceDB(t)
	ctx := context.Background()
	texts := textcache.New(database.NewTextRepository(dbCtx))
	if err := texts.Warm(ctx); err != nil {
		t.Fatalf("Warm returned error: %v", err)
	}
	if _, err := dbCtx.DB.Exec("DROP TABLE statements"); err != nil {
		t.Fatalf("drop statements: %v", err)
	}
	log := NewChangeLog(dbCtx, texts, 0, nil)

	records := []change.Record{
		{Subject: change.SubjectLabels, Type: change.TypeAdded, Language: "en", ItemID: 1, RevisionID: 2, Timestamp: "20240101000000"},
		{Subject: change.SubjectClaims, Type: change.TypeAdded, Property: "P1", ItemID: 1, RevisionID: 2, Timestamp: "20240101000000"},
	}
	_, err := log.Persist(ctx, records, watermark.StreamChanges, "20240101000000")
	if !errors.Is(err, database.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if got := countRows(t, dbCtx, "labels"); got != 0 {
		t.Fatalf("expected label insert to roll back, got %d rows", got)
	}
	if got := countRows(t, dbCtx, "meta"); got != 0 {
		t.Fatalf("expected watermark to stay unset, got %d meta rows", got)
	}
}
