package watermark

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/choplin/wdrc/internal/config"
	"github.com/choplin/wdrc/internal/database"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wdrc.db")
	dbCtx, err := database.CreateDatabase(config.StoreConfig{Driver: config.DriverSQLite, Database: path})
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() {
		if err := database.CloseDatabase(dbCtx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})
	return New(database.NewMetaRepository(dbCtx))
}

func TestStoreDefaults(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	tests := map[Stream]string{
		StreamChanges:   "",
		StreamRedirects: "20000101000000",
		StreamDeletions: "20000101000000",
	}
	for stream, want := range tests {
		got, err := store.Get(ctx, stream)
		if err != nil {
			t.Fatalf("Get(%s) returned error: %v", stream, err)
		}
		if got != want {
			t.Fatalf("Get(%s) = %q, want %q", stream, got, want)
		}
	}
}

func TestStoreAdvanceIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	steps := []struct {
		value   string
		written bool
		want    string
	}{
		{value: "20240101000000", written: true, want: "20240101000000"},
		{value: "20231231235959", written: false, want: "20240101000000"},
		{value: "20240101000000", written: false, want: "20240101000000"},
		{value: "20240101000500", written: true, want: "20240101000500"},
	}
	for _, step := range steps {
		written, err := store.Advance(ctx, StreamChanges, step.value)
		if err != nil {
			t.Fatalf("Advance(%q) returned error: %v", step.value, err)
		}
		if written != step.written {
			t.Fatalf("Advance(%q) wrote=%v, want %v", step.value, written, step.written)
		}
		got, err := store.Get(ctx, StreamChanges)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if got != step.want {
			t.Fatalf("after Advance(%q) got %q, want %q", step.value, got, step.want)
		}
	}
}

func TestStoreSetOverridesAndValidates(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	if _, err := store.Advance(ctx, StreamDeletions, "20240601000000"); err != nil {
		t.Fatalf("Advance returned error: %v", err)
	}
	if err := store.Set(ctx, StreamDeletions, "20240101000000"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if got, _ := store.Get(ctx, StreamDeletions); got != "20240101000000" {
		t.Fatalf("expected Set to rewind, got %q", got)
	}
	if err := store.Set(ctx, StreamDeletions, "yesterday"); err == nil {
		t.Fatalf("expected error for malformed timestamp")
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All returned error: %v", err)
	}
	if len(all) != 3 || all[StreamDeletions] != "20240101000000" || all[StreamRedirects] != SideStreamDefault {
		t.Fatalf("unexpected watermarks %v", all)
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		low      string
		wantHigh string
	}{
		{low: "20240101000000", wantHigh: "20240101010000"},
		{low: "20241231233000", wantHigh: "20250101003000"},
		{low: "", wantHigh: OpenUpperBound},
		{low: "garbage", wantHigh: OpenUpperBound},
	}
	for _, tt := range tests {
		low, high := Window(tt.low)
		if low != tt.low || high != tt.wantHigh {
			t.Fatalf("Window(%q) = (%q, %q), want (%q, %q)", tt.low, low, high, tt.low, tt.wantHigh)
		}
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2024, 2, 29, 13, 4, 5, 0, time.FixedZone("x", 3600))
	if got := FormatTimestamp(ts); got != "20240229120405" {
		t.Fatalf("FormatTimestamp = %q", got)
	}
	parsed, err := ParseTimestamp("20240229120405")
	if err != nil || !parsed.Equal(ts) {
		t.Fatalf("ParseTimestamp = %v (%v)", parsed, err)
	}
}

func TestParseStream(t *testing.T) {
	for _, name := range []string{"changes", "timestamp"} {
		if s, err := ParseStream(name); err != nil || s != StreamChanges {
			t.Fatalf("ParseStream(%q) = %q, %v", name, s, err)
		}
	}
	if s, err := ParseStream("redirects"); err != nil || s != StreamRedirects {
		t.Fatalf("ParseStream(redirects) = %q, %v", s, err)
	}
	if s, err := ParseStream("timestamp_deletion"); err != nil || s != StreamDeletions {
		t.Fatalf("ParseStream(timestamp_deletion) = %q, %v", s, err)
	}
	if _, err := ParseStream("labels"); !errors.Is(err, ErrUnknownStream) {
		t.Fatalf("expected ErrUnknownStream, got %v", err)
	}
}
