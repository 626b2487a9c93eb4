// Package watermark stores the per-stream progress timestamps of the sync loop.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/choplin/wdrc/internal/database"
)

// Stream is the meta key of a watermark.
type Stream string

const (
	StreamChanges   Stream = "timestamp"
	StreamRedirects Stream = "timestamp_redirect"
	StreamDeletions Stream = "timestamp_deletion"
)

// Streams lists every watermark stream.
var Streams = []Stream{StreamChanges, StreamRedirects, StreamDeletions}

const (
	// Layout is the MediaWiki timestamp format.
	Layout = "20060102150405"
	// OpenUpperBound closes the query window when the watermark is not a timestamp.
	OpenUpperBound = "99991231235900"
	// SideStreamDefault is the start of the redirects and deletions streams.
	SideStreamDefault = "20000101000000"
	// WindowSpan is the width of one main-stream query window.
	WindowSpan = time.Hour
)

// ErrUnknownStream is returned for a stream name that is not a watermark.
var ErrUnknownStream = errors.New("unknown watermark stream")

// ParseStream accepts a meta key or its short name (changes, redirects, deletions).
func ParseStream(name string) (Stream, error) {
	switch name {
	case string(StreamChanges), "changes":
		return StreamChanges, nil
	case string(StreamRedirects), "redirects":
		return StreamRedirects, nil
	case string(StreamDeletions), "deletions":
		return StreamDeletions, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStream, name)
	}
}

// Default is the value of a stream that was never written.
func (s Stream) Default() string {
	if s == StreamChanges {
		return ""
	}
	return SideStreamDefault
}

// Meta is the key/value table watermarks live in.
type Meta interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Store reads and advances watermarks.
type Store struct {
	meta Meta
}

func New(meta Meta) *Store {
	return &Store{meta: meta}
}

// Get returns the stream's watermark or its default when unset.
func (s *Store) Get(ctx context.Context, stream Stream) (string, error) {
	value, err := s.meta.Get(ctx, string(stream))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return stream.Default(), nil
		}
		return "", fmt.Errorf("failed to read watermark %s: %w", stream, err)
	}
	return value, nil
}

// Advance writes value when it is later than the current watermark. It reports
// whether a write happened.
func (s *Store) Advance(ctx context.Context, stream Stream, value string) (bool, error) {
	current, err := s.Get(ctx, stream)
	if err != nil {
		return false, err
	}
	if value <= current {
		return false, nil
	}
	if err := s.meta.Set(ctx, string(stream), value); err != nil {
		return false, err
	}
	return true, nil
}

// Set overwrites the watermark, including moving it backwards. value must be a
// timestamp in Layout.
func (s *Store) Set(ctx context.Context, stream Stream, value string) error {
	if _, err := ParseTimestamp(value); err != nil {
		return err
	}
	return s.meta.Set(ctx, string(stream), value)
}

// All returns every stream's watermark keyed by stream.
func (s *Store) All(ctx context.Context) (map[Stream]string, error) {
	out := make(map[Stream]string, len(Streams))
	for _, stream := range Streams {
		value, err := s.Get(ctx, stream)
		if err != nil {
			return nil, err
		}
		out[stream] = value
	}
	return out, nil
}

// Window returns the query bounds for a main-stream watermark: one WindowSpan from
// low, or up to OpenUpperBound when low is not a timestamp.
func Window(low string) (string, string) {
	t, err := ParseTimestamp(low)
	if err != nil {
		return low, OpenUpperBound
	}
	return low, FormatTimestamp(t.Add(WindowSpan))
}

// ParseTimestamp parses a UTC timestamp in Layout.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return t, nil
}

// FormatTimestamp renders t in UTC using Layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(Layout)
}
