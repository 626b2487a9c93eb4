// Package recentchanges folds raw feed rows into per-item work units.
package recentchanges

import "sort"

// Event is one row of the upstream recent-changes feed.
type Event struct {
	Title       string
	Timestamp   string
	IsNew       bool
	OldRevision uint64
	NewRevision uint64
}

// NewItem is an item created within the polled window.
type NewItem struct {
	Title     string
	Timestamp string
}

// ChangedItem spans all edits of one item within the polled window.
type ChangedItem struct {
	Title       string
	OldRevision uint64
	NewRevision uint64
	Timestamp   string
}

// Result holds the work units of one batch, each sorted by title.
type Result struct {
	NewItems     []NewItem
	ChangedItems []ChangedItem
}

// Aggregate splits events into creations and edits. Creations overwrite earlier
// creations of the same title. Edits of the same title are merged: the old revision of
// the first edit is kept, the new revision grows to the largest seen, and the timestamp
// grows to the latest seen. An item that is both created and edited appears in both
// sets.
func Aggregate(events []Event) Result {
	created := make(map[string]NewItem)
	changed := make(map[string]ChangedItem)

	for _, ev := range events {
		if ev.IsNew {
			created[ev.Title] = NewItem{Title: ev.Title, Timestamp: ev.Timestamp}
			continue
		}
		item, seen := changed[ev.Title]
		if !seen {
			changed[ev.Title] = ChangedItem{
				Title:       ev.Title,
				OldRevision: ev.OldRevision,
				NewRevision: ev.NewRevision,
				Timestamp:   ev.Timestamp,
			}
			continue
		}
		if ev.NewRevision > item.NewRevision {
			item.NewRevision = ev.NewRevision
		}
		if ev.Timestamp > item.Timestamp {
			item.Timestamp = ev.Timestamp
		}
		changed[ev.Title] = item
	}

	result := Result{
		NewItems:     make([]NewItem, 0, len(created)),
		ChangedItems: make([]ChangedItem, 0, len(changed)),
	}
	for _, item := range created {
		result.NewItems = append(result.NewItems, item)
	}
	for _, item := range changed {
		result.ChangedItems = append(result.ChangedItems, item)
	}
	sort.Slice(result.NewItems, func(i, j int) bool {
		return result.NewItems[i].Title < result.NewItems[j].Title
	})
	sort.Slice(result.ChangedItems, func(i, j int) bool {
		return result.ChangedItems[i].Title < result.ChangedItems[j].Title
	})
	return result
}

// LastTimestamp returns the latest timestamp among changed items, never less than
// fallback. With no changed items it returns fallback.
func LastTimestamp(changed []ChangedItem, fallback string) string {
	last := fallback
	for _, item := range changed {
		if item.Timestamp > last {
			last = item.Timestamp
		}
	}
	return last
}
