// Package textcache interns language and site codes as integer ids of the texts table.
package textcache

import (
	"context"
	"fmt"
)

// Store is the backing texts table.
type Store interface {
	LoadAll(ctx context.Context) (map[string]int64, error)
	Insert(ctx context.Context, value string) (int64, error)
}

// Cache maps text values to ids. It is append-only and not safe for concurrent use;
// the sync loop owns it and calls it from one goroutine.
type Cache struct {
	store  Store
	ids    map[string]int64
	warmed bool
}

func New(store Store) *Cache {
	return &Cache{store: store, ids: make(map[string]int64)}
}

// Warm loads the whole texts table when the cache is still empty.
func (c *Cache) Warm(ctx context.Context) error {
	if c.warmed || len(c.ids) > 0 {
		return nil
	}
	loaded, err := c.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to warm text cache: %w", err)
	}
	for value, id := range loaded {
		c.ids[value] = id
	}
	c.warmed = true
	return nil
}

// ID returns the id of text, inserting it into the store on first use.
func (c *Cache) ID(ctx context.Context, text string) (int64, error) {
	if err := c.Warm(ctx); err != nil {
		return 0, err
	}
	if id, ok := c.ids[text]; ok {
		return id, nil
	}
	id, err := c.store.Insert(ctx, text)
	if err != nil {
		return 0, err
	}
	c.ids[text] = id
	return id, nil
}

// Len returns the number of cached texts.
func (c *Cache) Len() int { return len(c.ids) }
