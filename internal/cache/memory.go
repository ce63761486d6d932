package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/allisson/invsync/internal/errors"
)

// Fetcher loads the authoritative view for a key from the server.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (json.RawMessage, error)
}

// MemoryCache is an in-process view cache. Invalidate drops a key and re-fetches it from the
// server; concurrent fetches of the same key are collapsed into one call.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	fetcher Fetcher
	group   singleflight.Group
	logger  *slog.Logger
}

// NewMemoryCache creates an empty MemoryCache backed by fetcher.
func NewMemoryCache(fetcher Fetcher, logger *slog.Logger) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*Entry),
		fetcher: fetcher,
		logger:  logger,
	}
}

// Read returns a copy of the cached entry, or nil when the key is not cached.
func (c *MemoryCache) Read(ctx context.Context, key string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return entry.Clone(), nil
}

// Write stores a copy of entry under key.
func (c *MemoryCache) Write(ctx context.Context, key string, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry.Clone()
	return nil
}

// Delete drops key without re-fetching it.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Invalidate drops key and re-fetches the authoritative view. The key stays absent when the
// fetch fails.
func (c *MemoryCache) Invalidate(ctx context.Context, key string) error {
	if err := c.Delete(ctx, key); err != nil {
		return err
	}
	_, err := c.refresh(ctx, key)
	return err
}

// Get is a read-through lookup: a missing key is fetched and cached before being returned.
func (c *MemoryCache) Get(ctx context.Context, key string) (*Entry, error) {
	entry, err := c.Read(ctx, key)
	if err != nil || entry != nil {
		return entry, err
	}
	return c.refresh(ctx, key)
}

// Fetch returns the authoritative view for key without caching it. Concurrent fetches of the
// same key share one call.
func (c *MemoryCache) Fetch(ctx context.Context, key string) (json.RawMessage, error) {
	result, err, _ := c.group.Do("fetch:"+key, func() (any, error) {
		return c.fetcher.Fetch(ctx, key)
	})
	if err != nil {
		c.logger.Debug("authoritative fetch failed", slog.String("key", key), slog.Any("error", err))
		return nil, apperrors.Wrapf(err, "failed to fetch %s", key)
	}
	return slices.Clone(result.(json.RawMessage)), nil
}

// Keys returns the cached keys.
func (c *MemoryCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys
}

func (c *MemoryCache) refresh(ctx context.Context, key string) (*Entry, error) {
	result, err, _ := c.group.Do(key, func() (any, error) {
		if entry, _ := c.Read(ctx, key); entry != nil {
			return entry, nil
		}

		value, err := c.fetcher.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}

		entry := &Entry{Value: value}

		c.mu.Lock()
		defer c.mu.Unlock()

		// An optimistic entry written while the fetch was in flight wins over the fetched view.
		if current, ok := c.entries[key]; ok && current.Optimistic {
			return current.Clone(), nil
		}
		c.entries[key] = entry
		return entry.Clone(), nil
	})
	if err != nil {
		c.logger.Debug("cache refresh failed", slog.String("key", key), slog.Any("error", err))
		return nil, apperrors.Wrapf(err, "failed to fetch %s", key)
	}
	return result.(*Entry).Clone(), nil
}
