// Package authorcache keeps a small in-process cache of author records so
// feed hydration does not hit the durable store once per candidate post.
package authorcache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"go.aavaz.network/pulse/pkg/types"
)

// Source is the backing author lookup, usually the durable store.
type Source interface {
	AuthorsByID(ctx context.Context, userIDs []int64) (map[int64]types.Author, error)
}

// Cache is a TTL-bounded LRU of author records.
// Safe for concurrent use.
type Cache struct {
	Source Source
	TTL    time.Duration

	mu  sync.Mutex
	lru *simplelru.LRU
}

type entry struct {
	author      types.Author
	lastUpdated time.Time
}

// New creates a cache holding up to size authors.
func New(source Source, size int, ttl time.Duration) (*Cache, error) {
	lru, err := simplelru.NewLRU(size, nil)
	if err != nil {
		return nil, err
	}
	return &Cache{Source: source, TTL: ttl, lru: lru}, nil
}

// Get resolves authors by ID, reading misses through to the source.
// IDs the source does not know stay absent from the result.
func (c *Cache) Get(ctx context.Context, userIDs []int64) (map[int64]types.Author, error) {
	authors := make(map[int64]types.Author, len(userIDs))
	var misses []int64
	now := time.Now()
	c.mu.Lock()
	for _, id := range userIDs {
		if _, ok := authors[id]; ok {
			continue
		}
		entryI, ok := c.lru.Get(id)
		if !ok {
			misses = append(misses, id)
			continue
		}
		ent := entryI.(*entry)
		if now.Sub(ent.lastUpdated) > c.TTL {
			c.lru.Remove(id)
			misses = append(misses, id)
			continue
		}
		authors[id] = ent.author
	}
	c.mu.Unlock()
	if len(misses) == 0 {
		return authors, nil
	}
	fetched, err := c.Source.AuthorsByID(ctx, misses)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	for id, author := range fetched {
		authors[id] = author
		c.lru.Add(id, &entry{author: author, lastUpdated: now})
	}
	c.mu.Unlock()
	return authors, nil
}

// Len returns the number of cached authors, including expired entries
// that have not been evicted yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
