// Package memcache is an in-process store.Cache.
package memcache

import (
	"context"
	"slices"
	"sync"
)

type Cache struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func New() *Cache {
	return &Cache{blobs: make(map[string][]byte)}
}

func (c *Cache) Load(_ context.Context, collection string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.blobs[collection]), nil
}

func (c *Cache) Store(_ context.Context, collection string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[collection] = slices.Clone(data)
	return nil
}
