package contract

import (
	"errors"
	"sync/atomic"
)

// ErrNoReloadPath is returned by Reload on a Cache built with NewStaticCache,
// which has no backing file to re-read.
var ErrNoReloadPath = errors.New("contract cache has no backing file path")

// Cache holds the active Contract for a running extractor process and lets an
// operator swap it for a freshly loaded one without restarting the process
// (spec.md §3's "may be reloaded by operator" lifecycle note). Reload is
// safe to call concurrently with Get from in-flight workers: a worker that
// has already started an application keeps using the Contract it read at
// dispatch time, since Contract values are themselves immutable once loaded.
type Cache struct {
	path string
	cur  atomic.Pointer[Contract]
}

// NewCache loads path once and returns a Cache primed with the result.
func NewCache(path string) (*Cache, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	cache := &Cache{path: path}
	cache.cur.Store(c)

	return cache, nil
}

// NewStaticCache wraps an already-loaded Contract in a Cache that never
// reloads (Reload always fails with ErrNoReloadPath). Used where a caller
// has a Contract in hand without a backing file path, such as tests.
func NewStaticCache(c *Contract) *Cache {
	cache := &Cache{}
	cache.cur.Store(c)

	return cache
}

// Get returns the currently active Contract.
func (c *Cache) Get() *Contract {
	return c.cur.Load()
}

// Reload re-reads and re-validates the contract document from disk and, on
// success, atomically swaps it in for subsequent Get calls. On failure the
// previously loaded Contract remains active and the error is returned for
// logging; a malformed reload never takes an already-running process down.
func (c *Cache) Reload() error {
	if c.path == "" {
		return ErrNoReloadPath
	}

	next, err := Load(c.path)
	if err != nil {
		return err
	}

	c.cur.Store(next)

	return nil
}
