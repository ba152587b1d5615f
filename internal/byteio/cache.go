package byteio

import (
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MappedFileCache shares memory mappings across datasource instances
// opened against the same path, keyed by canonical (absolute,
// symlink-resolved) path, per the design note in §9: several readers
// of the same shapefile/index shouldn't each hold their own mapping.
// Entries are refcounted so an LRU eviction doesn't unmap a file still
// in use; the unmap is deferred until the last holder releases it.
type MappedFileCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lru     *lru.Cache[string, *cacheEntry]
}

type cacheEntry struct {
	mu       sync.Mutex
	source   *MappedSource
	refcount int
	evicted  bool
}

// NewMappedFileCache creates a cache holding up to capacity distinct
// paths at once (beyond that, the least recently acquired path is
// evicted from the cache; its mapping is unmapped once its last handle
// is released).
func NewMappedFileCache(capacity int) (*MappedFileCache, error) {
	c := &MappedFileCache{entries: make(map[string]*cacheEntry)}
	backing, err := lru.NewWithEvict[string, *cacheEntry](capacity, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = backing
	return c, nil
}

// onEvict runs inside c.lru.Add, which Acquire only calls with c.mu
// already held, so it must not lock c.mu itself.
func (c *MappedFileCache) onEvict(path string, e *cacheEntry) {
	delete(c.entries, path)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refcount == 0 {
		e.source.Close()
	} else {
		e.evicted = true
	}
}

// Handle is a reference to a shared MappedSource. Callers must call
// Release exactly once when done; the underlying mapping is only
// unmapped once every outstanding handle (and any LRU eviction) has
// released it.
type Handle struct {
	cache *MappedFileCache
	entry *cacheEntry
}

// Source returns the shared byte source. It stays valid until Release.
func (h *Handle) Source() Source { return h.entry.source }

// Release decrements the handle's reference. If this was the last
// reference and the entry has since been evicted from the LRU, the
// mapping is unmapped now.
func (h *Handle) Release() error {
	e := h.entry
	e.mu.Lock()
	e.refcount--
	shouldClose := e.refcount == 0 && e.evicted
	e.mu.Unlock()
	if shouldClose {
		return e.source.Close()
	}
	return nil
}

// Acquire maps (or reuses an already-mapped) path, returning a Handle
// the caller must Release.
func (c *MappedFileCache) Acquire(path string) (*Handle, error) {
	canon, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[canon]; ok {
		e.mu.Lock()
		e.refcount++
		e.mu.Unlock()
		c.lru.Get(canon)
		c.mu.Unlock()
		return &Handle{cache: c, entry: e}, nil
	}
	c.mu.Unlock()

	src, err := OpenMapped(canon)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another Acquire for the same path may have raced us while the
	// lock was released during OpenMapped; prefer the winner's entry
	// and discard our redundant mapping.
	if existing, ok := c.entries[canon]; ok {
		existing.mu.Lock()
		existing.refcount++
		existing.mu.Unlock()
		src.Close()
		return &Handle{cache: c, entry: existing}, nil
	}
	e := &cacheEntry{source: src, refcount: 1}
	c.entries[canon] = e
	c.lru.Add(canon, e)
	return &Handle{cache: c, entry: e}, nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
