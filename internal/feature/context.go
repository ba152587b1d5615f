// Package feature implements the attribute schema (Context), the
// attribute value sum type, and the Feature type shared by every
// backend.
package feature

import "sync"

// Context is the ordered attribute-name schema shared by every feature
// a single datasource instance produces. It is built once (discovered
// from the first N records in adaptive backends) and is read-only
// after the first feature is emitted by every current backend; Push
// after that point still works, guarded by a mutex since queries may
// run concurrently per spec.md §5.
type Context struct {
	mu      sync.RWMutex
	names   []string
	indexOf map[string]int
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{indexOf: make(map[string]int)}
}

// Push adds name to the schema if not already present and returns its
// index either way.
func (c *Context) Push(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.indexOf[name]; ok {
		return idx
	}
	idx := len(c.names)
	c.names = append(c.names, name)
	c.indexOf[name] = idx
	return idx
}

// Lookup returns the index of name, if present.
func (c *Context) Lookup(name string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexOf[name]
	return idx, ok
}

// Len returns the number of attribute names in the schema.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Names returns a copy of the schema's attribute names in order.
func (c *Context) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// NameAt returns the attribute name at idx.
func (c *Context) NameAt(idx int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx < 0 || idx >= len(c.names) {
		return "", false
	}
	return c.names[idx], true
}
