package feature

import "github.com/mapnikgo/geoindex/internal/geom"

// Feature is (id, shared schema, values keyed by schema index, geometry).
// Id is 1-based, assigned in source order by the backend.
type Feature struct {
	ID       uint64
	Context  *Context
	Geometry geom.Geometry
	values   map[int]AttributeValue

	// mutable reports whether Put may extend Context with new names.
	// A feature handed out from a query result is constructed with
	// mutable=false so callers can't silently fork the shared schema.
	mutable bool
}

// New constructs a Feature bound to ctx. mutable controls whether Put
// may push new names into ctx (only the backend building the schema
// during box-scan should pass true).
func New(id uint64, ctx *Context, g geom.Geometry, mutable bool) *Feature {
	return &Feature{ID: id, Context: ctx, Geometry: g, values: make(map[int]AttributeValue), mutable: mutable}
}

// Get looks up an attribute by name.
func (f *Feature) Get(name string) (AttributeValue, bool) {
	idx, ok := f.Context.Lookup(name)
	if !ok {
		return NullValue, false
	}
	return f.GetIndex(idx)
}

// GetIndex looks up an attribute by schema index.
func (f *Feature) GetIndex(idx int) (AttributeValue, bool) {
	v, ok := f.values[idx]
	if !ok {
		return NullValue, false
	}
	return v, true
}

// HasKey reports whether name has been set on this feature.
func (f *Feature) HasKey(name string) bool {
	idx, ok := f.Context.Lookup(name)
	if !ok {
		return false
	}
	_, ok = f.values[idx]
	return ok
}

// Put resolves name to an index (extending Context if this feature was
// constructed as mutable) and stores value. It fails (returns false)
// for a name unknown to an immutable feature's context.
func (f *Feature) Put(name string, value AttributeValue) bool {
	idx, ok := f.Context.Lookup(name)
	if !ok {
		if !f.mutable {
			return false
		}
		idx = f.Context.Push(name)
	}
	f.values[idx] = value
	return true
}

// Each iterates attributes in schema order, the feature's contract for
// deterministic iteration.
func (f *Feature) Each(fn func(name string, value AttributeValue)) {
	for i, name := range f.Context.Names() {
		if v, ok := f.values[i]; ok {
			fn(name, v)
		}
	}
}
