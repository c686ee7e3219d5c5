package engine

import "sort"

// Position locates one Set record in the log by its byte range.
// Start+Length is the offset of the record immediately following.
type Position struct {
	Start  int64
	Length int64
}

// Index is the in-memory mapping from key to the position of the key's
// latest Set record. The engine is single-threaded, so no locking.
type Index struct {
	entries map[string]Position
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]Position)}
}

// Put records the position of key's latest Set record. It returns the
// prior position, if any, so the caller can charge its length to dirt.
func (x *Index) Put(key string, pos Position) (Position, bool) {
	prior, ok := x.entries[key]
	x.entries[key] = pos
	return prior, ok
}

// Get looks up the position of key's latest Set record.
func (x *Index) Get(key string) (Position, bool) {
	pos, ok := x.entries[key]
	return pos, ok
}

// Delete removes key from the index and returns the position it held.
func (x *Index) Delete(key string) (Position, bool) {
	prior, ok := x.entries[key]
	delete(x.entries, key)
	return prior, ok
}

// Len returns the number of live keys.
func (x *Index) Len() int {
	return len(x.entries)
}

// Keys returns the live keys in sorted order. Compaction iterates this
// so the rewritten log has a deterministic record order.
func (x *Index) Keys() []string {
	keys := make([]string, 0, len(x.entries))
	for key := range x.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
