package ssz

// Cache memoizes per-field Merkle subtree roots keyed by structural
// identity (a caller-chosen path string, e.g. "validators[12].pubkey").
// Invalidating a field invalidates its own entry and every ancestor path
// (by prefix) but leaves sibling entries untouched. This is the single
// largest performance lever during state-transition replay (spec.md §4.1).
type Cache struct {
	roots map[string][32]byte
	dirty map[string]bool
}

// NewCache returns an empty hash-tree-root cache.
func NewCache() *Cache {
	return &Cache{
		roots: make(map[string][32]byte),
		dirty: make(map[string]bool),
	}
}

// Get returns the cached root for path, if present and not dirty.
func (c *Cache) Get(path string) ([32]byte, bool) {
	if c.dirty[path] {
		return [32]byte{}, false
	}
	root, ok := c.roots[path]
	return root, ok
}

// Put stores the computed root for path and clears its dirty flag.
func (c *Cache) Put(path string, root [32]byte) {
	c.roots[path] = root
	delete(c.dirty, path)
}

// Invalidate marks path and every ancestor path (determined by "." and "["
// path-separator prefixes) dirty, without touching sibling entries.
func (c *Cache) Invalidate(path string) {
	c.dirty[path] = true
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' || path[i] == '[' {
			ancestor := path[:i]
			if ancestor == "" {
				continue
			}
			c.dirty[ancestor] = true
		}
	}
	c.dirty[""] = true
}

// Clear wipes the entire cache.
func (c *Cache) Clear() {
	c.roots = make(map[string][32]byte)
	c.dirty = make(map[string]bool)
}
