package store

// entitypath.go implements EntityPath: an ordered sequence of non-empty
// path components that uniquely determines a shard. The hash and parent are
// computed once at construction and cached rather than recomputed on every
// lookup.

import (
	"hash/maphash"
	"strings"
)

// EntityPathHash is the 64-bit value used to route an EntityPath to its
// shard. Equal paths always hash equal; hashes are not assumed unique
// across processes, only within one running store.
type EntityPathHash uint64

var pathHashSeed = maphash.MakeSeed()

// EntityPath is an immutable, ordered list of path components, e.g.
// ["world", "robot", "camera"].
type EntityPath struct {
	components []string
	hash       EntityPathHash
	full       string
}

// NewEntityPath constructs an EntityPath from its ordered components. Every
// component must be non-empty; callers are expected to validate this
// upstream.
func NewEntityPath(components ...string) EntityPath {
	cs := append([]string(nil), components...)
	full := "/" + strings.Join(cs, "/")
	var h maphash.Hash
	h.SetSeed(pathHashSeed)
	for _, c := range cs {
		_, _ = h.WriteString(c)
		_, _ = h.WriteString("\x00")
	}
	return EntityPath{components: cs, hash: EntityPathHash(h.Sum64()), full: full}
}

// Hash returns the cached EntityPathHash used as the shard key.
func (p EntityPath) Hash() EntityPathHash { return p.hash }

// Components returns the path's components. The returned slice must not be
// mutated.
func (p EntityPath) Components() []string { return p.components }

// Len returns the number of components in the path.
func (p EntityPath) Len() int { return len(p.components) }

// IsRoot reports whether this is the zero-component root path.
func (p EntityPath) IsRoot() bool { return len(p.components) == 0 }

// Parent returns the path with its last component removed, and false if p
// is already the root.
func (p EntityPath) Parent() (EntityPath, bool) {
	if p.IsRoot() {
		return EntityPath{}, false
	}
	return NewEntityPath(p.components[:len(p.components)-1]...), true
}

// String returns the canonical "/a/b/c" representation.
func (p EntityPath) String() string {
	if p.IsRoot() {
		return "/"
	}
	return p.full
}

// Equal reports whether two paths have the same components; hash equality
// is checked first as a fast reject, since equal paths always have equal
// hashes.
func (p EntityPath) Equal(other EntityPath) bool {
	if p.hash != other.hash || len(p.components) != len(other.components) {
		return false
	}
	for i := range p.components {
		if p.components[i] != other.components[i] {
			return false
		}
	}
	return true
}
