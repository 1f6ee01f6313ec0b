package store

// cascade.go implements clear-cascade as a pure function: given the set of
// entity paths currently known to the store and a root
// path to clear, it computes exactly which paths (the root plus every
// descendant) must be cleared — with no side effects and no locking of
// its own. CascadeDriver (cascade_driver.go) is the only caller: the
// "driver subscriber" that turns this pure computation into actual shard
// mutations plus dispatched StoreEvents.

import "github.com/Voskan/chronostore/internal/arrowlike"

// ClearComponentName is the reserved component a row carries to request a
// clear. Its cell is a single uint8: 0 for a non-recursive clear (this
// path only), 1 for a recursive clear (this path and every descendant).
const ClearComponentName ComponentName = "chronostore.clear"

// NewClearCell builds the single-instance uint8 cell a Clear row carries.
func NewClearCell(recursive bool) Cell {
	b := byte(0)
	if recursive {
		b = 1
	}
	return NewCell(ClearComponentName, arrowlike.NewPrimitiveArray(arrowlike.KindUint8, 1, []byte{b}))
}

// ClearRecursive decodes a Clear cell's recursive flag. ok is false if cell
// is not a well-formed Clear cell.
func ClearRecursive(cell Cell) (recursive bool, ok bool) {
	if cell.Component() != ClearComponentName {
		return false, false
	}
	raw, ok := cellFirstByte(cell)
	if !ok {
		return false, false
	}
	return raw != 0, true
}

// CascadeClearTargets returns, in no particular order, every path in
// known that equals root or has root as a path prefix. Passing the root
// path itself ("" components) clears everything.
func CascadeClearTargets(known []EntityPath, root EntityPath) []EntityPath {
	var out []EntityPath
	for _, p := range known {
		if isSelfOrDescendant(p, root) {
			out = append(out, p)
		}
	}
	return out
}

func cellFirstByte(cell Cell) (byte, bool) {
	raw, ok := cell.rawBytes()
	if !ok || len(raw) == 0 {
		return 0, false
	}
	return raw[0], true
}

// isSelfOrDescendant reports whether p equals root or has root as a
// strict path-component prefix.
func isSelfOrDescendant(p, root EntityPath) bool {
	if root.IsRoot() {
		return true
	}
	rootComponents := root.Components()
	pComponents := p.Components()
	if len(pComponents) < len(rootComponents) {
		return false
	}
	for i, c := range rootComponents {
		if pComponents[i] != c {
			return false
		}
	}
	return true
}
