package store

// cell.go implements Cell: an immutable Arrow-like array for one component,
// with O(1)-after-first-call size accounting.
//
// Cells are value types wrapping a small arrowlike.Array interface value.
// Go's garbage collector already gives chronostore a shared, immutable,
// freed-when-the-last-holder-drops-it ownership model for free, so no
// manual reference counting is needed here.

import (
	"encoding/binary"
	"fmt"

	"github.com/Voskan/chronostore/internal/arrowlike"
)

// Cell holds one component's column for one row.
type Cell struct {
	component ComponentName
	array     arrowlike.Array

	sizeComputed bool
	sizeBytes    int64
}

// NewCell wraps array under component. NumInstances() equals array.Len().
func NewCell(component ComponentName, array arrowlike.Array) Cell {
	return Cell{component: component, array: array}
}

// NewUint64Cell builds a Cell holding a flat uint64 array — the most common
// shape for demo and test data — without requiring the caller to construct
// an arrowlike array by hand. The internal arrowlike package is not
// importable from outside the module, so this is the supported way for
// external callers to produce a simple cell.
func NewUint64Cell(component ComponentName, values ...uint64) Cell {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	return NewCell(component, arrowlike.NewPrimitiveArray(arrowlike.KindUint64, len(values), buf))
}

// Uint64s decodes the cell's backing buffer as uint64s, for callers reading
// back values written via NewUint64Cell. Returns false when the cell does
// not wrap a flat uint64 array.
func (c Cell) Uint64s() ([]uint64, bool) {
	if !c.Datatype().Equal(PrimitiveType(KindUint64)) {
		return nil, false
	}
	raw, ok := c.rawBytes()
	if !ok {
		return nil, false
	}
	out := make([]uint64, len(raw)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}
	return out, true
}

// Component returns the cell's component name.
func (c Cell) Component() ComponentName { return c.component }

// Datatype returns the cell's Arrow-like datatype.
func (c Cell) Datatype() Datatype { return c.array.DataType() }

// NumInstances returns the array's length. Valid values are 0 (clear), 1
// (splat), or the row's num_instances (standard).
func (c Cell) NumInstances() int { return c.array.Len() }

// HeapSizeBytes returns the cell's heap footprint, computed on first call
// and cached thereafter.
func (c *Cell) HeapSizeBytes() int64 {
	if !c.sizeComputed {
		c.sizeBytes = c.array.HeapSizeBytes()
		c.sizeComputed = true
	}
	return c.sizeBytes
}

// rawBytes returns the underlying flat byte buffer when c wraps a
// PrimitiveArray, for callers (e.g. the clear-cascade decoder) that need to
// read back a scalar value written via NewCell/arrowlike.NewPrimitiveArray.
func (c Cell) rawBytes() ([]byte, bool) {
	if pa, ok := c.array.(*arrowlike.PrimitiveArray); ok {
		return pa.Bytes(), true
	}
	return nil, false
}

// FirstInstance returns a copy of c truncated to its first instance, for
// the "latest mono-component" convenience query.
func (c Cell) FirstInstance() Cell {
	return Cell{component: c.component, array: arrowlike.FirstInstance(c.array)}
}

func (c Cell) String() string {
	return fmt.Sprintf("%s[%d]%s", c.component, c.NumInstances(), c.Datatype())
}
