// Package arrowlike is a minimal stand-in for an Arrow-like columnar
// primitive: a typed Datatype, a primitive array, and a list array, both
// reporting length and heap size — just enough for the store's cells to
// sit on top of (instance counts, heap-size accounting, and datatype
// equality), without depending on a full Arrow implementation.
//
// © 2025 chronostore authors. MIT License.
package arrowlike

import "fmt"

// Kind enumerates the primitive element kinds chronostore's datatypes
// support. Real Arrow has dozens of types; the store only needs these to
// exercise its identity and sizing rules.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUint8
	KindUint64
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindBool
	KindString
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindUint8:
		return "uint8"
	case KindUint64:
		return "uint64"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return "invalid"
	}
}

// byteWidth returns the fixed per-element width for scalar kinds, or 0 for
// variable-width kinds (string/bytes), which must track their own size.
func (k Kind) byteWidth() int {
	switch k {
	case KindUint8, KindBool:
		return 1
	case KindInt32, KindFloat32:
		return 4
	case KindInt64, KindFloat64, KindUint64:
		return 8
	default:
		return 0
	}
}

// Datatype identifies the shape of one component's values: either a scalar
// primitive or a list of a primitive (fixed- or variable-length element).
// Two Datatypes are equal exactly when their (Elem, IsList) pair matches —
// this equality check is what backs the store's datatype-stability rule.
type Datatype struct {
	Elem   Kind
	IsList bool
}

// Primitive constructs a scalar Datatype.
func Primitive(k Kind) Datatype { return Datatype{Elem: k} }

// List constructs a list-of-k Datatype.
func List(k Kind) Datatype { return Datatype{Elem: k, IsList: true} }

// Equal reports whether two datatypes describe the same shape.
func (d Datatype) Equal(other Datatype) bool {
	return d.Elem == other.Elem && d.IsList == other.IsList
}

func (d Datatype) String() string {
	if d.IsList {
		return fmt.Sprintf("list<%s>", d.Elem)
	}
	return d.Elem.String()
}

// Array is the minimal interface chronostore's Cell wraps: a typed,
// length-bearing, size-accountable columnar buffer.
type Array interface {
	DataType() Datatype
	Len() int
	HeapSizeBytes() int64
}

// PrimitiveArray is a flat, typed array of scalar values, stored as an
// opaque byte buffer plus an element kind — deliberately generic-free so
// that Cell can hold arrays of heterogeneous component types behind one
// interface, the way Arrow's own type-erased arrays do.
type PrimitiveArray struct {
	kind Kind
	n    int
	data []byte // n * kind.byteWidth() bytes, or variable-width packed data
}

// NewPrimitiveArray wraps a pre-encoded byte buffer of n elements of the
// given scalar kind.
func NewPrimitiveArray(kind Kind, n int, data []byte) *PrimitiveArray {
	return &PrimitiveArray{kind: kind, n: n, data: data}
}

func (a *PrimitiveArray) DataType() Datatype { return Primitive(a.kind) }
func (a *PrimitiveArray) Len() int           { return a.n }
func (a *PrimitiveArray) HeapSizeBytes() int64 {
	return int64(len(a.data))
}

// Bytes exposes the raw backing buffer for callers that need to decode
// individual elements (e.g. a renderer, out of scope here).
func (a *PrimitiveArray) Bytes() []byte { return a.data }

// SliceFirst returns an array holding only this array's first element
// (or the array itself when it already has zero or one elements). Used by
// the "latest mono-component" convenience query to collapse a
// multi-instance cell down to one value without mutating the original.
func (a *PrimitiveArray) SliceFirst() *PrimitiveArray {
	if a.n <= 1 {
		return a
	}
	width := a.kind.byteWidth()
	if width == 0 {
		// Variable-width kinds aren't packed with a fixed stride here; the
		// conservative choice is to return the array unsliced rather than
		// guess at a boundary.
		return a
	}
	return &PrimitiveArray{kind: a.kind, n: 1, data: a.data[:width]}
}

// ListArray is a list-of-primitive array: `offsets` has len(values)+1
// entries (standard Arrow offset convention), `values` holds the
// concatenated primitive array.
type ListArray struct {
	elem    Kind
	offsets []int32
	values  []byte
}

// NewListArray constructs a list array from Arrow-style offsets and a flat
// values buffer.
func NewListArray(elem Kind, offsets []int32, values []byte) *ListArray {
	return &ListArray{elem: elem, offsets: offsets, values: values}
}

func (a *ListArray) DataType() Datatype { return List(a.elem) }

// Len returns the number of list entries (len(offsets)-1), or 0 for an
// empty/degenerate array.
func (a *ListArray) Len() int {
	if len(a.offsets) == 0 {
		return 0
	}
	return len(a.offsets) - 1
}
func (a *ListArray) HeapSizeBytes() int64 {
	return int64(len(a.offsets)*4 + len(a.values))
}

// SliceFirst returns a list array holding only the first list entry.
func (a *ListArray) SliceFirst() *ListArray {
	if a.Len() <= 1 {
		return a
	}
	lo, hi := a.offsets[0], a.offsets[1]
	return &ListArray{elem: a.elem, offsets: []int32{0, hi - lo}, values: a.values[lo:hi]}
}

// FirstInstance returns an array holding only a's first element, for
// array kinds that support slicing; other implementations are returned
// unchanged.
func FirstInstance(a Array) Array {
	switch v := a.(type) {
	case *PrimitiveArray:
		return v.SliceFirst()
	case *ListArray:
		return v.SliceFirst()
	default:
		return a
	}
}
