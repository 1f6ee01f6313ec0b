package store

// component.go defines ComponentName and re-exports the arrowlike Datatype
// vocabulary so callers never need to import internal/arrowlike directly.

import "github.com/Voskan/chronostore/internal/arrowlike"

// ComponentName identifies a columnar type, e.g. "point3d". Each component
// has exactly one Arrow-like datatype for the lifetime of a store;
// re-registering it with a different datatype is a fatal write error
// (TypeMismatchError).
type ComponentName string

// Datatype describes the shape of a component's values. See
// internal/arrowlike for the concrete Kind vocabulary.
type Datatype = arrowlike.Datatype

// Kind re-exports arrowlike.Kind for convenience.
type Kind = arrowlike.Kind

const (
	KindUint8   = arrowlike.KindUint8
	KindUint64  = arrowlike.KindUint64
	KindInt32   = arrowlike.KindInt32
	KindInt64   = arrowlike.KindInt64
	KindFloat32 = arrowlike.KindFloat32
	KindFloat64 = arrowlike.KindFloat64
	KindBool    = arrowlike.KindBool
	KindString  = arrowlike.KindString
	KindBytes   = arrowlike.KindBytes
)

// PrimitiveType builds a scalar Datatype.
func PrimitiveType(k Kind) Datatype { return arrowlike.Primitive(k) }

// ListType builds a list-of-k Datatype.
func ListType(k Kind) Datatype { return arrowlike.List(k) }

// clusterKeyDatatype is the canonical shape of the synthesised cluster-key
// cell: a flat array of uint64 instance indices [0, 1, …, num_instances-1].
var clusterKeyDatatype = arrowlike.Primitive(arrowlike.KindUint64)
