package store

// errors.go implements the closed WriteError taxonomy: ReusedRowId,
// TypeMismatch, WrongNumberOfInstances, DupedComponent, ClusterKeyMissing,
// ReservedInstanceKey. Every write error is non-fatal to the store: the
// target shard is left exactly as it was before the failed call.

import "fmt"

// WriteErrorKind categorizes a WriteError for callers that want to branch
// on kind without a type switch.
type WriteErrorKind uint8

const (
	KindReusedRowID WriteErrorKind = iota
	KindTypeMismatch
	KindWrongNumberOfInstances
	KindDupedComponent
	KindClusterKeyMissing
	KindReservedInstanceKey
	KindRowIDAttemptsExhausted
	KindEntityHashMismatch
)

func (k WriteErrorKind) String() string {
	switch k {
	case KindReusedRowID:
		return "ReusedRowId"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindWrongNumberOfInstances:
		return "WrongNumberOfInstances"
	case KindDupedComponent:
		return "DupedComponent"
	case KindClusterKeyMissing:
		return "ClusterKeyMissing"
	case KindReservedInstanceKey:
		return "ReservedInstanceKey"
	case KindRowIDAttemptsExhausted:
		return "RowIdAttemptsExhausted"
	case KindEntityHashMismatch:
		return "EntityHashMismatch"
	default:
		return "Unknown"
	}
}

// WriteError is the common interface every write-path error implements.
type WriteError interface {
	error
	Kind() WriteErrorKind
}

// ReusedRowIDError means the target shard already holds a row with this
// RowID. The insert path retries with a new id before this is ever
// surfaced to the caller.
type ReusedRowIDError struct{ RowID RowID }

func (e *ReusedRowIDError) Error() string      { return fmt.Sprintf("reused row id: %s", e.RowID) }
func (e *ReusedRowIDError) Kind() WriteErrorKind { return KindReusedRowID }

// RowIDAttemptsExhaustedError is returned when the row-id retry loop runs
// out of attempts without finding a free RowID. Exhaustion is surfaced
// explicitly rather than silently dropping the row.
type RowIDAttemptsExhaustedError struct {
	Original   RowID
	LastTried  RowID
	NumAttempts int
}

func (e *RowIDAttemptsExhaustedError) Error() string {
	return fmt.Sprintf("exhausted %d row id retry attempts starting from %s (last tried %s)",
		e.NumAttempts, e.Original, e.LastTried)
}
func (e *RowIDAttemptsExhaustedError) Kind() WriteErrorKind { return KindRowIDAttemptsExhausted }

// TypeMismatchError means component's datatype differs from the first one
// ever registered for it in this shard.
type TypeMismatchError struct {
	Component        ComponentName
	Expected, Found Datatype
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("component %q: type mismatch: expected %s, found %s", e.Component, e.Expected, e.Found)
}
func (e *TypeMismatchError) Kind() WriteErrorKind { return KindTypeMismatch }

// WrongNumberOfInstancesError means a cell's length is neither 0, 1, nor
// the row's num_instances.
type WrongNumberOfInstancesError struct {
	Component        ComponentName
	Expected, Actual int
}

func (e *WrongNumberOfInstancesError) Error() string {
	return fmt.Sprintf("component %q: expected 0, 1, or %d instances, found %d", e.Component, e.Expected, e.Actual)
}
func (e *WrongNumberOfInstancesError) Kind() WriteErrorKind { return KindWrongNumberOfInstances }

// DupedComponentError means a row lists the same component twice.
type DupedComponentError struct{ Component ComponentName }

func (e *DupedComponentError) Error() string {
	return fmt.Sprintf("component %q appears more than once in row", e.Component)
}
func (e *DupedComponentError) Kind() WriteErrorKind { return KindDupedComponent }

// ClusterKeyMissingError means a retained row lacks the cluster-key
// component. It is part of the closed write-error taxonomy for callers
// that branch on WriteErrorKind, but this implementation never produces
// it: insert always synthesises a missing cluster key before indexing, so
// the condition cannot arise through the public API.
type ClusterKeyMissingError struct{ ClusterKey ComponentName }

func (e *ClusterKeyMissingError) Error() string {
	return fmt.Sprintf("row is missing required cluster key %q", e.ClusterKey)
}
func (e *ClusterKeyMissingError) Kind() WriteErrorKind { return KindClusterKeyMissing }

// ReservedInstanceKeyError means a row supplied the cluster-key component
// itself with a datatype other than the canonical uint64 instance-index
// shape chronostore synthesises.
type ReservedInstanceKeyError struct {
	Component ComponentName
	Found     Datatype
}

func (e *ReservedInstanceKeyError) Error() string {
	return fmt.Sprintf("component %q is the reserved cluster key and must be %s, found %s",
		e.Component, clusterKeyDatatype, e.Found)
}
func (e *ReservedInstanceKeyError) Kind() WriteErrorKind { return KindReservedInstanceKey }

// EntityHashMismatchError is an internal-invariant failure — a shard whose
// map-key disagrees with its entity hash. It should never occur through the
// public API and indicates a bug in the sharded store's routing.
type EntityHashMismatchError struct {
	Shard EntityPathHash
	Row   EntityPath
}

func (e *EntityHashMismatchError) Error() string {
	return fmt.Sprintf("row entity path %s (hash %d) routed to shard %d", e.Row, e.Row.Hash(), e.Shard)
}
func (e *EntityHashMismatchError) Kind() WriteErrorKind { return KindEntityHashMismatch }
