package store

// rowid.go re-exports internal/rowid as the public RowID type, so callers
// never need to import the internal package directly.

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Voskan/chronostore/internal/rowid"
)

// RowID is a process-wide monotone, globally unique row identifier.
type RowID struct {
	inner rowid.ID
}

// Less reports whether id sorts strictly before other.
func (id RowID) Less(other RowID) bool { return rowid.Less(id.inner, other.inner) }

// Compare returns -1, 0, or 1, matching rowid.Compare.
func (id RowID) Compare(other RowID) int { return rowid.Compare(id.inner, other.inner) }

func (id RowID) String() string { return fmt.Sprintf("%016x-%016x", id.inner.Hi, id.inner.Lo) }

// rawKey returns the (Hi, Lo) pair used as a map key by the temporal/
// timeless indices, avoiding a dependency on internal/rowid outside this
// file.
func (id RowID) rawKey() [2]uint64 { return [2]uint64{id.inner.Hi, id.inner.Lo} }

// RowIDAllocator allocates strictly increasing RowIDs and drives the
// collision retry protocol. Safe for concurrent use: Next is backed by an
// atomic counter, and the retrier's rand.Rand — which is not — is
// serialised by retryMu, since parallel table writes can collide on
// different shards at the same time.
type RowIDAllocator struct {
	alloc *rowid.Allocator

	retryMu sync.Mutex
	retrier *rowid.Retrier

	numAttempts int
	stepSize    int
}

// RowIDAllocatorOption configures a RowIDAllocator.
type RowIDAllocatorOption func(*RowIDAllocator)

// WithNumAttempts overrides the default retry bound (1000 attempts).
func WithNumAttempts(n int) RowIDAllocatorOption {
	return func(a *RowIDAllocator) { a.numAttempts = n }
}

// WithRetryStepSize overrides the default jitter bound (1..=100).
func WithRetryStepSize(n int) RowIDAllocatorOption {
	return func(a *RowIDAllocator) { a.stepSize = n }
}

// WithDeterministicRetrySource seeds the retry jitter from src instead of
// the default process-random source, for reproducible tests.
func WithDeterministicRetrySource(src interface {
	Int63() int64
	Seed(int64)
}) RowIDAllocatorOption {
	return func(a *RowIDAllocator) { a.retrier = rowid.NewRetrier(src) }
}

// NewRowIDAllocator constructs an allocator with the process-start epoch as
// its high half.
func NewRowIDAllocator(opts ...RowIDAllocatorOption) *RowIDAllocator {
	a := &RowIDAllocator{
		alloc:       rowid.NewAllocator(),
		numAttempts: rowid.DefaultNumAttempts,
		stepSize:    rowid.DefaultStepSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.retrier == nil {
		a.retrier = rowid.NewRetrier(rand.NewSource(time.Now().UnixNano()))
	}
	return a
}

// Next allocates a fresh candidate RowID.
func (a *RowIDAllocator) Next() RowID { return RowID{inner: a.alloc.Next()} }

// Retry advances rejected by one jittered step drawn from [1, stepSize],
// for use after a ReusedRowIDError. A stepSize <= 0 falls back to the
// allocator's configured default. Safe to call from concurrent writers.
func (a *RowIDAllocator) Retry(rejected RowID, stepSize int) RowID {
	if stepSize <= 0 {
		stepSize = a.stepSize
	}
	a.retryMu.Lock()
	defer a.retryMu.Unlock()
	return RowID{inner: a.retrier.Next(rejected.inner, stepSize)}
}

// MaxAttempts returns the configured retry bound.
func (a *RowIDAllocator) MaxAttempts() int { return a.numAttempts }
