// Package gcsweep implements the scheduling half of garbage collection: a
// round-robin walk across shards that alternates between them so that one
// shard cannot monopolise the time budget, which is only ever checked
// between batches rather than per row.
//
// The hand keeps no state about what it's dropping or why — it just
// advances across a set of shards, visiting each for a bounded batch
// before moving to the next, until every shard is exhausted, a deletion
// target is reached, or the time budget expires.
//
// This package only schedules; package store's gc.go decides what each
// shard's candidates are and performs the actual deletions.
//
// © 2025 chronostore authors. MIT License.
package gcsweep

import "time"

// BatchSize is the default number of rows processed per shard visit
// before the hand re-checks the time budget and rotates to the next
// shard. NewHand callers may override it per call via Run's batchSize
// parameter.
const BatchSize = 128

// ShardWork is whatever opaque per-shard work the round-robin hand walks.
// The caller supplies a closure that processes up to `n` deletions against
// one shard and returns how many it actually performed and whether the
// shard has more candidates left.
type ShardWork interface {
	// Drop attempts to delete up to n rows from this shard's candidate set.
	// It returns the number actually dropped and whether the shard is now
	// exhausted (no more droppable candidates).
	Drop(n int) (dropped int, exhausted bool)
}

// Budget tracks a wall-clock deadline checked only between batches.
type Budget struct {
	deadline time.Time
	unbound  bool
}

// NewBudget constructs a Budget that expires `d` from now. A zero or
// negative d means "unbounded" (GC runs until the target is met).
func NewBudget(d time.Duration) *Budget {
	if d <= 0 {
		return &Budget{unbound: true}
	}
	return &Budget{deadline: time.Now().Add(d)}
}

// Expired reports whether the budget has been exhausted. Never called
// mid-batch — only between batches.
func (b *Budget) Expired() bool {
	if b.unbound {
		return false
	}
	return !time.Now().Before(b.deadline)
}

// Hand is the round-robin GC scheduler: it visits each shard's ShardWork in
// turn, draining a bounded batch per visit, and stops when every shard is
// exhausted, the target is reached, or the budget expires.
type Hand struct {
	shards []ShardWork
}

// NewHand constructs a round-robin hand over the given shard work items.
// Order is whatever the caller passed in; chronostore's gc.go supplies
// shards in entity-path-hash order to match the store's documented
// inter-shard determinism contract.
func NewHand(shards []ShardWork) *Hand {
	return &Hand{shards: shards}
}

// Run walks the ring, calling Drop on each non-exhausted shard in turn
// until every shard is exhausted, target rows have been dropped in total,
// or the budget expires. Each Drop call is clamped to min(batchSize,
// target-totalDropped) so the hand never drops past target even when a
// single shard holds far more droppable candidates than are needed — in
// particular target == 0 returns immediately without calling Drop at all,
// making a zero-target pass a true no-op. batchSize <= 0 falls back to
// BatchSize. It returns the total number of rows dropped across all
// shards.
func (h *Hand) Run(budget *Budget, target, batchSize int) int {
	if batchSize <= 0 {
		batchSize = BatchSize
	}
	if target <= 0 {
		return 0
	}

	total := 0
	exhausted := make([]bool, len(h.shards))
	remaining := len(h.shards)

	for remaining > 0 {
		progressedThisLap := false
		for i, sw := range h.shards {
			if exhausted[i] {
				continue
			}
			if total >= target {
				return total
			}
			if budget.Expired() {
				return total
			}
			n := batchSize
			if want := target - total; want < n {
				n = want
			}
			dropped, done := sw.Drop(n)
			total += dropped
			if dropped > 0 {
				progressedThisLap = true
			}
			if done {
				exhausted[i] = true
				remaining--
			}
		}
		if !progressedThisLap {
			break
		}
	}
	return total
}
