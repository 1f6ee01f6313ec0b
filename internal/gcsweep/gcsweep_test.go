package gcsweep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeShard counts how many rows each Drop call takes from a fixed pool.
type fakeShard struct {
	remaining int
	calls     []int
}

func (f *fakeShard) Drop(n int) (int, bool) {
	if n > f.remaining {
		n = f.remaining
	}
	f.remaining -= n
	f.calls = append(f.calls, n)
	return n, f.remaining == 0
}

func TestRunStopsAtTarget(t *testing.T) {
	a := &fakeShard{remaining: 100}
	hand := NewHand([]ShardWork{a})
	total := hand.Run(NewBudget(0), 30, 10)
	assert.Equal(t, 30, total)
	assert.Equal(t, 70, a.remaining)
}

func TestRunZeroTargetIsNoOp(t *testing.T) {
	a := &fakeShard{remaining: 10}
	hand := NewHand([]ShardWork{a})
	assert.Equal(t, 0, hand.Run(NewBudget(0), 0, 10))
	assert.Empty(t, a.calls, "a zero target must not call Drop at all")
}

func TestRunAlternatesBetweenShards(t *testing.T) {
	a := &fakeShard{remaining: 20}
	b := &fakeShard{remaining: 20}
	hand := NewHand([]ShardWork{a, b})
	total := hand.Run(NewBudget(0), 40, 5)
	assert.Equal(t, 40, total)

	// Each shard is drained in batch-size steps, never monopolised: every
	// visit takes at most 5 rows before the hand rotates.
	for _, n := range append(a.calls, b.calls...) {
		assert.LessOrEqual(t, n, 5)
	}
	assert.Equal(t, 0, a.remaining)
	assert.Equal(t, 0, b.remaining)
}

func TestRunHonorsExpiredBudget(t *testing.T) {
	a := &fakeShard{remaining: 1000}
	hand := NewHand([]ShardWork{a})
	budget := NewBudget(time.Nanosecond)
	time.Sleep(time.Millisecond)
	total := hand.Run(budget, 1000, 10)
	assert.Less(t, total, 1000, "an expired budget stops the walk early")
}

func TestRunClampsFinalBatchToTarget(t *testing.T) {
	a := &fakeShard{remaining: 100}
	hand := NewHand([]ShardWork{a})
	total := hand.Run(NewBudget(0), 7, 10)
	assert.Equal(t, 7, total, "the hand must never drop past the target")
	assert.Equal(t, 93, a.remaining)
}
