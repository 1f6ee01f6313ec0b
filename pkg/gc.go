package store

// gc.go implements garbage collection: a global, row-id-ascending deletion
// order approximated by a fair round-robin walk across shards
// (internal/gcsweep.Hand), bounded by a memory/fraction target and an
// optional wall-clock time budget, with a "protect latest N" retention rule
// per (entity, component, timeline).

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Voskan/chronostore/internal/gcsweep"
)

// GC runs one garbage-collection pass over every shard and returns the
// deletion events produced plus a summary of what changed.
//
// GC is best-effort: if TimeBudget elapses before the target is met, the
// pass simply stops and returns what it managed to drop — this is not
// treated as an error.
func (s *Store) GC(opts GCOptions) ([]StoreEvent, StatsDelta) {
	started := time.Now()
	shards := s.allShardsSorted()
	works := make([]*shardGCWork, 0, len(shards))
	totalDroppable := 0

	for _, sh := range shards {
		protected := sh.protectedRowKeys(opts.ProtectLatest, opts.DontProtect, opts.GCTimeless)
		var kept []gcCandidate
		for _, c := range sh.dropCandidates(opts.GCTimeless) {
			if _, isProtected := protected[c.key]; isProtected {
				continue
			}
			kept = append(kept, c)
		}
		totalDroppable += len(kept)
		works = append(works, &shardGCWork{sh: sh, candidates: kept})
	}

	target := totalDroppable
	if !opts.Target.Everything {
		f := opts.Target.DropAtLeastFraction
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		target = int(math.Ceil(f * float64(totalDroppable)))
	}

	shardWork := make([]gcsweep.ShardWork, len(works))
	for i, w := range works {
		shardWork[i] = w
	}
	hand := gcsweep.NewHand(shardWork)
	budget := gcsweep.NewBudget(opts.TimeBudget)
	hand.Run(budget, target, s.cfg.gcBatchSize)

	var events []StoreEvent
	var sizeDelta int64
	for _, w := range works {
		events = append(events, w.events...)
		for _, e := range w.events {
			sizeDelta += e.SizeBytesDelta
		}
		if len(w.events) > 0 {
			s.metrics.incGCDropped(w.sh.stripe, len(w.events))
		}
		if opts.PurgeEmptyTables {
			if empty := w.sh.purgeEmptyIndices(); empty {
				s.removeShardIfEmpty(w.sh.path)
			}
		}
	}
	sortEventsCanonical(events)
	s.subs.dispatch(events)

	s.cfg.logger.Debug("gc pass",
		zap.Int("rows_dropped", len(events)),
		zap.Int("target_rows", target),
		zap.Int64("bytes_freed", -sizeDelta),
		zap.Duration("elapsed", time.Since(started)))

	return events, StatsDelta{RowsDropped: int64(len(events)), SizeBytesDelta: sizeDelta}
}

// removeShardIfEmpty drops path's shard from the map iff it is still empty,
// re-checked under the shard's own lock since a concurrent insert may have
// raced in between purgeEmptyIndices reporting empty and this call. Taking
// the shard lock while holding the stripe lock follows the one legal
// ordering (map before shard, never the reverse).
func (s *Store) removeShardIfEmpty(path EntityPath) {
	stripe := s.stripeFor(path.Hash())
	stripe.mu.Lock()
	defer stripe.mu.Unlock()
	if sh, ok := stripe.shards[path.Hash()]; ok && sh.numLiveRows() == 0 {
		delete(stripe.shards, path.Hash())
	}
}

// shardGCWork adapts one shard's pre-computed, already-filtered drop
// candidate list (ascending row id, protected rows excluded) to
// gcsweep.ShardWork: each Drop call removes the next batch from the front
// of the list and records the resulting Deletion events.
type shardGCWork struct {
	sh         *entityShard
	candidates []gcCandidate
	next       int
	events     []StoreEvent
}

func (w *shardGCWork) Drop(n int) (dropped int, exhausted bool) {
	for dropped < n && w.next < len(w.candidates) {
		cand := w.candidates[w.next]
		w.next++
		size, ok := w.sh.deleteRow(cand.key)
		if !ok {
			continue
		}
		dropped++
		components := make([]ComponentName, len(cand.row.Cells()))
		for i, c := range cand.row.Cells() {
			components[i] = c.Component()
		}
		w.events = append(w.events, StoreEvent{
			Kind:           EventGarbageCollected,
			ShardHash:      w.sh.path.Hash(),
			EntityPath:     w.sh.path,
			RowID:          cand.row.RowID(),
			Components:     components,
			TimePoint:      cand.row.TimePoint(),
			SizeBytesDelta: -size,
		})
	}
	return dropped, w.next >= len(w.candidates)
}
