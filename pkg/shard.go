package store

// shard.go implements the per-entity "unary store": one EntityPath's
// timeless index plus its per-timeline temporal indices, type registry, and
// row-id membership set — a self-contained unit of mutable state behind one
// RWMutex, manipulated only by the owning Store.
//
// An entityShard's own mu is always acquired *after* the Store's map-level
// lock, never the reverse.

import (
	"encoding/binary"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Voskan/chronostore/internal/arrowlike"
	"github.com/Voskan/chronostore/internal/bucketindex"
)

// entityShard owns all mutable state for one entity path.
type entityShard struct {
	mu sync.RWMutex

	path       EntityPath
	clusterKey ComponentName

	stripe  uint16
	metrics metricsSink
	logger  *zap.Logger

	// componentTypes records the datatype each component was first
	// registered with; re-registering a component under a different
	// datatype is a TypeMismatchError.
	componentTypes map[ComponentName]Datatype

	timeless *bucketindex.Index[Row]
	temporal map[Timeline]*bucketindex.Index[Row]

	// rows is the row presence set, extended to hold the Row itself: a
	// single map lookup both answers "is this RowID already present" and
	// gives GC/deletion everything needed to remove every per-timeline
	// placement a row made.
	rows map[[2]uint64]Row

	numRows   int
	sizeBytes int64

	// generation bumps on every successful mutation (insert or delete);
	// the Store's StoreGeneration is the component-wise max across shards.
	generation atomic.Uint64
}

func newEntityShard(path EntityPath, clusterKey ComponentName, stripe uint16, metrics metricsSink, logger *zap.Logger) *entityShard {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &entityShard{
		path:            path,
		clusterKey:      clusterKey,
		stripe:          stripe,
		metrics:         metrics,
		logger:          logger,
		componentTypes: make(map[ComponentName]Datatype),
		timeless:       bucketindex.New[Row](0),
		temporal:       make(map[Timeline]*bucketindex.Index[Row]),
		rows:           make(map[[2]uint64]Row),
	}
}

// checkAndRegisterTypes validates every cell's datatype against the
// shard's registry, registering any component seen for the first time.
// Called with mu held for writing. When enableTypecheck is false, a
// component already present in the registry is trusted without
// re-comparison.
func (s *entityShard) checkAndRegisterTypes(row Row, enableTypecheck bool) error {
	for _, c := range row.Cells() {
		if existing, ok := s.componentTypes[c.Component()]; ok {
			if enableTypecheck && !existing.Equal(c.Datatype()) {
				return &TypeMismatchError{Component: c.Component(), Expected: existing, Found: c.Datatype()}
			}
			continue
		}
		if c.Component() == s.clusterKey && !c.Datatype().Equal(clusterKeyDatatype) {
			return &ReservedInstanceKeyError{Component: c.Component(), Found: c.Datatype()}
		}
	}
	// Second pass: only commit registrations once every cell has passed
	// validation, so a rejected row never partially registers types.
	for _, c := range row.Cells() {
		if _, ok := s.componentTypes[c.Component()]; !ok {
			s.componentTypes[c.Component()] = c.Datatype()
		}
	}
	return nil
}

// synthesizeClusterKey returns row unchanged if it already carries the
// cluster-key component, or a copy with a canonical [0, 1, …, n-1] uint64
// cell appended. The buffer is heap-allocated directly: the cell it backs
// is shared immutable and lives in the indices until GC drops the row, so
// there is no earlier point at which it could be bulk-freed.
func (s *entityShard) synthesizeClusterKey(row Row) Row {
	if row.HasComponent(s.clusterKey) {
		return row
	}
	n := row.NumInstances()
	buf := make([]byte, n*8)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(i))
	}
	cell := NewCell(s.clusterKey, arrowlike.NewPrimitiveArray(arrowlike.KindUint64, n, buf))
	cells := append(append([]Cell(nil), row.Cells()...), cell)
	out, _ := NewRow(row.RowID(), row.EntityPath(), row.TimePoint(), row.NumInstances(), cells)
	return out
}

// insert adds row to the appropriate index (timeless, or one bucket per
// timeline in its TimePoint), after the ReusedRowId and type checks. The
// caller holds the Store's map-level lock only long enough to obtain this
// shard; this method takes mu itself.
func (s *entityShard) insert(row Row, splitThreshold int, enableTypecheck bool) (StoreEvent, error) {
	key := row.RowID().rawKey()

	if row.EntityPath().Hash() != s.path.Hash() {
		return StoreEvent{}, &EntityHashMismatchError{Shard: s.path.Hash(), Row: row.EntityPath()}
	}

	// Registered before the unlock defer so it runs after mu is released:
	// no logging happens inside the locked region.
	var splitTimelines []Timeline
	defer func() {
		for _, tl := range splitTimelines {
			s.metrics.incBucketSplit(s.stripe)
			s.logger.Debug("bucket split",
				zap.String("entity", s.path.String()),
				zap.String("timeline", tl.Name()))
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.rows[key]; dup {
		return StoreEvent{}, &ReusedRowIDError{RowID: row.RowID()}
	}
	if err := s.checkAndRegisterTypes(row, enableTypecheck); err != nil {
		return StoreEvent{}, err
	}
	if !row.HasComponent(s.clusterKey) {
		row = s.synthesizeClusterKey(row)
	}

	if row.TimePoint().IsTimeless() {
		s.timeless.Insert(bucketindex.Entry[Row]{Time: 0, RowHi: key[0], RowLo: key[1], Value: row})
	} else {
		row.TimePoint().Each(func(tl Timeline, t TimeInt) {
			idx, ok := s.temporal[tl]
			if !ok {
				idx = bucketindex.New[Row](splitThreshold)
				s.temporal[tl] = idx
			}
			if idx.Insert(bucketindex.Entry[Row]{Time: t.Int64(), RowHi: key[0], RowLo: key[1], Value: row}) {
				splitTimelines = append(splitTimelines, tl)
			}
		})
	}

	s.rows[key] = row
	s.numRows++
	size := rowSizeBytes(row)
	s.sizeBytes += size
	s.generation.Add(1)

	components := make([]ComponentName, len(row.Cells()))
	for i, c := range row.Cells() {
		components[i] = c.Component()
	}

	return StoreEvent{
		Kind:           EventInserted,
		ShardHash:      s.path.Hash(),
		EntityPath:     s.path,
		RowID:          row.RowID(),
		Components:     components,
		TimePoint:      row.TimePoint(),
		SizeBytesDelta: size,
	}, nil
}

// deleteRow removes every placement of the row identified by key, across
// the timeless index and every temporal index it was filed under, and
// returns the size freed. Used by GC; the clear cascade's synthetic-empty-
// cell insertion path does NOT use this — clears are ordinary inserts of
// empty cells, never deletions.
func (s *entityShard) deleteRow(key [2]uint64) (sizeFreed int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, found := s.rows[key]
	if !found {
		return 0, false
	}

	if row.TimePoint().IsTimeless() {
		s.timeless.DeleteRow(key[0], key[1])
	} else {
		row.TimePoint().Each(func(tl Timeline, _ TimeInt) {
			if idx, ok := s.temporal[tl]; ok {
				idx.DeleteRow(key[0], key[1])
			}
		})
	}

	delete(s.rows, key)
	s.numRows--
	size := rowSizeBytes(row)
	s.sizeBytes -= size
	s.generation.Add(1)
	return size, true
}

// purgeEmptyIndices drops timeline indices and buckets left with no rows
// after deletions. Returns true if the shard itself is now completely
// empty.
func (s *entityShard) purgeEmptyIndices() (shardEmpty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timeless.PurgeEmptyBuckets()
	for tl, idx := range s.temporal {
		idx.PurgeEmptyBuckets()
		if idx.IsEmpty() {
			delete(s.temporal, tl)
		}
	}
	return s.numRows == 0
}

// latestAt composes one component's latest-at-or-before value across a
// timeline, falling back to the timeless index: temporal wins when a row
// at-or-before `at` carries the component; otherwise the latest timeless
// row carrying it is used.
func (s *entityShard) latestAt(component ComponentName, timeline Timeline, at TimeInt) (Cell, RowID, TimeInt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hasComponent := func(r Row) bool { return r.HasComponent(component) }

	if idx, ok := s.temporal[timeline]; ok {
		if e, found := idx.LatestMatching(at.Int64(), hasComponent); found {
			cell, _ := e.Value.Cell(component)
			return cell, e.Value.RowID(), TimeInt(e.Time), true
		}
	}
	if e, found := s.timeless.LatestMatching(0, hasComponent); found {
		cell, _ := e.Value.Cell(component)
		return cell, e.Value.RowID(), TimeIntStatic, true
	}
	return Cell{}, RowID{}, 0, false
}

// rangeQuery returns every row on timeline within [lo, hi], optionally
// preceded by the timeless rows when lo == TimeIntMin. The returned (Row,
// TimeInt) pairs carry TimeIntStatic for timeless rows.
func (s *entityShard) rangeQuery(timeline Timeline, lo, hi TimeInt) []rangeRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []rangeRow
	if lo == TimeIntMin {
		s.timeless.Each(func(e bucketindex.Entry[Row]) {
			out = append(out, rangeRow{row: e.Value, time: TimeIntStatic})
		})
	}
	if idx, ok := s.temporal[timeline]; ok {
		for _, e := range idx.Range(lo.Int64(), hi.Int64()) {
			out = append(out, rangeRow{row: e.Value, time: TimeInt(e.Time)})
		}
	}
	return out
}

// secondaryAt resolves one secondary component anchored at (anchorTime,
// anchorRowID) — the row latest_at picked for the primary component. When
// anchorTime is static (the anchor itself came from the
// timeless index), the lookup is bounded to the timeless index alone,
// composite-anchored by row id; when anchorTime is temporal, the lookup
// first tries the temporal index bounded by (anchorTime, anchorRowID), then
// falls back to the timeless index unconstrained, matching latestAt's own
// temporal-wins-else-timeless composition.
func (s *entityShard) secondaryAt(component ComponentName, timeline Timeline, anchorTime TimeInt, anchorRowID RowID) (Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hasComponent := func(r Row) bool { return r.HasComponent(component) }
	rowHi, rowLo := anchorRowID.rawKey()[0], anchorRowID.rawKey()[1]

	if anchorTime.IsStatic() {
		if e, found := s.timeless.LatestAtOrBeforeRowMatching(0, rowHi, rowLo, hasComponent); found {
			cell, _ := e.Value.Cell(component)
			return cell, true
		}
		return Cell{}, false
	}

	if idx, ok := s.temporal[timeline]; ok {
		if e, found := idx.LatestAtOrBeforeRowMatching(anchorTime.Int64(), rowHi, rowLo, hasComponent); found {
			cell, _ := e.Value.Cell(component)
			return cell, true
		}
	}
	if e, found := s.timeless.LatestMatching(0, hasComponent); found {
		cell, _ := e.Value.Cell(component)
		return cell, true
	}
	return Cell{}, false
}

type rangeRow struct {
	row  Row
	time TimeInt
}

// lookupDatatype returns the datatype registered for component, if any.
func (s *entityShard) lookupDatatype(component ComponentName) (Datatype, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dt, ok := s.componentTypes[component]
	return dt, ok
}

// allComponents returns the union of every component present on timeline
// (temporal) and in the timeless index.
func (s *entityShard) allComponents(timeline Timeline) []ComponentName {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[ComponentName]struct{})
	collect := func(e bucketindex.Entry[Row]) {
		for _, c := range e.Value.Cells() {
			seen[c.Component()] = struct{}{}
		}
	}
	if idx, ok := s.temporal[timeline]; ok {
		idx.Each(collect)
	}
	s.timeless.Each(collect)

	out := make([]ComponentName, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}

// numLiveRows returns the shard's current row count.
func (s *entityShard) numLiveRows() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.numRows
}

// numTimelessRows and numTemporalRows split the shard's row count by index
// kind, for Store.NumTimelessRows/NumTemporalRows. A row spanning multiple
// timelines is counted once per timeline it touches, so the temporal count
// only equals "number of distinct temporal rows" when rows are
// single-timeline; multi-timeline rows are documented in DESIGN.md.
func (s *entityShard) numTimelessRows() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(s.timeless.NumRows())
}

func (s *entityShard) numTemporalRows() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, idx := range s.temporal {
		n += int64(idx.NumRows())
	}
	return n
}

// heapSizeBytes returns the running cached total, amortised by caching
// rather than re-summing every cell on each call.
func (s *entityShard) heapSizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sizeBytes
}

// generationValue returns the shard's current generation counter.
func (s *entityShard) generationValue() uint64 {
	return s.generation.Load()
}

// protectedRowKeys computes the set of (rowHi,rowLo) keys GC must never
// drop: the last protectLatest entries of every (component, timeline)
// pair, plus the timeless index's own last protectLatest per component
// when gcTimeless is set. Components in dontProtect are exempt.
func (s *entityShard) protectedRowKeys(protectLatest int, dontProtect map[ComponentName]struct{}, gcTimeless bool) map[[2]uint64]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	protected := make(map[[2]uint64]struct{})
	if protectLatest <= 0 {
		return protected
	}
	for component := range s.componentTypes {
		if _, exempt := dontProtect[component]; exempt {
			continue
		}
		pred := func(r Row) bool { return r.HasComponent(component) }
		for _, idx := range s.temporal {
			for k := range idx.ProtectedRowKeysMatching(protectLatest, pred) {
				protected[k] = struct{}{}
			}
		}
		if gcTimeless {
			for k := range s.timeless.ProtectedRowKeysMatching(protectLatest, pred) {
				protected[k] = struct{}{}
			}
		}
	}
	return protected
}

// dropCandidates returns every row key currently held by the shard, sorted
// ascending by RowID — the shard's contribution to the global,
// row-id-ascending deletion order across all shards. Rows in the timeless
// index are included only when gcTimeless is set.
func (s *entityShard) dropCandidates(gcTimeless bool) []gcCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gcCandidate, 0, len(s.rows))
	for key, row := range s.rows {
		if row.TimePoint().IsTimeless() && !gcTimeless {
			continue
		}
		out = append(out, gcCandidate{key: key, row: row})
	}
	sortCandidatesByRowID(out)
	return out
}

type gcCandidate struct {
	key [2]uint64
	row Row
}

func sortCandidatesByRowID(c []gcCandidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].key[0] != c[j].key[0] {
			return c[i].key[0] < c[j].key[0]
		}
		return c[i].key[1] < c[j].key[1]
	})
}

// rowSizeBytes sums a row's cells' heap footprint.
func rowSizeBytes(row Row) int64 {
	var total int64
	for _, c := range row.Cells() {
		c := c
		total += c.HeapSizeBytes()
	}
	return total
}

