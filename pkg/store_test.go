package store

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Voskan/chronostore/internal/arrowlike"
	"github.com/Voskan/chronostore/internal/rowid"
)

// --- test helpers ------------------------------------------------------

func u64Cell(component ComponentName, values ...uint64) Cell {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	return NewCell(component, arrowlike.NewPrimitiveArray(arrowlike.KindUint64, len(values), buf))
}

func decodeU64(cell Cell) []uint64 {
	raw, ok := cell.rawBytes()
	if !ok {
		return nil
	}
	out := make([]uint64, len(raw)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}
	return out
}

// fixedRowID builds a deterministic RowID for tests that need to control
// collisions precisely, bypassing the store's own allocator.
func fixedRowID(hi, lo uint64) RowID {
	return RowID{inner: rowid.ID{Hi: hi, Lo: lo}}
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New("test-store", opts...)
	require.NoError(t, err)
	return s
}

// --- New / Config --------------------------------------------------------

func TestNewStoreRejectsNonPowerOfTwoShardCount(t *testing.T) {
	_, err := New("bad", WithNumShards(3))
	assert.Error(t, err)
}

func TestNewStoreDefaults(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, "test-store", s.ID())
	assert.Equal(t, DefaultClusterKey, s.ClusterKey())
	assert.False(t, s.Config().EnableTypecheck)
}

// --- Insert / read round trip -------------------------------------------

func TestInsertRowAndLatestAt(t *testing.T) {
	s := newTestStore(t)
	entity := NewEntityPath("world", "robot")
	frame := NewTimeline("frame", TimelineSequence)

	row, err := NewRow(fixedRowID(1, 1), entity, NewTimePoint().WithTime(frame, 10), 1, []Cell{
		u64Cell("pos", 42),
	})
	require.NoError(t, err)

	ev, err := s.InsertRow(row)
	require.NoError(t, err)
	assert.Equal(t, EventInserted, ev.Kind)
	assert.Equal(t, entity.Hash(), ev.ShardHash)

	res, ok := s.LatestAt(frame, 100, entity, "pos", []ComponentName{"pos"})
	require.True(t, ok)
	require.NotNil(t, res.Cells[0])
	assert.Equal(t, []uint64{42}, decodeU64(*res.Cells[0]))
	require.NotNil(t, res.DataTime)
	assert.Equal(t, TimeInt(10), *res.DataTime)
}

func TestLatestAtMissingEntityReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	frame := NewTimeline("frame", TimelineSequence)
	_, ok := s.LatestAt(frame, 0, NewEntityPath("nowhere"), "pos", []ComponentName{"pos"})
	assert.False(t, ok)
}

// --- Type mismatch -------------------------------------------------------

func TestInsertRowTypeMismatchRejected(t *testing.T) {
	s := newTestStore(t, WithEnableTypecheck(true))
	entity := NewEntityPath("e")

	r1, err := NewRow(fixedRowID(1, 1), entity, NewTimePoint(), 1, []Cell{u64Cell("x", 1)})
	require.NoError(t, err)
	_, err = s.InsertRow(r1)
	require.NoError(t, err)

	badCell := NewCell("x", arrowlike.NewPrimitiveArray(arrowlike.KindFloat64, 1, make([]byte, 8)))
	r2, err := NewRow(fixedRowID(1, 2), entity, NewTimePoint(), 1, []Cell{badCell})
	require.NoError(t, err)

	_, err = s.InsertRow(r2)
	require.Error(t, err)
	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, ComponentName("x"), mismatch.Component)
}

func TestInsertRowTypeMismatchIgnoredWhenTypecheckDisabled(t *testing.T) {
	s := newTestStore(t) // enableTypecheck defaults to false
	entity := NewEntityPath("e")

	r1, _ := NewRow(fixedRowID(1, 1), entity, NewTimePoint(), 1, []Cell{u64Cell("x", 1)})
	_, err := s.InsertRow(r1)
	require.NoError(t, err)

	badCell := NewCell("x", arrowlike.NewPrimitiveArray(arrowlike.KindFloat64, 1, make([]byte, 8)))
	r2, _ := NewRow(fixedRowID(1, 2), entity, NewTimePoint(), 1, []Cell{badCell})
	_, err = s.InsertRow(r2)
	assert.NoError(t, err, "unchecked inserts trust the first-seen datatype")
}

// --- Collision retries ----------------------------------------------------

func TestInsertRowWithRetriesResolvesCollision(t *testing.T) {
	s := newTestStore(t)
	entity := NewEntityPath("e")

	first, _ := NewRow(fixedRowID(1, 1), entity, NewTimePoint(), 1, []Cell{u64Cell("x", 1)})
	_, err := s.InsertRow(first)
	require.NoError(t, err)

	// Same RowID again: InsertRow (no retries) must fail outright.
	dup, _ := NewRow(fixedRowID(1, 1), entity, NewTimePoint(), 1, []Cell{u64Cell("x", 2)})
	_, err = s.InsertRowWithRetries(dup, 1, 10)
	require.Error(t, err)
	var exhausted *RowIDAttemptsExhaustedError
	assert.ErrorAs(t, err, &exhausted)

	// With enough attempts the allocator's jittered retry eventually lands
	// on an unused id and the insert succeeds.
	ev, err := s.InsertRowWithRetries(dup, 1000, 10)
	require.NoError(t, err)
	assert.NotEqual(t, fixedRowID(1, 1), ev.RowID)
}

func TestInsertRowRejectsWrongShard(t *testing.T) {
	s := newTestStore(t)
	sh := s.getOrCreateShard(NewEntityPath("a"))
	other, _ := NewRow(fixedRowID(1, 1), NewEntityPath("b"), NewTimePoint(), 1, nil)
	_, err := sh.insert(other, s.cfg.bucketSplitThreshold, false)
	var mismatch *EntityHashMismatchError
	require.ErrorAs(t, err, &mismatch)
}

// --- Table insert & canonical event ordering -----------------------------

func TestInsertTableWithRetriesOrdersEventsCanonically(t *testing.T) {
	s := newTestStore(t)

	const numEntities = 12
	var paths []EntityPath
	var timePoints []TimePoint
	var numInstances []int
	for i := 0; i < numEntities; i++ {
		paths = append(paths, NewEntityPath("e", fmt.Sprintf("%d", i)))
		timePoints = append(timePoints, NewTimePoint())
		numInstances = append(numInstances, 1)
	}
	cells := make([]Cell, numEntities)
	for i := range cells {
		cells[i] = u64Cell("x", uint64(i))
	}

	table, err := NewTable(TableInput{
		EntityPaths:  paths,
		TimePoints:   timePoints,
		NumInstances: numInstances,
		Columns:      []ColumnSpec{{Component: "x", Cells: cells}},
	})
	require.NoError(t, err)

	events, err := s.InsertTableWithRetries(table, 100, 10)
	require.NoError(t, err)
	require.Len(t, events, numEntities)

	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		ok := prev.ShardHash < cur.ShardHash ||
			(prev.ShardHash == cur.ShardHash && prev.RowID.Less(cur.RowID))
		assert.True(t, ok, "events must be sorted (ShardHash, RowID) ascending")
	}

	// Running the same table shape through a second store must reproduce
	// an identical canonical order, since the contract is about relative
	// order, not absolute ids.
	s2 := newTestStore(t)
	table2, _ := NewTable(TableInput{
		EntityPaths:  paths,
		TimePoints:   timePoints,
		NumInstances: numInstances,
		Columns:      []ColumnSpec{{Component: "x", Cells: cells}},
	})
	events2, err := s2.InsertTableWithRetries(table2, 100, 10)
	require.NoError(t, err)
	require.Len(t, events2, numEntities)
	for i := range events {
		assert.Equal(t, events[i].ShardHash, events2[i].ShardHash)
	}
}

func TestInsertEmptyTableProducesNoEventsAndKeepsGeneration(t *testing.T) {
	s := newTestStore(t)
	table, err := NewTable(TableInput{})
	require.NoError(t, err)

	before := s.Generation()
	events, err := s.InsertTableWithRetries(table, 100, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, before, s.Generation())
}

func TestInsertTableNotifiesSubscribersOnceWithSortedBatch(t *testing.T) {
	s := newTestStore(t)

	var batches [][]StoreEvent
	s.RegisterSubscriber(SubscriberFunc(func(events []StoreEvent) {
		batches = append(batches, append([]StoreEvent(nil), events...))
	}))

	const numEntities = 8
	const rowsPerEntity = 4
	var paths []EntityPath
	var timePoints []TimePoint
	var numInstances []int
	var cells []Cell
	frame := NewTimeline("frame", TimelineSequence)
	for i := 0; i < numEntities; i++ {
		for j := 0; j < rowsPerEntity; j++ {
			paths = append(paths, NewEntityPath("e", fmt.Sprintf("%d", i)))
			timePoints = append(timePoints, NewTimePoint().WithTime(frame, TimeInt(j)))
			numInstances = append(numInstances, 1)
			cells = append(cells, u64Cell("x", uint64(j)))
		}
	}
	table, err := NewTable(TableInput{
		EntityPaths:  paths,
		TimePoints:   timePoints,
		NumInstances: numInstances,
		Columns:      []ColumnSpec{{Component: "x", Cells: cells}},
	})
	require.NoError(t, err)

	_, err = s.InsertTableWithRetries(table, 100, 10)
	require.NoError(t, err)

	// The whole table arrives as exactly one Notify, not one per row or one
	// per racing worker goroutine.
	require.Len(t, batches, 1)
	batch := batches[0]
	require.Len(t, batch, numEntities*rowsPerEntity)

	// Within each entity, observed order equals submission order; across
	// entities, shard-hash ascending.
	perEntity := make(map[EntityPathHash][]StoreEvent)
	for i := 1; i < len(batch); i++ {
		prev, cur := batch[i-1], batch[i]
		assert.True(t, prev.ShardHash < cur.ShardHash ||
			(prev.ShardHash == cur.ShardHash && prev.RowID.Less(cur.RowID)))
	}
	for _, e := range batch {
		perEntity[e.ShardHash] = append(perEntity[e.ShardHash], e)
	}
	for _, events := range perEntity {
		require.Len(t, events, rowsPerEntity)
		for j := 1; j < len(events); j++ {
			assert.True(t, events[j-1].RowID.Less(events[j].RowID),
				"per-entity event order must match submission order")
		}
	}
}

// --- Subscribers -----------------------------------------------------------

func TestSubscriberReceivesDispatchedEvents(t *testing.T) {
	s := newTestStore(t)
	var got []StoreEvent
	handle := s.RegisterSubscriber(SubscriberFunc(func(events []StoreEvent) {
		got = append(got, events...)
	}))

	row, _ := NewRow(fixedRowID(1, 1), NewEntityPath("e"), NewTimePoint(), 1, []Cell{u64Cell("x", 1)})
	_, err := s.InsertRow(row)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, EventInserted, got[0].Kind)

	s.UnregisterSubscriber(handle)
	row2, _ := NewRow(fixedRowID(1, 2), NewEntityPath("e"), NewTimePoint(), 1, []Cell{u64Cell("x", 2)})
	_, err = s.InsertRow(row2)
	require.NoError(t, err)
	assert.Len(t, got, 1, "unsubscribed observer must not see further events")
}

func TestSubscriberPanicDoesNotUnwindInsert(t *testing.T) {
	s := newTestStore(t)
	s.RegisterSubscriber(SubscriberFunc(func([]StoreEvent) {
		panic("misbehaving subscriber")
	}))
	var got int
	s.RegisterSubscriber(SubscriberFunc(func(events []StoreEvent) {
		got += len(events)
	}))

	row, _ := NewRow(fixedRowID(1, 1), NewEntityPath("e"), NewTimePoint(), 1, []Cell{u64Cell("x", 1)})
	_, err := s.InsertRow(row)
	require.NoError(t, err, "a panicking subscriber must not unwind the insert")
	assert.Equal(t, 1, got, "subscribers after the panicking one must still be notified")
	assert.EqualValues(t, 1, s.NumTimelessRows())
}

func TestUnregisterSubscriberDoesNotInvalidateOtherHandles(t *testing.T) {
	s := newTestStore(t)
	var gotA, gotB int
	handleA := s.RegisterSubscriber(SubscriberFunc(func(events []StoreEvent) { gotA += len(events) }))
	handleB := s.RegisterSubscriber(SubscriberFunc(func(events []StoreEvent) { gotB += len(events) }))

	s.UnregisterSubscriber(handleA)

	row, _ := NewRow(fixedRowID(1, 1), NewEntityPath("e"), NewTimePoint(), 1, []Cell{u64Cell("x", 1)})
	_, err := s.InsertRow(row)
	require.NoError(t, err)
	assert.Equal(t, 0, gotA)
	assert.Equal(t, 1, gotB)

	// B's handle must still work even though A was removed before it.
	s.UnregisterSubscriber(handleB)
	row2, _ := NewRow(fixedRowID(1, 2), NewEntityPath("e"), NewTimePoint(), 1, []Cell{u64Cell("x", 2)})
	_, err = s.InsertRow(row2)
	require.NoError(t, err)
	assert.Equal(t, 1, gotB)
}

// --- Stats / discovery -----------------------------------------------------

func TestStatsAndAllComponents(t *testing.T) {
	s := newTestStore(t)
	entity := NewEntityPath("e")
	row, _ := NewRow(fixedRowID(1, 1), entity, NewTimePoint(), 1, []Cell{u64Cell("x", 1), u64Cell("y", 2)})
	_, err := s.InsertRow(row)
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 1, stats.NumShards)
	assert.EqualValues(t, 1, stats.NumTimelessRows)
	assert.EqualValues(t, 0, stats.NumTemporalRows)
	assert.Greater(t, stats.TotalSizeBytes, int64(0))

	components := s.AllComponents(Timeline{}, entity)
	assert.Contains(t, components, ComponentName("x"))
	assert.Contains(t, components, ComponentName("y"))
	assert.Contains(t, components, s.ClusterKey())

	dt, ok := s.LookupDatatype("x")
	require.True(t, ok)
	assert.Equal(t, PrimitiveType(KindUint64), dt)

	assert.Nil(t, s.AllComponents(Timeline{}, NewEntityPath("nowhere")))
}
