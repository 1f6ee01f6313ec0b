package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearCellRoundTrip(t *testing.T) {
	for _, recursive := range []bool{false, true} {
		cell := NewClearCell(recursive)
		got, ok := ClearRecursive(cell)
		require.True(t, ok)
		assert.Equal(t, recursive, got)
	}
}

func TestClearRecursiveRejectsForeignComponent(t *testing.T) {
	_, ok := ClearRecursive(u64Cell("not-a-clear-cell", 1))
	assert.False(t, ok)
}

func TestCascadeClearTargetsIncludesSelfAndDescendants(t *testing.T) {
	known := []EntityPath{
		NewEntityPath("world"),
		NewEntityPath("world", "robot"),
		NewEntityPath("world", "robot", "camera"),
		NewEntityPath("world", "other"),
		NewEntityPath("elsewhere"),
	}
	targets := CascadeClearTargets(known, NewEntityPath("world", "robot"))
	var gotPaths []string
	for _, p := range targets {
		gotPaths = append(gotPaths, p.String())
	}
	assert.ElementsMatch(t, []string{"/world/robot", "/world/robot/camera"}, gotPaths)
}

func TestCascadeClearTargetsRootClearsEverything(t *testing.T) {
	known := []EntityPath{NewEntityPath("a"), NewEntityPath("b", "c")}
	targets := CascadeClearTargets(known, NewEntityPath())
	assert.Len(t, targets, len(known))
}

// --- CascadeDriver ------------------------------------------------------

func TestCascadeDriverClearsSiblingComponents(t *testing.T) {
	s := newTestStore(t)
	driver := NewCascadeDriver(s)
	entity := NewEntityPath("e")

	row, err := NewRow(fixedRowID(1, 1), entity, NewTimePoint(), 1, []Cell{u64Cell("pos", 1)})
	require.NoError(t, err)
	_, err = s.InsertRow(row)
	require.NoError(t, err)

	clearRow, err := NewRow(fixedRowID(1, 2), entity, NewTimePoint(), 0, []Cell{NewClearCell(false)})
	require.NoError(t, err)
	_, err = s.InsertRow(clearRow)
	require.NoError(t, err)

	events, err := driver.Flush()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ComponentName("pos"), events[0].Components[0])

	res, ok := s.LatestAt(Timeline{}, TimeIntStatic, entity, "pos", []ComponentName{"pos"})
	require.True(t, ok)
	require.NotNil(t, res.Cells[0])
	assert.Equal(t, 0, res.Cells[0].NumInstances())
}

func TestCascadeDriverRecursiveClearReachesDescendants(t *testing.T) {
	s := newTestStore(t)
	driver := NewCascadeDriver(s)
	parent := NewEntityPath("world", "robot")
	child := NewEntityPath("world", "robot", "camera")

	parentRow, _ := NewRow(fixedRowID(1, 1), parent, NewTimePoint(), 1, []Cell{u64Cell("pos", 1)})
	childRow, _ := NewRow(fixedRowID(1, 2), child, NewTimePoint(), 1, []Cell{u64Cell("color", 9)})
	_, err := s.InsertRow(parentRow)
	require.NoError(t, err)
	_, err = s.InsertRow(childRow)
	require.NoError(t, err)

	clearRow, _ := NewRow(fixedRowID(1, 3), parent, NewTimePoint(), 0, []Cell{NewClearCell(true)})
	_, err = s.InsertRow(clearRow)
	require.NoError(t, err)

	events, err := driver.Flush()
	require.NoError(t, err)
	assert.Len(t, events, 2) // pos on parent, color on child

	_, ok := s.LatestAt(Timeline{}, TimeIntStatic, child, "color", []ComponentName{"color"})
	require.True(t, ok)
}

func TestCascadeDriverDoesNotMutateStoreDuringNotify(t *testing.T) {
	s := newTestStore(t)
	driver := NewCascadeDriver(s)
	entity := NewEntityPath("e")

	row, _ := NewRow(fixedRowID(1, 1), entity, NewTimePoint(), 1, []Cell{u64Cell("pos", 1)})
	_, err := s.InsertRow(row)
	require.NoError(t, err)

	clearRow, _ := NewRow(fixedRowID(1, 2), entity, NewTimePoint(), 0, []Cell{NewClearCell(false)})
	_, err = s.InsertRow(clearRow)
	require.NoError(t, err)

	// Before Flush, the store has not been mutated by the clear cascade:
	// only the two rows explicitly inserted above exist.
	assert.EqualValues(t, 2, s.NumTimelessRows())

	_, err = driver.Flush()
	require.NoError(t, err)
	assert.EqualValues(t, 3, s.NumTimelessRows())
}
