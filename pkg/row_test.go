package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRowRejectsDuplicatedComponent(t *testing.T) {
	_, err := NewRow(fixedRowID(1, 1), NewEntityPath("e"), NewTimePoint(), 1, []Cell{
		u64Cell("x", 1), u64Cell("x", 2),
	})
	var duped *DupedComponentError
	require.ErrorAs(t, err, &duped)
	assert.Equal(t, ComponentName("x"), duped.Component)
}

func TestNewRowRejectsWrongInstanceCount(t *testing.T) {
	_, err := NewRow(fixedRowID(1, 1), NewEntityPath("e"), NewTimePoint(), 3, []Cell{
		u64Cell("x", 1, 2), // 2 is neither 0, 1, nor 3
	})
	var wrong *WrongNumberOfInstancesError
	require.ErrorAs(t, err, &wrong)
	assert.Equal(t, 3, wrong.Expected)
	assert.Equal(t, 2, wrong.Actual)
}

func TestNewRowAcceptsClearSplatAndStandardCells(t *testing.T) {
	row, err := NewRow(fixedRowID(1, 1), NewEntityPath("e"), NewTimePoint(), 3, []Cell{
		u64Cell("cleared"),          // 0 instances: a clear
		u64Cell("splat", 7),         // 1 instance: splatted across the row
		u64Cell("standard", 1, 2, 3), // exactly num_instances
	})
	require.NoError(t, err)
	assert.Len(t, row.Cells(), 3)
}

func TestZeroInstanceRowStillProducesEvent(t *testing.T) {
	s := newTestStore(t)
	row, err := NewRow(fixedRowID(1, 1), NewEntityPath("e"), NewTimePoint(), 0, []Cell{u64Cell("x")})
	require.NoError(t, err)

	ev, err := s.InsertRow(row)
	require.NoError(t, err)
	assert.Equal(t, EventInserted, ev.Kind)
}

func TestRowCellsSortedByComponent(t *testing.T) {
	row, err := NewRow(fixedRowID(1, 1), NewEntityPath("e"), NewTimePoint(), 1, []Cell{
		u64Cell("zeta", 1), u64Cell("alpha", 2),
	})
	require.NoError(t, err)
	assert.Equal(t, ComponentName("alpha"), row.Cells()[0].Component())

	cell, ok := row.Cell("zeta")
	require.True(t, ok)
	assert.Equal(t, []uint64{1}, decodeU64(cell))
	_, ok = row.Cell("missing")
	assert.False(t, ok)
}

func TestTableRejectsMisalignedColumns(t *testing.T) {
	_, err := NewTable(TableInput{
		EntityPaths:  []EntityPath{NewEntityPath("a"), NewEntityPath("b")},
		TimePoints:   []TimePoint{NewTimePoint(), NewTimePoint()},
		NumInstances: []int{1, 1},
		Columns:      []ColumnSpec{{Component: "x", Cells: []Cell{u64Cell("x", 1)}}},
	})
	var shape *TableShapeError
	require.ErrorAs(t, err, &shape)
}

func TestTableYieldsRowsLazilyAndSurvivesBadRow(t *testing.T) {
	good := u64Cell("x", 1)
	bad := u64Cell("x", 1, 2) // 2 instances against num_instances=3
	table, err := NewTable(TableInput{
		EntityPaths:  []EntityPath{NewEntityPath("a"), NewEntityPath("b"), NewEntityPath("c")},
		TimePoints:   []TimePoint{NewTimePoint(), NewTimePoint(), NewTimePoint()},
		NumInstances: []int{1, 3, 1},
		Columns:      []ColumnSpec{{Component: "x", Cells: []Cell{good, bad, good}}},
	})
	require.NoError(t, err)

	var okRows, badRows int
	for _, err := range table.Rows() {
		if err != nil {
			badRows++
			continue
		}
		okRows++
	}
	assert.Equal(t, 2, okRows, "a malformed row must not stop later rows from being yielded")
	assert.Equal(t, 1, badRows)
}
