package store

// row.go implements Row: one entity's cells at one TimePoint, validated at
// construction so a Row value is always sound.

import (
	"fmt"
	"sort"
)

// Row is a single insertable unit: an entity path, a time point, a number
// of instances, and the component cells attached to it. Rows are
// constructed once via NewRow and are immutable afterward.
type Row struct {
	rowID        RowID
	entityPath   EntityPath
	timePoint    TimePoint
	numInstances int
	cells        []Cell
}

// NewRow validates and constructs a Row. Construction enforces:
//
//  1. component names are pairwise distinct;
//  2. each cell's length is 0, 1, or numInstances.
//
// A failing check returns (Row{}, *DupedComponentError) or
// (Row{}, *WrongNumberOfInstancesError); rowID is caller-supplied so the
// store's collision retry protocol can reuse the same Row across attempts.
func NewRow(rowID RowID, entityPath EntityPath, timePoint TimePoint, numInstances int, cells []Cell) (Row, error) {
	seen := make(map[ComponentName]struct{}, len(cells))
	for _, c := range cells {
		if _, dup := seen[c.Component()]; dup {
			return Row{}, &DupedComponentError{Component: c.Component()}
		}
		seen[c.Component()] = struct{}{}

		n := c.NumInstances()
		if n != 0 && n != 1 && n != numInstances {
			return Row{}, &WrongNumberOfInstancesError{
				Component: c.Component(),
				Expected:  numInstances,
				Actual:    n,
			}
		}
	}

	out := append([]Cell(nil), cells...)
	sort.Slice(out, func(i, j int) bool { return out[i].Component() < out[j].Component() })

	return Row{
		rowID:        rowID,
		entityPath:   entityPath,
		timePoint:    timePoint,
		numInstances: numInstances,
		cells:        out,
	}, nil
}

func (r Row) RowID() RowID             { return r.rowID }
func (r Row) EntityPath() EntityPath   { return r.entityPath }
func (r Row) TimePoint() TimePoint     { return r.timePoint }
func (r Row) NumInstances() int        { return r.numInstances }

// Cells returns the row's cells, sorted by component name. The returned
// slice must not be mutated.
func (r Row) Cells() []Cell { return r.cells }

// Cell returns the cell for component, if present.
func (r Row) Cell(component ComponentName) (Cell, bool) {
	i := sort.Search(len(r.cells), func(i int) bool { return r.cells[i].Component() >= component })
	if i < len(r.cells) && r.cells[i].Component() == component {
		return r.cells[i], true
	}
	return Cell{}, false
}

// HasComponent reports whether the row carries a cell for component.
func (r Row) HasComponent(component ComponentName) bool {
	_, ok := r.Cell(component)
	return ok
}

// withRowID returns a copy of r stamped with a new RowID, used internally
// by the store's retry loop without re-validating cells.
func (r Row) withRowID(id RowID) Row {
	r.rowID = id
	return r
}

func (r Row) String() string {
	return fmt.Sprintf("Row{%s @ %s, n=%d, %d cells}", r.entityPath, r.rowID, r.numInstances, len(r.cells))
}
