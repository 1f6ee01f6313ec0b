package store

// query.go implements the query engine: thin composition on top of shard
// reads, responsible for the temporal/timeless tie-break rules that make
// latest-at and range behave identically no matter how the underlying
// indices are laid out.

import (
	"fmt"
)

// LatestAtResult is the outcome of a successful LatestAt call. DataTime is
// nil when the anchor row came from the timeless index; RowID is always the
// anchor row's id.
type LatestAtResult struct {
	DataTime *TimeInt
	RowID    RowID
	Cells    []*Cell // one slot per requested component, nil where absent
}

// LatestAt resolves primary's latest value at-or-before `at` on timeline,
// then resolves every entry in components anchored at that same
// (data_time, row_id) pair.
func (s *Store) LatestAt(timeline Timeline, at TimeInt, entity EntityPath, primary ComponentName, components []ComponentName) (LatestAtResult, bool) {
	sh := s.getShard(entity)
	if sh == nil {
		return LatestAtResult{}, false
	}

	cell, rowID, dataTime, found := sh.latestAt(primary, timeline, at)
	if !found {
		return LatestAtResult{}, false
	}

	cells := make([]*Cell, len(components))
	for i, c := range components {
		if c == primary {
			cc := cell
			cells[i] = &cc
			continue
		}
		if sc, ok := sh.secondaryAt(c, timeline, dataTime, rowID); ok {
			cells[i] = &sc
		}
	}

	var dataTimePtr *TimeInt
	if !dataTime.IsStatic() {
		dt := dataTime
		dataTimePtr = &dt
	}
	return LatestAtResult{DataTime: dataTimePtr, RowID: rowID, Cells: cells}, true
}

// RangeRow is one row yielded by Range.
type RangeRow struct {
	DataTime *TimeInt
	RowID    RowID
	Cells    []*Cell
}

// Range yields every row on timeline whose primary component falls in
// [lo, hi] (plus, when lo == TimeIntMin, every timeless row carrying
// primary, first and in row-id order), resolving every other requested
// component anchored at that row exactly as LatestAt would.
func (s *Store) Range(timeline Timeline, lo, hi TimeInt, entity EntityPath, primary ComponentName, components []ComponentName) []RangeRow {
	sh := s.getShard(entity)
	if sh == nil {
		return nil
	}

	var out []RangeRow
	for _, rr := range sh.rangeQuery(timeline, lo, hi) {
		if !rr.row.HasComponent(primary) {
			continue
		}
		cells := make([]*Cell, len(components))
		for i, c := range components {
			if cell, ok := rr.row.Cell(c); ok {
				cells[i] = &cell
				continue
			}
			if sc, ok := sh.secondaryAt(c, timeline, rr.time, rr.row.RowID()); ok {
				cells[i] = &sc
			}
		}
		var dataTimePtr *TimeInt
		if !rr.time.IsStatic() {
			dt := rr.time
			dataTimePtr = &dt
		}
		out = append(out, RangeRow{DataTime: dataTimePtr, RowID: rr.row.RowID(), Cells: cells})
	}
	return out
}

// DiagnosticSeverity selects how LatestAtMonoComponent reports a
// multi-instance cell where a single value was expected.
type DiagnosticSeverity uint8

const (
	SeverityDebug DiagnosticSeverity = iota
	SeverityWarn
	SeverityError
)

// LatestAtMonoComponent is the "latest mono-component" convenience form:
// it returns component's latest-at value, always as a single
// instance. If the underlying cell carries more than one instance, the
// first is still returned but diag is invoked with a human-readable message
// at the caller-selected severity; this never affects store state.
func (s *Store) LatestAtMonoComponent(timeline Timeline, at TimeInt, entity EntityPath, component ComponentName, severity DiagnosticSeverity, diag func(DiagnosticSeverity, string)) (*Cell, bool) {
	res, ok := s.LatestAt(timeline, at, entity, component, []ComponentName{component})
	if !ok || res.Cells[0] == nil {
		return nil, false
	}
	cell := *res.Cells[0]
	if cell.NumInstances() > 1 && diag != nil {
		diag(severity, fmt.Sprintf("component %q on %s has %d instances; mono-component query returns only the first",
			component, entity, cell.NumInstances()))
	}
	mono := cell.FirstInstance()
	return &mono, true
}

// LatestAtClosestAncestor repeatedly queries LatestAt starting at entity and
// walking up through each successive parent until a value is found or the
// root is passed. Returns the resolved result together with the entity
// path it was actually found at.
func (s *Store) LatestAtClosestAncestor(timeline Timeline, at TimeInt, entity EntityPath, primary ComponentName, components []ComponentName) (LatestAtResult, EntityPath, bool) {
	cur := entity
	for {
		if res, ok := s.LatestAt(timeline, at, cur, primary, components); ok {
			return res, cur, true
		}
		parent, ok := cur.Parent()
		if !ok {
			return LatestAtResult{}, EntityPath{}, false
		}
		cur = parent
	}
}
