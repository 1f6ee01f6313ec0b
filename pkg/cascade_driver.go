package store

// cascade_driver.go implements the cascade *driver*: the cascade itself is
// a pure function (events, known paths) -> synthetic rows, and the store
// only knows how to insert rows — it does not know the cascade exists.
// CascadeDriver is a Subscriber that only *records* which clear roots it
// observed; it performs no store calls from inside Notify, since
// subscribers may not call back into the store mid-dispatch. The actual
// synthetic inserts happen in Flush, called explicitly by whoever drove
// the original Clear insert, after that insert's own dispatch has fully
// returned.

import (
	"sync"

	"github.com/Voskan/chronostore/internal/arrowlike"
)

// pendingClear is one clear root observed by Notify, queued for Flush. The
// recursive flag is not recorded here: events carry only the component
// set, not cell values, so Flush re-reads the Clear cell when it runs.
type pendingClear struct {
	root     EntityPath
	timeline Timeline
	at       TimeInt
}

// CascadeDriver watches a Store's event stream for rows carrying
// ClearComponentName and, on Flush, inserts an empty cell for every
// (entity_path, component) visible at each cleared root (and its
// descendants, when the clear was recursive).
type CascadeDriver struct {
	store *Store
	mu    sync.Mutex
	queue []pendingClear
}

// NewCascadeDriver registers a CascadeDriver on s and returns it. Callers
// own the returned driver's lifetime; call Flush after every insert that
// might carry a Clear cell (or periodically) to actually run the cascade.
func NewCascadeDriver(s *Store) *CascadeDriver {
	d := &CascadeDriver{store: s}
	s.RegisterSubscriber(SubscriberFunc(d.Notify))
	return d
}

// Notify records any Clear-bearing events it observes. It performs no store
// calls at all — not even reads — so dispatch ordering stays well defined;
// the recursive flag is resolved later, in Flush.
func (d *CascadeDriver) Notify(events []StoreEvent) {
	for _, e := range events {
		if e.Kind != EventInserted {
			continue
		}
		if !hasComponentName(e.Components, ClearComponentName) {
			continue
		}
		timeline, at := firstTimelineAndTime(e.TimePoint)
		d.mu.Lock()
		d.queue = append(d.queue, pendingClear{root: e.EntityPath, timeline: timeline, at: at})
		d.mu.Unlock()
	}
}

// Flush drains every pending clear and performs the second-pass insertion
// of empty cells, returning the events produced. Because synthetic empty
// cells never themselves carry ClearComponentName, Notify will not re-queue
// work from them — the cascade terminates after this one additional pass.
func (d *CascadeDriver) Flush() ([]StoreEvent, error) {
	d.mu.Lock()
	pending := d.queue
	d.queue = nil
	d.mu.Unlock()

	var events []StoreEvent
	for _, p := range pending {
		res, ok := d.store.LatestAt(p.timeline, p.at, p.root, ClearComponentName, []ComponentName{ClearComponentName})
		recursive := false
		if ok && res.Cells[0] != nil {
			recursive, _ = ClearRecursive(*res.Cells[0])
		}
		targets := []EntityPath{p.root}
		if recursive {
			targets = CascadeClearTargets(d.store.KnownEntityPaths(), p.root)
		}
		for _, target := range targets {
			components := d.store.AllComponents(p.timeline, target)
			for _, c := range components {
				if c == ClearComponentName || c == d.store.ClusterKey() {
					continue
				}
				dt, ok := d.store.LookupDatatype(c)
				if !ok {
					continue
				}
				row, err := NewRow(d.store.allocator.Next(), target, p.at.asTimePoint(p.timeline), 0, []Cell{emptyCellOf(c, dt)})
				if err != nil {
					return events, err
				}
				ev, err := d.store.InsertRowWithRetries(row, rowIDDefaultNumAttempts, rowIDDefaultStepSize)
				if err != nil {
					return events, err
				}
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

func hasComponentName(components []ComponentName, name ComponentName) bool {
	for _, c := range components {
		if c == name {
			return true
		}
	}
	return false
}

func firstTimelineAndTime(tp TimePoint) (Timeline, TimeInt) {
	var tl Timeline
	var t TimeInt = TimeIntStatic
	tp.Each(func(timeline Timeline, time TimeInt) {
		tl, t = timeline, time
	})
	return tl, t
}

// asTimePoint builds a single-timeline TimePoint from t, or the timeless
// TimePoint when t is static.
func (t TimeInt) asTimePoint(timeline Timeline) TimePoint {
	if t.IsStatic() {
		return NewTimePoint()
	}
	return NewTimePoint().WithTime(timeline, t)
}

// emptyCellOf builds a zero-instance cell matching dt, the component's
// already-registered datatype — an empty cell must still type-check
// against the shard's datatype registry.
func emptyCellOf(component ComponentName, dt Datatype) Cell {
	if dt.IsList {
		return NewCell(component, arrowlike.NewListArray(dt.Elem, []int32{0}, nil))
	}
	return NewCell(component, arrowlike.NewPrimitiveArray(dt.Elem, 0, nil))
}
