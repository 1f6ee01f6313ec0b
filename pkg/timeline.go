package store

// timeline.go implements Timeline, TimeInt and TimePoint.

import "math"

// TimelineKind distinguishes the two timeline flavors. The kind affects
// only formatting, never ordering.
type TimelineKind uint8

const (
	// TimelineSequence is a dimensionless, monotonically-assigned frame
	// counter.
	TimelineSequence TimelineKind = iota
	// TimelineTimeNS is a nanosecond-resolution wall/monotonic clock axis.
	TimelineTimeNS
)

func (k TimelineKind) String() string {
	switch k {
	case TimelineSequence:
		return "sequence"
	case TimelineTimeNS:
		return "time_ns"
	default:
		return "unknown"
	}
}

// Timeline is a named, typed axis along which rows are ordered. Timeline
// values are small and comparable, so they can be used directly as map
// keys (the store keeps one temporal index per timeline actually used by
// an entity).
type Timeline struct {
	name string
	kind TimelineKind
}

// NewTimeline constructs a Timeline with the given name and kind.
func NewTimeline(name string, kind TimelineKind) Timeline {
	return Timeline{name: name, kind: kind}
}

func (t Timeline) Name() string      { return t.name }
func (t Timeline) Kind() TimelineKind { return t.kind }
func (t Timeline) String() string     { return t.name }

// TimeInt is a 64-bit signed timestamp with two reserved sentinels.
type TimeInt int64

const (
	// TimeIntStatic represents "timeless": it sorts before every temporal
	// value and is never itself stored as a real timeline entry — rows
	// logged without a TimePoint go to the timeless index instead.
	TimeIntStatic TimeInt = math.MinInt64

	// TimeIntMin is the minimum valid temporal time value. Passing it as a
	// range query's lower bound is the sentinel that requests timeless
	// rows be emitted first.
	TimeIntMin TimeInt = math.MinInt64 + 1

	// TimeIntMax is the maximum valid temporal time value.
	TimeIntMax TimeInt = math.MaxInt64
)

// Int64 returns the raw underlying value.
func (t TimeInt) Int64() int64 { return int64(t) }

// IsStatic reports whether t is the timeless sentinel.
func (t TimeInt) IsStatic() bool { return t == TimeIntStatic }

// TimePoint maps timelines to their assigned time for one row. An empty
// TimePoint denotes a timeless row. Keys are unique by construction (a
// single map, not a multimap).
type TimePoint struct {
	entries map[Timeline]TimeInt
}

// NewTimePoint constructs an empty (timeless) TimePoint.
func NewTimePoint() TimePoint {
	return TimePoint{}
}

// TimePointOf builds a TimePoint from explicit (timeline, time) pairs.
func TimePointOf(pairs ...struct {
	Timeline Timeline
	Time     TimeInt
}) TimePoint {
	if len(pairs) == 0 {
		return TimePoint{}
	}
	m := make(map[Timeline]TimeInt, len(pairs))
	for _, p := range pairs {
		m[p.Timeline] = p.Time
	}
	return TimePoint{entries: m}
}

// WithTime returns a copy of tp with (timeline, t) set.
func (tp TimePoint) WithTime(timeline Timeline, t TimeInt) TimePoint {
	m := make(map[Timeline]TimeInt, len(tp.entries)+1)
	for k, v := range tp.entries {
		m[k] = v
	}
	m[timeline] = t
	return TimePoint{entries: m}
}

// IsTimeless reports whether the TimePoint has no timeline assignments.
func (tp TimePoint) IsTimeless() bool { return len(tp.entries) == 0 }

// Get returns the time assigned to timeline, if any.
func (tp TimePoint) Get(timeline Timeline) (TimeInt, bool) {
	t, ok := tp.entries[timeline]
	return t, ok
}

// Len returns the number of timelines this TimePoint assigns.
func (tp TimePoint) Len() int { return len(tp.entries) }

// Each calls fn once per (timeline, time) pair. Iteration order is
// unspecified (map-backed); no ordering guarantee is implied.
func (tp TimePoint) Each(fn func(Timeline, TimeInt)) {
	for k, v := range tp.entries {
		fn(k, v)
	}
}
