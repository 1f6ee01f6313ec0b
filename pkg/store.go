package store

// store.go implements the sharded store: the top-level Store type that owns
// the entity-hash-keyed shard map, routes every read/write to the right
// entityShard, parallelises batch writes across entities, and dispatches
// StoreEvents to subscribers once every shard lock involved in a call has
// been released.
//
// The shard map itself is split into config.numShards independent stripes,
// each guarded by its own sync.RWMutex: one dynamically-created entityShard
// per distinct EntityPath lives inside whichever stripe its path hashes to.
// Lock ordering is strict and one-directional — a stripe's map lock is
// always released before any shard's own lock is acquired; the map lock is
// never taken while holding a shard lock.

import (
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// StoreGeneration is the component-wise max of every shard's generation
// counter. It only ever increases.
type StoreGeneration uint64

// mapStripe is one independently-locked slice of the shard map.
type mapStripe struct {
	mu     sync.RWMutex
	shards map[EntityPathHash]*entityShard
}

// Store is chronostore's top-level, concurrency-safe entity store.
type Store struct {
	storeID    string
	clusterKey ComponentName
	cfg        *config

	stripes []*mapStripe

	allocator *RowIDAllocator
	insertIDs atomic.Uint64

	subs *subscriberRegistry

	metrics        metricsSink
	metricsEnabled bool

	// knownPaths tracks every EntityPath the store has ever seen, so
	// callers like the clear-cascade driver can enumerate every entity
	// currently visible without a full shard-map scan on the hot path.
	// Guarded by its own mutex, never held while any shard or stripe lock
	// is held.
	pathsMu sync.RWMutex
	paths   map[EntityPathHash]EntityPath
}

// New constructs a Store with the given store id, cluster-key component and
// options. Invalid configuration is a fatal, construction-time error.
func New(storeID string, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	clusterKey := cfg.clusterKey
	if clusterKey == "" {
		clusterKey = DefaultClusterKey
	}

	s := &Store{
		storeID:        storeID,
		clusterKey:     clusterKey,
		cfg:            cfg,
		stripes:        make([]*mapStripe, cfg.numShards),
		allocator:      NewRowIDAllocator(cfg.rowIDAllocatorOpts...),
		subs:           newSubscriberRegistry(cfg.logger),
		metrics:        newMetricsSink(cfg.registry),
		metricsEnabled: cfg.registry != nil,
		paths:          make(map[EntityPathHash]EntityPath),
	}
	for i := range s.stripes {
		s.stripes[i] = &mapStripe{shards: make(map[EntityPathHash]*entityShard)}
	}
	return s, nil
}

// ID returns the store's id.
func (s *Store) ID() string { return s.storeID }

// ClusterKey returns the configured cluster-key component name.
func (s *Store) ClusterKey() ComponentName { return s.clusterKey }

// Config exposes the store's effective configuration as a read-only copy of
// the fields external callers can observe.
func (s *Store) Config() Config {
	return Config{
		IndexedBucketNumRows: s.cfg.bucketSplitThreshold,
		EnableTypecheck:      s.cfg.enableTypecheck,
		StoreInsertIDs:       s.cfg.storeInsertIDs,
	}
}

// Config is the caller-visible subset of store configuration.
type Config struct {
	IndexedBucketNumRows int
	EnableTypecheck      bool
	StoreInsertIDs       bool
}

// stripeFor returns the map stripe owning hash.
func (s *Store) stripeFor(hash EntityPathHash) *mapStripe {
	return s.stripes[s.stripeIndexFor(hash)]
}

// stripeIndexFor returns hash's stripe index, also used as the "shard"
// metrics label.
func (s *Store) stripeIndexFor(hash EntityPathHash) uint16 {
	return uint16(uint64(hash) & uint64(len(s.stripes)-1))
}

// getOrCreateShard returns the entityShard for path, creating it under a
// brief stripe write-lock if this is the first time path has been seen. The
// stripe lock is always released before the returned shard's own lock is
// ever taken by the caller.
func (s *Store) getOrCreateShard(path EntityPath) *entityShard {
	stripe := s.stripeFor(path.Hash())

	stripe.mu.RLock()
	sh, ok := stripe.shards[path.Hash()]
	stripe.mu.RUnlock()
	if ok {
		return sh
	}

	stripe.mu.Lock()
	sh, ok = stripe.shards[path.Hash()]
	if !ok {
		sh = newEntityShard(path, s.clusterKey, s.stripeIndexFor(path.Hash()), s.metrics, s.cfg.logger)
		stripe.shards[path.Hash()] = sh
	}
	stripe.mu.Unlock()

	s.rememberPath(path)
	return sh
}

// getShard returns the entityShard for path, or nil if none exists yet.
func (s *Store) getShard(path EntityPath) *entityShard {
	stripe := s.stripeFor(path.Hash())
	stripe.mu.RLock()
	defer stripe.mu.RUnlock()
	return stripe.shards[path.Hash()]
}

func (s *Store) rememberPath(path EntityPath) {
	s.pathsMu.Lock()
	s.paths[path.Hash()] = path
	s.pathsMu.Unlock()
}

// KnownEntityPaths returns every EntityPath the store has ever routed a
// write to, in no particular order. Used by the clear-cascade driver and
// diagnostics.
func (s *Store) KnownEntityPaths() []EntityPath {
	s.pathsMu.RLock()
	defer s.pathsMu.RUnlock()
	out := make([]EntityPath, 0, len(s.paths))
	for _, p := range s.paths {
		out = append(out, p)
	}
	return out
}

// allShardsSorted returns every live shard across all stripes, sorted by
// EntityPathHash ascending — the order required for deterministic
// inter-shard event ordering and for GC's round-robin fairness walk.
func (s *Store) allShardsSorted() []*entityShard {
	var out []*entityShard
	for _, stripe := range s.stripes {
		stripe.mu.RLock()
		for _, sh := range stripe.shards {
			out = append(out, sh)
		}
		stripe.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path.Hash() < out[j].path.Hash() })
	return out
}

// Generation returns the store-wide StoreGeneration: the max generation
// counter across every shard, or zero if the store has no shards yet.
func (s *Store) Generation() StoreGeneration {
	var max uint64
	for _, sh := range s.allShardsSorted() {
		if g := sh.generationValue(); g > max {
			max = g
		}
	}
	return StoreGeneration(max)
}

// --- Writes ----------------------------------------------------------------

// InsertRow inserts a single row using the store's default retry parameters
// (1000 attempts, step size 100).
func (s *Store) InsertRow(row Row) (StoreEvent, error) {
	return s.InsertRowWithRetries(row, rowIDDefaultNumAttempts, rowIDDefaultStepSize)
}

const (
	rowIDDefaultNumAttempts = 1000
	rowIDDefaultStepSize    = 100
)

// InsertRowWithRetries inserts row, retrying with a jittered RowID on
// ReusedRowId up to numAttempts times. A non-ReusedRowId write error (type
// mismatch, malformed row) is returned immediately without retry.
func (s *Store) InsertRowWithRetries(row Row, numAttempts, stepSize int) (StoreEvent, error) {
	event, err := s.insertRowNoDispatch(row, numAttempts, stepSize)
	if err != nil {
		return StoreEvent{}, err
	}
	s.subs.dispatch([]StoreEvent{event})
	return event, nil
}

// insertRowNoDispatch runs the reused-row-id retry loop against row's shard without
// notifying subscribers; InsertTableWithRetries collects events from many
// goroutines and dispatches them once, as a single canonically-ordered
// batch, after every group has finished.
func (s *Store) insertRowNoDispatch(row Row, numAttempts, stepSize int) (StoreEvent, error) {
	if numAttempts <= 0 {
		numAttempts = rowIDDefaultNumAttempts
	}
	if stepSize <= 0 {
		stepSize = rowIDDefaultStepSize
	}

	sh := s.getOrCreateShard(row.EntityPath())
	stripe := s.stripeIndexFor(row.EntityPath().Hash())
	original := row.RowID()
	candidate := row

	for attempt := 0; attempt < numAttempts; attempt++ {
		event, err := sh.insert(candidate, s.cfg.bucketSplitThreshold, s.cfg.enableTypecheck)
		if err == nil {
			if s.cfg.storeInsertIDs {
				event.InsertID = s.insertIDs.Add(1)
			}
			event.StoreID = s.storeID
			s.metrics.incInserted(stripe)
			return event, nil
		}
		var reused *ReusedRowIDError
		if !asReusedRowID(err, &reused) {
			s.metrics.incRejected(stripe)
			return StoreEvent{}, err
		}
		nextID := s.allocator.Retry(candidate.RowID(), stepSize)
		candidate = candidate.withRowID(nextID)
	}

	return StoreEvent{}, &RowIDAttemptsExhaustedError{
		Original:    original,
		LastTried:   candidate.RowID(),
		NumAttempts: numAttempts,
	}
}

// asReusedRowID reports whether err is a *ReusedRowIDError, assigning it
// through out on success. A small helper to avoid importing errors.As just
// for one concrete type in the hot insert-retry path.
func asReusedRowID(err error, out **ReusedRowIDError) bool {
	if r, ok := err.(*ReusedRowIDError); ok {
		*out = r
		return true
	}
	return false
}

// InsertTableWithRetries materialises table into per-entity row groups and
// inserts each group's rows in parallel. Returns every event produced,
// sorted into entity-path-hash-ascending, row-id-ascending order, so two
// identical InsertTableWithRetries calls produce byte-identical event
// streams.
//
// On the first error encountered in any group, that error is returned
// alongside every event already produced (including from groups that
// finished successfully and from rows before the failure within the failing
// group) — callers get partial success rather than an all-or-nothing
// rollback.
//
// Subscribers observe the whole call as a single Notify with the full
// sorted batch, delivered on this goroutine after every group's shard lock
// has been released — never one Notify per row from racing workers.
func (s *Store) InsertTableWithRetries(table *Table, numAttempts, stepSize int) ([]StoreEvent, error) {
	groups := make(map[EntityPathHash][]Row)
	order := make([]EntityPathHash, 0)
	var firstErr error
	for row, err := range table.Rows() {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		h := row.EntityPath().Hash()
		if _, seen := groups[h]; !seen {
			order = append(order, h)
		}
		groups[h] = append(groups[h], row)
	}
	if len(groups) == 0 {
		return nil, firstErr
	}

	type groupResult struct {
		hash   EntityPathHash
		events []StoreEvent
		err    error
	}
	results := make([]groupResult, len(order))

	var eg errgroup.Group
	for i, h := range order {
		i, h := i, h
		rows := groups[h]
		eg.Go(func() error {
			events := make([]StoreEvent, 0, len(rows))
			for _, row := range rows {
				ev, err := s.insertRowNoDispatch(row, numAttempts, stepSize)
				if err != nil {
					results[i] = groupResult{hash: h, events: events, err: err}
					return nil
				}
				events = append(events, ev)
			}
			results[i] = groupResult{hash: h, events: events}
			return nil
		})
	}
	_ = eg.Wait()

	var all []StoreEvent
	for _, r := range results {
		all = append(all, r.events...)
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
	}
	sortEventsCanonical(all)
	s.subs.dispatch(all)
	return all, firstErr
}

func sortEventsCanonical(events []StoreEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].ShardHash != events[j].ShardHash {
			return events[i].ShardHash < events[j].ShardHash
		}
		return events[i].RowID.Less(events[j].RowID)
	})
}

// --- Reads -------------------------------------------------------------

// AllComponents returns the union of components present on timeline
// (temporal) and in the timeless index for entity, or nil if the entity has
// no shard at all.
func (s *Store) AllComponents(timeline Timeline, entity EntityPath) []ComponentName {
	sh := s.getShard(entity)
	if sh == nil {
		return nil
	}
	return sh.allComponents(timeline)
}

// LookupDatatype scans every shard for component's registered datatype,
// returning the first hit. Component datatypes are global by construction —
// a component has exactly one Arrow-like datatype for the lifetime of the
// store — so any shard that has seen it agrees with every other.
func (s *Store) LookupDatatype(component ComponentName) (Datatype, bool) {
	for _, sh := range s.allShardsSorted() {
		if dt, ok := sh.lookupDatatype(component); ok {
			return dt, true
		}
	}
	return Datatype{}, false
}

// NumTimelessRows and NumTemporalRows report the store-wide row counts
// across every shard.
func (s *Store) NumTimelessRows() int64 {
	var n int64
	for _, sh := range s.allShardsSorted() {
		n += sh.numTimelessRows()
	}
	return n
}

func (s *Store) NumTemporalRows() int64 {
	var n int64
	for _, sh := range s.allShardsSorted() {
		n += sh.numTemporalRows()
	}
	return n
}

// Stats returns a point-in-time snapshot of store-wide bookkeeping. When
// metrics are enabled, the per-stripe row/byte gauges are refreshed as a
// side effect, so scraping /metrics alongside a Stats-backed debug endpoint
// keeps both in agreement.
func (s *Store) Stats() Stats {
	shards := s.allShardsSorted()
	var totalSize int64
	stripeRows := make(map[uint16]int)
	stripeBytes := make(map[uint16]int64)
	for _, sh := range shards {
		size := sh.heapSizeBytes()
		totalSize += size
		if s.metricsEnabled {
			stripe := s.stripeIndexFor(sh.path.Hash())
			stripeRows[stripe] += sh.numLiveRows()
			stripeBytes[stripe] += size
		}
	}
	if s.metricsEnabled {
		for stripe, n := range stripeRows {
			s.metrics.setShardRows(stripe, n)
			s.metrics.setShardBytes(stripe, stripeBytes[stripe])
		}
	}
	return Stats{
		NumShards:       len(shards),
		NumTimelessRows: s.NumTimelessRows(),
		NumTemporalRows: s.NumTemporalRows(),
		TotalSizeBytes:  totalSize,
		Generation:      s.Generation(),
	}
}

// --- Subscribers ---------------------------------------------------------

// SubscriberHandle lets a caller unregister a previously-registered
// subscriber.
type SubscriberHandle struct {
	unsubscribe func()
}

// RegisterSubscriber adds sub to the dispatch list and returns a handle that
// can later be passed to UnregisterSubscriber.
func (s *Store) RegisterSubscriber(sub Subscriber) SubscriberHandle {
	return SubscriberHandle{unsubscribe: s.subs.Subscribe(sub)}
}

// UnregisterSubscriber removes the subscriber identified by handle. Safe to
// call more than once.
func (s *Store) UnregisterSubscriber(handle SubscriberHandle) {
	if handle.unsubscribe != nil {
		handle.unsubscribe()
	}
}
