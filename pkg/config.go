package store

// config.go defines the Store's configuration object and the functional
// options used to build it: defaultConfig builds the baseline, each
// WithXxx returns an Option that mutates it, and applyOptions validates the
// result once every option has run.

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Voskan/chronostore/internal/bucketindex"
)

// DefaultClusterKey is the component name chronostore synthesises on every
// row missing it: a flat uint64 instance-index array.
const DefaultClusterKey ComponentName = "chronostore.instance_key"

// config bundles every knob influencing Store behaviour. Immutable once
// the Store is constructed.
type config struct {
	numShards            uint16
	clusterKey           ComponentName
	bucketSplitThreshold int
	gcBatchSize          int

	// enableTypecheck, when true, re-verifies a component's datatype on
	// every insert; when false (the default) the check only ever runs the
	// first time a component is seen by a given shard.
	enableTypecheck bool
	// storeInsertIDs annotates every successfully inserted row with a
	// monotone ingestion counter for diagnostics.
	storeInsertIDs bool

	logger   *zap.Logger
	registry *prometheus.Registry

	rowIDAllocatorOpts []RowIDAllocatorOption
}

// Option configures a Store at construction time.
type Option func(*config)

func defaultConfig() *config {
	return &config{
		numShards:            64,
		clusterKey:           DefaultClusterKey,
		bucketSplitThreshold: bucketindex.DefaultSplitThreshold,
		gcBatchSize:          128,
		logger:               zap.NewNop(),
	}
}

// WithNumShards sets the number of entity-path shards the store routes
// across. Must be a power of two; validated in applyOptions.
func WithNumShards(n uint16) Option {
	return func(c *config) { c.numShards = n }
}

// WithClusterKey overrides the default cluster-key component name.
func WithClusterKey(name ComponentName) Option {
	return func(c *config) { c.clusterKey = name }
}

// WithBucketSplitThreshold overrides the per-(entity,timeline) bucket
// row-count threshold at which a bucket splits.
func WithBucketSplitThreshold(n int) Option {
	return func(c *config) { c.bucketSplitThreshold = n }
}

// WithGCBatchSize overrides the number of rows a single GC hand-pass drops
// from one shard before yielding the round-robin hand to the next.
func WithGCBatchSize(n int) Option {
	return func(c *config) { c.gcBatchSize = n }
}

// WithEnableTypecheck makes every insert re-verify a component's datatype
// against the shard's registry. The default skips the check once a
// component has been seen and registered.
func WithEnableTypecheck(enable bool) Option {
	return func(c *config) { c.enableTypecheck = enable }
}

// WithStoreInsertIDs makes the store stamp every successfully inserted row
// with a monotone ingestion counter, retrievable for diagnostics.
func WithStoreInsertIDs(enable bool) Option {
	return func(c *config) { c.storeInsertIDs = enable }
}

// WithLogger plugs an external zap.Logger. The store never logs on the
// insert/query hot path; only GC sweeps and subscriber panics are logged.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection. Passing nil disables
// metrics (the default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithRowIDAllocatorOptions forwards options to the store's internal
// RowIDAllocator (e.g. WithDeterministicRetrySource for reproducible
// tests).
func WithRowIDAllocatorOptions(opts ...RowIDAllocatorOption) Option {
	return func(c *config) { c.rowIDAllocatorOpts = append(c.rowIDAllocatorOpts, opts...) }
}

func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.numShards == 0 || (cfg.numShards&(cfg.numShards-1)) != 0 {
		return errInvalidNumShards
	}
	if cfg.bucketSplitThreshold <= 0 {
		return errInvalidBucketThreshold
	}
	return nil
}

var (
	errInvalidNumShards       = errors.New("chronostore: num shards must be power-of-two and > 0")
	errInvalidBucketThreshold = errors.New("chronostore: bucket split threshold must be > 0")
)

// GCTarget selects how much of the GC candidate set a GC pass should
// attempt to drop.
type GCTarget struct {
	// Everything requests dropping every droppable row.
	Everything bool
	// DropAtLeastFraction requests dropping at least this fraction (0, 1]
	// of droppable rows; ignored when Everything is set.
	DropAtLeastFraction float64
}

// GCOptions configures one GC pass.
type GCOptions struct {
	Target GCTarget
	// GCTimeless, when false (the default), exempts the timeless index
	// from every drop decision: timeless data is never touched unless the
	// caller opts in.
	GCTimeless bool
	// ProtectLatest keeps the latest N rows per (entity, component,
	// timeline) un-droppable.
	ProtectLatest int
	// DontProtect exempts the listed components from ProtectLatest
	// protection entirely — e.g. a Clear-indicator component, so cascading
	// clears don't pin an unbounded tail.
	DontProtect map[ComponentName]struct{}
	// TimeBudget bounds wall-clock time spent in one GC pass; zero means
	// unbounded (run to completion of the target).
	TimeBudget time.Duration
	// PurgeEmptyTables removes buckets/timeline indices left empty after a
	// drop.
	PurgeEmptyTables bool
}
