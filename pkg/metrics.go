package store

// metrics.go is a thin abstraction over Prometheus: a metricsSink
// interface, a no-op implementation used when the caller opts out, and a
// Prometheus-backed implementation registered only when WithMetrics
// supplies a registry.
//
// ┌────────────────────────────────┬──────┬─────────┐
// │ Metric                        │ Type │ Labels  │
// ├────────────────────────────────┼──────┼─────────┤
// │ chronostore_rows_inserted_total│ Ctr  │ shard   │
// │ chronostore_rows_rejected_total│ Ctr  │ shard   │
// │ chronostore_rows_gc_total      │ Ctr  │ shard   │
// │ chronostore_bucket_splits_total│ Ctr  │ shard   │
// │ chronostore_shard_rows         │ Gge  │ shard   │
// │ chronostore_shard_bytes        │ Gge  │ shard   │
// └────────────────────────────────┴──────┴─────────┘

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsSink interface {
	incInserted(shard uint16)
	incRejected(shard uint16)
	incGCDropped(shard uint16, n int)
	incBucketSplit(shard uint16)
	setShardRows(shard uint16, n int)
	setShardBytes(shard uint16, n int64)
}

type noopMetrics struct{}

func (noopMetrics) incInserted(uint16)          {}
func (noopMetrics) incRejected(uint16)          {}
func (noopMetrics) incGCDropped(uint16, int)    {}
func (noopMetrics) incBucketSplit(uint16)       {}
func (noopMetrics) setShardRows(uint16, int)    {}
func (noopMetrics) setShardBytes(uint16, int64) {}

type promMetrics struct {
	inserted     *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	gcDropped    *prometheus.CounterVec
	bucketSplits *prometheus.CounterVec
	shardRows    *prometheus.GaugeVec
	shardBytes   *prometheus.GaugeVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"shard"}
	pm := &promMetrics{
		inserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronostore", Name: "rows_inserted_total", Help: "Number of rows successfully inserted.",
		}, label),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronostore", Name: "rows_rejected_total", Help: "Number of rows rejected by a write error.",
		}, label),
		gcDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronostore", Name: "rows_gc_total", Help: "Number of rows dropped by garbage collection.",
		}, label),
		bucketSplits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronostore", Name: "bucket_splits_total", Help: "Number of temporal index bucket splits.",
		}, label),
		shardRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chronostore", Name: "shard_rows", Help: "Live row count per shard.",
		}, label),
		shardBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chronostore", Name: "shard_bytes", Help: "Estimated heap bytes held per shard.",
		}, label),
	}
	reg.MustRegister(pm.inserted, pm.rejected, pm.gcDropped, pm.bucketSplits, pm.shardRows, pm.shardBytes)
	return pm
}

func (m *promMetrics) incInserted(shard uint16) {
	m.inserted.WithLabelValues(strconv.Itoa(int(shard))).Inc()
}
func (m *promMetrics) incRejected(shard uint16) {
	m.rejected.WithLabelValues(strconv.Itoa(int(shard))).Inc()
}
func (m *promMetrics) incGCDropped(shard uint16, n int) {
	m.gcDropped.WithLabelValues(strconv.Itoa(int(shard))).Add(float64(n))
}
func (m *promMetrics) incBucketSplit(shard uint16) {
	m.bucketSplits.WithLabelValues(strconv.Itoa(int(shard))).Inc()
}
func (m *promMetrics) setShardRows(shard uint16, n int) {
	m.shardRows.WithLabelValues(strconv.Itoa(int(shard))).Set(float64(n))
}
func (m *promMetrics) setShardBytes(shard uint16, n int64) {
	m.shardBytes.WithLabelValues(strconv.Itoa(int(shard))).Set(float64(n))
}

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
