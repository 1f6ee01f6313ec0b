package store

// stats.go implements Stats and StatsDelta. Summing SizeBytesDelta over
// every event ever emitted equals the current Stats().TotalSizeBytes; each
// shard keeps a running size total rather than re-walking its cells on
// each call, so Stats() stays cheap enough to call from a debug endpoint
// on every scrape.

// Stats is a point-in-time snapshot of store-wide bookkeeping.
type Stats struct {
	NumShards       int
	NumTimelessRows int64
	NumTemporalRows int64
	TotalSizeBytes  int64
	Generation      StoreGeneration
}

// StatsDelta reports how Stats changed across one call (typically a GC
// pass): the caller can add these fields to a previously cached Stats
// instead of recomputing from scratch.
type StatsDelta struct {
	RowsDropped    int64
	SizeBytesDelta int64
}
