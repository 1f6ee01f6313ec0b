// Package store implements chronostore's in-memory, time-indexed, columnar
// data store: a sharded collection of per-entity indices over immutable,
// Arrow-like cells, addressed by a hierarchical entity path and indexed
// across zero or more user-defined timelines plus one reserved timeless
// axis.
//
// The package exposes one surface (Store), backed by an unexported shard
// type that owns the actual mutable indices, plus small focused files for
// configuration, errors, events, queries, and garbage collection.
//
// © 2025 chronostore authors. MIT License.
package store
