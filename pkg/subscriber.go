package store

// subscriber.go implements the Subscriber dispatch protocol: subscribers
// are notified after a batch of mutations, outside any shard lock, with
// events delivered in shard-hash-ascending order so two subscribers
// observing the same batch see the same order.
//
// Notify runs in the calling goroutine and must not block. More than one
// observer (the clear-cascade driver, metrics, user code) may need to see
// the same mutation stream, so subscribers are a registrable list rather
// than a single callback.

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Subscriber receives a batch of StoreEvents produced by one Store call
// (Insert, Clear, or GC). Notify runs in the caller's goroutine and must
// not block; a subscriber that needs to do slow work should hand the
// batch off to its own goroutine.
type Subscriber interface {
	Notify(events []StoreEvent)
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(events []StoreEvent)

func (f SubscriberFunc) Notify(events []StoreEvent) { f(events) }

type subscriberEntry struct {
	id  uint64
	sub Subscriber
}

type subscriberRegistry struct {
	logger *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   []subscriberEntry
}

func newSubscriberRegistry(logger *zap.Logger) *subscriberRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &subscriberRegistry{logger: logger}
}

// Subscribe registers sub and returns an unsubscribe function. Removal is
// keyed by a unique id rather than a slice index, so unsubscribing one
// subscriber never invalidates another's handle.
func (r *subscriberRegistry) Subscribe(sub Subscriber) (unsubscribe func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscriberEntry{id: id, sub: sub})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.subs {
			if e.id == id {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// dispatch sorts events by (ShardHash, RowID) ascending — the store's hard
// ordering contract — then notifies every subscriber with the full sorted
// batch, outside of any shard lock (callers must invoke dispatch only
// after releasing every shard.mu they hold).
func (r *subscriberRegistry) dispatch(events []StoreEvent) {
	if len(events) == 0 {
		return
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].ShardHash != events[j].ShardHash {
			return events[i].ShardHash < events[j].ShardHash
		}
		return events[i].RowID.Less(events[j].RowID)
	})

	r.mu.RLock()
	subs := make([]Subscriber, len(r.subs))
	for i, e := range r.subs {
		subs[i] = e.sub
	}
	r.mu.RUnlock()

	for _, sub := range subs {
		r.notifyOne(sub, events)
	}
}

// notifyOne delivers one batch to one subscriber, containing any panic: a
// misbehaving subscriber must not unwind the insert or GC call that
// produced the events, nor starve the subscribers after it in the list.
func (r *subscriberRegistry) notifyOne(sub Subscriber, events []StoreEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber panicked in Notify", zap.Any("panic", rec))
		}
	}()
	sub.Notify(events)
}
