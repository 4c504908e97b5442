// Package eventbus implements atlasd's in-process event fan-out:
// typed {type, data} events are delivered first to in-process listeners
// (same-process tasks and tests) and then to every client connection
// whose subscription patterns match, per spec.md §3/§4.3.
package eventbus

import (
	"sync"

	"github.com/atlas-daemon/atlasd/logger"
)

// Event is the tagged record described in spec.md §3. Types live in
// dotted namespaces (daemon.*, ingest.*, ingest.file.*, search.*,
// consolidate.*, session.*, lane.*).
type Event struct {
	Type string
	Data interface{}
}

// Listener receives events delivered in-process (no subscription
// pattern filtering applies to listeners — they see everything, the
// same way the teacher's pulse/async queue.go subscribers do).
type Listener func(Event)

// Sink is implemented by the Transport component: it delivers a
// notification to every connection whose subscriptions match. The bus
// never touches sockets directly; it only classifies and hands off,
// matching spec.md §4.3's separation of subscription matching from
// delivery mechanics.
type Sink interface {
	Deliver(evt Event, subscribers []SubscriberID)
}

// SubscriberID identifies a connection in Transport's registry.
type SubscriberID uint64

// Bus holds the in-process listener list and the per-client
// subscription registry, and drives Emit's two-phase delivery order.
type Bus struct {
	mu        sync.Mutex
	listeners []Listener
	subs      map[SubscriberID]*subscription
	sink      Sink
	nextSub   SubscriberID
}

type subscription struct {
	id       SubscriberID
	patterns map[string]struct{}
}

// New constructs a Bus. sink is nil until Transport attaches itself via
// SetSink — tests commonly run a Bus with no sink at all and assert
// only on in-process listener delivery.
func New() *Bus {
	return &Bus{subs: make(map[SubscriberID]*subscription)}
}

// SetSink attaches the Transport-backed delivery sink.
func (b *Bus) SetSink(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

// Listen registers an in-process listener, invoked in registration
// order before any client delivery. A panicking listener is recovered
// and logged, never propagated — spec.md §4.3's "listener exceptions
// are logged, never propagated."
func (b *Bus) Listen(fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Register adds a new subscriber with an empty pattern set, returning
// its id. Transport calls this on accept.
func (b *Bus) Register() SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	id := b.nextSub
	b.subs[id] = &subscription{id: id, patterns: make(map[string]struct{})}
	return id
}

// Unregister removes a subscriber atomically relative to any subsequent
// broadcast, satisfying spec.md §3's "closing a client removes all of
// its patterns atomically relative to subsequent broadcasts." An Emit
// that already took its subscriber snapshot still hands this id to the
// sink.
func (b *Bus) Unregister(id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscribe unions the given patterns into id's current set
// (atlas.subscribe is additive, spec.md §4.3).
func (b *Bus) Subscribe(id SubscriberID, patterns []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	for _, p := range patterns {
		sub.patterns[p] = struct{}{}
	}
}

// Unsubscribe removes the exact pattern strings provided.
func (b *Bus) Unsubscribe(id SubscriberID, patterns []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	for _, p := range patterns {
		delete(sub.patterns, p)
	}
}

// Emit runs in-process listeners (registration order), then hands off
// to the sink with the snapshot of matching subscriber ids in
// connection-id order (spec.md §4.3/§5: "materialize the snapshot
// before I/O"). No ordering is guaranteed across concurrent Emit calls.
func (b *Bus) Emit(evt Event) {
	b.mu.Lock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	matched := b.matchLocked(evt.Type)
	sink := b.sink
	b.mu.Unlock()

	for _, l := range listeners {
		invokeListener(l, evt)
	}

	if sink != nil && len(matched) > 0 {
		sink.Deliver(evt, matched)
	}
}

func invokeListener(l Listener, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("event listener panicked", "event_type", evt.Type, "panic", r)
		}
	}()
	l(evt)
}

// matchLocked returns subscriber ids whose pattern set matches
// evt.Type, in ascending connection-id order. Caller holds b.mu.
func (b *Bus) matchLocked(eventType string) []SubscriberID {
	var matched []SubscriberID
	for id, sub := range b.subs {
		if subscriptionMatches(sub.patterns, eventType) {
			matched = append(matched, id)
		}
	}
	sortSubscriberIDs(matched)
	return matched
}
