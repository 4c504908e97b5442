package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	delivered []SubscriberID
}

func (s *fakeSink) Deliver(evt Event, subscribers []SubscriberID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, subscribers...)
}

func TestSubscribeUnsubscribeRoundTrip(t *testing.T) {
	b := New()
	sink := &fakeSink{}
	b.SetSink(sink)

	id := b.Register()
	b.Subscribe(id, []string{"ingest.*"})
	b.Emit(Event{Type: "ingest.started"})
	require.Len(t, sink.delivered, 1)

	b.Unsubscribe(id, []string{"ingest.*"})
	sink.delivered = nil
	b.Emit(Event{Type: "ingest.started"})
	assert.Empty(t, sink.delivered)
}

func TestNamespaceWildcardDoesNotCrossSegments(t *testing.T) {
	b := New()
	sink := &fakeSink{}
	b.SetSink(sink)

	id := b.Register()
	b.Subscribe(id, []string{"ingest.*"})

	b.Emit(Event{Type: "ingest.started"})
	assert.Len(t, sink.delivered, 1)

	sink.delivered = nil
	b.Emit(Event{Type: "ingest.file.complete"})
	assert.Empty(t, sink.delivered, "ingest.* must not match a second-level segment")
}

func TestCatchAllMatchesEverything(t *testing.T) {
	b := New()
	sink := &fakeSink{}
	b.SetSink(sink)

	id := b.Register()
	b.Subscribe(id, []string{"*"})

	b.Emit(Event{Type: "daemon.started"})
	b.Emit(Event{Type: "ingest.file.complete"})
	assert.Len(t, sink.delivered, 2)
}

func TestListenerPanicIsRecovered(t *testing.T) {
	b := New()
	called := false
	b.Listen(func(Event) { panic("boom") })
	b.Listen(func(Event) { called = true })

	assert.NotPanics(t, func() { b.Emit(Event{Type: "daemon.started"}) })
	assert.True(t, called, "a later listener still runs after an earlier one panics")
}

func TestUnregisterRemovesSubscriptionsAtomically(t *testing.T) {
	b := New()
	sink := &fakeSink{}
	b.SetSink(sink)

	id := b.Register()
	b.Subscribe(id, []string{"*"})
	b.Unregister(id)

	b.Emit(Event{Type: "daemon.started"})
	assert.Empty(t, sink.delivered)
}
