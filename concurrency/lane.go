// Package concurrency implements atlasd's Adaptive Concurrency
// Controller (spec.md §4.7): one controller per lane (ingest, search,
// consolidate, watch, admin), each tracking {current, min, max, target}
// and admitting work against a pressure-driven target. This generalizes
// the teacher's pulse/async/worker.go admission-gating pattern (rate
// limit check, then budget check, then dequeue) into a single
// env-override-configurable lane type, per spec.md §9's design note
// that ingest and QNTM controllers should be "configurations of the
// same controller" rather than near-duplicate implementations.
package concurrency

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/logger"
)

// Pressure is the System Pressure Monitor's classification (spec.md §4.7).
type Pressure int

const (
	PressureLow Pressure = iota
	PressureNormal
	PressureHigh
	PressureCritical
)

func (p Pressure) String() string {
	switch p {
	case PressureLow:
		return "low"
	case PressureNormal:
		return "normal"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Config describes one lane's identity and bounds.
type Config struct {
	Name string
	Min  int // min >= 1
	Max  int
	// EnvOverride names an environment variable (e.g.
	// ATLAS_INGEST_CONCURRENCY) that, if set, caps Max (spec.md §4.7, §6).
	EnvOverride string
}

// Lane is a back-pressure-aware queue: submitters call Acquire to
// obtain a slot (blocking FIFO if the lane is at target) and Release
// when done. The pressure monitor calls Reassess with every classified
// sample (registered as an observer callback, not through the Bus),
// and Reassess recomputes target and emits lane.pressure.changed.
type Lane struct {
	cfg Config

	mu      sync.Mutex
	current int
	target  int
	max     int
	waiters []chan struct{}

	bus *eventbus.Bus
}

// NewLane constructs a lane at its configured Min as the initial
// target (conservative until the first pressure sample arrives), with
// Max clamped by cfg.EnvOverride if set.
func NewLane(cfg Config, bus *eventbus.Bus) *Lane {
	max := cfg.Max
	if cfg.EnvOverride != "" {
		if v := os.Getenv(cfg.EnvOverride); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n < max {
				max = n
			}
		}
	}
	return &Lane{cfg: cfg, target: cfg.Min, max: max, bus: bus}
}

// Name returns the lane's identity for status reporting and events.
func (l *Lane) Name() string { return l.cfg.Name }

// State is the {current, min, max, target} snapshot spec.md §4.7
// requires every lane to expose, and which SPEC_FULL.md's status
// enrichment surfaces via atlas.status.
type State struct {
	Name    string `json:"name"`
	Current int    `json:"current"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Target  int    `json:"target"`
}

// Snapshot returns the lane's current state.
func (l *Lane) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{Name: l.cfg.Name, Current: l.current, Min: l.cfg.Min, Max: l.max, Target: l.target}
}

// Reassess applies the spec.md §4.7 state machine for the given
// pressure reading and emits lane.pressure.changed /
// lane.concurrency.updated (spec.md §4.7: "every state change emits a
// lane event carrying the new values").
func (l *Lane) Reassess(p Pressure) {
	l.mu.Lock()
	old := l.target
	switch p {
	case PressureLow:
		l.target = l.max
	case PressureNormal:
		l.target = clamp(l.current, l.cfg.Min+1, l.max)
	case PressureHigh:
		l.target = clamp(l.current-1, l.cfg.Min, l.max)
	case PressureCritical:
		l.target = l.cfg.Min
	}
	newTarget := l.target
	toAdmit := l.admitWaitersLocked()
	l.mu.Unlock()

	for _, w := range toAdmit {
		close(w)
	}

	if l.bus == nil {
		return
	}
	l.bus.Emit(eventbus.Event{Type: "lane.pressure.changed", Data: map[string]interface{}{
		"lane": l.cfg.Name, "pressure": p.String(),
	}})
	if newTarget != old {
		l.bus.Emit(eventbus.Event{Type: "lane.concurrency.updated", Data: l.snapshotMap(newTarget)})
	}
}

func (l *Lane) snapshotMap(target int) map[string]interface{} {
	return map[string]interface{}{
		"lane": l.cfg.Name, "current": l.current, "min": l.cfg.Min, "max": l.max, "target": target,
	}
}

// clamp raises v to lo, then caps it at hi, so hi wins when lo > hi
// (e.g. min+1 on a lane whose Max equals its Min).
func clamp(v, lo, hi int) int {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

// Acquire blocks until a slot is available under the current target or
// ctx is cancelled (spec.md §4.7: "admits if in_flight < target;
// otherwise it queues (FIFO)").
func (l *Lane) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.current < l.target {
		l.current++
		l.mu.Unlock()
		return nil
	}
	wait := make(chan struct{})
	l.waiters = append(l.waiters, wait)
	l.mu.Unlock()

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		if l.removeWaiter(wait) {
			logger.Debugw("lane acquire cancelled while queued", "lane", l.cfg.Name)
			return ctx.Err()
		}
		// Lost the race: Reassess/Release already admitted this waiter
		// (popped it from l.waiters and incremented current) between
		// ctx firing and us taking the lock. Give the slot back rather
		// than leaking it — the caller believes Acquire failed and will
		// never call Release.
		l.Release()
		return ctx.Err()
	}
}

// removeWaiter removes wait from l.waiters if still queued, reporting
// whether it found and removed it. A waiter absent from the slice has
// already been admitted (and current incremented for it) by a
// concurrent Reassess/Release.
func (l *Lane) removeWaiter(wait chan struct{}) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w == wait {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Release returns a slot, admitting the next FIFO waiter if one fits
// under target (spec.md §4.7: "On slot release, the next queued
// submitter is admitted.").
func (l *Lane) Release() {
	l.mu.Lock()
	if l.current > 0 {
		l.current--
	}
	toAdmit := l.admitWaitersLocked()
	l.mu.Unlock()
	for _, w := range toAdmit {
		close(w)
	}
}

// admitWaitersLocked promotes queued waiters while current < target.
// Caller holds l.mu.
func (l *Lane) admitWaitersLocked() []chan struct{} {
	var admitted []chan struct{}
	for len(l.waiters) > 0 && l.current < l.target {
		w := l.waiters[0]
		l.waiters = l.waiters[1:]
		l.current++
		admitted = append(admitted, w)
	}
	return admitted
}

// Drain stops admitting (by setting target to 0) and blocks
// until in_flight reaches zero or ctx is cancelled (spec.md §4.7:
// "drain() which stops admitting and resolves when in_flight == 0").
func (l *Lane) Drain(ctx context.Context) error {
	l.mu.Lock()
	l.target = 0
	empty := l.current == 0
	l.mu.Unlock()
	if empty {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			l.mu.Lock()
			empty := l.current == 0
			l.mu.Unlock()
			if empty {
				return
			}
			time.Sleep(drainPollInterval)
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drainPollInterval paces Drain's in_flight==0 poll; in-flight work is
// driven by collaborator I/O latency, not CPU, so sub-millisecond
// polling here would only waste cycles without draining any faster.
const drainPollInterval = 20 * time.Millisecond
