package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/time/rate"

	"github.com/atlas-daemon/atlasd/concurrency"
	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/logger"
)

// Pressure classification thresholds (spec.md §4.7). Generalized from
// the teacher's pulse/async/system_metrics.go calculateSafeWorkerCount
// (a single memory-vs-worker-count heuristic) into the four-level
// {low, normal, high, critical} state machine the Adaptive Concurrency
// Controller consumes.
const (
	criticalCPUPercent = 90.0
	criticalMemPercent = 90.0
	highCPUPercent     = 75.0
	highMemPercent     = 80.0
	lowCPUPercent      = 30.0
	lowMemPercent      = 50.0
)

// classify maps a CPU/memory/queue-depth reading to a pressure level.
// queueDepth is the sum of in-flight work across all lanes: a system
// that is CPU/memory idle but has a deep backlog is nudged up one
// level, since a growing queue under light system load usually means
// collaborator latency, not local resource pressure, is the bottleneck.
func classify(cpuPercent, memPercent float64, queueDepth, queueDepthHighWatermark int) concurrency.Pressure {
	p := concurrency.PressureNormal
	switch {
	case cpuPercent >= criticalCPUPercent || memPercent >= criticalMemPercent:
		p = concurrency.PressureCritical
	case cpuPercent >= highCPUPercent || memPercent >= highMemPercent:
		p = concurrency.PressureHigh
	case cpuPercent < lowCPUPercent && memPercent < lowMemPercent:
		p = concurrency.PressureLow
	}
	if queueDepthHighWatermark > 0 && queueDepth >= queueDepthHighWatermark && p < concurrency.PressureHigh {
		p++
	}
	return p
}

// PressureConfig configures the System Pressure Monitor.
type PressureConfig struct {
	Interval time.Duration
	// QueueDepth, if set, reports total in-flight work across lanes.
	QueueDepth func() int
	// QueueDepthHighWatermark is the queue depth at or above which
	// classify escalates pressure by one level. Zero disables the
	// escalation.
	QueueDepthHighWatermark int
}

// PressureMonitor samples CPU and memory utilization on an interval and
// invokes every registered observer with the classified pressure level
// (spec.md §4.7, §9: "the pressure monitor the sole authority that
// publishes pressure events; lane controllers subscribe, never call
// back into the monitor" — observers here are exactly that
// subscription, expressed as plain callbacks rather than a second bus
// topic, since the monitor already owns the single path lane
// controllers need).
type PressureMonitor struct {
	cfg PressureConfig
	bus *eventbus.Bus

	mu        sync.Mutex
	observers []func(concurrency.Pressure)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPressureMonitor constructs a monitor. bus receives a
// "daemon.pressure.sampled" event on every sample, independent of the
// observer callbacks, for external visibility to subscribed clients.
func NewPressureMonitor(bus *eventbus.Bus, cfg PressureConfig) *PressureMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &PressureMonitor{cfg: cfg, bus: bus}
}

// Observe registers a callback invoked with every classified sample.
// Must be called before Start.
func (m *PressureMonitor) Observe(fn func(concurrency.Pressure)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *PressureMonitor) Name() string { return "pressure-monitor" }

// Start begins the sampling loop in a background goroutine.
func (m *PressureMonitor) Start() error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.done = make(chan struct{})
	go m.run(m.ctx)
	return nil
}

// Stop cancels the sampling loop and waits for it to exit.
func (m *PressureMonitor) Stop() error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	<-m.done
	return nil
}

// run paces sampling with a rate.Limiter rather than a bare time.Ticker
// (grounded on the teacher's golang.org/x/time dependency): a limiter
// lets Start/Stop cycles re-enter the loop without a stale ticker
// channel to drain, and composes naturally with ctx cancellation via
// Wait.
func (m *PressureMonitor) run(ctx context.Context) {
	defer close(m.done)
	limiter := rate.NewLimiter(rate.Every(m.cfg.Interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		m.sampleOnce()
	}
}

func (m *PressureMonitor) sampleOnce() {
	cpuPct := 0.0
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPct = pcts[0]
	} else if err != nil {
		logger.Debugw("pressure monitor: cpu sample failed", "error", err.Error())
	}

	memPct := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	} else {
		logger.Debugw("pressure monitor: memory sample failed", "error", err.Error())
	}

	depth := 0
	if m.cfg.QueueDepth != nil {
		depth = m.cfg.QueueDepth()
	}

	p := classify(cpuPct, memPct, depth, m.cfg.QueueDepthHighWatermark)

	if m.bus != nil {
		m.bus.Emit(eventbus.Event{Type: "daemon.pressure.sampled", Data: map[string]interface{}{
			"cpuPercent": cpuPct, "memPercent": memPct, "queueDepth": depth, "pressure": p.String(),
		}})
	}

	m.mu.Lock()
	observers := make([]func(concurrency.Pressure), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()
	for _, obs := range observers {
		obs(p)
	}
}
