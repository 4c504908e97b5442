package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/atlas-daemon/atlasd/concurrency"
	"github.com/atlas-daemon/atlasd/errors"
	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/logger"
	"github.com/atlas-daemon/atlasd/router"
	"github.com/atlas-daemon/atlasd/scheduler"
	"github.com/atlas-daemon/atlasd/session"
	"github.com/atlas-daemon/atlasd/tasks"
	"github.com/atlas-daemon/atlasd/transport"
)

// Collaborators bundles the five out-of-scope dependencies a daemon run
// needs wired in (spec.md §1).
type Collaborators struct {
	Storage Storage
	Embed   Embeddings
	LLM     LLM
	Ingest  Ingest
	Agent   AgentCoordinator
}

// Config configures one daemon run.
type Config struct {
	Paths Paths
	// WatchRoots are ingest roots to auto-watch at startup (SPEC_FULL.md
	// supplement 1). Empty disables the File Watcher scheduler entirely.
	WatchRoots []string
	Version    string
}

// Daemon is atlasd's Lifecycle Manager (spec.md §4.9): it owns ordered
// startup and shutdown of every other component, grounded on the
// teacher's server/lifecycle.go Stop() ordering (schedulers, then
// transport, then connections) and chainwatch's daemon.go Run(ctx)
// signal-driven main loop.
type Daemon struct {
	cfg      Config
	bus      *eventbus.Bus
	registry *tasks.Registry
	lanes    map[string]*concurrency.Lane
	pressure *scheduler.PressureMonitor
	watcher  *scheduler.FileWatcher
	manager  *scheduler.Manager
	server   *transport.Server
	router   *router.Router

	startedAt time.Time
	stopOnce  sync.Once
	stopErr   error
	crashCh   chan interface{}
}

// laneSpecs are the five lanes spec.md §4.7 names, all sharing the same
// Config shape. Each lane's EnvOverride, when set to a positive integer
// below its Max, lowers that Max. LLM_CONCURRENCY and QNTM_CONCURRENCY
// are not read: there is no LLM or QNTM lane.
var laneSpecs = []concurrency.Config{
	{Name: "ingest", Min: 1, Max: 4, EnvOverride: "ATLAS_INGEST_CONCURRENCY"},
	{Name: "search", Min: 1, Max: 8, EnvOverride: "ATLAS_SEARCH_CONCURRENCY"},
	{Name: "consolidate", Min: 1, Max: 1, EnvOverride: "ATLAS_CONSOLIDATE_CONCURRENCY"},
	{Name: "watch", Min: 1, Max: 2, EnvOverride: "ATLAS_WATCH_CONCURRENCY"},
	{Name: "admin", Min: 1, Max: 4, EnvOverride: "ATLAS_ADMIN_CONCURRENCY"},
}

// New assembles the full daemon object graph (spec.md §4.9 step 1's
// "initialize Application Service, storage, schedulers" and §9's "no
// global singletons" — every component here is constructed explicitly
// and threaded through by hand, the same discipline the teacher's
// server package follows).
func New(cfg Config, collab Collaborators) (*Daemon, error) {
	d := &Daemon{cfg: cfg, crashCh: make(chan interface{}, 1)}

	bus := eventbus.New()
	registry := tasks.NewRegistry()

	lanes := make(map[string]*concurrency.Lane, len(laneSpecs))
	routerLanes := make(map[string]router.Lane, len(laneSpecs))
	for _, spec := range laneSpecs {
		lane := concurrency.NewLane(spec, bus)
		lanes[spec.Name] = lane
		routerLanes[spec.Name] = newLaneAdapter(lane)
	}

	pressure := scheduler.NewPressureMonitor(bus, scheduler.PressureConfig{
		QueueDepth: func() int {
			total := 0
			for _, l := range lanes {
				total += l.Snapshot().Current
			}
			return total
		},
	})
	for _, lane := range lanes {
		lane := lane
		pressure.Observe(lane.Reassess)
	}

	manager := scheduler.NewManager()
	manager.Register(pressure)

	emit := func(eventType string, data interface{}) {
		bus.Emit(eventbus.Event{Type: eventType, Data: data})
	}
	svc := NewService(collab.Storage, collab.Embed, collab.LLM, collab.Ingest, collab.Agent, emit)

	rt := router.New(
		bus, registry, routerLanes, manager, svc,
		newIngestWorkerAdapter(collab.Ingest),
		newConsolidateWorkerAdapter(collab.Storage),
		router.StatusInfo{
			PID:             os.Getpid(),
			StartedAt:       d.StartedAt,
			SocketPath:      cfg.Paths.SocketPath,
			Version:         cfg.Version,
			ConnectionCount: func() int { return d.server.ConnectionCount() },
		},
	)
	rt = rt.WithSessionIngestor(session.New(bus, collab.Ingest))

	var watcher *scheduler.FileWatcher
	if len(cfg.WatchRoots) > 0 {
		var err error
		watcher, err = scheduler.NewFileWatcher(bus, registry, func(paths []string, watching bool) *tasks.IngestTask {
			return rt.StartIngestTask(paths, watching, true, "watch")
		})
		if err != nil {
			return nil, errors.Wrap(err, "construct file watcher")
		}
		for _, root := range cfg.WatchRoots {
			if err := watcher.AddRoot(root); err != nil {
				return nil, errors.Wrapf(err, "watch root %q", root)
			}
		}
		manager.Register(watcher)
	}

	server := transport.NewServer(cfg.Paths.SocketPath, bus, rt)

	d.bus = bus
	d.registry = registry
	d.lanes = lanes
	d.pressure = pressure
	d.watcher = watcher
	d.manager = manager
	d.server = server
	d.router = rt
	return d, nil
}

// Start runs the ordered startup sequence: runtime directory, PID lock
// (which also removes a stale socket file), socket bind, start
// schedulers, start serving, then emit daemon.started. It does not call
// the Storage collaborator's EnsureCollection or the LLM collaborator's
// RegisterPrompts.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.Paths.EnsureRuntimeDir(); err != nil {
		return err
	}
	if err := d.cfg.Paths.AcquirePIDLock(); err != nil {
		return err
	}
	if err := d.server.Listen(); err != nil {
		_ = d.cfg.Paths.ReleasePIDLock()
		return err
	}

	d.startedAt = time.Now()
	d.manager.StartAll()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.crashCh <- r
			}
		}()
		if err := d.server.Serve(); err != nil {
			logger.Errorw("transport serve exited", "error", err.Error())
		}
	}()

	d.bus.Emit(eventbus.Event{Type: "daemon.started", Data: map[string]interface{}{
		"pid": os.Getpid(), "socket": d.cfg.Paths.SocketPath,
	}})
	logger.Infow("atlasd started", "pid", os.Getpid(), "socket", d.cfg.Paths.SocketPath)
	return nil
}

// Stop runs spec.md §4.9's ordered shutdown: schedulers (reverse
// order) first so no new work is admitted, then lane drain, then
// transport close, then PID file removal. Re-entrant via sync.Once so
// a second Stop (e.g. a crash shutdown after a signal-driven one) is a
// no-op, per spec.md §8 Idempotence.
func (d *Daemon) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.bus.Emit(eventbus.Event{Type: "daemon.stopping", Data: map[string]interface{}{}})
		logger.Infow("atlasd stopping")

		d.manager.StopAll()

		for _, lane := range d.lanes {
			if err := lane.Drain(ctx); err != nil {
				logger.Warnw("lane drain incomplete", "lane", lane.Name(), "error", err.Error())
			}
		}

		if err := d.server.Close(); err != nil {
			d.stopErr = errors.Wrap(err, "close transport")
		}
		if err := d.cfg.Paths.ReleasePIDLock(); err != nil {
			d.stopErr = errors.Wrap(err, "release pid lock")
		}
		logger.Infow("atlasd stopped")
	})
	return d.stopErr
}

// Run blocks until SIGINT, SIGTERM, or SIGHUP is received, then stops
// the daemon (grounded on cmd/qntx/commands/pulse.go's
// signal.Notify/<-sigChan pattern). A panic anywhere in Run's own
// goroutine, or reported by the background Serve goroutine via
// crashCh, is recovered here and funneled into the same re-entrant
// Stop so schedulers stop, lanes drain, and the PID file is removed
// before the process exits non-zero (SPEC_FULL.md supplement 5,
// spec.md §4.9).
func (d *Daemon) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = d.crashShutdown(r)
		}
	}()

	if startErr := d.Start(ctx); startErr != nil {
		return startErr
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	select {
	case sig := <-sigCh:
		logger.Infow("atlasd received signal", "signal", sig.String())
	case r := <-d.crashCh:
		return d.crashShutdown(r)
	case <-ctx.Done():
	}
	return d.Stop(context.Background())
}

// crashShutdown runs the ordered Stop in response to a recovered panic
// and turns it into a non-nil error so main exits non-zero.
func (d *Daemon) crashShutdown(r interface{}) error {
	logger.Errorw("atlasd panicked; forcing ordered shutdown", "panic", fmt.Sprintf("%v", r))
	if stopErr := d.Stop(context.Background()); stopErr != nil {
		return errors.Newf("daemon panicked: %v (shutdown also failed: %v)", r, stopErr)
	}
	return errors.Newf("daemon panicked: %v", r)
}

// StartedAt exposes the daemon's start time for atlas.status's uptime
// field.
func (d *Daemon) StartedAt() int64 {
	if d.startedAt.IsZero() {
		return 0
	}
	return d.startedAt.Unix()
}
