// Package router implements atlasd's Router/Dispatcher: a method-name to
// handler map that validates params, invokes either the Application
// Service facade (synchronous methods) or the Task Registry plus a lane
// (async start/status/stop methods), and shapes JSON-RPC responses.
package router

import (
	"context"
	"encoding/json"

	"github.com/atlas-daemon/atlasd/errors"
	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/logger"
	"github.com/atlas-daemon/atlasd/protocol"
	"github.com/atlas-daemon/atlasd/scheduler"
	"github.com/atlas-daemon/atlasd/tasks"
)

// handlerFunc is the uniform shape every registered method handler
// takes: raw params, the connection that sent the request, and the
// Router itself for access to shared collaborators. It returns either a
// result to marshal or a classified RPCError.
type handlerFunc func(r *Router, ctx context.Context, connID eventbus.SubscriberID, params json.RawMessage) (interface{}, *protocol.RPCError)

// Router owns the method table and every shared collaborator a handler
// needs: the event bus, the task registry, the per-lane concurrency
// controllers, the scheduler manager (for atlas.status), the
// synchronous Application Service facade, and the background-worker
// collaborators the async ingest/consolidate handlers drive directly.
type Router struct {
	bus        *eventbus.Bus
	registry   *tasks.Registry
	lanes      map[string]Lane
	schedulers *scheduler.Manager
	service    Service

	ingestWorker      IngestWorker
	consolidateWorker ConsolidateWorker
	sessionIngestor   SessionIngestor

	status StatusInfo

	methods map[string]handlerFunc

	cancel *cancelRegistry
}

// registerMethods populates the method table in full (spec.md §4.4's
// catalog, split across sync/async/subscription/status/session files
// for readability).
func (r *Router) registerMethods() {
	r.registerSyncMethods()
	r.registerIngestAsyncMethods()
	r.registerConsolidateAsyncMethods()
	r.registerSubscriptionMethods()
	r.registerStatusMethod()
	r.registerSessionMethod()
}

// Lane is the subset of *concurrency.Lane the router needs; declared
// locally so router never needs a type assertion to use it and tests
// can substitute a fake.
type Lane interface {
	Acquire(ctx context.Context) error
	Release()
	Snapshot() LaneState
}

// LaneState mirrors concurrency.State; duplicated here (rather than
// imported) only because router must not import concurrency to keep the
// dependency graph a tree — daemon, which constructs both, does the
// impedance matching via laneAdapter in lane_adapter.go.
type LaneState struct {
	Name    string `json:"name"`
	Current int    `json:"current"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Target  int    `json:"target"`
}

// StatusInfo supplies the process-level facts atlas.status reports that
// the router itself has no way to know (pid, start time, socket path,
// version, connection count) — daemon fills this in at construction.
type StatusInfo struct {
	PID            int
	StartedAt      func() int64 // unix seconds; func so uptime is always current
	SocketPath     string
	Version        string
	ConnectionCount func() int
}

// New constructs a Router with an empty method table, then registers
// every handler in the spec.md §4.4 method catalog.
func New(bus *eventbus.Bus, registry *tasks.Registry, lanes map[string]Lane, schedulers *scheduler.Manager, service Service, ingestWorker IngestWorker, consolidateWorker ConsolidateWorker, status StatusInfo) *Router {
	r := &Router{
		bus:               bus,
		registry:          registry,
		schedulers:        schedulers,
		service:           service,
		ingestWorker:      ingestWorker,
		consolidateWorker: consolidateWorker,
		status:            status,
		methods:           make(map[string]handlerFunc),
		cancel:            newCancelRegistry(),
		lanes:             lanes,
	}
	r.registerMethods()
	return r
}

// Dispatch implements transport.Dispatcher. It looks up the method,
// invokes its handler, and translates the outcome into a Response.
// Notifications (req.ID == nil) still run the handler — atlasd has no
// client-originated notifications in its catalog, but running it
// uniformly avoids a second code path — the caller (Transport) simply
// discards the Response when IsNotification is true.
func (r *Router) Dispatch(ctx context.Context, req *protocol.Request, connID eventbus.SubscriberID) *protocol.Response {
	h, ok := r.methods[req.Method]
	if !ok {
		return protocol.NewErrorResponse(req.ID, protocol.MethodNotFound(req.Method))
	}

	result, rpcErr := r.invoke(h, ctx, connID, req)
	if rpcErr != nil {
		return protocol.NewErrorResponse(req.ID, rpcErr)
	}
	resp, err := protocol.NewResult(req.ID, result)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.InternalError(err))
	}
	return resp
}

// invoke recovers a panicking handler into an InternalError rather than
// letting it cross into Transport's accept loop (spec.md §4.4: "on
// exception, return InternalError with data set to the exception
// message").
func (r *Router) invoke(h handlerFunc, ctx context.Context, connID eventbus.SubscriberID, req *protocol.Request) (result interface{}, rpcErr *protocol.RPCError) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorw("handler panicked", "method", req.Method, "panic", rec)
			rpcErr = protocol.InternalError(errors.Newf("handler panic: %v", rec))
		}
	}()
	return h(r, ctx, connID, req.Params)
}

func decodeParams(params json.RawMessage, v interface{}) *protocol.RPCError {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return protocol.InvalidParams(err.Error())
	}
	return nil
}
