package router

import (
	"context"
	"encoding/json"

	"time"

	"github.com/google/uuid"

	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/logger"
	"github.com/atlas-daemon/atlasd/protocol"
)

func (r *Router) registerConsolidateAsyncMethods() {
	r.methods["atlas.consolidate.start"] = handleConsolidateStart
	r.methods["atlas.consolidate.status"] = handleConsolidateStatus
	r.methods["atlas.consolidate.stop"] = handleConsolidateStop
}

// ConsolidateStartResult mirrors spec.md §4.4/§8's literal shapes for
// both the success and already-locked cases.
type ConsolidateStartResult struct {
	Locked  bool   `json:"locked"`
	TaskID  string `json:"taskId"`
	Message string `json:"message,omitempty"`
}

func handleConsolidateStart(r *Router, ctx context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params ConsolidateParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}

	taskID := uuid.NewString()
	acquired, incumbent := r.registry.AcquireConsolidation(taskID)
	if !acquired {
		return ConsolidateStartResult{Locked: false, TaskID: incumbent, Message: "Consolidation already running"}, nil
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	r.cancel.put(taskID, cancel)

	r.bus.Emit(eventbus.Event{Type: "consolidate.started", Data: map[string]interface{}{"taskId": taskID, "dryRun": params.DryRun}})
	go r.runConsolidateWorker(taskCtx, taskID, params.DryRun)

	return ConsolidateStartResult{Locked: true, TaskID: taskID}, nil
}

func (r *Router) runConsolidateWorker(ctx context.Context, taskID string, dryRun bool) {
	defer r.cancel.forget(taskID)
	defer r.registry.ReleaseConsolidation()

	examined, merged, err := r.consolidateWorker.Consolidate(ctx, dryRun)
	if err != nil {
		logger.Warnw("consolidation failed", "task_id", taskID, "error", err.Error())
		r.bus.Emit(eventbus.Event{Type: "consolidate.completed", Data: map[string]interface{}{
			"taskId": taskID, "error": err.Error(),
		}})
		return
	}
	r.bus.Emit(eventbus.Event{Type: "consolidate.completed", Data: map[string]interface{}{
		"taskId": taskID, "candidatesExamined": examined, "merged": merged, "dryRun": dryRun,
	}})
}

// ConsolidateStatusResult reports the lock state (spec.md §4.4:
// "returns the lock state and, when running, the task id and start
// time").
type ConsolidateStatusResult struct {
	Locked    bool   `json:"locked"`
	TaskID    string `json:"taskId,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`
}

func handleConsolidateStatus(r *Router, _ context.Context, _ eventbus.SubscriberID, _ json.RawMessage) (interface{}, *protocol.RPCError) {
	lock := r.registry.ConsolidationStatus()
	result := ConsolidateStatusResult{Locked: lock.Locked}
	if lock.Locked {
		result.TaskID = lock.TaskID
		result.StartedAt = lock.StartedAt.Format(time.RFC3339)
	}
	return result, nil
}

// ConsolidateStopResult mirrors spec.md §4.5's "release() clears the
// lock" — cancellation of the collaborator call is best-effort, matching
// the ingest stop's guarantee.
type ConsolidateStopResult struct {
	Stopped bool `json:"stopped"`
}

func handleConsolidateStop(r *Router, _ context.Context, _ eventbus.SubscriberID, _ json.RawMessage) (interface{}, *protocol.RPCError) {
	lock := r.registry.ConsolidationStatus()
	if !lock.Locked {
		return ConsolidateStopResult{Stopped: false}, nil
	}
	r.cancel.cancel(lock.TaskID)
	r.registry.ReleaseConsolidation()
	r.bus.Emit(eventbus.Event{Type: "consolidate.stopped", Data: map[string]interface{}{"taskId": lock.TaskID}})
	return ConsolidateStopResult{Stopped: true}, nil
}
