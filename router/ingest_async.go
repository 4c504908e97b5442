package router

import (
	"context"
	"encoding/json"

	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/logger"
	"github.com/atlas-daemon/atlasd/protocol"
	"github.com/atlas-daemon/atlasd/tasks"
)

func (r *Router) registerIngestAsyncMethods() {
	r.methods["atlas.ingest.start"] = handleIngestStart
	r.methods["atlas.ingest.status"] = handleIngestStatus
	r.methods["atlas.ingest.stop"] = handleIngestStop
}

// IngestStartParams extends IngestParams with the watch flag (spec.md
// §4.4: "atlas.ingest.start -> {taskId, watching, message}").
type IngestStartParams struct {
	Paths     []string `json:"paths"`
	Recursive bool     `json:"recursive,omitempty"`
	Watch     bool     `json:"watch,omitempty"`
}

// IngestStartResult is atlas.ingest.start's immediate reply.
type IngestStartResult struct {
	TaskID   string `json:"taskId"`
	Watching bool   `json:"watching"`
	Message  string `json:"message"`
}

func handleIngestStart(r *Router, ctx context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params IngestStartParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if len(params.Paths) == 0 {
		return nil, protocol.InvalidParams("paths is required")
	}

	task := r.StartIngestTask(params.Paths, params.Watch, params.Recursive, "start")
	return IngestStartResult{TaskID: task.ID, Watching: task.Watching, Message: "ingest started"}, nil
}

// StartIngestTask creates a new ingest task and spawns its background
// worker under the ingest lane, gated by the Adaptive Concurrency
// Controller (spec.md §4.4's "spawns a background ingest worker"). It is
// exported so the File Watcher scheduler can drive exactly this same
// entry point for auto-watch triggers (SPEC_FULL.md supplement 1), not
// a separate code path.
func (r *Router) StartIngestTask(paths []string, watch, recursive bool, trigger string) *tasks.IngestTask {
	task := r.registry.CreateIngestTask(paths, watch)
	taskCtx, cancel := context.WithCancel(context.Background())
	r.cancel.put(task.ID, cancel)

	r.bus.Emit(eventbus.Event{Type: "ingest.started", Data: map[string]interface{}{
		"taskId": task.ID, "paths": paths, "trigger": trigger,
	}})

	go r.runIngestWorker(taskCtx, task.ID, paths, recursive)
	return task
}

func (r *Router) runIngestWorker(ctx context.Context, taskID string, paths []string, recursive bool) {
	defer r.cancel.forget(taskID)
	lane := r.lanes["ingest"]

	files, err := r.ingestWorker.ListFiles(paths, recursive)
	if err != nil {
		r.registry.Mutate(taskID, func(t *tasks.IngestTask) { t.Fail() })
		r.bus.Emit(eventbus.Event{Type: "ingest.completed", Data: map[string]interface{}{"taskId": taskID, "error": err.Error()}})
		return
	}

	for _, path := range files {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if lane != nil {
			if err := lane.Acquire(ctx); err != nil {
				return
			}
		}
		chunks, err := r.ingestWorker.IngestFile(ctx, path)
		if lane != nil {
			lane.Release()
		}

		if err != nil {
			r.registry.Mutate(taskID, func(t *tasks.IngestTask) { t.RecordError(path, err) })
			logger.Warnw("ingest file failed", "task_id", taskID, "path", path, "error", err.Error())
			continue
		}

		r.registry.Mutate(taskID, func(t *tasks.IngestTask) { t.RecordFile(chunks) })
		r.bus.Emit(eventbus.Event{Type: "ingest.file.complete", Data: map[string]interface{}{
			"taskId": taskID, "path": path, "chunks": chunks,
		}})
	}

	snap, ok := r.registry.Get(taskID)
	if !ok {
		return
	}
	if snap.Status.Terminal() {
		// Already stopped out from under us; don't overwrite with Complete.
		return
	}
	r.registry.Mutate(taskID, func(t *tasks.IngestTask) { t.Complete() })
	snap, _ = r.registry.Get(taskID)
	r.bus.Emit(eventbus.Event{Type: "ingest.completed", Data: map[string]interface{}{
		"taskId": taskID, "filesProcessed": snap.FilesProcessed, "chunksStored": snap.ChunksStored, "errors": len(snap.Errors),
	}})
}

// IngestStatusParams is atlas.ingest.status's param shape: taskId is
// optional (spec.md §4.4: "returns one task if taskId present, else all
// tasks.").
type IngestStatusParams struct {
	TaskID string `json:"taskId,omitempty"`
}

func handleIngestStatus(r *Router, _ context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params IngestStatusParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.TaskID == "" {
		return r.registry.All(), nil
	}
	task, ok := r.registry.Get(params.TaskID)
	if !ok {
		return nil, protocol.NewRPCError(protocol.CodeFileNotFound, "unknown ingest task", params.TaskID)
	}
	return []tasks.Snapshot{task}, nil
}

// IngestStopParams is atlas.ingest.stop's param shape.
type IngestStopParams struct {
	TaskID string `json:"taskId"`
}

// IngestStopResult matches spec.md §8 scenario 4's literal shape.
type IngestStopResult struct {
	Stopped bool           `json:"stopped"`
	Final   tasks.Snapshot `json:"final"`
}

func handleIngestStop(r *Router, _ context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params IngestStopParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.TaskID == "" {
		return nil, protocol.InvalidParams("taskId is required")
	}

	ok := r.registry.Mutate(params.TaskID, func(t *tasks.IngestTask) {
		if !t.Status.Terminal() {
			t.Stop()
		}
	})
	if !ok {
		return nil, protocol.NewRPCError(protocol.CodeFileNotFound, "unknown ingest task", params.TaskID)
	}
	r.cancel.cancel(params.TaskID)

	snap, _ := r.registry.Get(params.TaskID)
	r.bus.Emit(eventbus.Event{Type: "ingest.stopped", Data: map[string]interface{}{"taskId": params.TaskID}})
	return IngestStopResult{Stopped: true, Final: snap}, nil
}
