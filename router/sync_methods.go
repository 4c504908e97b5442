package router

import (
	"context"
	"encoding/json"

	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/protocol"
)

// registerSyncMethods wires every spec.md §4.4 synchronous method to the
// Application Service facade, each handler doing nothing but decode ->
// forward -> emit. The forwarding is verbatim: no field gets dropped or
// renamed between the wire params struct and the Service call (spec.md
// §4.10).
func (r *Router) registerSyncMethods() {
	r.methods["atlas.ingest"] = handleIngest
	r.methods["atlas.search"] = handleSearch
	r.methods["atlas.consolidate"] = handleConsolidate
	r.methods["atlas.qntm.generate"] = handleQNTMGenerate
	r.methods["atlas.timeline"] = handleTimeline
	r.methods["atlas.health"] = handleHealth
	r.methods["atlas.get_agent_context"] = handleGetAgentContext
	r.methods["atlas.execute_work"] = handleExecuteWork
}

func handleIngest(r *Router, ctx context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params IngestParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if len(params.Paths) == 0 {
		return nil, protocol.InvalidParams("paths is required")
	}
	result, err := r.service.Ingest(ctx, params)
	if err != nil {
		return nil, protocol.NewRPCError(protocol.CodeIngestionFailed, err.Error(), nil)
	}
	return result, nil
}

func handleSearch(r *Router, ctx context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params SearchParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Query == "" {
		return nil, protocol.InvalidParams("query is required")
	}
	results, err := r.service.Search(ctx, params)
	if err != nil {
		return nil, protocol.NewRPCError(protocol.CodeSearchFailed, err.Error(), nil)
	}
	r.bus.Emit(eventbus.Event{Type: "search.completed", Data: map[string]interface{}{
		"query": params.Query, "results": len(results),
	}})
	return results, nil
}

func handleConsolidate(r *Router, ctx context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params ConsolidateParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	result, err := r.service.Consolidate(ctx, params)
	if err != nil {
		return nil, protocol.InternalError(err)
	}
	return result, nil
}

func handleQNTMGenerate(r *Router, ctx context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params QNTMGenerateParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Text == "" {
		return nil, protocol.InvalidParams("text is required")
	}
	result, err := r.service.QNTMGenerate(ctx, params)
	if err != nil {
		return nil, protocol.InternalError(err)
	}
	return result, nil
}

func handleTimeline(r *Router, ctx context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params TimelineParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	entries, err := r.service.Timeline(ctx, params)
	if err != nil {
		return nil, protocol.InternalError(err)
	}
	return entries, nil
}

func handleHealth(r *Router, ctx context.Context, _ eventbus.SubscriberID, _ json.RawMessage) (interface{}, *protocol.RPCError) {
	result, err := r.service.Health(ctx)
	if err != nil {
		return nil, protocol.InternalError(err)
	}
	return result, nil
}

func handleGetAgentContext(r *Router, ctx context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params AgentContextParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if len(params.QNTMKeys) == 0 {
		return nil, protocol.InvalidParams("qntmKeys is required")
	}
	result, err := r.service.GetAgentContext(ctx, params)
	if err != nil {
		return nil, protocol.NewRPCError(protocol.CodeSearchFailed, err.Error(), nil)
	}
	return result, nil
}

func handleExecuteWork(r *Router, ctx context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params ExecuteWorkParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	result, err := r.service.ExecuteWork(ctx, params)
	if err != nil {
		return nil, protocol.InternalError(err)
	}
	return result, nil
}
