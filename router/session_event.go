package router

import (
	"context"
	"encoding/json"

	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/protocol"
)

func (r *Router) registerSessionMethod() {
	r.methods["atlas.session_event"] = handleSessionEvent
}

// SessionEventParams is atlas.session_event's param shape (spec.md
// §4.4: type is "session.compacting" or "session.ended").
type SessionEventParams struct {
	Type          string `json:"type"`
	TranscriptPath string `json:"transcriptPath"`
	SessionID     string `json:"sessionId"`
}

// SessionEventResult is always {"status":"queued"} (spec.md §4.4:
// "always returns {status:'queued'} immediately").
type SessionEventResult struct {
	Status string `json:"status"`
}

func handleSessionEvent(r *Router, ctx context.Context, _ eventbus.SubscriberID, raw json.RawMessage) (interface{}, *protocol.RPCError) {
	var params SessionEventParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.TranscriptPath == "" {
		return nil, protocol.InvalidParams("transcriptPath is required")
	}
	if r.sessionIngestor != nil {
		go r.sessionIngestor.Ingest(context.Background(), params.SessionID, params.TranscriptPath)
	}
	return SessionEventResult{Status: "queued"}, nil
}
