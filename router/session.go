package router

import "context"

// SessionIngestor is the Router's contract with the Session Ingestor
// (spec.md §4.8): Ingest runs in the background after
// atlas.session_event has already returned {status:"queued"} to the
// caller, so its own errors are swallowed after emitting
// session.ingested/session.error on the bus (spec.md §4.8 step 7).
type SessionIngestor interface {
	Ingest(ctx context.Context, sessionID, transcriptPath string)
}

// WithSessionIngestor attaches the session ingestor after construction,
// avoiding a constructor parameter that every other caller (tests
// exercising only sync/async RPCs) would otherwise have to thread a nil
// through.
func (r *Router) WithSessionIngestor(ingestor SessionIngestor) *Router {
	r.sessionIngestor = ingestor
	return r
}
