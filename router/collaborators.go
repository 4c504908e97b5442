package router

import "context"

// IngestWorker is driven by atlas.ingest.start's background goroutine
// directly (not through Service, which is request-scoped): one call per
// file under the task's paths. Returning early with ctx.Err() signals
// the SPEC_FULL.md-supplemented cancellation guarantee — "no new file is
// opened for embedding after stop returns the response."
type IngestWorker interface {
	IngestFile(ctx context.Context, path string) (chunksStored int, err error)
	// ListFiles expands paths (optionally recursively) into the concrete
	// file list a task will walk; kept separate from IngestFile so the
	// walk itself is cheap and cancellation only needs to be checked
	// between individual file embeds.
	ListFiles(paths []string, recursive bool) ([]string, error)
}

// ConsolidateWorker performs one consolidation pass. dryRun mirrors
// atlas.consolidate's param so the same worker backs both the
// synchronous and the async start path.
type ConsolidateWorker interface {
	Consolidate(ctx context.Context, dryRun bool) (candidatesExamined int, merged int, err error)
}
