package daemon

import "context"

// consolidateWorkerAdapter satisfies router.ConsolidateWorker by
// delegating to the Storage collaborator's merge primitive.
type consolidateWorkerAdapter struct {
	storage Storage
}

func newConsolidateWorkerAdapter(storage Storage) *consolidateWorkerAdapter {
	return &consolidateWorkerAdapter{storage: storage}
}

func (a *consolidateWorkerAdapter) Consolidate(ctx context.Context, dryRun bool) (int, int, error) {
	return a.storage.MergeCandidates(ctx, dryRun)
}
