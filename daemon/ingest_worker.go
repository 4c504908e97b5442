package daemon

import "context"

// ingestWorkerAdapter satisfies router.IngestWorker by delegating to the
// Ingest collaborator, keeping the collaborator interface itself free of
// any router-package import.
type ingestWorkerAdapter struct {
	ingest Ingest
}

func newIngestWorkerAdapter(ingest Ingest) *ingestWorkerAdapter {
	return &ingestWorkerAdapter{ingest: ingest}
}

func (a *ingestWorkerAdapter) IngestFile(ctx context.Context, path string) (int, error) {
	return a.ingest.IngestFile(ctx, path)
}

func (a *ingestWorkerAdapter) ListFiles(paths []string, recursive bool) ([]string, error) {
	return a.ingest.ListFiles(paths, recursive)
}
