package daemon

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/atlas-daemon/atlasd/errors"
)

// The five collaborator interfaces in collaborators.go are, per
// spec.md §1, external to the daemon core: the concrete chunking/
// embedding pipeline, vector-store client, and LLM prompt library ship
// as part of the wider Atlas repository, not this one. cmd/atlasd still
// needs something concrete to construct a Daemon with, so the types
// below are placeholder collaborators wired in by default: they report
// themselves unconfigured (surfacing as atlas.health's "degraded"
// rather than fatal, per spec.md §6) and fail cleanly if a request
// depends on them. ListFiles is the one operation worth a real
// implementation even unconfigured, since expanding a path set is
// core-owned bookkeeping, not a collaborator concern.

// ErrNotConfigured is the distinguishable error every Unconfigured*
// stand-in's Ping/call returns, letting Service.Health (service.go)
// tell "not wired up" (degraded) apart from "wired up but failing"
// (unhealthy) — an interface value holding one of these concrete types
// is never nil, so the health probe cannot use a nil check for this.
var ErrNotConfigured = errors.New("collaborator not configured")

// UnconfiguredStorage is the zero-value Storage collaborator.
type UnconfiguredStorage struct{}

func (UnconfiguredStorage) EnsureCollection(context.Context, string) error { return nil }

func (UnconfiguredStorage) StoreChunk(context.Context, Chunk) error {
	return ErrNotConfigured
}

func (UnconfiguredStorage) SearchChunks(context.Context, string, SearchFilter) ([]Chunk, error) {
	return nil, ErrNotConfigured
}

func (UnconfiguredStorage) RecentChunks(context.Context, SearchFilter) ([]Chunk, error) {
	return nil, ErrNotConfigured
}

func (UnconfiguredStorage) MergeCandidates(context.Context, bool) (int, int, error) {
	return 0, 0, ErrNotConfigured
}

func (UnconfiguredStorage) Ping(context.Context) error {
	return ErrNotConfigured
}

// UnconfiguredEmbeddings is the zero-value Embeddings collaborator.
type UnconfiguredEmbeddings struct{}

func (UnconfiguredEmbeddings) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrNotConfigured
}

func (UnconfiguredEmbeddings) Ping(context.Context) error {
	return ErrNotConfigured
}

// UnconfiguredLLM is the zero-value LLM collaborator.
type UnconfiguredLLM struct{}

func (UnconfiguredLLM) RegisterPrompts(context.Context) error { return nil }

func (UnconfiguredLLM) GenerateQNTM(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

func (UnconfiguredLLM) Ping(context.Context) error {
	return ErrNotConfigured
}

// UnconfiguredIngest is the zero-value Ingest collaborator. ListFiles
// still does the real directory expansion so atlas.ingest's file-count
// behavior is observable even before a chunking/embedding pipeline is
// wired in; IngestFile/IngestText, which need that pipeline, report
// unconfigured.
type UnconfiguredIngest struct{}

func (UnconfiguredIngest) IngestFile(context.Context, string) (int, error) {
	return 0, errors.Wrap(ErrNotConfigured, "ingest")
}

func (UnconfiguredIngest) IngestText(context.Context, string, string, string) (int, error) {
	return 0, errors.Wrap(ErrNotConfigured, "ingest")
}

func (UnconfiguredIngest) ListFiles(paths []string, recursive bool) ([]string, error) {
	var files []string
	for _, root := range paths {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve ingest path %q", root)
		}

		st, err := os.Stat(abs)
		if err != nil {
			return nil, errors.Wrapf(err, "stat ingest path %q", root)
		}
		if !st.IsDir() {
			files = append(files, abs)
			continue
		}

		if recursive {
			err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() {
					files = append(files, p)
				}
				return nil
			})
			if err != nil {
				return nil, errors.Wrapf(err, "walk ingest path %q", root)
			}
			continue
		}

		entries, err := os.ReadDir(abs)
		if err != nil {
			return nil, errors.Wrapf(err, "read ingest directory %q", root)
		}
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, filepath.Join(abs, e.Name()))
			}
		}
	}
	return files, nil
}

// UnconfiguredAgent is the zero-value AgentCoordinator collaborator.
type UnconfiguredAgent struct{}

func (UnconfiguredAgent) ExecuteWork(context.Context, map[string]interface{}) (map[string]interface{}, error) {
	return nil, errors.Wrap(ErrNotConfigured, "agent coordinator")
}
