package daemon

import (
	"strings"

	"context"

	"github.com/atlas-daemon/atlasd/errors"
	"github.com/atlas-daemon/atlasd/router"
)

// Service is atlasd's Application Service facade (spec.md §4.10): a
// thin call-through exposing one method per synchronous RPC, each
// forwarding params verbatim to the collaborator that owns the concern.
// Ingest also emits its progress onto the Event Bus. It implements
// router.Service structurally.
type Service struct {
	storage Storage
	embed   Embeddings
	llm     LLM
	ingest  Ingest
	agent   AgentCoordinator
	emit    func(eventType string, data interface{})
}

// NewService constructs the facade. emit is the Event Bus hook Ingest
// uses to publish progress (spec.md §4.10: "an emit callback
// pointing back at the Event Bus").
func NewService(storage Storage, embed Embeddings, llm LLM, ingest Ingest, agent AgentCoordinator, emit func(string, interface{})) *Service {
	return &Service{storage: storage, embed: embed, llm: llm, ingest: ingest, agent: agent, emit: emit}
}

func (s *Service) Ingest(ctx context.Context, params router.IngestParams) (router.IngestResult, error) {
	files, err := s.ingest.ListFiles(params.Paths, params.Recursive)
	if err != nil {
		return router.IngestResult{}, err
	}

	emit := s.emit
	if emit == nil {
		emit = func(string, interface{}) {}
	}
	emit("ingest.started", map[string]interface{}{"paths": params.Paths, "files": len(files)})

	result := router.IngestResult{}
	for _, path := range files {
		chunks, ferr := s.ingest.IngestFile(ctx, path)
		if ferr != nil {
			result.Errors = append(result.Errors, router.FileError{Path: path, Error: ferr.Error()})
			continue
		}
		result.FilesProcessed++
		result.ChunksStored += chunks
		emit("ingest.file.complete", map[string]interface{}{"path": path, "chunks": chunks})
	}
	emit("ingest.completed", map[string]interface{}{
		"filesProcessed": result.FilesProcessed, "chunksStored": result.ChunksStored, "errors": len(result.Errors),
	})
	return result, nil
}

func (s *Service) Search(ctx context.Context, params router.SearchParams) ([]router.SearchResult, error) {
	filter := SearchFilter{
		Since: params.Since, QNTMKey: params.QNTMKey, ConsolidationLevel: params.ConsolidationLevel,
		Limit: params.Limit, Rerank: params.Rerank, ExpandQuery: params.ExpandQuery,
	}
	chunks, err := s.storage.SearchChunks(ctx, params.Query, filter)
	if err != nil {
		return nil, err
	}
	return chunksToResults(chunks), nil
}

func chunksToResults(chunks []Chunk) []router.SearchResult {
	out := make([]router.SearchResult, len(chunks))
	for i, c := range chunks {
		out[i] = router.SearchResult{
			Text: c.Text, FilePath: c.FilePath, ChunkIndex: c.ChunkIndex,
			Score: c.Score, CreatedAt: c.CreatedAt, QNTMKey: c.QNTMKey,
		}
	}
	return out
}

func (s *Service) Consolidate(ctx context.Context, params router.ConsolidateParams) (router.ConsolidateResult, error) {
	examined, merged, err := s.storage.MergeCandidates(ctx, params.DryRun)
	if err != nil {
		return router.ConsolidateResult{}, err
	}
	return router.ConsolidateResult{CandidatesExamined: examined, Merged: merged, DryRun: params.DryRun}, nil
}

func (s *Service) QNTMGenerate(ctx context.Context, params router.QNTMGenerateParams) (router.QNTMGenerateResult, error) {
	key, err := s.llm.GenerateQNTM(ctx, params.Text)
	if err != nil {
		return router.QNTMGenerateResult{}, err
	}
	return router.QNTMGenerateResult{QNTMKey: key}, nil
}

func (s *Service) Timeline(ctx context.Context, params router.TimelineParams) ([]router.TimelineEntry, error) {
	filter := SearchFilter{Since: params.Since, QNTMKey: params.QNTMKey, ConsolidationLevel: params.ConsolidationLevel, Limit: params.Limit}
	chunks, err := s.storage.RecentChunks(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]router.TimelineEntry, len(chunks))
	for i, c := range chunks {
		out[i] = router.TimelineEntry{Text: c.Text, FilePath: c.FilePath, CreatedAt: c.CreatedAt, QNTMKey: c.QNTMKey}
	}
	return out, nil
}

// Health probes the storage, embeddings, and LLM collaborators; the
// ingest and agent collaborators have no Ping and are not probed
// (spec.md §4.4: "probe dependencies
// (vector store, local LLM runtime, cloud embedding backend); return
// healthy | degraded | unhealthy"). A collaborator that reports
// ErrNotConfigured (the Unconfigured* stand-ins daemon.New defaults to)
// is degraded, not unhealthy; one that is wired up but failing its
// ping is unhealthy. An interface value holding a concrete
// Unconfigured* struct is never nil, so this cannot be a nil check —
// it has to inspect what Ping actually returns.
func (s *Service) Health(ctx context.Context) (router.HealthResult, error) {
	deps := make(map[string]string)
	probe(deps, "storage", func() error { return s.storage.Ping(ctx) })
	probe(deps, "embeddings", func() error { return s.embed.Ping(ctx) })
	probe(deps, "llm", func() error { return s.llm.Ping(ctx) })

	overall := "healthy"
	for _, status := range deps {
		switch status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall != "unhealthy" {
				overall = "degraded"
			}
		}
	}
	return router.HealthResult{Status: overall, Dependencies: deps}, nil
}

func probe(deps map[string]string, name string, ping func() error) {
	switch err := ping(); {
	case err == nil:
		deps[name] = "healthy"
	case errors.Is(err, ErrNotConfigured):
		deps[name] = "degraded"
	default:
		deps[name] = "unhealthy"
	}
}

func (s *Service) GetAgentContext(ctx context.Context, params router.AgentContextParams) (router.AgentContextResult, error) {
	var blocks []string
	for _, key := range params.QNTMKeys {
		chunks, err := s.storage.SearchChunks(ctx, key, SearchFilter{QNTMKey: key, Limit: params.Limit})
		if err != nil {
			continue
		}
		for _, c := range chunks {
			blocks = append(blocks, c.Text)
		}
	}
	return router.AgentContextResult{Context: strings.Join(blocks, "\n\n")}, nil
}

func (s *Service) ExecuteWork(ctx context.Context, params router.ExecuteWorkParams) (router.ExecuteWorkResult, error) {
	result, err := s.agent.ExecuteWork(ctx, params)
	if err != nil {
		return nil, err
	}
	return router.ExecuteWorkResult(result), nil
}
