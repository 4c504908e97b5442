// Package daemon implements atlasd's Lifecycle Manager (spec.md §4.9)
// and Application Service facade (spec.md §4.10): PID file and
// stale-socket handling, ordered startup/shutdown, signal and crash
// handling, and the thin call-through to the storage/LLM/embedding/
// ingest/search/consolidate/QNTM/timeline/health/agent-coordinator
// collaborators spec.md §1 places out of scope and specifies only as
// interfaces.
package daemon

import "context"

// Storage is the vector-store collaborator: chunk persistence,
// similarity search, and the consolidation merge primitive. Specified
// only as an interface (spec.md §1): the chunking/embedding pipeline
// and the concrete vector-store client are external collaborators.
type Storage interface {
	EnsureCollection(ctx context.Context, name string) error
	StoreChunk(ctx context.Context, chunk Chunk) error
	SearchChunks(ctx context.Context, query string, filter SearchFilter) ([]Chunk, error)
	RecentChunks(ctx context.Context, filter SearchFilter) ([]Chunk, error)
	MergeCandidates(ctx context.Context, dryRun bool) (candidatesExamined int, merged int, err error)
	Ping(ctx context.Context) error
}

// Chunk is the unit of ingestion and storage (spec.md GLOSSARY).
type Chunk struct {
	Text        string
	FilePath    string
	ChunkIndex  int
	Score       float64
	CreatedAt   string
	QNTMKey     string
}

// SearchFilter collects atlas.search/atlas.timeline's optional filters.
type SearchFilter struct {
	Since              string
	QNTMKey            string
	ConsolidationLevel int
	Limit              int
	Rerank             bool
	ExpandQuery        bool
}

// Embeddings is the embedding-backend collaborator (local model runtime
// or a cloud API); its absence/misconfiguration is reported as degraded
// health, never fatal (spec.md §6: "the core treats their absence as
// degraded and never as fatal").
type Embeddings interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Ping(ctx context.Context) error
}

// LLM is the prompt/completion collaborator used for QNTM tag synthesis
// and agent work execution.
type LLM interface {
	RegisterPrompts(ctx context.Context) error
	GenerateQNTM(ctx context.Context, text string) (string, error)
	Ping(ctx context.Context) error
}

// Ingest is the chunking/embedding pipeline collaborator: it reads one
// file, chunks and embeds it, and stores the resulting chunks.
type Ingest interface {
	IngestFile(ctx context.Context, path string) (chunksStored int, err error)
	ListFiles(paths []string, recursive bool) ([]string, error)
	IngestText(ctx context.Context, sourceID, header, content string) (chunksStored int, err error)
}

// AgentCoordinator executes a declarative work graph (atlas.execute_work).
type AgentCoordinator interface {
	ExecuteWork(ctx context.Context, graph map[string]interface{}) (map[string]interface{}, error)
}
