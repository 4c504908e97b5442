package router

import "context"

// Service is the Router's contract with the Application Service facade
// (spec.md §4.10): one method per synchronous RPC, each forwarding its
// params verbatim and returning a result the Router marshals as-is
// (the camelCase wire names come from the json tags on the result types
// declared below; the facade only copies fields into them — spec.md §6).
// Declared here, not in package daemon, so router never imports daemon;
// daemon's concrete Service satisfies this interface structurally.
type Service interface {
	Ingest(ctx context.Context, params IngestParams) (IngestResult, error)
	Search(ctx context.Context, params SearchParams) ([]SearchResult, error)
	Consolidate(ctx context.Context, params ConsolidateParams) (ConsolidateResult, error)
	QNTMGenerate(ctx context.Context, params QNTMGenerateParams) (QNTMGenerateResult, error)
	Timeline(ctx context.Context, params TimelineParams) ([]TimelineEntry, error)
	Health(ctx context.Context) (HealthResult, error)
	GetAgentContext(ctx context.Context, params AgentContextParams) (AgentContextResult, error)
	ExecuteWork(ctx context.Context, params ExecuteWorkParams) (ExecuteWorkResult, error)
}

// IngestParams is atlas.ingest/atlas.ingest.start's shared param shape.
type IngestParams struct {
	Paths     []string `json:"paths"`
	Recursive bool     `json:"recursive,omitempty"`
}

// IngestResult is atlas.ingest's synchronous result.
type IngestResult struct {
	FilesProcessed int         `json:"filesProcessed"`
	ChunksStored   int         `json:"chunksStored"`
	Errors         []FileError `json:"errors"`
}

// FileError mirrors tasks.FileError at the wire boundary.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// SearchParams is atlas.search's param shape (spec.md §4.4).
type SearchParams struct {
	Query              string   `json:"query"`
	Since              string   `json:"since,omitempty"`
	QNTMKey            string   `json:"qntmKey,omitempty"`
	ConsolidationLevel int      `json:"consolidationLevel,omitempty"`
	Limit              int      `json:"limit,omitempty"`
	Rerank             bool     `json:"rerank,omitempty"`
	ExpandQuery        bool     `json:"expandQuery,omitempty"`
}

// SearchResult is one ranked hit, camelCase at the wire boundary per
// spec.md §6 regardless of the underlying storage field casing.
type SearchResult struct {
	Text      string  `json:"text"`
	FilePath  string  `json:"filePath"`
	ChunkIndex int    `json:"chunkIndex"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"createdAt"`
	QNTMKey   string  `json:"qntmKey,omitempty"`
}

// ConsolidateParams is atlas.consolidate/atlas.consolidate.start's
// shared param shape.
type ConsolidateParams struct {
	DryRun bool `json:"dryRun,omitempty"`
}

// ConsolidateResult is atlas.consolidate's synchronous result.
type ConsolidateResult struct {
	CandidatesExamined int  `json:"candidatesExamined"`
	Merged             int  `json:"merged"`
	DryRun             bool `json:"dryRun"`
}

// QNTMGenerateParams is atlas.qntm.generate's param shape.
type QNTMGenerateParams struct {
	Text string `json:"text"`
}

// QNTMGenerateResult is the synthesized tag.
type QNTMGenerateResult struct {
	QNTMKey string `json:"qntmKey"`
}

// TimelineParams is atlas.timeline's param shape.
type TimelineParams struct {
	Since              string `json:"since,omitempty"`
	QNTMKey            string `json:"qntmKey,omitempty"`
	ConsolidationLevel int    `json:"consolidationLevel,omitempty"`
	Limit              int    `json:"limit,omitempty"`
}

// TimelineEntry is one chunk returned by atlas.timeline.
type TimelineEntry struct {
	Text      string `json:"text"`
	FilePath  string `json:"filePath"`
	CreatedAt string `json:"createdAt"`
	QNTMKey   string `json:"qntmKey,omitempty"`
}

// HealthResult is atlas.health's per-dependency probe result.
type HealthResult struct {
	Status       string            `json:"status"` // healthy | degraded | unhealthy
	Dependencies map[string]string `json:"dependencies"`
}

// AgentContextParams is atlas.get_agent_context's param shape.
type AgentContextParams struct {
	QNTMKeys []string `json:"qntmKeys"`
	Limit    int      `json:"limit,omitempty"`
}

// AgentContextResult concatenates top hits per key into context text.
type AgentContextResult struct {
	Context string `json:"context"`
}

// ExecuteWorkParams is atlas.execute_work's declarative work graph,
// forwarded to the agent coordinator collaborator verbatim (spec.md
// §4.4, §4.10: "params forwarded verbatim, no field-by-field mapping").
type ExecuteWorkParams map[string]interface{}

// ExecuteWorkResult is whatever the agent coordinator returns,
// forwarded back unshaped.
type ExecuteWorkResult map[string]interface{}
