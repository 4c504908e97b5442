// Package tasks implements atlasd's Task Registry (spec.md §4.5): the
// in-memory ingest-task map, the singleton consolidation lock, and the
// auto-watch registry, with the single-writer mutation discipline
// spec.md §5 requires (each task mutated only by its own worker;
// readers observe a snapshot).
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// Status is an ingest or consolidation task's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// IngestTask mirrors spec.md §3's "Ingest task" entity. Fields are
// exported directly (not behind getters) because the Task Registry is
// the sole mutator and all mutation goes through the methods below,
// matching the teacher's pulse/async/job.go Job mutator-method style.
type IngestTask struct {
	ID             string      `json:"id"`
	Paths          []string    `json:"paths"`
	Status         Status      `json:"status"`
	Watching       bool        `json:"watching"`
	FilesProcessed int         `json:"filesProcessed"`
	ChunksStored   int         `json:"chunksStored"`
	Errors         []FileError `json:"errors"`
	StartedAt      time.Time   `json:"startedAt"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
}

// FileError is one per-file ingestion failure collected into a task's
// errors list without failing the task as a whole (spec.md §7's
// "handlers recover locally... per-file ingestion errors are collected
// into the task's errors list and the task as a whole may still
// succeed").
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Snapshot is an immutable copy of an IngestTask's fields for external
// readers (spec.md §5: "external readers see a consistent snapshot of
// each field but may see different fields reflect different moments of
// the worker's progress" — copying the struct by value is exactly this
// guarantee in Go, since there is no finer-grained tearing possible
// once the copy is made under the registry's lock).
type Snapshot = IngestTask

// NewIngestTask allocates a task in the running state (spec.md §4.5:
// "create(paths, watching) allocates a uuid, sets status running").
func NewIngestTask(paths []string, watching bool) *IngestTask {
	return &IngestTask{
		ID:        uuid.NewString(),
		Paths:     paths,
		Status:    StatusRunning,
		Watching:  watching,
		StartedAt: time.Now(),
	}
}

// RecordFile advances the monotonic counters after one file is
// ingested (spec.md §3: "counters are monotonically non-decreasing").
func (t *IngestTask) RecordFile(chunks int) {
	t.FilesProcessed++
	t.ChunksStored += chunks
}

// RecordError appends a per-file failure without changing task status.
func (t *IngestTask) RecordError(path string, err error) {
	t.Errors = append(t.Errors, FileError{Path: path, Error: err.Error()})
}

// Complete marks the task done; spec.md §3: "completedAt is set iff
// status is terminal."
func (t *IngestTask) Complete() {
	t.setTerminal(StatusCompleted)
}

// Fail marks the task failed after an unrecoverable collaborator error.
func (t *IngestTask) Fail() {
	t.setTerminal(StatusFailed)
}

// Stop marks the task stopped. Per spec.md §4.5/§5, this is a
// best-effort signal: the underlying collaborator may still be
// mid-file and is allowed to finish that file, but the task's visible
// status and completedAt flip immediately so atlas.ingest.stop's
// response can report the terminal state synchronously.
func (t *IngestTask) Stop() {
	t.setTerminal(StatusStopped)
}

func (t *IngestTask) setTerminal(s Status) {
	now := time.Now()
	t.Status = s
	t.CompletedAt = &now
}
