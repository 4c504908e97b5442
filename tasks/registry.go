package tasks

import "sync"

// Registry holds the ingest-task map, the consolidation lock, and the
// auto-watch registry described in spec.md §4.5. A single Registry is
// constructed at daemon startup and passed explicitly to every
// component that needs it (spec.md §9's re-architecture note: "model
// as a single root object constructed at startup... scope tests by
// constructing a fresh root per test" — replacing the source's global
// mutable singletons).
type Registry struct {
	mu         sync.Mutex
	ingest     map[string]*IngestTask
	consol     ConsolidationLock
	autoWatch  map[string]string // canonical path -> task id
}

// NewRegistry constructs an empty registry. The consolidation lock
// always starts released: spec.md §4.5, "strictly in-memory and does
// not survive a restart; on startup it is always released."
func NewRegistry() *Registry {
	return &Registry{
		ingest:    make(map[string]*IngestTask),
		autoWatch: make(map[string]string),
	}
}

// CreateIngestTask allocates and registers a new task.
func (r *Registry) CreateIngestTask(paths []string, watching bool) *IngestTask {
	t := NewIngestTask(paths, watching)
	r.mu.Lock()
	r.ingest[t.ID] = t
	r.mu.Unlock()
	return t
}

// Get returns a snapshot copy of one task, or false if unknown.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.ingest[id]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(t), true
}

// All returns a snapshot of every known ingest task.
func (r *Registry) All() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.ingest))
	for _, t := range r.ingest {
		out = append(out, snapshotOf(t))
	}
	return out
}

// Mutate invokes fn with the live *IngestTask for in-place mutation.
// fn runs under the registry lock, so the owning worker's updates,
// atlas.ingest.stop's Stop, and snapshot reads (Get/All) are
// serialized with each other; fn must not call back into the Registry.
func (r *Registry) Mutate(id string, fn func(*IngestTask)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.ingest[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

func snapshotOf(t *IngestTask) Snapshot {
	cp := *t
	cp.Paths = append([]string(nil), t.Paths...)
	cp.Errors = append([]FileError(nil), t.Errors...)
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return cp
}

// RegisterAutoWatch wires a watched path to the ingest task that
// requested watching (spec.md §4.5, §9 resolved: the watcher reaches
// CreateIngestTask through Router.StartIngestTask — see SPEC_FULL.md).
func (r *Registry) RegisterAutoWatch(path, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoWatch[path] = taskID
}

// AutoWatchTask returns the task id registered for path, if any.
func (r *Registry) AutoWatchTask(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.autoWatch[path]
	return id, ok
}
