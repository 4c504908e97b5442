package tasks

import "time"

// ConsolidationLock is the process-global record from spec.md §3: at
// most one consolidation task may hold it at a time. Acquire is an
// atomic test-and-set guarded by Registry.mu.
type ConsolidationLock struct {
	Locked    bool
	TaskID    string
	StartedAt time.Time
}

// AcquireConsolidation attempts to take the lock for taskID. Returns
// true on success; false if already held, in which case the caller
// should report the incumbent's taskID (spec.md §4.4:
// "atlas.consolidate.start... on failure returns
// {locked:false, taskId:<incumbent>}").
func (r *Registry) AcquireConsolidation(taskID string) (acquired bool, incumbent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consol.Locked {
		return false, r.consol.TaskID
	}
	r.consol = ConsolidationLock{Locked: true, TaskID: taskID, StartedAt: time.Now()}
	return true, ""
}

// ReleaseConsolidation clears the lock unconditionally. Idempotent:
// releasing an already-unlocked lock is a no-op (spec.md §8,
// "Idempotence").
func (r *Registry) ReleaseConsolidation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consol = ConsolidationLock{}
}

// ConsolidationStatus returns a copy of the current lock state for
// atlas.consolidate.status.
func (r *Registry) ConsolidationStatus() ConsolidationLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consol
}
