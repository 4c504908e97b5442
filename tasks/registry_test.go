package tasks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestTaskCountersMonotonic(t *testing.T) {
	r := NewRegistry()
	task := r.CreateIngestTask([]string{"/tmp/a"}, false)

	r.Mutate(task.ID, func(t *IngestTask) { t.RecordFile(3) })
	r.Mutate(task.ID, func(t *IngestTask) { t.RecordFile(2) })

	snap, ok := r.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, 2, snap.FilesProcessed)
	assert.Equal(t, 5, snap.ChunksStored)
}

func TestStopSetsCompletedAtAndTerminalStatus(t *testing.T) {
	r := NewRegistry()
	task := r.CreateIngestTask([]string{"/tmp/a"}, false)

	r.Mutate(task.ID, func(t *IngestTask) { t.Stop() })

	snap, ok := r.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, StatusStopped, snap.Status)
	require.NotNil(t, snap.CompletedAt)
	assert.True(t, snap.Status.Terminal())
}

func TestPerFileErrorsDoNotFailTask(t *testing.T) {
	r := NewRegistry()
	task := r.CreateIngestTask([]string{"/tmp/a"}, false)

	r.Mutate(task.ID, func(t *IngestTask) {
		t.RecordError("/tmp/a/broken.txt", errors.New("boom"))
		t.RecordFile(1)
		t.Complete()
	})

	snap, ok := r.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Len(t, snap.Errors, 1)
}

func TestConsolidationLockIsSingleEntry(t *testing.T) {
	r := NewRegistry()

	ok, incumbent := r.AcquireConsolidation("task-1")
	assert.True(t, ok)
	assert.Empty(t, incumbent)

	ok, incumbent = r.AcquireConsolidation("task-2")
	assert.False(t, ok)
	assert.Equal(t, "task-1", incumbent)

	r.ReleaseConsolidation()
	// Idempotent: releasing again must not panic or error.
	r.ReleaseConsolidation()

	ok, _ = r.AcquireConsolidation("task-3")
	assert.True(t, ok)
}

func TestAutoWatchRegistryTracksTask(t *testing.T) {
	r := NewRegistry()
	r.RegisterAutoWatch("/tmp/watched", "task-1")

	id, ok := r.AutoWatchTask("/tmp/watched")
	require.True(t, ok)
	assert.Equal(t, "task-1", id)
}
