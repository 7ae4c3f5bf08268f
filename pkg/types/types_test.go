package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusStopped.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusStarting.Terminal())
	assert.False(t, StatusStarted.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.False(t, StatusStopping.Terminal())
}

func TestClusterSnapshotIsIndependentOfOriginal(t *testing.T) {
	c := &Cluster{
		Name:    "c1",
		Status:  StatusRunning,
		State:   map[string]any{"job_id": "1"},
		Workers: map[string]*Worker{"w1": {Name: "w1"}},
	}

	snap := c.Snapshot()
	snap.State["job_id"] = "mutated"
	assert.Equal(t, "1", c.State["job_id"], "mutating the snapshot's state must not affect the original")
	assert.Nil(t, snap.Workers, "snapshot must not carry the live Workers map")
}

func TestClusterSnapshotOfNilIsNil(t *testing.T) {
	var c *Cluster
	assert.Nil(t, c.Snapshot())
}

func TestWorkerSnapshotIsIndependentOfOriginal(t *testing.T) {
	w := &Worker{Name: "w1", State: map[string]any{"pid": 1}}
	snap := w.Snapshot()
	snap.State["pid"] = 2
	assert.Equal(t, 1, w.State["pid"])
}

func TestWorkerSnapshotOfNilIsNil(t *testing.T) {
	var w *Worker
	assert.Nil(t, w.Snapshot())
}
