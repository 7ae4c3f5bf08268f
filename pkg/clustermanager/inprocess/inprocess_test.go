package inprocess

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/gatewayd/pkg/clustermanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopPublish(map[string]any) error { return nil }

func TestStartClusterRunsSchedulerUntilStopped(t *testing.T) {
	started := make(chan struct{})
	stopped := make(chan struct{})
	scheduler := func(ctx context.Context, info *clustermanager.ClusterInfo) error {
		close(started)
		<-ctx.Done()
		close(stopped)
		return nil
	}

	b := New(scheduler, nil, clustermanager.Timeouts{})
	info := &clustermanager.ClusterInfo{ClusterName: "c1"}

	require.NoError(t, b.StartCluster(context.Background(), info, noopPublish))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("scheduler never started")
	}

	require.NoError(t, b.StopCluster(context.Background(), info, nil))

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler never observed cancellation")
	}
}

func TestStartClusterPublishFailureAbortsBeforeLaunch(t *testing.T) {
	var launched atomic.Bool
	scheduler := func(ctx context.Context, info *clustermanager.ClusterInfo) error {
		launched.Store(true)
		<-ctx.Done()
		return nil
	}

	b := New(scheduler, nil, clustermanager.Timeouts{})
	failing := func(map[string]any) error { return errors.New("publish boom") }

	err := b.StartCluster(context.Background(), &clustermanager.ClusterInfo{ClusterName: "c1"}, failing)
	require.Error(t, err)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, launched.Load())
}

func TestDefaultSchedulerAndWorkerAreNoop(t *testing.T) {
	b := New(nil, nil, clustermanager.Timeouts{})
	info := &clustermanager.ClusterInfo{ClusterName: "c1"}

	require.NoError(t, b.StartCluster(context.Background(), info, noopPublish))
	require.NoError(t, b.StartWorker(context.Background(), "w1", info, nil, noopPublish))

	ch, ok := b.IsJobRunning("anything")
	assert.False(t, ok)
	assert.Nil(t, ch)

	require.NoError(t, b.StopWorker(context.Background(), "w1", nil, info, nil))
	require.NoError(t, b.StopCluster(context.Background(), info, nil))
}

func TestTimeoutsFallBackToDefaults(t *testing.T) {
	b := New(nil, nil, clustermanager.Timeouts{})
	to := b.Timeouts()
	assert.Equal(t, 30*time.Second, to.ClusterStart)
	assert.Equal(t, 30*time.Second, to.ClusterConnect)
	assert.Equal(t, 30*time.Second, to.WorkerStart)
	assert.Equal(t, 30*time.Second, to.WorkerConnect)
}

func TestTimeoutsPassThroughWhenSet(t *testing.T) {
	b := New(nil, nil, clustermanager.Timeouts{ClusterStart: time.Minute})
	assert.Equal(t, time.Minute, b.Timeouts().ClusterStart)
}
