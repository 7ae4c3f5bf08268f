package localprocess

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cuemby/gatewayd/pkg/clustermanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sleepLauncher(seconds int) Launcher {
	return func(info *clustermanager.ClusterInfo, worker string, clusterState map[string]any) ([]string, []string, string, error) {
		return []string{"sh", "-c", fmt.Sprintf("sleep %d", seconds)}, nil, "", nil
	}
}

func TestStartClusterLaunchesAndTracksPID(t *testing.T) {
	b := New(sleepLauncher(5), clustermanager.Timeouts{})
	var published map[string]any
	publish := func(state map[string]any) error {
		published = state
		return nil
	}

	info := &clustermanager.ClusterInfo{ClusterName: "c1"}
	require.NoError(t, b.StartCluster(context.Background(), info, publish))
	require.NotNil(t, published)
	assert.Greater(t, published["pid"].(int), 0)

	require.NoError(t, b.StopCluster(context.Background(), info, nil))
}

func TestStopClusterWithNoTrackedProcessFallsBackToLastState(t *testing.T) {
	b := New(sleepLauncher(5), clustermanager.Timeouts{})
	info := &clustermanager.ClusterInfo{ClusterName: "untracked"}
	// No StartCluster call, so nothing is tracked; a pid-bearing lastState
	// (as recovery would pass) should still not error.
	require.NoError(t, b.StopCluster(context.Background(), info, map[string]any{"pid": 999999}))
}

func TestStartWithoutLauncherFails(t *testing.T) {
	b := New(nil, clustermanager.Timeouts{})
	err := b.StartCluster(context.Background(), &clustermanager.ClusterInfo{ClusterName: "c1"}, func(map[string]any) error { return nil })
	require.Error(t, err)
}

func TestStartWithEmptyArgvFails(t *testing.T) {
	b := New(func(info *clustermanager.ClusterInfo, worker string, clusterState map[string]any) ([]string, []string, string, error) {
		return nil, nil, "", nil
	}, clustermanager.Timeouts{})
	err := b.StartCluster(context.Background(), &clustermanager.ClusterInfo{ClusterName: "c1"}, func(map[string]any) error { return nil })
	require.Error(t, err)
}

func TestKillAllSignalsEveryTrackedProcess(t *testing.T) {
	b := New(sleepLauncher(30), clustermanager.Timeouts{})
	info := &clustermanager.ClusterInfo{ClusterName: "c2"}
	var pid int
	publish := func(state map[string]any) error {
		pid = state["pid"].(int)
		return nil
	}
	require.NoError(t, b.StartCluster(context.Background(), info, publish))
	require.Greater(t, pid, 0)

	KillAll()

	// KillAll signals the tracked subprocess and removes its entry from
	// the registry.
	require.Eventually(t, func() bool {
		registry.mu.Lock()
		defer registry.mu.Unlock()
		_, stillTracked := registry.pids[pid]
		return !stillTracked
	}, 2*time.Second, 20*time.Millisecond)
}
