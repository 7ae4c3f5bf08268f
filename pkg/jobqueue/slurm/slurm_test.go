package slurm

import (
	"strings"
	"testing"

	"github.com/cuemby/gatewayd/pkg/clustermanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInfo() *clustermanager.ClusterInfo {
	return &clustermanager.ClusterInfo{
		ClusterName: "c1",
		Owner:       "alice",
		APIToken:    "tok",
		APIAddress:  "http://gateway:8000",
	}
}

func TestBuildSubmitCmdOmitsUnconfiguredFlags(t *testing.T) {
	v := New(Config{StagingDirectory: "/tmp/{{.ClusterName}}"})

	argv, _, _, err := v.BuildSubmitCmd(testInfo(), "", nil)
	require.NoError(t, err)

	joined := strings.Join(argv, " ")
	assert.NotContains(t, joined, "--account=")
	assert.NotContains(t, joined, "--qos=")
	assert.NotContains(t, joined, "--partition=")
}

func TestBuildSubmitCmdIncludesConfiguredFlags(t *testing.T) {
	v := New(Config{
		StagingDirectory: "/tmp/{{.ClusterName}}",
		Partition:        "batch",
		Account:          "myaccount",
		QOS:              "high",
	})

	argv, _, _, err := v.BuildSubmitCmd(testInfo(), "", nil)
	require.NoError(t, err)

	joined := strings.Join(argv, " ")
	assert.Contains(t, joined, "--partition=batch")
	assert.Contains(t, joined, "--account=myaccount")
	assert.Contains(t, joined, "--qos=high")
}

func TestBuildSubmitCmdWorkerVsScheduler(t *testing.T) {
	v := New(Config{
		StagingDirectory: "/tmp/{{.ClusterName}}",
		WorkerCommand:    "dask-worker",
		SchedulerCommand: "dask-scheduler",
	})

	_, env, script, err := v.BuildSubmitCmd(testInfo(), "worker-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", env["DASK_GATEWAY_WORKER_NAME"])
	assert.Contains(t, script, "dask-worker")

	_, env, script, err = v.BuildSubmitCmd(testInfo(), "", nil)
	require.NoError(t, err)
	_, hasWorkerName := env["DASK_GATEWAY_WORKER_NAME"]
	assert.False(t, hasWorkerName)
	assert.Contains(t, script, "dask-scheduler")
}

func TestParseJobID(t *testing.T) {
	v := New(Config{})
	assert.Equal(t, "12345", v.ParseJobID("12345\n"))
}

func TestParseJobStates(t *testing.T) {
	v := New(Config{})
	stdout := "1 R\n2 PD\n3 CG\n4 CF\n5 F\n6 CA\n"
	running, failed := v.ParseJobStates(stdout)
	assert.ElementsMatch(t, []string{"1", "3"}, running)
	assert.ElementsMatch(t, []string{"5", "6"}, failed)
}

func TestIsAlreadyGone(t *testing.T) {
	v := New(Config{})
	assert.True(t, v.IsAlreadyGone("scancel: error: Job has finished"))
	assert.False(t, v.IsAlreadyGone("scancel: error: some other failure"))
}
