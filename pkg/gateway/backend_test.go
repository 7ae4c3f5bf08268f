package gateway

import (
	"testing"

	"github.com/cuemby/gatewayd/pkg/clustermanager"
	"github.com/cuemby/gatewayd/pkg/clustermanager/inprocess"
	"github.com/cuemby/gatewayd/pkg/clustermanager/localprocess"
	"github.com/cuemby/gatewayd/pkg/config"
	"github.com/cuemby/gatewayd/pkg/jobqueue"
	"github.com/cuemby/gatewayd/pkg/taskpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackendSelectsInprocess(t *testing.T) {
	cfg := &config.Config{ClusterManagerClass: "inprocess"}
	b, err := newBackend(cfg, taskpool.New())
	require.NoError(t, err)
	_, ok := b.(*inprocess.Backend)
	assert.True(t, ok)
}

func TestNewBackendSelectsLocalprocess(t *testing.T) {
	cfg := &config.Config{ClusterManagerClass: "localprocess"}
	b, err := newBackend(cfg, taskpool.New())
	require.NoError(t, err)
	_, ok := b.(*localprocess.Backend)
	assert.True(t, ok)
}

func TestNewBackendSelectsJobQueueSlurmAndWiresLauncher(t *testing.T) {
	cfg := &config.Config{
		ClusterManagerClass: "jobqueue.slurm",
		JobQueue: config.JobQueueConfig{
			StagingDirectory:   "/tmp/staging",
			LauncherHelperPath: "/usr/local/bin/gatewayd-launcher",
		},
	}
	b, err := newBackend(cfg, taskpool.New())
	require.NoError(t, err)
	jqb, ok := b.(*jobqueue.Backend)
	require.True(t, ok)
	require.NotNil(t, jqb.Helper)
	assert.Equal(t, "/tmp/staging", jqb.StagingRoot)
}

func TestNewBackendRejectsUnknownClass(t *testing.T) {
	cfg := &config.Config{ClusterManagerClass: "unknown"}
	_, err := newBackend(cfg, taskpool.New())
	require.Error(t, err)
}

func TestLocalCommandLauncherRendersTemplate(t *testing.T) {
	launch := localCommandLauncher(config.LocalProcessConfig{
		SchedulerCommand: "dask-scheduler --name {{.ClusterName}}",
		WorkerCommand:    "dask-worker --name {{.Worker}} --api {{.APIAddress}}",
	})

	info := &clustermanager.ClusterInfo{ClusterName: "c1", APIToken: "tok", APIAddress: "http://127.0.0.1:8788"}

	argv, env, _, err := launch(info, "", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"sh", "-c", "dask-scheduler --name c1"}, argv)
	assert.Contains(t, env, "DASK_GATEWAY_API_TOKEN=tok")

	argv, env, _, err = launch(info, "w1", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"sh", "-c", "dask-worker --name w1 --api http://127.0.0.1:8788"}, argv)
	assert.Contains(t, env, config.WorkerNameEnvVar+"=w1")
}
