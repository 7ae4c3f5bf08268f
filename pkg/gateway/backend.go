package gateway

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/cuemby/gatewayd/pkg/clustermanager"
	"github.com/cuemby/gatewayd/pkg/clustermanager/inprocess"
	"github.com/cuemby/gatewayd/pkg/clustermanager/localprocess"
	"github.com/cuemby/gatewayd/pkg/config"
	"github.com/cuemby/gatewayd/pkg/jobqueue"
	"github.com/cuemby/gatewayd/pkg/jobqueue/launcher"
	"github.com/cuemby/gatewayd/pkg/jobqueue/slurm"
	"github.com/cuemby/gatewayd/pkg/taskpool"
)

func timeoutsFromConfig(cfg *config.Config) clustermanager.Timeouts {
	return clustermanager.Timeouts{
		ClusterStart:   cfg.ClusterStartTimeout,
		ClusterConnect: cfg.ClusterConnectTimeout,
		WorkerStart:    cfg.WorkerStartTimeout,
		WorkerConnect:  cfg.WorkerConnectTimeout,
	}
}

// newBackend selects and constructs a clustermanager.Backend from
// cfg.ClusterManagerClass. Validate already rejected any other value.
func newBackend(cfg *config.Config, pool *taskpool.Pool) (clustermanager.Backend, error) {
	timeouts := timeoutsFromConfig(cfg)

	switch cfg.ClusterManagerClass {
	case "inprocess":
		return inprocess.New(nil, nil, timeouts), nil

	case "localprocess":
		return localprocess.New(localCommandLauncher(cfg.LocalProcess), timeouts), nil

	case "jobqueue.slurm":
		variant := slurm.New(slurm.Config{
			SubmitCommand:    cfg.JobQueue.SubmitCommand,
			CancelCommand:    cfg.JobQueue.CancelCommand,
			StatusCommand:    cfg.JobQueue.StatusCommand,
			Partition:        cfg.JobQueue.Partition,
			QOS:              cfg.JobQueue.QOS,
			Account:          cfg.JobQueue.Account,
			StagingDirectory: cfg.JobQueue.StagingDirectory,
			WorkerSetup:      cfg.JobQueue.WorkerSetup,
			SchedulerSetup:   cfg.JobQueue.SchedulerSetup,
			WorkerCommand:    cfg.JobQueue.WorkerCommand,
			SchedulerCommand: cfg.JobQueue.SchedulerCommand,
			WorkerCores:      cfg.JobQueue.WorkerCores,
			SchedulerCores:   cfg.JobQueue.SchedulerCores,
			WorkerMemory:     cfg.JobQueue.WorkerMemory,
			SchedulerMemory:  cfg.JobQueue.SchedulerMemory,
		})
		backend := jobqueue.New(variant, pool, cfg.JobQueue.StatusPollInterval, timeouts)
		if cfg.JobQueue.LauncherHelperPath != "" {
			backend.Helper = &launcher.Client{HelperPath: cfg.JobQueue.LauncherHelperPath}
			backend.StagingRoot = cfg.JobQueue.StagingDirectory
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("gateway: unknown cluster_manager_class %q", cfg.ClusterManagerClass)
	}
}

// localCommandLauncher renders cfg's scheduler/worker command templates
// (over {{.ClusterName}}/{{.Worker}}/{{.APIAddress}}) into a shell
// invocation, the localprocess backend's only required wiring.
func localCommandLauncher(cfg config.LocalProcessConfig) localprocess.Launcher {
	return func(info *clustermanager.ClusterInfo, worker string, clusterState map[string]any) ([]string, []string, string, error) {
		source := cfg.SchedulerCommand
		if worker != "" {
			source = cfg.WorkerCommand
		}
		tmpl, err := template.New("command").Parse(source)
		if err != nil {
			return nil, nil, "", fmt.Errorf("gateway: parse local process command template: %w", err)
		}
		data := struct {
			ClusterName string
			Worker      string
			APIAddress  string
		}{ClusterName: info.ClusterName, Worker: worker, APIAddress: info.APIAddress}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, nil, "", fmt.Errorf("gateway: render local process command: %w", err)
		}

		env := []string{
			"DASK_GATEWAY_API_TOKEN=" + info.APIToken,
			"DASK_GATEWAY_API_URL=" + info.APIAddress,
		}
		if worker != "" {
			env = append(env, config.WorkerNameEnvVar+"="+worker)
		}
		return []string{"sh", "-c", buf.String()}, env, "", nil
	}
}
