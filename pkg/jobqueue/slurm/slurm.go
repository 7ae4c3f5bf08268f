// Package slurm implements pkg/jobqueue.Variant for the Slurm workload
// manager, porting dask_gateway_server.managers.jobqueue.slurm.
package slurm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/cuemby/gatewayd/pkg/clustermanager"
	"github.com/cuemby/gatewayd/pkg/jobqueue"
)

// Config mirrors the traitlets configuration of SlurmClusterManager plus
// the fields it inherits from the base JobQueueClusterManager.
type Config struct {
	SubmitCommand string
	CancelCommand string
	StatusCommand string

	Partition string
	QOS       string
	Account   string

	StagingDirectory string // text/template over {{.Home}}/{{.Username}}
	WorkerSetup      string
	SchedulerSetup   string
	WorkerCommand    string
	SchedulerCommand string

	WorkerCores     int
	SchedulerCores  int
	WorkerMemory    int64
	SchedulerMemory int64
}

func withDefaults(c Config) Config {
	if c.SubmitCommand == "" {
		c.SubmitCommand = "sbatch"
	}
	if c.CancelCommand == "" {
		c.CancelCommand = "scancel"
	}
	if c.StatusCommand == "" {
		c.StatusCommand = "squeue"
	}
	if c.WorkerCores == 0 {
		c.WorkerCores = 1
	}
	if c.SchedulerCores == 0 {
		c.SchedulerCores = 1
	}
	return c
}

// Variant implements jobqueue.Variant for Slurm.
type Variant struct {
	cfg Config
}

// New creates a Slurm Variant from cfg, applying the same program-lookup
// defaults (`sbatch`/`scancel`/`squeue` on $PATH) as the original.
func New(cfg Config) *Variant {
	return &Variant{cfg: withDefaults(cfg)}
}

var _ jobqueue.Variant = (*Variant)(nil)

func (v *Variant) stagingDirectory(info *clustermanager.ClusterInfo) (string, error) {
	tmpl, err := template.New("staging").Parse(v.cfg.StagingDirectory)
	if err != nil {
		return "", fmt.Errorf("slurm: parse staging directory template: %w", err)
	}
	home, _ := os.UserHomeDir()
	data := struct {
		Home        string
		Username    string
		ClusterName string
	}{Home: home, Username: info.Owner, ClusterName: info.ClusterName}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("slurm: render staging directory template: %w", err)
	}
	return sb.String(), nil
}

func (v *Variant) BuildSubmitCmd(info *clustermanager.ClusterInfo, worker string, clusterState map[string]any) ([]string, map[string]string, string, error) {
	stagingDir, err := v.stagingDirectory(info)
	if err != nil {
		return nil, nil, "", err
	}

	env := map[string]string{
		"DASK_GATEWAY_API_TOKEN": info.APIToken,
		"DASK_GATEWAY_API_URL":   info.APIAddress,
	}

	argv := []string{v.cfg.SubmitCommand, "--parsable", "--job-name=dask-gateway"}
	if v.cfg.Partition != "" {
		argv = append(argv, "--partition="+v.cfg.Partition)
	}
	if v.cfg.Account != "" {
		argv = append(argv, "--account="+v.cfg.Account)
	}
	if v.cfg.QOS != "" {
		argv = append(argv, "--qos="+v.cfg.QOS)
	}

	var cores int
	var memBytes int64
	var logFile, script string

	if worker != "" {
		env["DASK_GATEWAY_WORKER_NAME"] = worker
		cores = v.cfg.WorkerCores
		memBytes = v.cfg.WorkerMemory
		logFile = fmt.Sprintf("dask-worker-%s.log", worker)
		script = strings.Join([]string{"#!/bin/sh", v.cfg.WorkerSetup, v.cfg.WorkerCommand}, "\n")
	} else {
		cores = v.cfg.SchedulerCores
		memBytes = v.cfg.SchedulerMemory
		logFile = fmt.Sprintf("dask-scheduler-%s.log", info.ClusterName)
		script = strings.Join([]string{"#!/bin/sh", v.cfg.SchedulerSetup, v.cfg.SchedulerCommand}, "\n")
	}

	envNames := make([]string, 0, len(env))
	for k := range env {
		envNames = append(envNames, k)
	}
	sort.Strings(envNames)

	argv = append(argv,
		"--chdir="+stagingDir,
		"--output="+filepath.Join(stagingDir, logFile),
		fmt.Sprintf("--cpus-per-task=%d", cores),
		"--mem="+jobqueue.FormatMemory(memBytes),
		"--export="+strings.Join(envNames, ","),
	)

	return argv, env, script, nil
}

func (v *Variant) BuildCancelCmd(jobID string) []string {
	return []string{v.cfg.CancelCommand, jobID}
}

func (v *Variant) BuildStatusCmd(jobIDs []string) []string {
	return []string{v.cfg.StatusCommand, "-h", "--job=" + strings.Join(jobIDs, ","), "-o", "%i %t"}
}

func (v *Variant) ParseJobID(stdout string) string {
	return strings.TrimSpace(stdout)
}

// ParseJobStates classifies each "<job_id> <state>" line: R (running) and
// CG (completing) count as running; PD (pending) and CF (configuring) are
// left unclassified (still pending); everything else is failed.
func (v *Variant) ParseJobStates(stdout string) (running []string, failed []string) {
	for _, line := range strings.Split(stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		jobID, state := fields[0], fields[1]
		switch state {
		case "R", "CG":
			running = append(running, jobID)
		case "PD", "CF":
			// still pending, not yet classified either way
		default:
			failed = append(failed, jobID)
		}
	}
	return running, failed
}

// IsAlreadyGone treats scancel's "Job has finished" stderr as a successful
// cancel rather than an error, per stop_job in the original source.
func (v *Variant) IsAlreadyGone(stderr string) bool {
	return strings.Contains(stderr, "Job has finished") || strings.Contains(stderr, "Invalid job id specified")
}
