package jobqueue

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/gatewayd/pkg/clustermanager"
	"github.com/cuemby/gatewayd/pkg/jobqueue/launcher"
	"github.com/cuemby/gatewayd/pkg/log"
	"github.com/cuemby/gatewayd/pkg/taskpool"
	"github.com/rs/zerolog"
)

// Backend drives a Variant (a concrete batch scheduler) through the
// clustermanager.Backend contract: submit a job for StartCluster/
// StartWorker, cancel it for Stop*, and expose its liveness through
// IsJobRunning via a background status tracker.
type Backend struct {
	Variant            Variant
	Pool               *taskpool.Pool
	StatusPollInterval time.Duration
	timeouts           clustermanager.Timeouts

	// Helper, when set, routes job submission through the privileged
	// launcher protocol instead of running the scheduler's submit command
	// directly as the gateway's own user. StagingRoot scopes each
	// cluster's staged submit script so a malicious relative path can't
	// escape it.
	Helper      *launcher.Client
	StagingRoot string

	startOnce sync.Once

	mu      sync.Mutex
	pending map[string]chan bool
}

// New creates a job-queue Backend. pool is used to spawn the background
// status tracker on first use; it is typically the same pool the gateway
// uses for every other supervising goroutine.
func New(variant Variant, pool *taskpool.Pool, statusPollInterval time.Duration, timeouts clustermanager.Timeouts) *Backend {
	if statusPollInterval <= 0 {
		statusPollInterval = 5 * time.Second
	}
	return &Backend{
		Variant:            variant,
		Pool:               pool,
		StatusPollInterval: statusPollInterval,
		timeouts:           timeouts,
		pending:            make(map[string]chan bool),
	}
}

func (b *Backend) Timeouts() clustermanager.Timeouts { return b.timeouts }

func runCommand(ctx context.Context, argv []string, env map[string]string, stdin string) (stdout, stderr string, err error) {
	if len(argv) == 0 {
		return "", "", fmt.Errorf("jobqueue: empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

// runAsJobOwner dispatches a command through the privileged launcher
// helper when one is configured, scoping stagingDir to info's cluster
// under StagingRoot; otherwise it runs the command directly as the
// gateway's own user via runCommand.
func (b *Backend) runAsJobOwner(ctx context.Context, info *clustermanager.ClusterInfo, argv []string, env map[string]string, stdin string) (stdout, stderr string, err error) {
	if b.Helper == nil {
		return runCommand(ctx, argv, env, stdin)
	}

	stagingDir, err := launcher.ResolveStagingPath(b.StagingRoot, info.ClusterName, "")
	if err != nil {
		return "", "", fmt.Errorf("jobqueue: resolve staging path: %w", err)
	}

	resp, err := b.Helper.Do(ctx, launcher.Request{
		Action:     launcher.ActionRun,
		Cmd:        argv,
		Env:        env,
		Stdin:      stdin,
		StagingDir: stagingDir,
	})
	if err != nil {
		return "", "", err
	}
	if !resp.OK {
		return resp.Stdout, resp.Stderr, fmt.Errorf("jobqueue: launcher helper: %s", resp.Error)
	}
	return resp.Stdout, resp.Stderr, nil
}

// writeClusterFiles stages relative-path -> content pairs into a cluster's
// staging directory through the launcher helper, porting the
// dask.pem/dask.crt materialization start_job performs inline in the
// original source's base.py. It is a no-op when no helper is configured,
// since without privilege separation the submit command itself runs as the
// gateway's own user and can write its own staging files.
func (b *Backend) writeClusterFiles(ctx context.Context, info *clustermanager.ClusterInfo, files map[string]string) error {
	if b.Helper == nil || len(files) == 0 {
		return nil
	}

	stagingDir, err := launcher.ResolveStagingPath(b.StagingRoot, info.ClusterName, "")
	if err != nil {
		return fmt.Errorf("jobqueue: resolve staging path: %w", err)
	}

	resp, err := b.Helper.Do(ctx, launcher.Request{
		Action:     launcher.ActionWriteFile,
		Files:      files,
		StagingDir: stagingDir,
	})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("jobqueue: launcher helper: %s", resp.Error)
	}
	return nil
}

// removeStagingDir tears down a cluster's staging tree through the launcher
// helper. Scoped to cluster-level stop only: the staging directory is
// per-cluster, not per-worker, so a worker stop must never remove it out
// from under sibling workers still running.
func (b *Backend) removeStagingDir(ctx context.Context, info *clustermanager.ClusterInfo) error {
	if b.Helper == nil {
		return nil
	}

	stagingDir, err := launcher.ResolveStagingPath(b.StagingRoot, info.ClusterName, "")
	if err != nil {
		return fmt.Errorf("jobqueue: resolve staging path: %w", err)
	}

	resp, err := b.Helper.Do(ctx, launcher.Request{
		Action:     launcher.ActionRemoveDir,
		StagingDir: stagingDir,
	})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("jobqueue: launcher helper: %s", resp.Error)
	}
	return nil
}

func (b *Backend) submit(ctx context.Context, info *clustermanager.ClusterInfo, worker string, clusterState map[string]any, publish clustermanager.PublishFunc) error {
	argv, env, script, err := b.Variant.BuildSubmitCmd(info, worker, clusterState)
	if err != nil {
		return fmt.Errorf("jobqueue: build submit command: %w", err)
	}

	// Only the cluster-level submit (scheduler, not a worker) stages the
	// cluster's TLS identity, mirroring start_job's worker_name check in
	// the original source.
	if worker == "" {
		if err := b.writeClusterFiles(ctx, info, map[string]string{
			"dask.pem": string(info.TLSKey),
			"dask.crt": string(info.TLSCert),
		}); err != nil {
			return fmt.Errorf("jobqueue: stage tls material: %w", err)
		}
	}

	stdout, stderr, err := b.runAsJobOwner(ctx, info, argv, env, script)
	if err != nil {
		return fmt.Errorf("jobqueue: submit failed: %w (stderr: %s)", err, strings.TrimSpace(stderr))
	}

	jobID := b.Variant.ParseJobID(stdout)
	if jobID == "" {
		return fmt.Errorf("jobqueue: submit produced no job id (stdout: %s)", strings.TrimSpace(stdout))
	}

	return publish(map[string]any{"job_id": jobID})
}

func (b *Backend) cancel(ctx context.Context, info *clustermanager.ClusterInfo, jobID string) error {
	if jobID == "" {
		return nil
	}
	argv := b.Variant.BuildCancelCmd(jobID)
	_, stderr, err := b.runAsJobOwner(ctx, info, argv, nil, "")
	if err != nil && !b.Variant.IsAlreadyGone(stderr) {
		return fmt.Errorf("jobqueue: cancel failed: %w (stderr: %s)", err, strings.TrimSpace(stderr))
	}
	return nil
}

func jobIDFromState(state map[string]any) string {
	if state == nil {
		return ""
	}
	id, _ := state["job_id"].(string)
	return id
}

func (b *Backend) StartCluster(ctx context.Context, info *clustermanager.ClusterInfo, publish clustermanager.PublishFunc) error {
	return b.submit(ctx, info, "", nil, publish)
}

func (b *Backend) StartWorker(ctx context.Context, workerName string, info *clustermanager.ClusterInfo, clusterState map[string]any, publish clustermanager.PublishFunc) error {
	return b.submit(ctx, info, workerName, clusterState, publish)
}

func (b *Backend) StopCluster(ctx context.Context, info *clustermanager.ClusterInfo, lastState map[string]any) error {
	if err := b.cancel(ctx, info, jobIDFromState(lastState)); err != nil {
		return err
	}
	return b.removeStagingDir(ctx, info)
}

func (b *Backend) StopWorker(ctx context.Context, workerName string, lastState map[string]any, info *clustermanager.ClusterInfo, clusterState map[string]any) error {
	return b.cancel(ctx, info, jobIDFromState(lastState))
}

// IsJobRunning installs (or reuses) a liveness channel for jobID and lazily
// starts the background status tracker on first call.
func (b *Backend) IsJobRunning(jobID string) (<-chan bool, bool) {
	if jobID == "" {
		return nil, false
	}

	b.startOnce.Do(func() {
		if b.Pool != nil {
			_, _ = b.Pool.Spawn(context.Background(), "jobqueue:tracker", b.trackLoop)
		}
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.pending[jobID]
	if !ok {
		ch = make(chan bool, 1)
		b.pending[jobID] = ch
	}
	return ch, true
}

// trackLoop polls the status command on StatusPollInterval. For every job
// ID reported as failed it delivers false on that ID's liveness channel and
// removes the slot; running and still-pending IDs receive no value and stay
// installed for the next tick. A single failed status-command invocation is
// logged and tolerated rather than torn down, per the spec's
// TransientBackendError handling.
func (b *Backend) trackLoop(ctx context.Context) {
	logger := log.WithComponent("jobqueue.tracker")
	ticker := time.NewTicker(b.StatusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.pollOnce(ctx, &logger)
		}
	}
}

func (b *Backend) pollOnce(ctx context.Context, logger *zerolog.Logger) {
	b.mu.Lock()
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	argv := b.Variant.BuildStatusCmd(ids)
	stdout, stderr, err := runCommand(ctx, argv, nil, "")
	if err != nil {
		logger.Warn().Err(err).Str("stderr", strings.TrimSpace(stderr)).Msg("status command failed, retrying next tick")
		return
	}

	_, failed := b.Variant.ParseJobStates(stdout)

	// Only failures are ever delivered: a job still running or pending
	// simply keeps its slot installed for the next tick, since the only
	// thing the lifecycle engine's select loop needs from this channel is
	// a one-shot "this job has died" signal.
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range failed {
		if ch, ok := b.pending[id]; ok {
			select {
			case ch <- false:
			default:
			}
			delete(b.pending, id)
		}
	}
}
