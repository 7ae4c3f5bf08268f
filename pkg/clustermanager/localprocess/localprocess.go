// Package localprocess implements a clustermanager.Backend that runs a
// cluster's scheduler and workers as plain OS subprocesses via os/exec,
// generalizing the teacher's containerd task-supervision shape
// (pkg/runtime/containerd.go) from container tasks to unprivileged local
// processes. It tracks every PID it launches in a package-wide, in-memory
// registry so KillAll can signal children still running at gateway
// shutdown.
package localprocess

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cuemby/gatewayd/pkg/clustermanager"
	"github.com/cuemby/gatewayd/pkg/log"
)

// registry tracks every PID this process has spawned, mirroring the
// original source's module-level _PIDS / atexit cleanup hook.
var registry = struct {
	mu   sync.Mutex
	pids map[int]*os.Process
}{pids: make(map[int]*os.Process)}

func track(p *os.Process) {
	registry.mu.Lock()
	registry.pids[p.Pid] = p
	registry.mu.Unlock()
}

func untrack(pid int) {
	registry.mu.Lock()
	delete(registry.pids, pid)
	registry.mu.Unlock()
}

// KillAll sends SIGTERM to every process this backend has launched and is
// still tracking. It is registered as a shutdown hook by pkg/gateway so a
// process-wide shutdown doesn't orphan subprocess children.
func KillAll() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for pid, p := range registry.pids {
		_ = p.Signal(syscall.SIGTERM)
		delete(registry.pids, pid)
	}
}

// Launcher builds the argv/env/dir for a scheduler or worker subprocess.
// worker is empty for a scheduler launch.
type Launcher func(info *clustermanager.ClusterInfo, worker string, clusterState map[string]any) (argv []string, env []string, dir string, err error)

// Backend spawns scheduler and worker subprocesses directly in the gateway
// host's process tree.
type Backend struct {
	Launch   Launcher
	timeouts clustermanager.Timeouts

	mu    sync.Mutex
	procs map[string]*os.Process
}

// New creates a localprocess Backend.
func New(launch Launcher, timeouts clustermanager.Timeouts) *Backend {
	return &Backend{
		Launch:   launch,
		timeouts: timeouts,
		procs:    make(map[string]*os.Process),
	}
}

func (b *Backend) Timeouts() clustermanager.Timeouts { return b.timeouts }

// IsJobRunning always reports false: a local subprocess's liveness is
// tracked by this backend directly, not by an external job queue.
func (b *Backend) IsJobRunning(jobID string) (<-chan bool, bool) {
	return nil, false
}

func schedulerKey(clusterName string) string { return clusterName }

func workerKey(clusterName, workerName string) string { return clusterName + "/" + workerName }

func (b *Backend) start(ctx context.Context, key string, info *clustermanager.ClusterInfo, worker string, clusterState map[string]any, publish clustermanager.PublishFunc) error {
	if b.Launch == nil {
		return fmt.Errorf("localprocess: no Launcher configured")
	}

	argv, env, dir, err := b.Launch(info, worker, clusterState)
	if err != nil {
		return fmt.Errorf("localprocess: build command: %w", err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("localprocess: empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Dir = dir

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("localprocess: start: %w", err)
	}

	track(cmd.Process)
	b.mu.Lock()
	b.procs[key] = cmd.Process
	b.mu.Unlock()

	pid := cmd.Process.Pid
	logger := log.WithCluster(info.ClusterName)
	go func() {
		_ = cmd.Wait()
		untrack(pid)
		logger.Debug().Int("pid", pid).Str("key", key).Msg("localprocess subprocess exited")
	}()

	return publish(map[string]any{"pid": pid, "argv": argv})
}

func (b *Backend) StartCluster(ctx context.Context, info *clustermanager.ClusterInfo, publish clustermanager.PublishFunc) error {
	return b.start(ctx, schedulerKey(info.ClusterName), info, "", nil, publish)
}

func (b *Backend) StartWorker(ctx context.Context, workerName string, info *clustermanager.ClusterInfo, clusterState map[string]any, publish clustermanager.PublishFunc) error {
	return b.start(ctx, workerKey(info.ClusterName, workerName), info, workerName, clusterState, publish)
}

func (b *Backend) stop(key string, lastState map[string]any) error {
	b.mu.Lock()
	proc, ok := b.procs[key]
	delete(b.procs, key)
	b.mu.Unlock()

	if !ok {
		if pid, pidOK := pidFromState(lastState); pidOK {
			if p, err := os.FindProcess(pid); err == nil {
				_ = p.Signal(syscall.SIGTERM)
			}
		}
		return nil
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil && err != os.ErrProcessDone {
		return fmt.Errorf("localprocess: signal: %w", err)
	}

	done := make(chan struct{})
	go func() {
		_, _ = proc.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		_ = proc.Kill()
	}

	untrack(proc.Pid)
	return nil
}

func pidFromState(state map[string]any) (int, bool) {
	if state == nil {
		return 0, false
	}
	switch v := state["pid"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func (b *Backend) StopCluster(ctx context.Context, info *clustermanager.ClusterInfo, lastState map[string]any) error {
	return b.stop(schedulerKey(info.ClusterName), lastState)
}

func (b *Backend) StopWorker(ctx context.Context, workerName string, lastState map[string]any, info *clustermanager.ClusterInfo, clusterState map[string]any) error {
	return b.stop(workerKey(info.ClusterName, workerName), lastState)
}
