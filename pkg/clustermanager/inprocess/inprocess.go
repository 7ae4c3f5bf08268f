// Package inprocess implements a clustermanager.Backend that runs a
// cluster's scheduler and workers as goroutines within the gateway process
// itself, in the style of the teacher's NewEmbeddedWorker "hybrid mode":
// no separate process, no certificate exchange, the same trust domain as
// the gateway. It exists for tests and for deployments that want a
// zero-subprocess embedded cluster.
package inprocess

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/gatewayd/pkg/clustermanager"
	"github.com/cuemby/gatewayd/pkg/log"
)

// Scheduler is the function signature a caller supplies to run an
// in-process scheduler loop. It must return when ctx is cancelled.
type Scheduler func(ctx context.Context, info *clustermanager.ClusterInfo) error

// Worker is the function signature for an in-process worker loop.
type Worker func(ctx context.Context, workerName string, info *clustermanager.ClusterInfo, clusterState map[string]any) error

// Backend runs schedulers and workers as goroutines. A zero-value Backend
// uses NoopScheduler/NoopWorker, which simply run until stopped; most
// callers will supply their own.
type Backend struct {
	Scheduler Scheduler
	Worker    Worker
	timeouts  clustermanager.Timeouts

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New creates an inprocess Backend with the given timeouts. Pass zero
// Timeouts fields to fall back to the package defaults.
func New(scheduler Scheduler, worker Worker, timeouts clustermanager.Timeouts) *Backend {
	return &Backend{
		Scheduler: scheduler,
		Worker:    worker,
		timeouts:  withDefaults(timeouts),
		running:   make(map[string]context.CancelFunc),
	}
}

func withDefaults(t clustermanager.Timeouts) clustermanager.Timeouts {
	if t.ClusterStart == 0 {
		t.ClusterStart = 30 * time.Second
	}
	if t.ClusterConnect == 0 {
		t.ClusterConnect = 30 * time.Second
	}
	if t.WorkerStart == 0 {
		t.WorkerStart = 30 * time.Second
	}
	if t.WorkerConnect == 0 {
		t.WorkerConnect = 30 * time.Second
	}
	return t
}

func (b *Backend) Timeouts() clustermanager.Timeouts {
	return b.timeouts
}

// IsJobRunning always reports false: in-process goroutines have no
// independent job-queue signal, their liveness is the goroutine itself.
func (b *Backend) IsJobRunning(jobID string) (<-chan bool, bool) {
	return nil, false
}

func clusterKey(clusterName string) string { return "cluster:" + clusterName }

func workerKey(clusterName, workerName string) string { return "worker:" + clusterName + "/" + workerName }

func (b *Backend) track(key string, cancel context.CancelFunc) {
	b.mu.Lock()
	if b.running == nil {
		b.running = make(map[string]context.CancelFunc)
	}
	b.running[key] = cancel
	b.mu.Unlock()
}

func (b *Backend) stop(key string) {
	b.mu.Lock()
	cancel, ok := b.running[key]
	delete(b.running, key)
	b.mu.Unlock()
	if ok {
		cancel()
	}
}

func (b *Backend) StartCluster(ctx context.Context, info *clustermanager.ClusterInfo, publish clustermanager.PublishFunc) error {
	logger := log.WithCluster(info.ClusterName)
	runCtx, cancel := context.WithCancel(context.Background())

	if err := publish(map[string]any{"phase": "launching"}); err != nil {
		cancel()
		return fmt.Errorf("inprocess: publish launching: %w", err)
	}

	fn := b.Scheduler
	if fn == nil {
		fn = NoopScheduler
	}

	b.track(clusterKey(info.ClusterName), cancel)

	go func() {
		if err := fn(runCtx, info); err != nil {
			logger.Error().Err(err).Msg("inprocess scheduler exited with error")
		}
	}()

	return publish(map[string]any{"phase": "running"})
}

func (b *Backend) StopCluster(ctx context.Context, info *clustermanager.ClusterInfo, lastState map[string]any) error {
	b.stop(clusterKey(info.ClusterName))
	return nil
}

func (b *Backend) StartWorker(ctx context.Context, workerName string, info *clustermanager.ClusterInfo, clusterState map[string]any, publish clustermanager.PublishFunc) error {
	runCtx, cancel := context.WithCancel(context.Background())

	if err := publish(map[string]any{"phase": "launching"}); err != nil {
		cancel()
		return fmt.Errorf("inprocess: publish launching: %w", err)
	}

	fn := b.Worker
	if fn == nil {
		fn = NoopWorker
	}

	b.track(workerKey(info.ClusterName, workerName), cancel)

	logger := log.WithWorker(info.ClusterName, workerName)
	go func() {
		if err := fn(runCtx, workerName, info, clusterState); err != nil {
			logger.Error().Err(err).Msg("inprocess worker exited with error")
		}
	}()

	return publish(map[string]any{"phase": "running"})
}

func (b *Backend) StopWorker(ctx context.Context, workerName string, lastState map[string]any, info *clustermanager.ClusterInfo, clusterState map[string]any) error {
	b.stop(workerKey(info.ClusterName, workerName))
	return nil
}

// NoopScheduler blocks until ctx is cancelled and is used when a Backend is
// constructed without a Scheduler, mainly in tests that only care about
// lifecycle transitions.
func NoopScheduler(ctx context.Context, info *clustermanager.ClusterInfo) error {
	<-ctx.Done()
	return nil
}

// NoopWorker blocks until ctx is cancelled, mirroring NoopScheduler.
func NoopWorker(ctx context.Context, workerName string, info *clustermanager.ClusterInfo, clusterState map[string]any) error {
	<-ctx.Done()
	return nil
}
