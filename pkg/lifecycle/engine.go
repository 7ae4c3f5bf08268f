package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/gatewayd/pkg/clustermanager"
	"github.com/cuemby/gatewayd/pkg/events"
	"github.com/cuemby/gatewayd/pkg/log"
	"github.com/cuemby/gatewayd/pkg/registrar"
	"github.com/cuemby/gatewayd/pkg/security"
	"github.com/cuemby/gatewayd/pkg/storage"
	"github.com/cuemby/gatewayd/pkg/taskpool"
	"github.com/cuemby/gatewayd/pkg/types"
)

// cleanupTimeout bounds every StopCluster/StopWorker call made during
// teardown. It runs against a fresh context.Background, deliberately
// detached from whatever deadline or cancellation triggered the teardown,
// so cleanup is never aborted by the same signal that caused it.
const cleanupTimeout = 30 * time.Second

// Engine drains clustermanager.Backend's staged-start protocol for every
// cluster and worker it supervises, and implements registrar.Registry so
// the Connection Registrar can resolve its pending connect waits. It is
// the single writer of every Cluster and Worker record's Status and State
// fields.
type Engine struct {
	store            storage.Store
	backend          clustermanager.Backend
	pool             *taskpool.Pool
	broker           *events.Broker
	clock            Clock
	registrarAddress string

	reg   *registry
	waits *connectWaits

	mu             sync.Mutex
	clusterHandles map[string]taskpool.Handle
	clusterDone    map[string]chan struct{}
	workerHandles  map[string]taskpool.Handle
	workerDone     map[string]chan struct{}
}

// NewEngine wires an Engine. registrarAddress is the Connection Registrar's
// base URL, handed to every backend as ClusterInfo.APIAddress so a started
// scheduler or worker knows where to PUT its connection details back to.
func NewEngine(store storage.Store, backend clustermanager.Backend, pool *taskpool.Pool, broker *events.Broker, clock Clock, registrarAddress string) *Engine {
	if clock == nil {
		clock = RealClock
	}
	return &Engine{
		store:            store,
		backend:          backend,
		pool:             pool,
		broker:           broker,
		clock:            clock,
		registrarAddress: registrarAddress,
		reg:              newRegistry(),
		waits:            newConnectWaits(),
		clusterHandles:   make(map[string]taskpool.Handle),
		clusterDone:      make(map[string]chan struct{}),
		workerHandles:    make(map[string]taskpool.Handle),
		workerDone:       make(map[string]chan struct{}),
	}
}

// Adopt registers an already-running cluster record (persisted by a prior
// gateway process) into the live registry without running the start
// procedure again. pkg/recovery does not call it; recovered clusters are
// resumed through ResumeCluster.
func (e *Engine) Adopt(c *types.Cluster) {
	e.reg.put(c)
	for _, w := range c.Workers {
		e.reg.putWorker(w)
	}
}

// ResumeCluster re-spawns the supervising goroutine for an already-RUNNING
// cluster record, skipping straight to the post-connect watch phase. Used
// by pkg/recovery after a health check confirms the cluster is still
// alive.
func (e *Engine) ResumeCluster(c *types.Cluster) {
	e.reg.put(c)
	done := make(chan struct{})
	e.mu.Lock()
	e.clusterDone[c.Name] = done
	e.mu.Unlock()

	handle, err := e.pool.Spawn(context.Background(), "cluster:"+c.Name, func(taskCtx context.Context) {
		defer func() {
			close(done)
			e.mu.Lock()
			delete(e.clusterHandles, c.Name)
			delete(e.clusterDone, c.Name)
			e.mu.Unlock()
		}()
		e.watchRunning(taskCtx, c)
	})
	if err != nil {
		log.WithCluster(c.Name).Error().Err(err).Msg("failed to resume supervision")
		return
	}
	e.mu.Lock()
	e.clusterHandles[c.Name] = handle
	e.mu.Unlock()
}

// ResumeWorker mirrors ResumeCluster for a worker record that a health
// check during recovery confirmed is still attached to a running cluster.
func (e *Engine) ResumeWorker(c *types.Cluster, w *types.Worker) {
	e.reg.putWorker(w)
	key := workerWaitKey(c.Name, w.Name)
	done := make(chan struct{})
	e.mu.Lock()
	e.workerDone[key] = done
	e.mu.Unlock()

	handle, err := e.pool.Spawn(context.Background(), "worker:"+key, func(taskCtx context.Context) {
		defer func() {
			close(done)
			e.mu.Lock()
			delete(e.workerHandles, key)
			delete(e.workerDone, key)
			e.mu.Unlock()
		}()
		e.watchWorkerRunning(taskCtx, c, w)
	})
	if err != nil {
		log.WithWorker(c.Name, w.Name).Error().Err(err).Msg("failed to resume supervision")
		return
	}
	e.mu.Lock()
	e.workerHandles[key] = handle
	e.mu.Unlock()
}

// RecoverTerminateCluster runs a persisted non-terminal cluster straight
// through teardown at startup: a STARTED/STARTING record never confirmed
// a connection, a STOPPING record was mid-cleanup when the gateway died,
// and a RUNNING record that failed its recovery health check is being
// declared dead. reason becomes the teardown stage's recorded cause.
func (e *Engine) RecoverTerminateCluster(c *types.Cluster, reason string) error {
	e.reg.put(c)
	return e.teardownCluster(c, "recovery", &RecoveryMismatchError{Entity: c.Name, Reason: reason})
}

// RecoverTerminateWorker is RecoverTerminateCluster's worker counterpart.
func (e *Engine) RecoverTerminateWorker(c *types.Cluster, w *types.Worker, reason string) error {
	e.reg.putWorker(w)
	return e.teardownWorker(c, w, "recovery", &RecoveryMismatchError{Entity: w.Name, Reason: reason})
}

// StartCluster generates a fresh API token and TLS keypair, persists a new
// STARTING record, and drains the backend's staged-start protocol. It
// blocks until the cluster reaches RUNNING, fails, or ctx is cancelled;
// supervision continues in the background afterward.
func (e *Engine) StartCluster(ctx context.Context, owner, name string) (*types.Cluster, error) {
	token, err := security.GenerateAPIToken()
	if err != nil {
		return nil, fmt.Errorf("lifecycle: generate token for cluster %s: %w", name, err)
	}
	certPEM, keyPEM, err := security.GenerateKeypair(name)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: generate keypair for cluster %s: %w", name, err)
	}

	now := time.Now()
	c := &types.Cluster{
		Name:      name,
		Owner:     owner,
		APIToken:  []byte(token),
		Status:    types.StatusStarting,
		TLSCert:   certPEM,
		TLSKey:    keyPEM,
		Workers:   make(map[string]*types.Worker),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateCluster(ctx, c); err != nil {
		return nil, fmt.Errorf("lifecycle: persist cluster %s: %w", name, err)
	}
	e.reg.put(c)
	e.publishEvent(events.EventClusterStarting, name, "", "cluster start requested")

	result := make(chan error, 1)
	done := make(chan struct{})
	e.mu.Lock()
	e.clusterDone[name] = done
	e.mu.Unlock()

	handle, err := e.pool.Spawn(context.Background(), "cluster:"+name, func(taskCtx context.Context) {
		defer func() {
			close(done)
			e.mu.Lock()
			delete(e.clusterHandles, name)
			delete(e.clusterDone, name)
			e.mu.Unlock()
		}()
		e.runCluster(taskCtx, ctx, c, result)
	})
	if err != nil {
		e.mu.Lock()
		delete(e.clusterDone, name)
		e.mu.Unlock()
		e.reg.remove(name)
		return nil, fmt.Errorf("lifecycle: spawn cluster %s: %w", name, err)
	}
	e.mu.Lock()
	e.clusterHandles[name] = handle
	e.mu.Unlock()

	select {
	case err := <-result:
		if err != nil {
			return nil, err
		}
		snap, _ := e.reg.snapshot(name)
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StopCluster cancels the cluster's supervising goroutine, which drives it
// through the same teardown path a failure would, and waits for teardown
// to finish or ctx to expire.
func (e *Engine) StopCluster(ctx context.Context, name string) error {
	e.mu.Lock()
	handle, ok := e.clusterHandles[name]
	done := e.clusterDone[name]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("lifecycle: cluster %s is not being supervised", name)
	}
	handle.Cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartWorker persists a new STARTING worker record attached to an already
// RUNNING cluster and drains the backend's staged-start protocol for it.
func (e *Engine) StartWorker(ctx context.Context, clusterName, workerName string) (*types.Worker, error) {
	c, ok := e.reg.get(clusterName)
	if !ok {
		return nil, fmt.Errorf("lifecycle: cluster %s not found", clusterName)
	}
	if c.Status != types.StatusRunning {
		return nil, fmt.Errorf("lifecycle: cluster %s is not running (status %s)", clusterName, c.Status)
	}
	clusterState := c.Snapshot().State

	now := time.Now()
	w := &types.Worker{
		Name:        workerName,
		ClusterName: clusterName,
		Status:      types.StatusStarting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.CreateWorker(ctx, w); err != nil {
		return nil, fmt.Errorf("lifecycle: persist worker %s/%s: %w", clusterName, workerName, err)
	}
	e.reg.putWorker(w)
	e.publishEvent(events.EventWorkerStarting, clusterName, workerName, "worker start requested")

	key := workerWaitKey(clusterName, workerName)
	result := make(chan error, 1)
	done := make(chan struct{})
	e.mu.Lock()
	e.workerDone[key] = done
	e.mu.Unlock()

	handle, err := e.pool.Spawn(context.Background(), "worker:"+key, func(taskCtx context.Context) {
		defer func() {
			close(done)
			e.mu.Lock()
			delete(e.workerHandles, key)
			delete(e.workerDone, key)
			e.mu.Unlock()
		}()
		e.runWorker(taskCtx, ctx, c, w, clusterState, result)
	})
	if err != nil {
		e.mu.Lock()
		delete(e.workerDone, key)
		e.mu.Unlock()
		e.reg.removeWorker(clusterName, workerName)
		return nil, fmt.Errorf("lifecycle: spawn worker %s/%s: %w", clusterName, workerName, err)
	}
	e.mu.Lock()
	e.workerHandles[key] = handle
	e.mu.Unlock()

	select {
	case err := <-result:
		if err != nil {
			return nil, err
		}
		w, _ := e.reg.getWorker(clusterName, workerName)
		return w.Snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StopWorker cancels a worker's supervising goroutine and waits for
// teardown to finish or ctx to expire.
func (e *Engine) StopWorker(ctx context.Context, clusterName, workerName string) error {
	key := workerWaitKey(clusterName, workerName)
	e.mu.Lock()
	handle, ok := e.workerHandles[key]
	done := e.workerDone[key]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("lifecycle: worker %s/%s is not being supervised", clusterName, workerName)
	}
	handle.Cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- registrar.Registry ---

// TokenFor reads a cluster's API token straight from the live registry,
// never the store, to avoid a decrypt-per-request on the auth hot path.
// The token is immutable for the lifetime of the cluster record.
func (e *Engine) TokenFor(clusterName string) ([]byte, bool) {
	c, ok := e.reg.get(clusterName)
	if !ok {
		return nil, false
	}
	return c.APIToken, true
}

func (e *Engine) ConfirmCluster(clusterName string, addrs registrar.Addresses) error {
	if !e.waits.resolveCluster(clusterName, addrs) {
		return fmt.Errorf("lifecycle: cluster %s is not awaiting connection", clusterName)
	}
	return nil
}

func (e *Engine) ClusterAddresses(clusterName string) (registrar.Addresses, bool) {
	c, ok := e.reg.snapshot(clusterName)
	if !ok || c.Status == types.StatusStarting || c.Status == types.StatusStarted {
		return registrar.Addresses{}, false
	}
	return registrar.Addresses{
		SchedulerAddress: c.SchedulerAddress,
		DashboardAddress: c.DashboardAddress,
		APIAddress:       c.APIAddress,
	}, true
}

func (e *Engine) ConfirmWorker(clusterName, workerName string, addr registrar.WorkerAddress) error {
	if !e.waits.resolveWorker(clusterName, workerName, addr) {
		return fmt.Errorf("lifecycle: worker %s/%s is not awaiting connection", clusterName, workerName)
	}
	return nil
}

func (e *Engine) CancelWorker(clusterName, workerName string) error {
	e.waits.cancelWorker(clusterName, workerName)
	return nil
}

// --- cluster supervision ---

// runCluster drains the staged-start procedure on taskCtx — the
// pool-controlled context that outlives the originating request and is
// only cancelled by Engine.StopCluster or pkg/taskpool.Close — while also
// racing the staged-start select loops against submitCtx, the context of
// the request that asked for this cluster to be started. Once the cluster
// reaches RUNNING, submitCtx is no longer consulted: supervision continues
// on taskCtx alone, so an HTTP request's context ending does not tear down
// a cluster that has already connected.
func (e *Engine) runCluster(taskCtx, submitCtx context.Context, c *types.Cluster, result chan<- error) {
	err := e.runClusterStart(taskCtx, submitCtx, c)
	result <- err
	if err != nil {
		return
	}
	e.watchRunning(taskCtx, c)
}

func (e *Engine) runClusterStart(taskCtx, submitCtx context.Context, c *types.Cluster) error {
	timeouts := e.backend.Timeouts()

	baseCtx, cancelBase := mergeCancel(taskCtx, submitCtx)
	defer cancelBase()

	startCtx, cancel := e.withDeadline(baseCtx, timeouts.ClusterStart)
	defer cancel()

	publish := func(state map[string]any) error {
		c.State = state
		c.UpdatedAt = time.Now()
		return e.store.UpdateCluster(context.Background(), c)
	}

	if err := e.backend.StartCluster(startCtx, e.clusterInfo(c), publish); err != nil {
		return e.teardownCluster(c, "start", err)
	}
	if startCtx.Err() != nil {
		return e.teardownCluster(c, "start", startFailureCause(baseCtx, c.Name, "start"))
	}

	if err := setStatus(c, types.StatusStarted); err != nil {
		return e.teardownCluster(c, "start", err)
	}
	c.UpdatedAt = time.Now()
	if err := e.store.UpdateCluster(context.Background(), c); err != nil {
		return e.teardownCluster(c, "persist-started", err)
	}

	connectCh := e.waits.installCluster(c.Name)
	connectCtx, cancel2 := e.withDeadline(baseCtx, timeouts.ClusterConnect)
	defer cancel2()

	var jobCh <-chan bool
	if jobID, ok := jobIDFromState(c.State); ok {
		if ch, has := e.backend.IsJobRunning(jobID); has {
			jobCh = ch
		}
	}

	select {
	case addrs := <-connectCh:
		c.SchedulerAddress = addrs.SchedulerAddress
		c.DashboardAddress = addrs.DashboardAddress
		c.APIAddress = addrs.APIAddress
		if err := setStatus(c, types.StatusRunning); err != nil {
			return e.teardownCluster(c, "connect", err)
		}
		c.UpdatedAt = time.Now()
		if err := e.store.UpdateCluster(context.Background(), c); err != nil {
			return e.teardownCluster(c, "persist-running", err)
		}
		e.publishEvent(events.EventClusterRunning, c.Name, "", "cluster connected")
		return nil

	case <-connectCtx.Done():
		e.waits.dropCluster(c.Name)
		return e.teardownCluster(c, "connect", startFailureCause(baseCtx, c.Name, "connect"))

	case <-jobCh:
		e.waits.dropCluster(c.Name)
		return e.teardownCluster(c, "connect", &BackendFailureError{Entity: c.Name, StageName: "connect", Reason: "backend job is no longer running"})
	}
}

// watchRunning supervises an already-RUNNING cluster: it waits for either
// the submitting/shutdown context to end or the backend's job-liveness
// signal to report the job dead, and in either case tears the cluster
// down.
func (e *Engine) watchRunning(ctx context.Context, c *types.Cluster) {
	var jobCh <-chan bool
	if jobID, ok := jobIDFromState(c.State); ok {
		if ch, has := e.backend.IsJobRunning(jobID); has {
			jobCh = ch
		}
	}

	select {
	case <-ctx.Done():
		_ = e.teardownCluster(c, "shutdown", nil)
	case <-jobCh:
		_ = e.teardownCluster(c, "running", &BackendFailureError{Entity: c.Name, StageName: "running", Reason: "backend job is no longer running"})
	}
}

// teardownCluster moves c through StatusStopping into its terminal state,
// invoking StopCluster with a detached, boundedly-timed context so cleanup
// survives whatever cancellation or deadline triggered it. cause is nil
// for a graceful (shutdown-driven) stop and non-nil for a failure path;
// the final status depends only on whether StopCluster itself errors.
func (e *Engine) teardownCluster(c *types.Cluster, stage string, cause error) error {
	e.publishEvent(events.EventClusterStopping, c.Name, "", stageMessage(stage, cause))
	if err := setStatus(c, types.StatusStopping); err != nil {
		log.WithCluster(c.Name).Warn().Err(err).Msg("cluster already left a running state before teardown")
	}
	c.UpdatedAt = time.Now()
	if err := e.store.UpdateCluster(context.Background(), c); err != nil {
		log.WithCluster(c.Name).Error().Err(err).Msg("failed to persist stopping status")
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	stopErr := e.backend.StopCluster(cleanupCtx, e.clusterInfo(c), c.State)

	final := types.StatusStopped
	if stopErr != nil {
		final = types.StatusFailed
	}
	_ = setStatus(c, final)
	c.UpdatedAt = time.Now()
	if err := e.store.UpdateCluster(context.Background(), c); err != nil {
		log.WithCluster(c.Name).Error().Err(err).Msg("failed to persist terminal status")
	}
	e.reg.remove(c.Name)

	if final == types.StatusStopped {
		e.publishEvent(events.EventClusterStopped, c.Name, "", "cluster stopped")
	} else {
		e.publishEvent(events.EventClusterFailed, c.Name, "", fmt.Sprintf("cleanup failed: %v", stopErr))
	}

	if cause == nil {
		if stopErr != nil {
			return &CleanupError{Entity: c.Name, Err: stopErr}
		}
		return nil
	}
	wrapped := fmt.Errorf("lifecycle: cluster %s failed at stage %q: %w", c.Name, stage, cause)
	if stopErr != nil {
		return fmt.Errorf("%w (cleanup also failed: %v)", wrapped, stopErr)
	}
	return wrapped
}

// --- worker supervision ---

// runWorker mirrors runCluster's taskCtx/submitCtx split: taskCtx survives
// the originating request and is only cancelled by Engine.StopWorker or
// pool shutdown, while submitCtx aborts only the staged-start phase.
func (e *Engine) runWorker(taskCtx, submitCtx context.Context, c *types.Cluster, w *types.Worker, clusterState map[string]any, result chan<- error) {
	err := e.runWorkerStart(taskCtx, submitCtx, c, w, clusterState)
	result <- err
	if err != nil {
		return
	}
	e.watchWorkerRunning(taskCtx, c, w)
}

func (e *Engine) runWorkerStart(taskCtx, submitCtx context.Context, c *types.Cluster, w *types.Worker, clusterState map[string]any) error {
	timeouts := e.backend.Timeouts()

	baseCtx, cancelBase := mergeCancel(taskCtx, submitCtx)
	defer cancelBase()

	startCtx, cancel := e.withDeadline(baseCtx, timeouts.WorkerStart)
	defer cancel()

	publish := func(state map[string]any) error {
		w.State = state
		w.UpdatedAt = time.Now()
		return e.store.UpdateWorker(context.Background(), w)
	}

	if err := e.backend.StartWorker(startCtx, w.Name, e.clusterInfo(c), clusterState, publish); err != nil {
		return e.teardownWorker(c, w, "start", err)
	}
	if startCtx.Err() != nil {
		return e.teardownWorker(c, w, "start", startFailureCause(baseCtx, w.Name, "start"))
	}

	if err := setWorkerStatus(w, types.StatusStarted); err != nil {
		return e.teardownWorker(c, w, "start", err)
	}
	w.UpdatedAt = time.Now()
	if err := e.store.UpdateWorker(context.Background(), w); err != nil {
		return e.teardownWorker(c, w, "persist-started", err)
	}

	connectCh := e.waits.installWorker(c.Name, w.Name)
	connectCtx, cancel2 := e.withDeadline(baseCtx, timeouts.WorkerConnect)
	defer cancel2()

	var jobCh <-chan bool
	if jobID, ok := jobIDFromState(w.State); ok {
		if ch, has := e.backend.IsJobRunning(jobID); has {
			jobCh = ch
		}
	}

	select {
	case addr := <-connectCh:
		w.State = mergeState(w.State, "address", addr.Address)
		if err := setWorkerStatus(w, types.StatusRunning); err != nil {
			return e.teardownWorker(c, w, "connect", err)
		}
		w.UpdatedAt = time.Now()
		if err := e.store.UpdateWorker(context.Background(), w); err != nil {
			return e.teardownWorker(c, w, "persist-running", err)
		}
		e.publishEvent(events.EventWorkerRunning, c.Name, w.Name, "worker connected")
		return nil

	case <-connectCtx.Done():
		e.waits.dropWorker(c.Name, w.Name)
		return e.teardownWorker(c, w, "connect", startFailureCause(baseCtx, w.Name, "connect"))

	case <-jobCh:
		e.waits.dropWorker(c.Name, w.Name)
		return e.teardownWorker(c, w, "connect", &BackendFailureError{Entity: w.Name, StageName: "connect", Reason: "backend job is no longer running"})
	}
}

func (e *Engine) watchWorkerRunning(ctx context.Context, c *types.Cluster, w *types.Worker) {
	var jobCh <-chan bool
	if jobID, ok := jobIDFromState(w.State); ok {
		if ch, has := e.backend.IsJobRunning(jobID); has {
			jobCh = ch
		}
	}

	select {
	case <-ctx.Done():
		_ = e.teardownWorker(c, w, "shutdown", nil)
	case <-jobCh:
		_ = e.teardownWorker(c, w, "running", &BackendFailureError{Entity: w.Name, StageName: "running", Reason: "backend job is no longer running"})
	}
}

func (e *Engine) teardownWorker(c *types.Cluster, w *types.Worker, stage string, cause error) error {
	e.publishEvent(events.EventWorkerStopping, c.Name, w.Name, stageMessage(stage, cause))
	if err := setWorkerStatus(w, types.StatusStopping); err != nil {
		log.WithWorker(c.Name, w.Name).Warn().Err(err).Msg("worker already left a running state before teardown")
	}
	w.UpdatedAt = time.Now()
	if err := e.store.UpdateWorker(context.Background(), w); err != nil {
		log.WithWorker(c.Name, w.Name).Error().Err(err).Msg("failed to persist stopping status")
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	clusterState := map[string]any{}
	if snap, ok := e.reg.snapshot(c.Name); ok {
		clusterState = snap.State
	}
	stopErr := e.backend.StopWorker(cleanupCtx, w.Name, w.State, e.clusterInfo(c), clusterState)

	final := types.StatusStopped
	if stopErr != nil {
		final = types.StatusFailed
	}
	_ = setWorkerStatus(w, final)
	w.UpdatedAt = time.Now()
	if err := e.store.UpdateWorker(context.Background(), w); err != nil {
		log.WithWorker(c.Name, w.Name).Error().Err(err).Msg("failed to persist terminal status")
	}
	e.reg.removeWorker(c.Name, w.Name)

	if final == types.StatusStopped {
		e.publishEvent(events.EventWorkerStopped, c.Name, w.Name, "worker stopped")
	} else {
		e.publishEvent(events.EventWorkerFailed, c.Name, w.Name, fmt.Sprintf("cleanup failed: %v", stopErr))
	}

	if cause == nil {
		if stopErr != nil {
			return &CleanupError{Entity: w.Name, Err: stopErr}
		}
		return nil
	}
	wrapped := fmt.Errorf("lifecycle: worker %s/%s failed at stage %q: %w", c.Name, w.Name, stage, cause)
	if stopErr != nil {
		return fmt.Errorf("%w (cleanup also failed: %v)", wrapped, stopErr)
	}
	return wrapped
}

// --- helpers ---

func (e *Engine) clusterInfo(c *types.Cluster) *clustermanager.ClusterInfo {
	return &clustermanager.ClusterInfo{
		ClusterName: c.Name,
		Owner:       c.Owner,
		APIToken:    string(c.APIToken),
		TLSCert:     c.TLSCert,
		TLSKey:      c.TLSKey,
		APIAddress:  e.registrarAddress,
	}
}

func (e *Engine) publishEvent(t events.EventType, clusterName, workerName, message string) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&events.Event{
		ID:          uuid.NewString(),
		Type:        t,
		ClusterName: clusterName,
		WorkerName:  workerName,
		Message:     message,
	})
}

// withDeadline derives a cancellable context from parent that is also
// cancelled once e.clock.After(d) fires. Routing the deadline through the
// injected Clock (rather than context.WithTimeout, which always reads the
// real wall clock) lets tests drive every start/connect timeout
// deterministically with a FakeClock instead of sleeping.
func (e *Engine) withDeadline(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	timer := e.clock.After(d)
	go func() {
		select {
		case <-timer:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// mergeCancel derives a context cancelled as soon as either a or b ends.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	go func() {
		select {
		case <-b.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// startFailureCause distinguishes, after a deadline context ends, whether
// the underlying base context was itself cancelled (the submitting
// request gave up, or the pool is shutting this entity down) or whether
// only the stage's own timer fired.
func startFailureCause(base context.Context, entity, stage string) error {
	if base.Err() != nil {
		return ErrCancelled
	}
	return &TimeoutError{Entity: entity, StageName: stage}
}

func jobIDFromState(state map[string]any) (string, bool) {
	if state == nil {
		return "", false
	}
	v, ok := state["job_id"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func mergeState(state map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(state)+1)
	for k, v := range state {
		out[k] = v
	}
	out[key] = value
	return out
}

func stageMessage(stage string, cause error) string {
	if cause == nil {
		return fmt.Sprintf("graceful stop (%s)", stage)
	}
	return fmt.Sprintf("%s: %v", stage, cause)
}
