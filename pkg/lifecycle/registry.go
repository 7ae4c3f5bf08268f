package lifecycle

import (
	"sync"

	"github.com/cuemby/gatewayd/pkg/types"
)

// registry is the lifecycle engine's in-memory index of live clusters.
// Each cluster's own supervising goroutine is the sole mutator of its
// record's fields; cross-goroutine reads (the Registrar looking up a
// token, a worker-start checking its cluster's status) go through this
// sync.RWMutex-guarded index instead, mirroring the teacher's
// containersMu pattern in pkg/worker/worker.go.
type registry struct {
	mu       sync.RWMutex
	clusters map[string]*types.Cluster
	workers  map[string]*types.Worker
}

func newRegistry() *registry {
	return &registry{
		clusters: make(map[string]*types.Cluster),
		workers:  make(map[string]*types.Worker),
	}
}

func (r *registry) put(c *types.Cluster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clusters[c.Name] = c
}

func (r *registry) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clusters, name)
}

func (r *registry) get(name string) (*types.Cluster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clusters[name]
	return c, ok
}

func (r *registry) snapshot(name string) (*types.Cluster, bool) {
	r.mu.RLock()
	c, ok := r.clusters[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return c.Snapshot(), true
}

func (r *registry) putWorker(w *types.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[workerWaitKey(w.ClusterName, w.Name)] = w
}

func (r *registry) removeWorker(cluster, worker string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, workerWaitKey(cluster, worker))
}

func (r *registry) getWorker(cluster, worker string) (*types.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[workerWaitKey(cluster, worker)]
	return w, ok
}

func (r *registry) list() []*types.Cluster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Cluster, 0, len(r.clusters))
	for _, c := range r.clusters {
		out = append(out, c)
	}
	return out
}

// setStatus performs a guarded Transition on c's Status, returning the
// Transition error (if any) without mutating c.
func setStatus(c *types.Cluster, to types.Status) error {
	if err := Transition(c.Status, to); err != nil {
		return err
	}
	c.Status = to
	return nil
}

func setWorkerStatus(w *types.Worker, to types.Status) error {
	if err := Transition(w.Status, to); err != nil {
		return err
	}
	w.Status = to
	return nil
}
