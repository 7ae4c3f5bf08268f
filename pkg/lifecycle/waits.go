package lifecycle

import (
	"sync"

	"github.com/cuemby/gatewayd/pkg/registrar"
)

// connectWaits holds the pending "waiting for a PUT from the Connection
// Registrar" slots for clusters and workers. A slot is installed right
// before the staged-start select loop begins waiting, and is resolved
// exactly once — by the Registrar's PUT handler, or abandoned (left to be
// garbage collected once the owning goroutine stops selecting on it) if
// the start procedure times out or is cancelled first.
type connectWaits struct {
	mu      sync.Mutex
	cluster map[string]chan registrar.Addresses
	worker  map[string]chan registrar.WorkerAddress
}

func newConnectWaits() *connectWaits {
	return &connectWaits{
		cluster: make(map[string]chan registrar.Addresses),
		worker:  make(map[string]chan registrar.WorkerAddress),
	}
}

func (w *connectWaits) installCluster(name string) chan registrar.Addresses {
	ch := make(chan registrar.Addresses, 1)
	w.mu.Lock()
	w.cluster[name] = ch
	w.mu.Unlock()
	return ch
}

func (w *connectWaits) resolveCluster(name string, addrs registrar.Addresses) bool {
	w.mu.Lock()
	ch, ok := w.cluster[name]
	if ok {
		delete(w.cluster, name)
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- addrs:
		return true
	default:
		return false
	}
}

func (w *connectWaits) dropCluster(name string) {
	w.mu.Lock()
	delete(w.cluster, name)
	w.mu.Unlock()
}

func workerWaitKey(cluster, worker string) string { return cluster + "/" + worker }

func (w *connectWaits) installWorker(cluster, worker string) chan registrar.WorkerAddress {
	ch := make(chan registrar.WorkerAddress, 1)
	w.mu.Lock()
	w.worker[workerWaitKey(cluster, worker)] = ch
	w.mu.Unlock()
	return ch
}

func (w *connectWaits) resolveWorker(cluster, worker string, addr registrar.WorkerAddress) bool {
	key := workerWaitKey(cluster, worker)
	w.mu.Lock()
	ch, ok := w.worker[key]
	if ok {
		delete(w.worker, key)
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- addr:
		return true
	default:
		return false
	}
}

func (w *connectWaits) dropWorker(cluster, worker string) {
	key := workerWaitKey(cluster, worker)
	w.mu.Lock()
	delete(w.worker, key)
	w.mu.Unlock()
}

func (w *connectWaits) cancelWorker(cluster, worker string) bool {
	key := workerWaitKey(cluster, worker)
	w.mu.Lock()
	_, ok := w.worker[key]
	delete(w.worker, key)
	w.mu.Unlock()
	return ok
}
