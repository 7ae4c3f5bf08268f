package taskpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cuemby/gatewayd/pkg/log"
)

// ErrPoolClosed is returned by Spawn once the pool has been closed.
var ErrPoolClosed = errors.New("taskpool: pool is closed")

// Handle identifies a tracked task. It can be used to cancel a single task
// without closing the whole pool.
type Handle struct {
	id     uint64
	cancel context.CancelFunc
}

// Cancel cancels the context passed to this task's function. It does not
// wait for the function to return.
func (h Handle) Cancel() {
	h.cancel()
}

type entry struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Pool is a process-wide registry of background goroutines.
type Pool struct {
	mu      sync.Mutex
	next    uint64
	tasks   map[uint64]*entry
	closed  bool
	closeMu sync.Once
}

// New creates an empty Pool.
func New() *Pool {
	return &Pool{tasks: make(map[uint64]*entry)}
}

// Spawn starts fn in a new goroutine and tracks it. fn receives a context
// derived from ctx that is cancelled either when ctx is cancelled or when
// Close is called. Spawn returns ErrPoolClosed's zero Handle and does not
// start fn if the pool has already been closed.
func (p *Pool) Spawn(ctx context.Context, name string, fn func(context.Context)) (Handle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Handle{}, ErrPoolClosed
	}

	taskCtx, cancel := context.WithCancel(ctx)
	id := p.next
	p.next++
	e := &entry{name: name, cancel: cancel, done: make(chan struct{})}
	p.tasks[id] = e
	p.mu.Unlock()

	go func() {
		defer close(e.done)
		defer p.remove(id)
		fn(taskCtx)
	}()

	return Handle{id: id, cancel: cancel}, nil
}

func (p *Pool) remove(id uint64) {
	p.mu.Lock()
	delete(p.tasks, id)
	p.mu.Unlock()
}

// Active returns the number of currently tracked tasks.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Close cancels every tracked task and waits up to grace for them to exit.
// Tasks still running past grace are logged as abandoned; Close returns
// without waiting further for them. Close is idempotent.
func (p *Pool) Close(grace time.Duration) error {
	p.closeMu.Do(func() {
		p.mu.Lock()
		p.closed = true
		entries := make([]*entry, 0, len(p.tasks))
		for _, e := range p.tasks {
			entries = append(entries, e)
		}
		p.mu.Unlock()

		for _, e := range entries {
			e.cancel()
		}

		deadlineCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		var wg sync.WaitGroup
		for _, e := range entries {
			wg.Add(1)
			go func(e *entry) {
				defer wg.Done()
				select {
				case <-e.done:
				case <-deadlineCtx.Done():
					log.WithComponent("taskpool").Warn().
						Str("task", e.name).
						Msg("task did not exit within grace period, abandoning")
				}
			}(e)
		}
		wg.Wait()
	})
	return nil
}
