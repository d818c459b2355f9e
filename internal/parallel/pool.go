package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool runs tasks on a fixed set of goroutines.
//
// Each worker owns a queue and steals from its neighbours when the queue
// runs dry, so a slow task does not hold up the tasks queued behind it on
// other workers. WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queues  []chan func()
	next    atomic.Uint64 // round-robin cursor for Go

	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewWorkerPool starts a pool with the given number of workers.
// Zero or negative means GOMAXPROCS.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			drain(own)
			return
		case task := <-own:
			task()
			continue
		default:
		}

		if task := p.steal(id); task != nil {
			task()
			continue
		}

		select {
		case <-p.done:
			drain(own)
			return
		case task := <-own:
			task()
		}
	}
}

func drain(queue chan func()) {
	for {
		select {
		case task := <-queue:
			task()
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(id int) func() {
	for i := 1; i < p.workers; i++ {
		select {
		case task := <-p.queues[(id+i)%p.workers]:
			return task
		default:
		}
	}
	return nil
}

// Go queues fn and reports whether it was accepted. A closed pool
// rejects all work.
func (p *WorkerPool) Go(fn func()) bool {
	if fn == nil || !p.running.Load() {
		return false
	}
	q := p.queues[p.next.Add(1)%uint64(p.workers)] //nolint:gosec // workers > 0
	select {
	case q <- fn:
		return true
	case <-p.done:
		return false
	}
}

// ExecuteAll runs every task and waits for all of them. Tasks the pool
// cannot accept because it is closing run on the calling goroutine.
func (p *WorkerPool) ExecuteAll(tasks []func()) {
	g := p.Group()
	for _, fn := range tasks {
		g.Go(fn)
	}
	g.Wait()
}

// Close stops accepting work, runs what is already queued and stops the
// workers. Close is idempotent.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int { return p.workers }

// IsRunning reports whether the pool accepts work.
func (p *WorkerPool) IsRunning() bool { return p.running.Load() }

// Queued approximates the number of tasks waiting in the queues.
func (p *WorkerPool) Queued() int {
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

// Group tracks a subset of the pool's tasks so a caller can wait for
// just those.
type Group struct {
	pool *WorkerPool
	wg   sync.WaitGroup
}

// Group returns an empty task group on p.
func (p *WorkerPool) Group() *Group {
	return &Group{pool: p}
}

// Go runs fn on the pool, or inline when the pool is closed.
func (g *Group) Go(fn func()) {
	if fn == nil {
		return
	}
	g.wg.Add(1)
	task := func() {
		defer g.wg.Done()
		fn()
	}
	if !g.pool.Go(task) {
		task()
	}
}

// Wait blocks until every task started with g.Go has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
