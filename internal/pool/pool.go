package pool

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Pool executes tasks in order of their deadlines, using a fixed number of goroutines.
// Tasks are added to the pool with a function that returns the next deadline; a
// zero deadline removes the task. If a task is added while the pool is waiting
// for the next task, it will wake up the waiting goroutine to process the new
// task immediately. Workers stop when the pool's context is cancelled.
type Pool struct {
	mu    sync.Mutex
	queue []*task
	reg   map[string]*task
	wait  chan struct{}
	seq   atomic.Uint64
	ctx   context.Context
	wg    sync.WaitGroup
}

type task struct {
	name     string
	fn       func(context.Context) time.Time
	deadline time.Time
}

func New(ctx context.Context, workers int) *Pool {
	pool := &Pool{reg: make(map[string]*task), ctx: ctx}

	for range workers {
		pool.wg.Add(1)
		go pool.work()
	}

	return pool
}

// Add schedules fn to run now. Its return value is the next deadline.
func (p *Pool) Add(name string, fn func(context.Context) time.Time) {
	p.enqueue(&task{name: name, fn: fn, deadline: time.Now()})
}

// Go schedules fn to run once, under a name derived from prefix that is unique
// within the pool, and returns that name. Every call is a separate task.
func (p *Pool) Go(prefix string, fn func(context.Context)) string {
	name := fmt.Sprintf("%s-%d", prefix, p.seq.Add(1))
	p.Add(name, func(ctx context.Context) time.Time {
		fn(ctx)
		return time.Time{}
	})
	return name
}

// Wait blocks until all workers have stopped.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// work is the main loop for each worker goroutine.
func (p *Pool) work() {
	defer p.wg.Done()
	for {
		t := p.dequeue()
		if t == nil {
			return
		}
		p.enqueue(t.Execute(p.ctx))
	}
}

// sortAndWake is used in multiple places, but always needs to be run
// within a p.mu lock!
func (p *Pool) sortAndWake() {
	// Maintain the tasks in deadline order.
	slices.SortFunc(p.queue, func(a, b *task) int {
		return a.deadline.Compare(b.deadline)
	})

	// Wake up any waiting goroutine.
	if p.wait != nil {
		close(p.wait)
		p.wait = nil
	}
}

func (p *Pool) enqueue(t *task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t.deadline.IsZero() {
		// Task requested removal from the pool.
		delete(p.reg, t.name)
		return
	}

	p.reg[t.name] = t
	p.queue = append(p.queue, t)
	p.sortAndWake()
}

// dequeue returns the next due task, or nil once the pool's context is done.
func (p *Pool) dequeue() *task {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.ctx.Err() != nil {
			return nil
		}

		deadline := time.Now().Add(time.Hour * 24 * 365) // Default to a far future deadline
		if len(p.queue) > 0 {
			deadline = p.queue[0].deadline
		}

		if deadline.After(time.Now()) {
			// Task is not ready yet, wait for it to be executed or another (potentially earlier) task to arrive.

			if p.wait == nil {
				p.wait = make(chan struct{})
			}

			wait := p.wait

			p.mu.Unlock()

			timer := time.NewTimer(time.Until(deadline))
			select {
			case <-timer.C:
			case <-wait:
			case <-p.ctx.Done():
			}
			timer.Stop()

			p.mu.Lock()
			continue
		}

		// The first queued task is ready to be executed, remove it from the queue.
		break
	}

	var t *task
	t, p.queue = p.queue[0], p.queue[1:]
	return t
}

func (t *task) Execute(ctx context.Context) *task {
	t.deadline = t.fn(ctx)
	return t
}
