// Package background provides the fire-and-forget execution seam: submitted
// tasks never block the caller, their failures are logged, and they run to
// completion independent of the request that spawned them.
package background

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler accepts work to run off the request path. Submit must never
// block and must never propagate task failures to the caller.
type Scheduler interface {
	Submit(name string, task func(ctx context.Context))
}

// Pool runs submitted tasks on a fixed set of workers fed by a bounded
// queue. When the queue is full the task is dropped with a log entry rather
// than blocking the caller.
type Pool struct {
	tasks       chan job
	taskTimeout time.Duration
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

type job struct {
	name string
	run  func(ctx context.Context)
}

func NewPool(workers, queueSize int, taskTimeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Second
	}

	p := &Pool{
		tasks:       make(chan job, queueSize),
		taskTimeout: taskTimeout,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

// Submit enqueues a task. Tasks receive a fresh context detached from any
// request, so a client disconnect never cancels in-flight work.
func (p *Pool) Submit(name string, task func(ctx context.Context)) {
	select {
	case p.tasks <- job{name: name, run: task}:
	default:
		log.Warn().Str("task", name).Msg("background queue full, task dropped")
	}
}

// Close drains the queue and waits for in-flight tasks to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for j := range p.tasks {
		p.runOne(j)
	}
}

func (p *Pool) runOne(j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task", j.name).Any("panic", r).Msg("background task panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.taskTimeout)
	defer cancel()

	j.run(ctx)
}
