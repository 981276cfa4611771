// Package dispatcher runs the crawl worker pool over the job queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/worker"
)

// Dispatcher owns the queue handle the API enqueues into and the workers
// that drain it.
type Dispatcher struct {
	queue   catalog.Queue
	workers []*worker.Worker
}

// New wires a queue to a worker pool.
func New(queue catalog.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{queue: queue, workers: workers}
}

// Run starts every worker and blocks until all of them return. Workers exit
// when ctx ends or the queue closes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(len(d.workers))
	for i, w := range d.workers {
		go func(n int, wk *worker.Worker) {
			defer wg.Done()
			zap.L().Debug("crawl worker started", zap.Int("worker", n))
			wk.Run(ctx)
			zap.L().Debug("crawl worker stopped", zap.Int("worker", n))
		}(i, w)
	}
	wg.Wait()
}

// Enqueue submits a job for background processing.
func (d *Dispatcher) Enqueue(ctx context.Context, item catalog.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
