// Package worker executes crawl jobs pulled from the queue.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/crawl"
	"github.com/boqlabs/catalog-crawler/internal/metrics"
)

// Config controls Worker behavior.
type Config struct {
	// Topic receives completion events; empty disables publishing.
	Topic string
	// PersistResults saves completed crawls to the result store.
	PersistResults bool
}

// Worker consumes queue items and runs one crawl per item, writing progress
// milestones into the job store and observing its cancellation flag.
type Worker struct {
	queue       catalog.Queue
	jobStore    catalog.JobStore
	resultStore catalog.ResultStore
	publisher   catalog.Publisher
	engine      *crawl.Engine
	clock       catalog.Clock
	cfg         Config
	logger      *zap.Logger
}

// New constructs a Worker.
func New(
	queue catalog.Queue,
	jobStore catalog.JobStore,
	resultStore catalog.ResultStore,
	publisher catalog.Publisher,
	engine *crawl.Engine,
	clock catalog.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:       queue,
		jobStore:    jobStore,
		resultStore: resultStore,
		publisher:   publisher,
		engine:      engine,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, catalog.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item catalog.QueueItem) {
	logger := w.logger.With(zap.String("job_id", item.JobID), zap.String("url", item.SourceURL))

	// A cancel may land between submission and dequeue.
	if w.jobStore.IsCancelled(ctx, item.JobID) {
		logger.Info("job cancelled before start")
		metrics.ObserveJob(string(catalog.JobStatusCancelled))
		return
	}

	if err := w.jobStore.SetRunning(ctx, item.JobID); err != nil {
		logger.Error("set running failed", zap.Error(err))
		return
	}
	if err := w.jobStore.UpdateProgress(ctx, item.JobID, "Initializing crawler...", 10); err != nil {
		logger.Error("progress update failed", zap.Error(err))
	}

	hooks := crawl.Hooks{
		Progress: func(stage string, percent int) {
			if err := w.jobStore.UpdateProgress(ctx, item.JobID, stage, percent); err != nil {
				logger.Warn("progress update failed", zap.Error(err))
			}
		},
		Cancelled: func() bool {
			return w.jobStore.IsCancelled(ctx, item.JobID)
		},
	}

	started := w.clock.Now()
	result, err := w.engine.Run(ctx, item.SourceURL, hooks)
	switch {
	case errors.Is(err, crawl.ErrCancelled):
		// The store already holds cancelled status; just make sure the
		// stage reads right if the flag came from context teardown.
		if cerr := w.jobStore.Cancel(ctx, item.JobID); cerr != nil {
			logger.Warn("cancel finalize failed", zap.Error(cerr))
		}
		logger.Info("job cancelled", zap.Duration("elapsed", time.Since(started)))
		metrics.ObserveJob(string(catalog.JobStatusCancelled))
		return
	case err != nil:
		if ferr := w.jobStore.Fail(ctx, item.JobID, err.Error()); ferr != nil {
			logger.Error("fail status update failed", zap.Error(ferr))
		}
		logger.Error("job failed", zap.Error(err))
		metrics.ObserveJob(string(catalog.JobStatusFailed))
		return
	}

	if err := w.jobStore.Complete(ctx, item.JobID, result.Products, result.Brand); err != nil {
		logger.Error("complete status update failed", zap.Error(err))
		return
	}
	logger.Info("job completed",
		zap.Int("products", len(result.Products)),
		zap.String("brand", result.Brand.Name),
		zap.Duration("elapsed", time.Since(started)),
	)
	metrics.ObserveJob(string(catalog.JobStatusCompleted))
	metrics.AddProductsExtracted(len(result.Products))

	w.persistResult(ctx, item, result, logger)
	w.publishResult(ctx, item, result, logger)
}

func (w *Worker) persistResult(ctx context.Context, item catalog.QueueItem, result crawl.Result, logger *zap.Logger) {
	if !w.cfg.PersistResults || w.resultStore == nil {
		return
	}
	saved := catalog.SavedResult{
		BrandName:    result.Brand.Name,
		SourceURL:    item.SourceURL,
		Products:     result.Products,
		BrandInfo:    result.Brand,
		ProductCount: len(result.Products),
		ScrapedAt:    w.clock.Now(),
	}
	key, err := w.resultStore.Save(ctx, result.Brand.Name, saved)
	if err != nil {
		logger.Warn("persist result failed", zap.Error(err))
		return
	}
	logger.Info("result persisted", zap.String("key", key))
}

func (w *Worker) publishResult(ctx context.Context, item catalog.QueueItem, result crawl.Result, logger *zap.Logger) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	payload := map[string]any{
		"job_id":        item.JobID,
		"source_url":    item.SourceURL,
		"brand":         result.Brand.Name,
		"product_count": len(result.Products),
		"timestamp":     w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		logger.Warn("publish completion failed", zap.Error(err))
	}
}
