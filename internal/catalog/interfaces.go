package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/boqlabs/catalog-crawler/internal/page"
)

// ErrNotFound is returned by stores when a job or saved result is unknown.
var ErrNotFound = errors.New("not found")

// ErrQueueClosed is returned by Dequeue after the queue shuts down.
var ErrQueueClosed = errors.New("queue closed")

// JobStore owns the authoritative job records. Updates replace the whole
// record so concurrent readers never observe a partially written job.
type JobStore interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, jobID string) (Job, error)
	// SetRunning moves a queued job to running; no-op on terminal jobs.
	SetRunning(ctx context.Context, jobID string) error
	// UpdateProgress writes a stage milestone; no-op on terminal jobs.
	UpdateProgress(ctx context.Context, jobID string, stage string, percent int) error
	// Complete moves a job to completed with its results; no-op if the job
	// already reached a terminal state (a racing cancel wins).
	Complete(ctx context.Context, jobID string, products []ProductRecord, brand BrandInfo) error
	// Fail moves a job to failed; no-op on terminal jobs.
	Fail(ctx context.Context, jobID string, errText string) error
	// Cancel flips a job to cancelled. Cooperative: the running crawl
	// observes it at its next checkpoint. Idempotent on terminal jobs.
	Cancel(ctx context.Context, jobID string) error
	Delete(ctx context.Context, jobID string) error
	// IsCancelled is the flag polled by the orchestrator between fetches.
	IsCancelled(ctx context.Context, jobID string) bool
}

// ResultStore persists completed crawl records under derived keys.
type ResultStore interface {
	Save(ctx context.Context, brandName string, result SavedResult) (string, error)
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, key string) (SavedResult, error)
	Delete(ctx context.Context, key string) error
}

// Fetcher turns a URL into a queryable page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*page.Document, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for crawl jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
