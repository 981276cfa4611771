package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/crawl"
	"github.com/boqlabs/catalog-crawler/internal/page"
	publishermemory "github.com/boqlabs/catalog-crawler/internal/publisher/memory"
	queuememory "github.com/boqlabs/catalog-crawler/internal/queue/memory"
	storagememory "github.com/boqlabs/catalog-crawler/internal/storage/memory"
)

type stubFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (*page.Document, error) {
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	html, ok := f.pages[rawURL]
	if !ok {
		return nil, fmt.Errorf("no page for %s", rawURL)
	}
	return page.Parse([]byte(html), rawURL)
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

const landingHTML = `<h1>Acme</h1>
	<li class="product">
		<h2>Aeron Chair</h2>
		<img src="/media/aeron-photo.jpg">
		<a href="/product/aeron/">View</a>
	</li>`

type workerFixture struct {
	worker    *Worker
	jobStore  *storagememory.JobStore
	results   *storagememory.ResultStore
	publisher *publishermemory.Publisher
}

func newWorkerFixture(t *testing.T, f *stubFetcher, cfg Config) workerFixture {
	t.Helper()
	jobStore := storagememory.NewJobStore()
	results := storagememory.NewResultStore()
	publisher := publishermemory.New()
	engine := crawl.NewEngine(f, crawl.Config{}, nil)
	clock := fixedClock{at: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}

	w := New(queuememory.NewQueue(1), jobStore, results, publisher, engine, clock, cfg, nil)
	return workerFixture{worker: w, jobStore: jobStore, results: results, publisher: publisher}
}

func createJob(t *testing.T, fx workerFixture, id, url string) catalog.QueueItem {
	t.Helper()
	require.NoError(t, fx.jobStore.Create(context.Background(), catalog.Job{
		ID:        id,
		Status:    catalog.JobStatusQueued,
		Stage:     "Queued",
		SourceURL: url,
	}))
	return catalog.QueueItem{JobID: id, SourceURL: url}
}

func TestWorker_ProcessJob_Completes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := &stubFetcher{pages: map[string]string{"https://example.com/": landingHTML}}
	fx := newWorkerFixture(t, f, Config{Topic: "crawl-events", PersistResults: true})
	item := createJob(t, fx, "task_1", "https://example.com/")

	fx.worker.processJob(ctx, item)

	job, err := fx.jobStore.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStatusCompleted, job.Status)
	require.Equal(t, 100, job.Progress)
	require.Equal(t, "Complete!", job.Stage)
	require.Equal(t, "Acme", job.BrandName)
	require.Equal(t, 1, job.ProductCount)

	keys, err := fx.results.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"acme_20260831T120000"}, keys)

	saved, err := fx.results.Get(ctx, keys[0])
	require.NoError(t, err)
	require.Equal(t, "https://example.com/", saved.SourceURL)
	require.Equal(t, 1, saved.ProductCount)

	msgs := fx.publisher.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "crawl-events", msgs[0].Topic)
}

func TestWorker_ProcessJob_LandingFailureFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := &stubFetcher{errs: map[string]error{"https://example.com/": errors.New("connection refused")}}
	fx := newWorkerFixture(t, f, Config{PersistResults: true})
	item := createJob(t, fx, "task_1", "https://example.com/")

	fx.worker.processJob(ctx, item)

	job, err := fx.jobStore.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStatusFailed, job.Status)
	require.Contains(t, job.Error, "landing page fetch")

	keys, err := fx.results.List(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
	require.Empty(t, fx.publisher.Messages())
}

func TestWorker_ProcessJob_CancelledBeforeStart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := &stubFetcher{pages: map[string]string{"https://example.com/": landingHTML}}
	fx := newWorkerFixture(t, f, Config{PersistResults: true})
	item := createJob(t, fx, "task_1", "https://example.com/")
	require.NoError(t, fx.jobStore.Cancel(ctx, "task_1"))

	fx.worker.processJob(ctx, item)

	job, err := fx.jobStore.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStatusCancelled, job.Status)
	require.Equal(t, "Cancelled by user", job.Stage)
	require.Empty(t, fx.publisher.Messages())
}

func TestWorker_ProcessJob_PersistDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := &stubFetcher{pages: map[string]string{"https://example.com/": landingHTML}}
	fx := newWorkerFixture(t, f, Config{PersistResults: false})
	item := createJob(t, fx, "task_1", "https://example.com/")

	fx.worker.processJob(ctx, item)

	job, err := fx.jobStore.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStatusCompleted, job.Status)

	keys, err := fx.results.List(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestWorker_RunDrainsQueue(t *testing.T) {
	t.Parallel()

	f := &stubFetcher{pages: map[string]string{"https://example.com/": landingHTML}}
	jobStore := storagememory.NewJobStore()
	results := storagememory.NewResultStore()
	publisher := publishermemory.New()
	engine := crawl.NewEngine(f, crawl.Config{}, nil)
	queue := queuememory.NewQueue(4)
	clock := fixedClock{at: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}

	w := New(queue, jobStore, results, publisher, engine, clock, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, jobStore.Create(ctx, catalog.Job{ID: "task_1", Status: catalog.JobStatusQueued, SourceURL: "https://example.com/"}))
	require.NoError(t, queue.Enqueue(ctx, catalog.QueueItem{JobID: "task_1", SourceURL: "https://example.com/"}))

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		job, err := jobStore.Get(ctx, "task_1")
		return err == nil && job.Status == catalog.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
