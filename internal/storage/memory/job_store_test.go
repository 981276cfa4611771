package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
)

func newQueuedJob(id string) catalog.Job {
	return catalog.Job{
		ID:        id,
		Status:    catalog.JobStatusQueued,
		Stage:     "Queued",
		SourceURL: "https://example.com/",
	}
}

func TestJobStore_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewJobStore()
	require.NoError(t, s.Create(ctx, newQueuedJob("task_1")))
	require.Error(t, s.Create(ctx, newQueuedJob("task_1")))

	job, err := s.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStatusQueued, job.Status)

	_, err = s.Get(ctx, "task_missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestJobStore_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewJobStore()
	require.NoError(t, s.Create(ctx, newQueuedJob("task_1")))

	require.NoError(t, s.SetRunning(ctx, "task_1"))
	require.NoError(t, s.UpdateProgress(ctx, "task_1", "Crawling categories...", 45))

	job, err := s.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStatusRunning, job.Status)
	require.Equal(t, "Crawling categories...", job.Stage)
	require.Equal(t, 45, job.Progress)

	products := []catalog.ProductRecord{{Name: "Aeron", ProductURL: "https://example.com/p/1"}}
	brand := catalog.BrandInfo{Name: "Acme", LogoURL: "https://example.com/logo.svg"}
	require.NoError(t, s.Complete(ctx, "task_1", products, brand))

	job, err = s.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStatusCompleted, job.Status)
	require.Equal(t, 100, job.Progress)
	require.Equal(t, "Complete!", job.Stage)
	require.Equal(t, "Acme", job.BrandName)
	require.Equal(t, 1, job.ProductCount)
	require.NotNil(t, job.CompletedAt)
}

func TestJobStore_TerminalStatesAreImmutable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewJobStore()
	require.NoError(t, s.Create(ctx, newQueuedJob("task_1")))
	require.NoError(t, s.Cancel(ctx, "task_1"))

	// A late progress write or completion must not resurrect the job.
	require.NoError(t, s.UpdateProgress(ctx, "task_1", "Crawling categories...", 50))
	require.NoError(t, s.Complete(ctx, "task_1", nil, catalog.BrandInfo{Name: "Acme"}))
	require.NoError(t, s.Fail(ctx, "task_1", "too late"))

	job, err := s.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStatusCancelled, job.Status)
	require.Equal(t, "Cancelled by user", job.Stage)
	require.Empty(t, job.Error)
}

func TestJobStore_CancelIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewJobStore()
	require.NoError(t, s.Create(ctx, newQueuedJob("task_1")))
	require.NoError(t, s.Cancel(ctx, "task_1"))
	require.NoError(t, s.Cancel(ctx, "task_1"))

	job, err := s.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStatusCancelled, job.Status)
}

func TestJobStore_Fail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewJobStore()
	require.NoError(t, s.Create(ctx, newQueuedJob("task_1")))
	require.NoError(t, s.SetRunning(ctx, "task_1"))
	require.NoError(t, s.Fail(ctx, "task_1", "landing page fetch: connection refused"))

	job, err := s.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, catalog.JobStatusFailed, job.Status)
	require.Equal(t, "landing page fetch: connection refused", job.Error)
	require.NotNil(t, job.FailedAt)
}

func TestJobStore_IsCancelled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewJobStore()
	require.NoError(t, s.Create(ctx, newQueuedJob("task_1")))
	require.False(t, s.IsCancelled(ctx, "task_1"))

	require.NoError(t, s.Cancel(ctx, "task_1"))
	require.True(t, s.IsCancelled(ctx, "task_1"))

	// Unknown jobs read as cancelled so an orphaned crawl winds down.
	require.True(t, s.IsCancelled(ctx, "task_unknown"))
}

func TestJobStore_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewJobStore()
	require.NoError(t, s.Create(ctx, newQueuedJob("task_1")))
	require.NoError(t, s.Delete(ctx, "task_1"))
	require.ErrorIs(t, s.Delete(ctx, "task_1"), catalog.ErrNotFound)
}

func TestJobStore_GetReturnsSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewJobStore()
	require.NoError(t, s.Create(ctx, newQueuedJob("task_1")))
	require.NoError(t, s.Complete(ctx, "task_1",
		[]catalog.ProductRecord{{Name: "Aeron"}}, catalog.BrandInfo{Name: "Acme"}))

	job, err := s.Get(ctx, "task_1")
	require.NoError(t, err)
	job.Products[0].Name = "mutated"
	job.BrandInfo.Name = "mutated"

	fresh, err := s.Get(ctx, "task_1")
	require.NoError(t, err)
	require.Equal(t, "Aeron", fresh.Products[0].Name)
	require.Equal(t, "Acme", fresh.BrandInfo.Name)
}
