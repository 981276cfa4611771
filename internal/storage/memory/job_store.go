// Package memory provides the in-memory job store backing the task API.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
)

// JobStore is the authoritative owner of crawl job records. Every update
// replaces the whole record under the lock, so a concurrent Get never
// observes a partially written job.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]catalog.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]catalog.Job)}
}

// Create stores a new job. The job arrives in queued status.
func (s *JobStore) Create(_ context.Context, job catalog.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// Get returns a snapshot of the job.
func (s *JobStore) Get(_ context.Context, jobID string) (catalog.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return catalog.Job{}, catalog.ErrNotFound
	}
	return cloneJob(job), nil
}

// SetRunning moves a queued job to running. Terminal jobs are left alone.
func (s *JobStore) SetRunning(_ context.Context, jobID string) error {
	return s.mutate(jobID, func(job *catalog.Job) {
		job.Status = catalog.JobStatusRunning
	})
}

// UpdateProgress records a stage milestone. Terminal jobs are left alone, so
// a progress write racing a cancel never resurrects the job.
func (s *JobStore) UpdateProgress(_ context.Context, jobID string, stage string, percent int) error {
	return s.mutate(jobID, func(job *catalog.Job) {
		job.Stage = stage
		job.Progress = percent
	})
}

// Complete moves a job to completed with its results. If a cancel won the
// race the job stays cancelled.
func (s *JobStore) Complete(_ context.Context, jobID string, products []catalog.ProductRecord, brand catalog.BrandInfo) error {
	return s.mutate(jobID, func(job *catalog.Job) {
		now := time.Now().UTC()
		job.Status = catalog.JobStatusCompleted
		job.Progress = 100
		job.Stage = "Complete!"
		job.Products = products
		job.BrandInfo = &brand
		job.BrandName = brand.Name
		job.ProductCount = len(products)
		job.CompletedAt = &now
	})
}

// Fail moves a job to failed with the captured error message.
func (s *JobStore) Fail(_ context.Context, jobID string, errText string) error {
	return s.mutate(jobID, func(job *catalog.Job) {
		now := time.Now().UTC()
		job.Status = catalog.JobStatusFailed
		job.Stage = "Failed"
		job.Error = errText
		job.FailedAt = &now
	})
}

// Cancel flips a job to cancelled. It does not interrupt an in-flight fetch;
// the running crawl observes the flag at its next checkpoint. Cancelling a
// terminal job is a no-op.
func (s *JobStore) Cancel(_ context.Context, jobID string) error {
	return s.mutate(jobID, func(job *catalog.Job) {
		job.Status = catalog.JobStatusCancelled
		job.Stage = "Cancelled by user"
	})
}

// Delete removes a job entirely.
func (s *JobStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.jobs, jobID)
	return nil
}

// IsCancelled is the cooperative flag polled between fetches. An unknown
// job reads as cancelled so an orphaned crawl winds down.
func (s *JobStore) IsCancelled(_ context.Context, jobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return true
	}
	return job.Status == catalog.JobStatusCancelled
}

// mutate applies fn to a copy of the record and swaps it in whole. Terminal
// records are immutable except for Delete.
func (s *JobStore) mutate(jobID string, fn func(*catalog.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return catalog.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return nil
	}
	fn(&job)
	s.jobs[jobID] = job
	return nil
}

func cloneJob(job catalog.Job) catalog.Job {
	cp := job
	if job.Products != nil {
		cp.Products = make([]catalog.ProductRecord, len(job.Products))
		copy(cp.Products, job.Products)
	}
	if job.BrandInfo != nil {
		b := *job.BrandInfo
		cp.BrandInfo = &b
	}
	return cp
}
