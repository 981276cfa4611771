// Package catalog defines core types shared across subsystems.
package catalog

import "time"

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ProductRecord is one extracted catalog entry. ImageURL and ProductURL are
// absolute, resolved against the page base at extraction time.
type ProductRecord struct {
	MainCategory string  `json:"mainCategory"`
	SubCategory  string  `json:"subCategory"`
	Brand        string  `json:"brand"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	ImageURL     string  `json:"imageUrl"`
	ProductURL   string  `json:"productUrl"`
	Price        float64 `json:"price"`
}

// BrandInfo is derived once per crawl from the landing page.
type BrandInfo struct {
	Name    string `json:"name"`
	LogoURL string `json:"logo"`
}

// CategoryDescriptor is a crawl-frontier entry produced by discovery.
// It is ephemeral and never persisted.
type CategoryDescriptor struct {
	URL          string
	Title        string
	MainCategory string
	SubCategory  string
}

// Job is the authoritative record for one submitted crawl.
type Job struct {
	ID           string          `json:"id"`
	Status       JobStatus       `json:"status"`
	Progress     int             `json:"progress"`
	Stage        string          `json:"stage"`
	SourceURL    string          `json:"sourceUrl"`
	BrandName    string          `json:"brandName,omitempty"`
	Products     []ProductRecord `json:"products,omitempty"`
	BrandInfo    *BrandInfo      `json:"brandInfo,omitempty"`
	ProductCount int             `json:"productCount,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	FailedAt     *time.Time      `json:"failedAt,omitempty"`
}

// SavedResult is the byte shape persisted for a completed crawl.
type SavedResult struct {
	BrandName    string          `json:"brandName"`
	SourceURL    string          `json:"sourceUrl"`
	Products     []ProductRecord `json:"products"`
	BrandInfo    BrandInfo       `json:"brandInfo"`
	ProductCount int             `json:"productCount"`
	ScrapedAt    time.Time       `json:"scrapedAt"`
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	SourceURL string
	BrandHint string
	Submitted int64
}
