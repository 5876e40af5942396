package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusDropped   RunStatus = "dropped"
	RunStatusFailed    RunStatus = "failed"
)

// IngestRun is the journal row for one consumed message.
type IngestRun struct {
	ID                int64      `json:"id" db:"id"`
	CorrelationID     string     `json:"correlation_id" db:"correlation_id"`
	Location          string     `json:"location" db:"location"`
	ListingType       string     `json:"listing_type" db:"listing_type"`
	RecordID          int64      `json:"record_id" db:"record_id"`
	Status            RunStatus  `json:"status" db:"status"`
	ListingsProcessed int        `json:"listings_processed" db:"listings_processed"`
	ListingsCreated   int        `json:"listings_created" db:"listings_created"`
	ListingsUpdated   int        `json:"listings_updated" db:"listings_updated"`
	Error             string     `json:"error" db:"error"`
	StartedAt         time.Time  `json:"started_at" db:"started_at"`
	FinishedAt        *time.Time `json:"finished_at" db:"finished_at"`
}

type ArchiveStatus string

const (
	ArchiveStatusPending  ArchiveStatus = "pending"
	ArchiveStatusUploaded ArchiveStatus = "uploaded"
	ArchiveStatusFailed   ArchiveStatus = "failed"
)

// ArchiveItem is one photo URL queued for mirroring to object storage.
type ArchiveItem struct {
	ID         int64         `json:"id" db:"id"`
	ListingID  int64         `json:"listing_id" db:"listing_id"`
	URL        string        `json:"url" db:"url"`
	Status     ArchiveStatus `json:"status" db:"status"`
	Attempts   int           `json:"attempts" db:"attempts"`
	StorageKey string        `json:"storage_key" db:"storage_key"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}
