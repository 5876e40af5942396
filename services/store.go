package services

import (
	"context"

	"estate_ingest/store"
)

// Store is the slice of the store client the services depend on.
type Store interface {
	Create(ctx context.Context, entity string, vals map[string]any) (int64, error)
	Write(ctx context.Context, entity string, ids []int64, vals map[string]any) error
	Search(ctx context.Context, entity string, domain store.Domain, limit int) ([]int64, error)
	SearchRead(ctx context.Context, entity string, domain store.Domain, fields []string) ([]store.Record, error)
}

// ArchiveQueue records photo URLs for the background archiver. A nil queue
// disables archival.
type ArchiveQueue interface {
	EnqueuePhoto(ctx context.Context, listingID int64, url string) error
}
