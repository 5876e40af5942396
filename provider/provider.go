package provider

import (
	"context"

	"estate_ingest/models"
)

// Source produces raw listing records for a scrape request.
type Source interface {
	Fetch(ctx context.Context, query Query) ([]*models.RawListingRecord, error)
}

// Query carries the search parameters forwarded to the harvest service.
// Extra holds passthrough parameters from the message; reserved keys in
// Extra never override the typed fields.
type Query struct {
	Location    string
	ListingType string
	Limit       int
	Extra       map[string]any
}
