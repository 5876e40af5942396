package services

import (
	"context"
	"fmt"
	"log"

	"estate_ingest/models"
	"estate_ingest/store"
)

// listingMatchers is the identity cascade. Earlier keys identify a listing
// more reliably, so the first hit wins and later keys are never consulted.
var listingMatchers = []struct {
	label string
	field string
}{
	{"property id", "property_id"},
	{"MLS", "mls"},
	{"URL", "url"},
	{"address", "address"},
}

// Resolver matches mapped records to stored listings.
type Resolver struct {
	store Store
}

// NewResolver creates a new Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the id of the stored listing the mapped values belong to,
// or 0 when a new listing should be created. An explicit id bypasses the
// cascade entirely. A store error aborts resolution rather than falling
// through to the create path.
func (r *Resolver) Resolve(ctx context.Context, vals map[string]any, explicitID int64) (int64, error) {
	if explicitID > 0 {
		log.Printf("Using provided record id %d for direct update", explicitID)
		return explicitID, nil
	}

	for _, m := range listingMatchers {
		value, _ := vals[m.field].(string)
		if value == "" {
			continue
		}

		ids, err := r.store.Search(ctx, models.EntityListing, store.Domain{store.Eq(m.field, value)}, 1)
		if err != nil {
			return 0, fmt.Errorf("match by %s: %w", m.label, err)
		}
		if len(ids) > 0 {
			log.Printf("Matched existing listing %d by %s", ids[0], m.label)
			return ids[0], nil
		}
	}

	return 0, nil
}
