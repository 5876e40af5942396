package services

import (
	"context"
	"fmt"
	"log"

	"estate_ingest/mapper"
	"estate_ingest/models"
	"estate_ingest/store"
)

// ListingService runs one raw record through mapping, reconciliation, the
// listing upsert and the sub-collection fan-out.
type ListingService struct {
	store    Store
	mapper   *mapper.Mapper
	resolver *Resolver
	archive  ArchiveQueue
}

// NewListingService creates a new ListingService. archive may be nil.
func NewListingService(st Store, m *mapper.Mapper, resolver *Resolver, archive ArchiveQueue) *ListingService {
	return &ListingService{
		store:    st,
		mapper:   m,
		resolver: resolver,
		archive:  archive,
	}
}

// ProcessResult contains the outcome of processing one raw record.
type ProcessResult struct {
	ListingID         int64
	Created           bool
	PhotosAdded       int
	FailedCollections []string
}

// CollectionErrors returns how many sub-collections failed.
func (r *ProcessResult) CollectionErrors() int {
	return len(r.FailedCollections)
}

// Process upserts the listing for a raw record and fans out to its
// sub-collections. Safe to call multiple times for the same record: the
// listing is matched by its identity cascade and children by their natural
// keys. A sub-collection failure is logged and counted, never fatal.
func (s *ListingService) Process(ctx context.Context, raw *models.RawListingRecord, explicitID int64) (*ProcessResult, error) {
	result := &ProcessResult{}

	// 1. Flatten the raw record into store field values
	vals := s.mapper.MapListing(raw)

	// 2. Resolve tag and school links
	if len(raw.Tags) > 0 {
		if ids, err := s.resolveListingTags(ctx, raw.Tags); err != nil {
			log.Printf("Warning: failed to resolve listing tags: %v", err)
		} else if len(ids) > 0 {
			vals["listing_tag_ids"] = store.ReplaceAllLinks(ids)
		}
	}
	if len(raw.NearbySchools) > 0 {
		if ids, err := s.resolveSchools(ctx, raw.NearbySchools); err != nil {
			log.Printf("Warning: failed to resolve nearby schools: %v", err)
		} else if len(ids) > 0 {
			vals["nearby_school_ids"] = store.ReplaceAllLinks(ids)
		}
	}

	// 3. Final scrub before the payload goes on the wire
	vals = mapper.Scrub(vals)

	// 4. Match against existing listings
	listingID, err := s.resolver.Resolve(ctx, vals, explicitID)
	if err != nil {
		return nil, fmt.Errorf("resolve listing: %w", err)
	}

	// 5. Create or update the listing row
	if listingID > 0 {
		log.Printf("Updating existing listing %d", listingID)
		if err := s.store.Write(ctx, models.EntityListing, []int64{listingID}, vals); err != nil {
			return nil, fmt.Errorf("update listing %d: %w", listingID, err)
		}
	} else {
		log.Printf("Creating new listing")
		listingID, err = s.store.Create(ctx, models.EntityListing, vals)
		if err != nil {
			return nil, fmt.Errorf("create listing: %w", err)
		}
		result.Created = true
	}
	result.ListingID = listingID

	// 6. Fan out to the sub-collections. Each one fails on its own; the
	// listing row above is already committed.
	if len(raw.Photos) > 0 {
		added, err := s.processPhotos(ctx, listingID, raw.Photos, raw.Description.AltPhotos)
		if err != nil {
			log.Printf("Warning: failed to process photos for listing %d: %v", listingID, err)
			result.FailedCollections = append(result.FailedCollections, "photos")
		}
		result.PhotosAdded = added
	}
	if raw.Popularity != nil && len(raw.Popularity.Periods) > 0 {
		if err := s.processPopularity(ctx, listingID, raw.Popularity.Periods); err != nil {
			log.Printf("Warning: failed to process popularity for listing %d: %v", listingID, err)
			result.FailedCollections = append(result.FailedCollections, "popularity")
		}
	}
	if len(raw.TaxHistory) > 0 {
		if err := s.processTaxHistory(ctx, listingID, raw.TaxHistory); err != nil {
			log.Printf("Warning: failed to process tax history for listing %d: %v", listingID, err)
			result.FailedCollections = append(result.FailedCollections, "tax_history")
		}
	}
	if len(raw.Details) > 0 {
		if err := s.processFeatures(ctx, listingID, raw.Details); err != nil {
			log.Printf("Warning: failed to process features for listing %d: %v", listingID, err)
			result.FailedCollections = append(result.FailedCollections, "features")
		}
	}
	if raw.Estimates != nil && len(raw.Estimates.CurrentValues) > 0 {
		if err := s.processEstimates(ctx, listingID, raw.Estimates.CurrentValues); err != nil {
			log.Printf("Warning: failed to process estimates for listing %d: %v", listingID, err)
			result.FailedCollections = append(result.FailedCollections, "estimates")
		}
	}

	return result, nil
}

// ProcessStats tracks aggregate counts for one ingest run.
type ProcessStats struct {
	Processed int
	Created   int
	Updated   int
	Errors    int
}

// Aggregate adds a ProcessResult to the stats.
func (s *ProcessStats) Aggregate(r *ProcessResult) {
	s.Processed++
	if r.Created {
		s.Created++
	} else {
		s.Updated++
	}
	s.Errors += r.CollectionErrors()
}
