package services

import (
	"context"
	"fmt"
	"log"

	"estate_ingest/models"
	"estate_ingest/store"
)

// processPhotos creates photo rows for previews the listing does not have
// yet. Existing previews are skipped, never rewritten; a preview seen twice
// in one batch is stored once. The row carries the full-resolution URL at
// the same index when one exists.
func (s *ListingService) processPhotos(ctx context.Context, listingID int64, photos []models.RawPhoto, altPhotos []string) (int, error) {
	existing, err := s.store.SearchRead(ctx, models.EntityPhoto,
		store.Domain{store.Eq("property_id", listingID)}, []string{"preview_href"})
	if err != nil {
		return 0, fmt.Errorf("load existing photos: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for _, record := range existing {
		if href := record.Str("preview_href"); href != "" {
			seen[href] = true
		}
	}

	created := 0
	for i, photo := range photos {
		if photo.Href == "" || seen[photo.Href] {
			continue
		}
		seen[photo.Href] = true

		altURL := ""
		if i < len(altPhotos) {
			altURL = altPhotos[i]
		}

		// Primary stays bound to arrival index 0, even when that photo
		// already exists as a row.
		vals := map[string]any{
			"property_id":  listingID,
			"preview_href": photo.Href,
			"href":         altURL,
			"title":        photo.Title,
			"sequence":     i + 1,
			"is_primary":   i == 0,
		}

		photoID, err := s.store.Create(ctx, models.EntityPhoto, vals)
		if err != nil {
			return created, fmt.Errorf("create photo %d: %w", i, err)
		}
		created++

		if len(photo.Tags) > 0 {
			if err := s.tagPhoto(ctx, photoID, photo.Tags); err != nil {
				log.Printf("Warning: failed to tag photo %d: %v", photoID, err)
			}
		}

		if s.archive != nil {
			archiveURL := altURL
			if archiveURL == "" {
				archiveURL = photo.Href
			}
			if err := s.archive.EnqueuePhoto(ctx, listingID, archiveURL); err != nil {
				log.Printf("Warning: failed to queue photo for archival: %v", err)
			}
		}
	}

	return created, nil
}

// tagPhoto links lookup-or-create photo tags to one photo row with a
// replace-all-links write.
func (s *ListingService) tagPhoto(ctx context.Context, photoID int64, tags []models.RawPhotoTag) error {
	var tagIDs []int64
	for _, tag := range tags {
		if tag.Label == "" {
			continue
		}

		ids, err := s.store.Search(ctx, models.EntityPhotoTag, store.Domain{store.Eq("name", tag.Label)}, 1)
		if err != nil {
			return fmt.Errorf("search photo tag %q: %w", tag.Label, err)
		}

		var tagID int64
		if len(ids) > 0 {
			tagID = ids[0]
		} else {
			tagID, err = s.store.Create(ctx, models.EntityPhotoTag, map[string]any{"name": tag.Label})
			if err != nil {
				return fmt.Errorf("create photo tag %q: %w", tag.Label, err)
			}
		}
		tagIDs = append(tagIDs, tagID)
	}

	if len(tagIDs) == 0 {
		return nil
	}

	return s.store.Write(ctx, models.EntityPhoto, []int64{photoID}, map[string]any{
		"tag_ids": store.ReplaceAllLinks(tagIDs),
	})
}
