package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"estate_ingest/models"
	"estate_ingest/store"
)

// resolveListingTags returns tag row ids for the given api names, creating
// missing tags. Pipeline-created tags carry tag_type "listing" so the host
// application can tell them apart from its own.
func (s *ListingService) resolveListingTags(ctx context.Context, apiNames []string) ([]int64, error) {
	var tagIDs []int64
	for _, apiName := range apiNames {
		if apiName == "" {
			continue
		}

		ids, err := s.store.Search(ctx, models.EntityTag, store.Domain{store.Eq("api_name", apiName)}, 1)
		if err != nil {
			return nil, fmt.Errorf("search tag %q: %w", apiName, err)
		}
		if len(ids) > 0 {
			tagIDs = append(tagIDs, ids[0])
			continue
		}

		name := displayName(apiName)
		id, err := s.store.Create(ctx, models.EntityTag, map[string]any{
			"name":     name,
			"api_name": apiName,
			"tag_type": "listing",
		})
		if err != nil {
			return nil, fmt.Errorf("create tag %q: %w", apiName, err)
		}
		log.Printf("Created tag %q (api_name %q)", name, apiName)
		tagIDs = append(tagIDs, id)
	}

	return tagIDs, nil
}

// resolveSchools returns school row ids for the given names, creating
// missing rows.
func (s *ListingService) resolveSchools(ctx context.Context, names []string) ([]int64, error) {
	var schoolIDs []int64
	for _, name := range names {
		if name == "" {
			continue
		}

		ids, err := s.store.Search(ctx, models.EntitySchool, store.Domain{store.Eq("name", name)}, 1)
		if err != nil {
			return nil, fmt.Errorf("search school %q: %w", name, err)
		}
		if len(ids) > 0 {
			schoolIDs = append(schoolIDs, ids[0])
			continue
		}

		id, err := s.store.Create(ctx, models.EntitySchool, map[string]any{"name": name})
		if err != nil {
			return nil, fmt.Errorf("create school %q: %w", name, err)
		}
		schoolIDs = append(schoolIDs, id)
	}

	return schoolIDs, nil
}

// displayName renders an api name for humans: "community_gym" becomes
// "Community Gym".
func displayName(apiName string) string {
	words := strings.Split(apiName, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
