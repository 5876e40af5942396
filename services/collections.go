package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"estate_ingest/models"
	"estate_ingest/store"
)

// processTaxHistory upserts one row per tax year. Entries without a year
// are skipped with a warning.
func (s *ListingService) processTaxHistory(ctx context.Context, listingID int64, entries []models.RawTaxEntry) error {
	existing, err := s.store.SearchRead(ctx, models.EntityTaxHistory,
		store.Domain{store.Eq("property_id", listingID)}, []string{"id", "year"})
	if err != nil {
		return fmt.Errorf("load existing tax records: %w", err)
	}

	byYear := make(map[int64]int64, len(existing))
	for _, record := range existing {
		byYear[record.Int("year")] = record.ID()
	}

	for _, entry := range entries {
		if entry.Year == 0 {
			log.Printf("Warning: tax record missing year, skipping")
			continue
		}

		vals := map[string]any{
			"property_id":   listingID,
			"year":          entry.Year,
			"tax":           entry.Tax,
			"assessed_year": entry.AssessedYear,
			"value":         entry.Value,
		}
		if entry.Assessment != nil {
			vals["assessment_total"] = entry.Assessment.Total
			vals["assessment_building"] = entry.Assessment.Building
			vals["assessment_land"] = entry.Assessment.Land
		}
		if entry.Appraisal != nil {
			vals["appraisal"] = *entry.Appraisal
		}
		if entry.Market != nil {
			vals["market"] = *entry.Market
		}

		if id, ok := byYear[int64(entry.Year)]; ok {
			if err := s.store.Write(ctx, models.EntityTaxHistory, []int64{id}, vals); err != nil {
				return fmt.Errorf("update tax record for year %d: %w", entry.Year, err)
			}
		} else {
			if _, err := s.store.Create(ctx, models.EntityTaxHistory, vals); err != nil {
				return fmt.Errorf("create tax record for year %d: %w", entry.Year, err)
			}
		}
	}

	return nil
}

// processEstimates upserts one row per (date, source name, source type).
// Timestamps are reduced to the calendar day before keying.
func (s *ListingService) processEstimates(ctx context.Context, listingID int64, estimates []models.RawEstimate) error {
	existing, err := s.store.SearchRead(ctx, models.EntityEstimate,
		store.Domain{store.Eq("property_id", listingID)},
		[]string{"id", "date", "source_name", "source_type"})
	if err != nil {
		return fmt.Errorf("load existing estimates: %w", err)
	}

	byKey := make(map[string]int64, len(existing))
	for _, record := range existing {
		key := estimateKey(record.Str("date"), record.Str("source_name"), record.Str("source_type"))
		byKey[key] = record.ID()
	}

	for _, estimate := range estimates {
		if estimate.Date == "" {
			log.Printf("Warning: estimate missing date, skipping")
			continue
		}

		date := dateOnly(estimate.Date)
		vals := map[string]any{
			"property_id":        listingID,
			"date":               date,
			"estimate":           estimate.Estimate,
			"estimate_high":      estimate.EstimateHigh,
			"estimate_low":       estimate.EstimateLow,
			"is_best_home_value": estimate.IsBestHomeValue,
			"source_name":        estimate.Source.Name,
			"source_type":        estimate.Source.Type,
		}

		key := estimateKey(date, estimate.Source.Name, estimate.Source.Type)
		if id, ok := byKey[key]; ok {
			if err := s.store.Write(ctx, models.EntityEstimate, []int64{id}, vals); err != nil {
				return fmt.Errorf("update estimate %s: %w", key, err)
			}
		} else {
			if _, err := s.store.Create(ctx, models.EntityEstimate, vals); err != nil {
				return fmt.Errorf("create estimate %s: %w", key, err)
			}
		}
	}

	return nil
}

// processPopularity upserts one row per period length. Periods without
// last_n_days are skipped.
func (s *ListingService) processPopularity(ctx context.Context, listingID int64, periods []models.RawPopularityPeriod) error {
	existing, err := s.store.SearchRead(ctx, models.EntityPopularity,
		store.Domain{store.Eq("property_id", listingID)}, []string{"id", "last_n_days"})
	if err != nil {
		return fmt.Errorf("load existing popularity records: %w", err)
	}

	byPeriod := make(map[int64]int64, len(existing))
	for _, record := range existing {
		byPeriod[record.Int("last_n_days")] = record.ID()
	}

	for _, period := range periods {
		if period.LastNDays == 0 {
			continue
		}

		vals := map[string]any{
			"property_id":       listingID,
			"last_n_days":       period.LastNDays,
			"views_total":       period.ViewsTotal,
			"clicks_total":      period.ClicksTotal,
			"saves_total":       period.SavesTotal,
			"shares_total":      period.SharesTotal,
			"leads_total":       period.LeadsTotal,
			"dwell_time_mean":   period.DwellTimeMean,
			"dwell_time_median": period.DwellTimeMedian,
		}

		if id, ok := byPeriod[int64(period.LastNDays)]; ok {
			if err := s.store.Write(ctx, models.EntityPopularity, []int64{id}, vals); err != nil {
				return fmt.Errorf("update popularity period %d: %w", period.LastNDays, err)
			}
		} else {
			if _, err := s.store.Create(ctx, models.EntityPopularity, vals); err != nil {
				return fmt.Errorf("create popularity period %d: %w", period.LastNDays, err)
			}
		}
	}

	return nil
}

// processFeatures upserts one row per (parent category, category). Entries
// without a category are skipped with a warning.
func (s *ListingService) processFeatures(ctx context.Context, listingID int64, features []models.RawFeature) error {
	existing, err := s.store.SearchRead(ctx, models.EntityFeature,
		store.Domain{store.Eq("property_id", listingID)},
		[]string{"id", "category", "parent_category"})
	if err != nil {
		return fmt.Errorf("load existing features: %w", err)
	}

	byKey := make(map[string]int64, len(existing))
	for _, record := range existing {
		byKey[featureKey(record.Str("parent_category"), record.Str("category"))] = record.ID()
	}

	for _, feature := range features {
		if feature.Category == "" {
			log.Printf("Warning: feature record missing category, skipping")
			continue
		}

		items := feature.Text
		if items == nil {
			items = []string{}
		}
		textItems, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("marshal feature text: %w", err)
		}

		vals := map[string]any{
			"property_id":     listingID,
			"category":        feature.Category,
			"parent_category": feature.ParentCategory,
			"text_items":      string(textItems),
		}

		key := featureKey(feature.ParentCategory, feature.Category)
		if id, ok := byKey[key]; ok {
			if err := s.store.Write(ctx, models.EntityFeature, []int64{id}, vals); err != nil {
				return fmt.Errorf("update feature %s: %w", key, err)
			}
		} else {
			if _, err := s.store.Create(ctx, models.EntityFeature, vals); err != nil {
				return fmt.Errorf("create feature %s: %w", key, err)
			}
		}
	}

	return nil
}

func estimateKey(date, sourceName, sourceType string) string {
	return date + "_" + sourceName + "_" + sourceType
}

func featureKey(parentCategory, category string) string {
	return parentCategory + ":" + category
}

// dateOnly cuts a timestamp down to its leading date token.
func dateOnly(value string) string {
	for i, r := range value {
		if r == ' ' || r == 'T' {
			return value[:i]
		}
	}
	return value
}
