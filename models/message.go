package models

import "encoding/json"

// Listing types accepted on scrape requests. Anything else passes through
// to the harvest API, which owns the enum.
const (
	ListingTypeForSale = "for_sale"
	ListingTypeForRent = "for_rent"
	ListingTypeSold    = "sold"
	ListingTypePending = "pending"
)

// ScrapeRequest is the body of a scrape-request message. Known keys are
// typed; everything else lands in Extra and is forwarded to the harvest API
// untouched. SourceURL is informational only and never forwarded.
type ScrapeRequest struct {
	Location    string
	ListingType string
	RecordID    int64
	SourceURL   string
	Limit       int
	Extra       map[string]any
}

// consumedKeys are stripped from the forwarded parameter set.
var consumedKeys = map[string]bool{
	"location":     true,
	"listing_type": true,
	"record_id":    true,
	"source_url":   true,
	"limit":        true,
}

func (r *ScrapeRequest) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	// Wrong-typed known keys are treated as absent rather than failing the
	// whole message; the consumer decides whether the result is usable.
	if v, ok := fields["location"]; ok {
		_ = json.Unmarshal(v, &r.Location)
	}
	if v, ok := fields["listing_type"]; ok {
		_ = json.Unmarshal(v, &r.ListingType)
	}
	if v, ok := fields["source_url"]; ok {
		_ = json.Unmarshal(v, &r.SourceURL)
	}
	if v, ok := fields["record_id"]; ok {
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			r.RecordID = int64(n)
		}
	}
	if v, ok := fields["limit"]; ok {
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			r.Limit = int(n)
		}
	}

	for k, v := range fields {
		if consumedKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[k] = val
	}

	return nil
}
