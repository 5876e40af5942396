package models

import (
	"encoding/json"
	"testing"
)

func TestScrapeRequestCapturesExtras(t *testing.T) {
	body := `{
		"location": "Austin, TX",
		"listing_type": "for_rent",
		"record_id": 77,
		"source_url": "https://admin.example.com/jobs/9",
		"limit": 25,
		"past_days": 30,
		"min_price": 250000
	}`

	var req ScrapeRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if req.Location != "Austin, TX" {
		t.Errorf("Location = %q", req.Location)
	}
	if req.ListingType != "for_rent" {
		t.Errorf("ListingType = %q", req.ListingType)
	}
	if req.RecordID != 77 {
		t.Errorf("RecordID = %d", req.RecordID)
	}
	if req.SourceURL != "https://admin.example.com/jobs/9" {
		t.Errorf("SourceURL = %q", req.SourceURL)
	}
	if req.Limit != 25 {
		t.Errorf("Limit = %d", req.Limit)
	}
	if len(req.Extra) != 2 {
		t.Fatalf("Extra = %v, want 2 keys", req.Extra)
	}
	if req.Extra["past_days"] != 30.0 {
		t.Errorf("Extra[past_days] = %v", req.Extra["past_days"])
	}
	for key := range consumedKeys {
		if _, ok := req.Extra[key]; ok {
			t.Errorf("consumed key %q leaked into Extra", key)
		}
	}
}

func TestScrapeRequestWrongTypedKeys(t *testing.T) {
	body := `{"location": 42, "record_id": "abc", "limit": true, "extra": "kept"}`

	var req ScrapeRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if req.Location != "" {
		t.Errorf("Location = %q, want empty for wrong-typed key", req.Location)
	}
	if req.RecordID != 0 || req.Limit != 0 {
		t.Errorf("RecordID = %d, Limit = %d, want zero", req.RecordID, req.Limit)
	}
	if req.Extra["extra"] != "kept" {
		t.Errorf("Extra = %v", req.Extra)
	}
}

func TestScrapeRequestMalformed(t *testing.T) {
	var req ScrapeRequest
	if err := json.Unmarshal([]byte(`{"location":`), &req); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}
