package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"estate_ingest/config"
	"estate_ingest/httputil"
	"estate_ingest/models"
)

// maxResponseBytes bounds how much of a harvest response is read.
const maxResponseBytes = 16 * 1024 * 1024

// Client calls the harvest search API. One search per Fetch, no paging;
// the service caps result counts via the limit parameter.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(cfg config.HarvestConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  httputil.NewAPIClient(cfg.Timeout),
	}
}

func (c *Client) Fetch(ctx context.Context, query Query) ([]*models.RawListingRecord, error) {
	reqBody := map[string]any{
		"location":     query.Location,
		"listing_type": query.ListingType,
	}
	if query.Limit > 0 {
		reqBody["limit"] = query.Limit
	}
	for k, v := range query.Extra {
		if _, ok := reqBody[k]; ok {
			continue
		}
		reqBody[k] = v
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/properties/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("harvest search: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read harvest response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("harvest API error %d: %s", resp.StatusCode, excerpt(data))
	}

	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decode harvest response: %w", err)
	}

	for _, r := range records {
		r.Normalize()
	}
	return records, nil
}

// decodeRecords accepts both a bare array of records and an object
// wrapping the array under "results".
func decodeRecords(data []byte) ([]*models.RawListingRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wire struct {
			Results []*models.RawListingRecord `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return nil, err
		}
		return wire.Results, nil
	}

	var records []*models.RawListingRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func excerpt(body []byte) string {
	const max = 500
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
