package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"estate_ingest/config"
	"estate_ingest/httputil"
)

// maxResponseBytes bounds how much of a store response is read.
const maxResponseBytes = 4 * 1024 * 1024

// Client talks to the listings backend over its JSON-2 RPC API:
// POST {base}/json/2/{entity}/{method} with a JSON arguments object.
// Calls are single-attempt with a fixed timeout.
type Client struct {
	baseURL  string
	database string
	apiKey   string
	client   *http.Client
}

func NewClient(cfg config.StoreConfig) *Client {
	return &Client{
		baseURL:  cfg.URL,
		database: cfg.Database,
		apiKey:   cfg.APIKey,
		client:   httputil.NewAPIClient(cfg.Timeout),
	}
}

// Domain is a store search filter: a list of [field, operator, value]
// conditions, implicitly AND-ed.
type Domain [][]any

// Eq builds a single equality condition.
func Eq(field string, value any) []any {
	return []any{field, "=", value}
}

// Create inserts one record and returns its id. The API takes batches,
// so the single record is wrapped in a one-element vals_list.
func (c *Client) Create(ctx context.Context, entity string, vals map[string]any) (int64, error) {
	res, err := c.call(ctx, entity, "create", map[string]any{
		"vals_list": []any{vals},
	})
	if err != nil {
		return 0, err
	}

	return parseCreatedID(entity, res)
}

// Write updates the given ids with vals. A false result is an error.
func (c *Client) Write(ctx context.Context, entity string, ids []int64, vals map[string]any) error {
	res, err := c.call(ctx, entity, "write", map[string]any{
		"ids":  ids,
		"vals": vals,
	})
	if err != nil {
		return err
	}

	var ok bool
	if err := json.Unmarshal(res, &ok); err == nil && !ok {
		return fmt.Errorf("write %s %v: store returned false", entity, ids)
	}

	return nil
}

// Search returns the ids matching domain.
func (c *Client) Search(ctx context.Context, entity string, domain Domain, limit int) ([]int64, error) {
	args := map[string]any{"domain": domain}
	if limit > 0 {
		args["limit"] = limit
	}

	res, err := c.call(ctx, entity, "search", args)
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := json.Unmarshal(res, &ids); err != nil {
		return nil, fmt.Errorf("search %s: decode ids: %w", entity, err)
	}

	return ids, nil
}

// SearchRead returns the matching records projected to fields.
func (c *Client) SearchRead(ctx context.Context, entity string, domain Domain, fields []string) ([]Record, error) {
	res, err := c.call(ctx, entity, "search_read", map[string]any{
		"domain": domain,
		"fields": fields,
	})
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(res, &records); err != nil {
		return nil, fmt.Errorf("search_read %s: decode records: %w", entity, err)
	}

	return records, nil
}

func (c *Client) call(ctx context.Context, entity, method string, args map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: marshal arguments: %w", entity, method, err)
	}

	url := fmt.Sprintf("%s/json/2/%s/%s", c.baseURL, entity, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s.%s: build request: %w", entity, method, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Odoo-Database", c.database)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", entity, method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s.%s: read response: %w", entity, method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s.%s: status %d: %s", entity, method, resp.StatusCode, excerpt(body))
	}

	return normalizeResult(body)
}

// normalizeResult is the single place the two response shapes converge:
// a bare JSON value, or an object wrapping the value under "result".
func normalizeResult(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] != '{' {
		return json.RawMessage(trimmed), nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if res, ok := wrapper["result"]; ok {
		return res, nil
	}

	return json.RawMessage(trimmed), nil
}

// parseCreatedID accepts both create response shapes: a list of new ids
// or a single id.
func parseCreatedID(entity string, res json.RawMessage) (int64, error) {
	var ids []int64
	if err := json.Unmarshal(res, &ids); err == nil {
		if len(ids) == 0 {
			return 0, fmt.Errorf("create %s: empty id list", entity)
		}
		return ids[0], nil
	}

	var id int64
	if err := json.Unmarshal(res, &id); err == nil {
		return id, nil
	}

	return 0, fmt.Errorf("create %s: unexpected response: %s", entity, excerpt(res))
}

func excerpt(body []byte) string {
	const max = 500
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
