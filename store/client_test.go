package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"estate_ingest/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.StoreConfig{
		URL:      srv.URL,
		Database: "estate",
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
	})
}

func TestCreateWrapsValsList(t *testing.T) {
	var gotPath string
	var gotBody map[string]json.RawMessage
	var gotAuth, gotDB string

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDB = r.Header.Get("X-Odoo-Database")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("request body is not a JSON object: %v", err)
		}
		w.Write([]byte(`[42]`))
	})

	id, err := client.Create(context.Background(), "real_estate.listing", map[string]any{"address": "1 Main St"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != 42 {
		t.Errorf("expected id 42, got %d", id)
	}
	if gotPath != "/json/2/real_estate.listing/create" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %s", gotAuth)
	}
	if gotDB != "estate" {
		t.Errorf("unexpected database header: %s", gotDB)
	}

	var valsList []map[string]any
	if err := json.Unmarshal(gotBody["vals_list"], &valsList); err != nil {
		t.Fatalf("vals_list missing or malformed: %v", err)
	}
	if len(valsList) != 1 || valsList[0]["address"] != "1 Main St" {
		t.Errorf("expected one-element vals_list with record, got %v", valsList)
	}
}

func TestCreateResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{"bare list", `[7]`, 7},
		{"bare id", `7`, 7},
		{"wrapped list", `{"result": [7]}`, 7},
		{"wrapped id", `{"result": 7}`, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			id, err := client.Create(context.Background(), "real_estate.photo", map[string]any{"href": "x"})
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if id != tt.want {
				t.Errorf("expected id %d, got %d", tt.want, id)
			}
		})
	}
}

func TestCreateEmptyIDList(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	if _, err := client.Create(context.Background(), "real_estate.tag", map[string]any{"name": "Pool"}); err == nil {
		t.Fatal("expected error for empty id list")
	}
}

func TestWrite(t *testing.T) {
	var gotBody map[string]json.RawMessage

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Write([]byte(`true`))
	})

	err := client.Write(context.Background(), "real_estate.listing", []int64{5}, map[string]any{"price": 100000.0})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var ids []int64
	if err := json.Unmarshal(gotBody["ids"], &ids); err != nil || len(ids) != 1 || ids[0] != 5 {
		t.Errorf("expected ids [5], got %s", gotBody["ids"])
	}
}

func TestWriteFalseResult(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare false", `false`},
		{"wrapped false", `{"result": false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			err := client.Write(context.Background(), "real_estate.listing", []int64{5}, map[string]any{"price": 1.0})
			if err == nil {
				t.Fatal("expected error for false write result")
			}
		})
	}
}

func TestSearchResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []int64
	}{
		{"bare list", `[3, 9]`, []int64{3, 9}},
		{"wrapped list", `{"result": [3, 9]}`, []int64{3, 9}},
		{"empty", `[]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			ids, err := client.Search(context.Background(), "real_estate.listing", Domain{Eq("mls", "X1")}, 1)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, ids)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, ids)
				}
			}
		})
	}
}

func TestSearchSendsDomainAndLimit(t *testing.T) {
	var gotBody map[string]any

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Write([]byte(`[]`))
	})

	_, err := client.Search(context.Background(), "real_estate.listing", Domain{Eq("property_id", "P1")}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	domain, ok := gotBody["domain"].([]any)
	if !ok || len(domain) != 1 {
		t.Fatalf("expected one-condition domain, got %v", gotBody["domain"])
	}
	cond, _ := domain[0].([]any)
	if len(cond) != 3 || cond[0] != "property_id" || cond[1] != "=" || cond[2] != "P1" {
		t.Errorf("unexpected condition: %v", cond)
	}
	if gotBody["limit"] != float64(1) {
		t.Errorf("expected limit 1, got %v", gotBody["limit"])
	}
}

func TestSearchRead(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": [{"id": 11, "preview_href": "http://img/1.jpg"}, {"id": 12, "preview_href": false}]}`))
	})

	records, err := client.SearchRead(context.Background(), "real_estate.photo", Domain{Eq("property_id", 5)}, []string{"preview_href"})
	if err != nil {
		t.Fatalf("SearchRead failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID() != 11 {
		t.Errorf("expected id 11, got %d", records[0].ID())
	}
	if records[0].Str("preview_href") != "http://img/1.jpg" {
		t.Errorf("unexpected preview_href: %q", records[0].Str("preview_href"))
	}
	if records[1].Str("preview_href") != "" {
		t.Errorf("false field should read as empty, got %q", records[1].Str("preview_href"))
	}
}

func TestErrorStatus(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "access denied", http.StatusForbidden)
	})

	if _, err := client.Search(context.Background(), "real_estate.listing", nil, 0); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestNormalizeResult(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bare list", `[1, 2]`, `[1, 2]`},
		{"wrapped", `{"result": [1, 2]}`, `[1, 2]`},
		{"object without result", `{"count": 3}`, `{"count": 3}`},
		{"bare bool", `true`, `true`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeResult([]byte(tt.body))
			if err != nil {
				t.Fatalf("normalizeResult failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestReplaceAllLinks(t *testing.T) {
	data, err := json.Marshal(ReplaceAllLinks([]int64{4, 8}))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `[[6,0,[4,8]]]` {
		t.Errorf("unexpected command shape: %s", data)
	}
}
