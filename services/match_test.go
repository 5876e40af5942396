package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"estate_ingest/models"
)

func TestResolveCascadePrecedence(t *testing.T) {
	f := newFakeStore()
	byMLS := f.seed(models.EntityListing, map[string]any{"mls": "M1"})
	byPropertyID := f.seed(models.EntityListing, map[string]any{"property_id": "P1"})

	resolver := NewResolver(f)
	vals := map[string]any{"property_id": "P1", "mls": "M1"}

	id, err := resolver.Resolve(context.Background(), vals, 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != byPropertyID {
		t.Fatalf("property id must win over MLS: got %d, want %d (mls row is %d)", id, byPropertyID, byMLS)
	}
}

func TestResolveSkipsEmptyKeys(t *testing.T) {
	f := newFakeStore()
	byURL := f.seed(models.EntityListing, map[string]any{"url": "https://example.com/1"})

	resolver := NewResolver(f)
	vals := map[string]any{
		"property_id": "",
		"mls":         "",
		"url":         "https://example.com/1",
	}

	id, err := resolver.Resolve(context.Background(), vals, 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != byURL {
		t.Fatalf("expected URL match %d, got %d", byURL, id)
	}
}

func TestResolveAddressFallback(t *testing.T) {
	f := newFakeStore()
	byAddress := f.seed(models.EntityListing, map[string]any{"address": "123 Main St\nSpringfield, IL 62701"})

	resolver := NewResolver(f)
	vals := map[string]any{"address": "123 Main St\nSpringfield, IL 62701"}

	id, err := resolver.Resolve(context.Background(), vals, 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != byAddress {
		t.Fatalf("expected address match %d, got %d", byAddress, id)
	}
}

func TestResolveNoMatch(t *testing.T) {
	f := newFakeStore()
	resolver := NewResolver(f)

	id, err := resolver.Resolve(context.Background(), map[string]any{"mls": "M1"}, 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != 0 {
		t.Fatalf("expected no match, got %d", id)
	}
}

func TestResolveExplicitID(t *testing.T) {
	f := newFakeStore()
	f.fail(models.EntityListing, "search", errors.New("unreachable"))

	resolver := NewResolver(f)
	id, err := resolver.Resolve(context.Background(), map[string]any{"mls": "M1"}, 42)
	if err != nil {
		t.Fatalf("explicit id must bypass matching: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected 42, got %d", id)
	}
}

func TestResolveStoreErrorAborts(t *testing.T) {
	f := newFakeStore()
	f.fail(models.EntityListing, "search", errors.New("store down"))

	resolver := NewResolver(f)
	_, err := resolver.Resolve(context.Background(), map[string]any{"property_id": "P1"}, 0)
	if err == nil {
		t.Fatal("expected an error when the store is unreachable")
	}
	if !strings.Contains(err.Error(), "match by property id") {
		t.Fatalf("unexpected error: %v", err)
	}
}
