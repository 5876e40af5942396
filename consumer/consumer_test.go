package consumer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"estate_ingest/metrics"
	"estate_ingest/models"
	"estate_ingest/provider"
	"estate_ingest/services"
)

type fakeSource struct {
	queries []provider.Query
	records []*models.RawListingRecord
	err     error
}

func (f *fakeSource) Fetch(_ context.Context, q provider.Query) ([]*models.RawListingRecord, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type processCall struct {
	record     *models.RawListingRecord
	explicitID int64
}

type fakeProcessor struct {
	calls []processCall
	err   error
}

func (f *fakeProcessor) Process(_ context.Context, raw *models.RawListingRecord, explicitID int64) (*services.ProcessResult, error) {
	f.calls = append(f.calls, processCall{record: raw, explicitID: explicitID})
	if f.err != nil {
		return nil, f.err
	}
	return &services.ProcessResult{ListingID: int64(len(f.calls)), Created: true}, nil
}

type fakeJournal struct {
	started   []models.IngestRun
	finished  []models.IngestRun
	startErr  error
	finishErr error
}

func (j *fakeJournal) StartRun(_ context.Context, run *models.IngestRun) (int64, error) {
	if j.startErr != nil {
		return 0, j.startErr
	}
	j.started = append(j.started, *run)
	return int64(len(j.started)), nil
}

func (j *fakeJournal) FinishRun(_ context.Context, run *models.IngestRun) error {
	if j.finishErr != nil {
		return j.finishErr
	}
	j.finished = append(j.finished, *run)
	return nil
}

func newTestConsumer(src *fakeSource, proc *fakeProcessor, journal *fakeJournal) *Consumer {
	collector := metrics.NewCollector(prometheus.NewRegistry())
	var j RunJournal
	if journal != nil {
		j = journal
	}
	return NewConsumer(src, proc, j, collector)
}

func TestHandleMessageMalformed(t *testing.T) {
	src := &fakeSource{}
	proc := &fakeProcessor{}
	journal := &fakeJournal{}
	c := newTestConsumer(src, proc, journal)

	err := c.HandleMessage(context.Background(), []byte(`{"location": "Chicago"`))
	if err != nil {
		t.Fatalf("malformed messages must ack, got error: %v", err)
	}
	if len(src.queries) != 0 {
		t.Fatal("malformed messages must not reach the provider")
	}
	if len(journal.finished) != 1 || journal.finished[0].Status != models.RunStatusDropped {
		t.Fatalf("expected one dropped run, got %+v", journal.finished)
	}
	if !strings.Contains(journal.finished[0].Error, "malformed") {
		t.Fatalf("unexpected journal error: %q", journal.finished[0].Error)
	}
}

func TestHandleMessageMissingLocation(t *testing.T) {
	src := &fakeSource{}
	proc := &fakeProcessor{}
	journal := &fakeJournal{}
	c := newTestConsumer(src, proc, journal)

	err := c.HandleMessage(context.Background(), []byte(`{"listing_type": "sold"}`))
	if err != nil {
		t.Fatalf("messages without location must ack, got error: %v", err)
	}
	if len(src.queries) != 0 {
		t.Fatal("unroutable messages must not reach the provider")
	}
	if len(journal.finished) != 1 || journal.finished[0].Error != "missing location" {
		t.Fatalf("expected a dropped run with reason, got %+v", journal.finished)
	}
}

func TestHandleMessageSuccess(t *testing.T) {
	src := &fakeSource{records: []*models.RawListingRecord{
		{PropertyID: "P1"},
		{PropertyID: "P2"},
	}}
	proc := &fakeProcessor{}
	journal := &fakeJournal{}
	c := newTestConsumer(src, proc, journal)

	body := []byte(`{"location": "Chicago, IL", "listing_type": "for_rent", "limit": 5}`)
	if err := c.HandleMessage(context.Background(), body); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if len(src.queries) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(src.queries))
	}
	q := src.queries[0]
	if q.Location != "Chicago, IL" || q.ListingType != "for_rent" || q.Limit != 5 {
		t.Fatalf("unexpected query: %+v", q)
	}

	if len(proc.calls) != 2 {
		t.Fatalf("expected 2 processed records, got %d", len(proc.calls))
	}
	if proc.calls[0].explicitID != 0 {
		t.Fatalf("expected no explicit id, got %d", proc.calls[0].explicitID)
	}

	if len(journal.finished) != 1 {
		t.Fatalf("expected 1 finished run, got %d", len(journal.finished))
	}
	run := journal.finished[0]
	if run.Status != models.RunStatusCompleted || run.ListingsProcessed != 2 || run.ListingsCreated != 2 {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestHandleMessageDefaultsListingType(t *testing.T) {
	src := &fakeSource{}
	c := newTestConsumer(src, &fakeProcessor{}, nil)

	if err := c.HandleMessage(context.Background(), []byte(`{"location": "Denver, CO"}`)); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if src.queries[0].ListingType != models.ListingTypeForSale {
		t.Fatalf("expected default for_sale, got %q", src.queries[0].ListingType)
	}
}

func TestHandleMessageDirectUpdate(t *testing.T) {
	src := &fakeSource{records: []*models.RawListingRecord{
		{PropertyID: "P1"},
		{PropertyID: "P2"},
	}}
	proc := &fakeProcessor{}
	c := newTestConsumer(src, proc, nil)

	body := []byte(`{"location": "Denver, CO", "record_id": 42}`)
	if err := c.HandleMessage(context.Background(), body); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if src.queries[0].Limit != 1 {
		t.Fatalf("direct update must force limit 1, got %d", src.queries[0].Limit)
	}
	if len(proc.calls) != 1 {
		t.Fatalf("direct update must keep only the first record, processed %d", len(proc.calls))
	}
	if proc.calls[0].explicitID != 42 {
		t.Fatalf("expected explicit id 42, got %d", proc.calls[0].explicitID)
	}
	if proc.calls[0].record.PropertyID != "P1" {
		t.Fatalf("expected the first record, got %q", proc.calls[0].record.PropertyID)
	}
}

func TestHandleMessageForwardsExtras(t *testing.T) {
	src := &fakeSource{}
	c := newTestConsumer(src, &fakeProcessor{}, nil)

	body := []byte(`{"location": "Denver, CO", "source_url": "https://r.example", "past_days": 30, "foo": "bar"}`)
	if err := c.HandleMessage(context.Background(), body); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	extra := src.queries[0].Extra
	if extra["past_days"] != 30.0 || extra["foo"] != "bar" {
		t.Fatalf("unexpected extras: %v", extra)
	}
	for _, k := range []string{"location", "listing_type", "record_id", "source_url", "limit"} {
		if _, ok := extra[k]; ok {
			t.Fatalf("consumed key %q must not be forwarded", k)
		}
	}
}

func TestHandleMessageFetchError(t *testing.T) {
	src := &fakeSource{err: errors.New("harvest down")}
	proc := &fakeProcessor{}
	journal := &fakeJournal{}
	c := newTestConsumer(src, proc, journal)

	err := c.HandleMessage(context.Background(), []byte(`{"location": "Denver, CO"}`))
	if err == nil {
		t.Fatal("fetch failures must reject the message")
	}
	if len(proc.calls) != 0 {
		t.Fatal("nothing should be processed after a fetch failure")
	}
	if len(journal.finished) != 1 || journal.finished[0].Status != models.RunStatusFailed {
		t.Fatalf("expected a failed run, got %+v", journal.finished)
	}
}

func TestHandleMessageProcessError(t *testing.T) {
	src := &fakeSource{records: []*models.RawListingRecord{{PropertyID: "P1"}}}
	proc := &fakeProcessor{err: errors.New("store down")}
	journal := &fakeJournal{}
	c := newTestConsumer(src, proc, journal)

	err := c.HandleMessage(context.Background(), []byte(`{"location": "Denver, CO"}`))
	if err == nil {
		t.Fatal("processing failures must reject the message")
	}
	if len(journal.finished) != 1 || journal.finished[0].Status != models.RunStatusFailed {
		t.Fatalf("expected a failed run, got %+v", journal.finished)
	}
}

func TestHandleMessageJournalFailuresNeverReject(t *testing.T) {
	src := &fakeSource{records: []*models.RawListingRecord{{PropertyID: "P1"}}}
	journal := &fakeJournal{startErr: errors.New("disk full")}
	c := newTestConsumer(src, &fakeProcessor{}, journal)

	if err := c.HandleMessage(context.Background(), []byte(`{"location": "Denver, CO"}`)); err != nil {
		t.Fatalf("journal failures must not change acking, got: %v", err)
	}
}
