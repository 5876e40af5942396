// Package consumer turns scrape-request messages into provider fetches and
// store upserts, and decides the fate of each message.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"estate_ingest/metrics"
	"estate_ingest/models"
	"estate_ingest/provider"
	"estate_ingest/services"
)

// Processor upserts one raw record. *services.ListingService implements it.
type Processor interface {
	Process(ctx context.Context, raw *models.RawListingRecord, explicitID int64) (*services.ProcessResult, error)
}

// RunJournal records one journal row per consumed message. A nil journal
// disables journaling; journal failures never change how a message is acked.
type RunJournal interface {
	StartRun(ctx context.Context, run *models.IngestRun) (int64, error)
	FinishRun(ctx context.Context, run *models.IngestRun) error
}

// Consumer handles scrape-request messages. A nil return from HandleMessage
// acks the message; an error rejects it without requeue.
type Consumer struct {
	source    provider.Source
	processor Processor
	journal   RunJournal
	metrics   *metrics.Collector
}

// NewConsumer creates a new Consumer. journal may be nil; metrics must not be.
func NewConsumer(source provider.Source, processor Processor, journal RunJournal, collector *metrics.Collector) *Consumer {
	return &Consumer{
		source:    source,
		processor: processor,
		journal:   journal,
		metrics:   collector,
	}
}

// HandleMessage runs one message through decode, fetch and upsert.
//
// Malformed or unroutable messages are dropped with a nil return: requeueing
// them would loop forever. Pipeline failures return an error so the broker
// rejects without requeue and the message lands in whatever dead-letter
// setup the operator configured.
func (c *Consumer) HandleMessage(ctx context.Context, body []byte) error {
	cid := uuid.New().String()[:8]
	log.Printf("[%s] received message: %s", cid, body)

	// 1. Decode. Unknown keys ride along in Extra.
	var req models.ScrapeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Printf("[%s] dropping malformed message: %v", cid, err)
		c.journalDrop(ctx, cid, &req, fmt.Sprintf("malformed message: %v", err))
		c.metrics.Message(metrics.ResultDropped)
		return nil
	}

	// 2. A message with no location cannot be routed to the provider.
	if req.Location == "" {
		log.Printf("[%s] dropping message without location", cid)
		c.journalDrop(ctx, cid, &req, "missing location")
		c.metrics.Message(metrics.ResultDropped)
		return nil
	}

	// 3. Fill defaults.
	listingType := req.ListingType
	if listingType == "" {
		listingType = models.ListingTypeForSale
	}

	// 4. A direct update targets one store record, so one result is enough.
	limit := req.Limit
	if req.RecordID > 0 {
		limit = 1
	}
	log.Printf("[%s] scraping %q (%s)", cid, req.Location, listingType)

	run := &models.IngestRun{
		CorrelationID: cid,
		Location:      req.Location,
		ListingType:   listingType,
		RecordID:      req.RecordID,
		Status:        models.RunStatusRunning,
	}
	c.journalStart(ctx, run)

	// 5. Fetch from the harvest API.
	query := provider.Query{
		Location:    req.Location,
		ListingType: listingType,
		Limit:       limit,
		Extra:       req.Extra,
	}
	started := time.Now()
	records, err := c.source.Fetch(ctx, query)
	c.metrics.ObserveFetch(time.Since(started))
	if err != nil {
		log.Printf("[%s] fetch failed: %v", cid, err)
		c.journalFail(ctx, run, err)
		c.metrics.Message(metrics.ResultRejected)
		return fmt.Errorf("fetch listings: %w", err)
	}
	log.Printf("[%s] fetched %d records", cid, len(records))

	// 6. A direct update must touch exactly one record. More than one means
	// the provider ignored the limit; keep the first and say so.
	if req.RecordID > 0 && len(records) > 1 {
		log.Printf("[%s] direct update of record %d returned %d results, keeping the first", cid, req.RecordID, len(records))
		records = records[:1]
	}

	// 7. Upsert each record. A record failure rejects the whole message;
	// redelivery is idempotent thanks to natural-key matching.
	var stats services.ProcessStats
	for _, record := range records {
		result, err := c.processor.Process(ctx, record, req.RecordID)
		if err != nil {
			log.Printf("[%s] processing failed: %v", cid, err)
			c.journalFail(ctx, run, err)
			c.metrics.Message(metrics.ResultRejected)
			return fmt.Errorf("process record: %w", err)
		}
		stats.Aggregate(result)
		for _, collection := range result.FailedCollections {
			c.metrics.CollectionFailure(collection)
		}
	}

	// 8. Close out the run.
	run.Status = models.RunStatusCompleted
	run.ListingsProcessed = stats.Processed
	run.ListingsCreated = stats.Created
	run.ListingsUpdated = stats.Updated
	c.journalFinish(ctx, run)
	c.metrics.Message(metrics.ResultAcked)
	c.metrics.Listings(stats.Created, stats.Updated)

	log.Printf("[%s] processed %d listings (%d created, %d updated, %d collection errors)",
		cid, stats.Processed, stats.Created, stats.Updated, stats.Errors)
	return nil
}

func (c *Consumer) journalStart(ctx context.Context, run *models.IngestRun) {
	if c.journal == nil {
		return
	}
	id, err := c.journal.StartRun(ctx, run)
	if err != nil {
		log.Printf("Warning: journal start failed: %v", err)
		return
	}
	run.ID = id
}

func (c *Consumer) journalFinish(ctx context.Context, run *models.IngestRun) {
	if c.journal == nil || run.ID == 0 {
		return
	}
	if err := c.journal.FinishRun(ctx, run); err != nil {
		log.Printf("Warning: journal finish failed: %v", err)
	}
}

func (c *Consumer) journalDrop(ctx context.Context, cid string, req *models.ScrapeRequest, reason string) {
	run := &models.IngestRun{
		CorrelationID: cid,
		Location:      req.Location,
		ListingType:   req.ListingType,
		RecordID:      req.RecordID,
		Status:        models.RunStatusDropped,
		Error:         reason,
	}
	c.journalStart(ctx, run)
	c.journalFinish(ctx, run)
}

func (c *Consumer) journalFail(ctx context.Context, run *models.IngestRun, err error) {
	run.Status = models.RunStatusFailed
	run.Error = err.Error()
	c.journalFinish(ctx, run)
}
