// Package metrics collects Prometheus metrics for the ingest daemon and
// serves the admin endpoints.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message outcome labels.
const (
	ResultAcked    = "acked"
	ResultDropped  = "dropped"
	ResultRejected = "rejected"
)

// Collector records pipeline counters on a Prometheus registry.
type Collector struct {
	messages           *prometheus.CounterVec
	listingsCreated    prometheus.Counter
	listingsUpdated    prometheus.Counter
	collectionFailures *prometheus.CounterVec
	fetchSeconds       prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_ingest_messages_total",
			Help: "Consumed messages by outcome.",
		}, []string{"result"}),
		listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "estate_ingest_listings_created_total",
			Help: "Listings created in the store.",
		}),
		listingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "estate_ingest_listings_updated_total",
			Help: "Listings updated in the store.",
		}),
		collectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_ingest_subcollection_failures_total",
			Help: "Sub-collection upserts that failed, by collection.",
		}, []string{"collection"}),
		fetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "estate_ingest_provider_fetch_seconds",
			Help:    "Duration of harvest API fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.messages,
		c.listingsCreated,
		c.listingsUpdated,
		c.collectionFailures,
		c.fetchSeconds,
	)

	return c
}

// Message records one consumed message with its outcome.
func (c *Collector) Message(result string) {
	c.messages.WithLabelValues(result).Inc()
}

// Listings records how many listings a run created and updated.
func (c *Collector) Listings(created, updated int) {
	c.listingsCreated.Add(float64(created))
	c.listingsUpdated.Add(float64(updated))
}

// CollectionFailure records one failed sub-collection upsert.
func (c *Collector) CollectionFailure(collection string) {
	c.collectionFailures.WithLabelValues(collection).Inc()
}

// ObserveFetch records the duration of one harvest API fetch.
func (c *Collector) ObserveFetch(d time.Duration) {
	c.fetchSeconds.Observe(d.Seconds())
}
