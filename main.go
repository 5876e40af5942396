package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"estate_ingest/broker"
	"estate_ingest/config"
	"estate_ingest/consumer"
	"estate_ingest/logging"
	"estate_ingest/mapper"
	"estate_ingest/metrics"
	"estate_ingest/provider"
	"estate_ingest/scheduler"
	"estate_ingest/services"
	"estate_ingest/storage"
	"estate_ingest/store"
	"estate_ingest/workers"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}
	logging.SetLevel(cfg.LogLevel)

	log.Println("Starting estate_ingest...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	journal, err := storage.OpenJournal(cfg.Journal.Path)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer journal.Close()
	log.Printf("Journal database: %s", cfg.Journal.Path)

	storeClient := store.NewClient(cfg.Store)
	harvest := provider.NewClient(cfg.Harvest)
	log.Printf("Store: %s (db %s)", cfg.Store.URL, cfg.Store.Database)
	log.Printf("Harvest API: %s", cfg.Harvest.URL)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	adminServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.AdminRouter(registry)}
	go func() {
		log.Printf("Admin server listening on %s", cfg.Metrics.Addr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Warning: admin server: %v", err)
		}
	}()

	m := mapper.New(cfg.Mappings)
	resolver := services.NewResolver(storeClient)

	// The listing service only queues photos for archival when the worker
	// that drains the queue is running.
	var archive services.ArchiveQueue
	if cfg.Archive.Enabled {
		archive = journal
	}
	listing := services.NewListingService(storeClient, m, resolver, archive)
	cons := consumer.NewConsumer(harvest, listing, journal, collector)

	conn := broker.NewConnector(cfg.Rabbit)
	if err := conn.Connect(); err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer conn.Close()
	log.Printf("Connected to broker at %s:%d", cfg.Rabbit.Host, cfg.Rabbit.Port)

	sched := scheduler.New()
	retention := time.Duration(cfg.Journal.RetentionDays) * 24 * time.Hour
	if err := sched.Add("journal prune", "0 3 * * *", func() {
		pruned, err := journal.PruneRuns(ctx, retention)
		if err != nil {
			log.Printf("Warning: journal prune failed: %v", err)
			return
		}
		log.Printf("Pruned %d journal runs", pruned)
	}); err != nil {
		log.Fatalf("Failed to schedule maintenance: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Archive.Enabled {
		var uploader workers.Uploader
		if cfg.Archive.Bucket != "" {
			s3up, err := storage.NewS3Uploader(ctx, cfg.Archive)
			if err != nil {
				log.Fatalf("Failed to set up S3 uploader: %v", err)
			}
			uploader = s3up
		} else {
			log.Println("Warning: archiving enabled without an S3 bucket, uploads are discarded")
			uploader = workers.NoOpUploader{}
		}
		archiver := workers.NewArchiver(journal, uploader, cfg.Archive.BatchSize, cfg.Archive.PollInterval)
		go archiver.Run(ctx)
		log.Println("Archive worker started")
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	if err := conn.Consume(ctx, cons.HandleMessage); err != nil {
		log.Fatalf("Consume loop ended: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: admin server shutdown: %v", err)
	}

	log.Println("Goodbye!")
}
