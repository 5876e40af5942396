// Package workers holds the background loops that run beside the consumer.
package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"estate_ingest/httputil"
	"estate_ingest/models"
)

// Listing photos are image files; anything past this size is cut off.
const maxPhotoBytes = 50 * 1024 * 1024

// Uploader stores photo bytes under a key.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// NoOpUploader drains and discards uploads. It stands in when archiving
// runs without object storage configured.
type NoOpUploader struct{}

func (NoOpUploader) Upload(_ context.Context, _ string, data io.Reader, _ string) error {
	_, err := io.Copy(io.Discard, data)
	return err
}

// ArchiveStore is the slice of the journal the worker drives.
type ArchiveStore interface {
	PendingPhotos(ctx context.Context, limit int) ([]models.ArchiveItem, error)
	MarkPhotoUploaded(ctx context.Context, id int64, storageKey string) error
	MarkPhotoFailed(ctx context.Context, id int64) error
}

// Archiver mirrors queued listing photos into object storage.
type Archiver struct {
	queue     ArchiveStore
	uploader  Uploader
	client    *http.Client
	limiter   *rate.Limiter
	batchSize int
	interval  time.Duration
}

// NewArchiver creates a new Archiver that polls queue every interval.
func NewArchiver(queue ArchiveStore, uploader Uploader, batchSize int, interval time.Duration) *Archiver {
	return &Archiver{
		queue:     queue,
		uploader:  uploader,
		client:    httputil.NewDownloadClient(60 * time.Second),
		limiter:   rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run polls the archive queue until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Archive worker stopping")
			return
		case <-ticker.C:
			a.processBatch(ctx)
		}
	}
}

func (a *Archiver) processBatch(ctx context.Context) {
	items, err := a.queue.PendingPhotos(ctx, a.batchSize)
	if err != nil {
		log.Printf("Warning: archive queue query failed: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}

	log.Printf("Archiving %d photos", len(items))

	var uploaded, failed int
	for i := range items {
		item := &items[i]

		if err := a.limiter.Wait(ctx); err != nil {
			return
		}

		key, err := a.archive(ctx, item)
		if err != nil {
			log.Printf("Warning: failed to archive %s: %v", item.URL, err)
			failed++
			if err := a.queue.MarkPhotoFailed(ctx, item.ID); err != nil {
				log.Printf("Warning: failed to update queue row %d: %v", item.ID, err)
			}
			continue
		}

		if err := a.queue.MarkPhotoUploaded(ctx, item.ID, key); err != nil {
			log.Printf("Warning: failed to update queue row %d: %v", item.ID, err)
			failed++
			continue
		}
		uploaded++
	}

	log.Printf("Archive batch done: %d uploaded, %d failed", uploaded, failed)
}

// archive downloads one photo and uploads it under a content-addressed key.
func (a *Archiver) archive(ctx context.Context, item *models.ArchiveItem) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	hash := sha256.Sum256(data)
	digest := hex.EncodeToString(hash[:])

	contentType := resp.Header.Get("Content-Type")
	key := fmt.Sprintf("photos/%s/%s%s", digest[:2], digest, guessExtension(item.URL, contentType))

	if contentType == "" {
		contentType = "image/jpeg"
	}
	if err := a.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	return key, nil
}

// guessExtension picks a file extension from the URL path, falling back to
// the response content type.
func guessExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
