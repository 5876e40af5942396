package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"estate_ingest/models"
)

// A queue row stops being retried after this many failed attempts.
const maxArchiveAttempts = 3

// Journal is the local operational database: one row per consumed message
// plus the photo archive queue.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens and migrates the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		return nil, err
	}

	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		id INTEGER PRIMARY KEY,
		correlation_id TEXT,
		location TEXT,
		listing_type TEXT,
		record_id INTEGER DEFAULT 0,
		status TEXT,
		listings_processed INTEGER DEFAULT 0,
		listings_created INTEGER DEFAULT 0,
		listings_updated INTEGER DEFAULT 0,
		error TEXT DEFAULT '',
		started_at DATETIME,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS archive_queue (
		id INTEGER PRIMARY KEY,
		listing_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		status TEXT DEFAULT 'pending',
		attempts INTEGER DEFAULT 0,
		storage_key TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(listing_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON ingest_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON ingest_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_archive_pending ON archive_queue(status, attempts);
	`
	_, err := j.db.Exec(schema)
	return err
}

// StartRun inserts the run row and returns its id.
func (j *Journal) StartRun(ctx context.Context, run *models.IngestRun) (int64, error) {
	result, err := j.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (correlation_id, location, listing_type, record_id, status, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.CorrelationID, run.Location, run.ListingType, run.RecordID, run.Status, run.Error, time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FinishRun stamps the run's final status and counters.
func (j *Journal) FinishRun(ctx context.Context, run *models.IngestRun) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE ingest_runs SET status = ?, listings_processed = ?, listings_created = ?,
			listings_updated = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		run.Status, run.ListingsProcessed, run.ListingsCreated, run.ListingsUpdated,
		run.Error, time.Now(), run.ID)
	return err
}

// Run returns one journal row, or nil when it does not exist.
func (j *Journal) Run(ctx context.Context, id int64) (*models.IngestRun, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, correlation_id, location, listing_type, record_id, status,
			listings_processed, listings_created, listings_updated, error, started_at, finished_at
		FROM ingest_runs WHERE id = ?`, id)

	var run models.IngestRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.CorrelationID, &run.Location, &run.ListingType, &run.RecordID,
		&run.Status, &run.ListingsProcessed, &run.ListingsCreated, &run.ListingsUpdated,
		&run.Error, &run.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

// PruneRuns deletes runs started before the cutoff and returns how many
// rows went away.
func (j *Journal) PruneRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := j.db.ExecContext(ctx, `DELETE FROM ingest_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// EnqueuePhoto queues one photo URL for archival. Re-queueing the same
// (listing, url) pair is a no-op.
func (j *Journal) EnqueuePhoto(ctx context.Context, listingID int64, url string) error {
	if url == "" {
		return nil
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO archive_queue (listing_id, url) VALUES (?, ?)`,
		listingID, url)
	return err
}

// PendingPhotos returns up to limit queued photos, oldest first.
func (j *Journal) PendingPhotos(ctx context.Context, limit int) ([]models.ArchiveItem, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, listing_id, url, status, attempts, storage_key, created_at, updated_at
		FROM archive_queue WHERE status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.ArchiveItem
	for rows.Next() {
		var item models.ArchiveItem
		if err := rows.Scan(&item.ID, &item.ListingID, &item.URL, &item.Status, &item.Attempts,
			&item.StorageKey, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkPhotoUploaded marks a queue row done and records where it landed.
func (j *Journal) MarkPhotoUploaded(ctx context.Context, id int64, storageKey string) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE archive_queue SET status = 'uploaded', storage_key = ?, updated_at = ? WHERE id = ?`,
		storageKey, time.Now(), id)
	return err
}

// MarkPhotoFailed counts one failed attempt. The row keeps its place in the
// queue until it runs out of attempts.
func (j *Journal) MarkPhotoFailed(ctx context.Context, id int64) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE archive_queue SET attempts = attempts + 1,
			status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
			updated_at = ?
		WHERE id = ?`,
		maxArchiveAttempts, time.Now(), id)
	return err
}
