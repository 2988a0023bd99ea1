// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tracker persists the download/import ledger: one row per archive
// file recording what has been fetched, verified, and imported. The ledger
// is the sole source of truth for what still needs work, which makes
// download and import reruns idempotent.
package tracker

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/medline-mirror/pkg/types"
)

// Tracker manages the download_history table.
type Tracker struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path and bootstraps the
// schema. Callers own the lifecycle: open on pipeline start, Close on end.
func Open(path string) (*Tracker, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}
	t := &Tracker{db: db}
	if err := t.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return t, nil
}

// Close releases the database connection.
func (t *Tracker) Close() error {
	return t.db.Close()
}

func (t *Tracker) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS download_history (
			file_name TEXT PRIMARY KEY,
			file_type TEXT NOT NULL,
			download_date TEXT NOT NULL,
			processed INTEGER NOT NULL DEFAULT 0,
			process_date TEXT,
			file_size INTEGER NOT NULL,
			checksum TEXT,
			record_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_download_history_processed ON download_history(processed)`,
		`CREATE INDEX IF NOT EXISTS idx_download_history_type ON download_history(file_type)`,
	}
	for _, stmt := range statements {
		if _, err := t.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IsDownloaded reports whether name has a ledger row. Rows exist only for
// files that passed both size and decompression verification.
func (t *Tracker) IsDownloaded(name string) (bool, error) {
	var n int
	err := t.db.QueryRow(`SELECT count(*) FROM download_history WHERE file_name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying ledger for %s: %w", name, err)
	}
	return n > 0, nil
}

// IsProcessed reports whether name has been fully imported.
func (t *Tracker) IsProcessed(name string) (bool, error) {
	var processed bool
	err := t.db.QueryRow(`SELECT processed FROM download_history WHERE file_name = ?`, name).Scan(&processed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ledger for %s: %w", name, err)
	}
	return processed, nil
}

// MarkDownloaded upserts the ledger row for a verified download. Re-running
// a download refreshes size, checksum, and timestamp without duplicating
// rows, and clears any previous import state: the file on disk is new
// content, so the next import pass must pick it up again.
func (t *Tracker) MarkDownloaded(name string, kind types.FileKind, size int64, checksum string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := t.db.Exec(
		`INSERT INTO download_history (file_name, file_type, download_date, processed, file_size, checksum, status)
		 VALUES (?, ?, ?, 0, ?, ?, ?)
		 ON CONFLICT(file_name) DO UPDATE SET
			file_type=excluded.file_type, download_date=excluded.download_date,
			file_size=excluded.file_size, checksum=excluded.checksum,
			processed=0, process_date=NULL, record_count=0,
			status=excluded.status`,
		name, string(kind), now, size, checksum, string(types.StatusDownloaded),
	)
	if err != nil {
		return fmt.Errorf("marking %s downloaded: %w", name, err)
	}
	return nil
}

// MarkProcessed records the import outcome for name. A nil procErr marks
// the file processed; otherwise the row is flagged status=error and stays
// unprocessed so the next run retries it.
func (t *Tracker) MarkProcessed(name string, recordCount int, procErr error) error {
	now := time.Now().UTC().Format(time.RFC3339)
	status := types.StatusProcessed
	processed := 1
	if procErr != nil {
		status = types.StatusError
		processed = 0
	}
	res, err := t.db.Exec(
		`UPDATE download_history
		 SET processed = ?, process_date = ?, record_count = ?, status = ?
		 WHERE file_name = ?`,
		processed, now, recordCount, string(status), name,
	)
	if err != nil {
		return fmt.Errorf("marking %s processed: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("marking %s processed: file not in ledger", name)
	}
	return nil
}

// MarkError flags name as needing operator attention, creating the row if
// the file is untracked. Used when a corrupt file could not be repaired.
func (t *Tracker) MarkError(name string, kind types.FileKind) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := t.db.Exec(
		`INSERT INTO download_history (file_name, file_type, download_date, processed, file_size, status)
		 VALUES (?, ?, ?, 0, 0, 'error')
		 ON CONFLICT(file_name) DO UPDATE SET processed = 0, status = 'error'`,
		name, string(kind), now,
	)
	if err != nil {
		return fmt.Errorf("marking %s as error: %w", name, err)
	}
	return nil
}

// ResetProcessed clears the import state of name so the next import pass
// picks it up again. The download metadata is kept.
func (t *Tracker) ResetProcessed(name string) error {
	_, err := t.db.Exec(
		`UPDATE download_history
		 SET processed = 0, process_date = NULL, record_count = 0, status = ?
		 WHERE file_name = ?`,
		string(types.StatusDownloaded), name,
	)
	if err != nil {
		return fmt.Errorf("resetting %s: %w", name, err)
	}
	return nil
}

// Delete removes the ledger row for name entirely, forcing a redownload.
func (t *Tracker) Delete(name string) error {
	if _, err := t.db.Exec(`DELETE FROM download_history WHERE file_name = ?`, name); err != nil {
		return fmt.Errorf("deleting ledger row for %s: %w", name, err)
	}
	return nil
}

// Get returns the ledger row for name, or nil when the file is untracked.
func (t *Tracker) Get(name string) (*types.DownloadRecord, error) {
	row := t.db.QueryRow(
		`SELECT file_name, file_type, download_date, processed, process_date, file_size, checksum, status
		 FROM download_history WHERE file_name = ?`, name)

	var (
		rec         types.DownloadRecord
		fileType    string
		downloaded  string
		processDate sql.NullString
		checksum    sql.NullString
		status      string
	)
	err := row.Scan(&rec.FileName, &fileType, &downloaded, &rec.Processed, &processDate, &rec.SizeBytes, &checksum, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger row for %s: %w", name, err)
	}
	rec.FileType = types.FileKind(fileType)
	rec.Status = types.FileStatus(status)
	rec.Checksum = checksum.String
	if ts, err := time.Parse(time.RFC3339, downloaded); err == nil {
		rec.DownloadedAt = ts
	}
	if processDate.Valid {
		if ts, err := time.Parse(time.RFC3339, processDate.String); err == nil {
			rec.ProcessedAt = ts
		}
	}
	return &rec, nil
}

// UnprocessedFiles returns the names of downloaded-but-unimported files,
// baseline files first so snapshot records land before their corrections.
// An empty kind returns both file types.
func (t *Tracker) UnprocessedFiles(kind types.FileKind) ([]string, error) {
	query := `SELECT file_name FROM download_history WHERE processed = 0`
	args := []any{}
	if kind != "" {
		query += ` AND file_type = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY CASE file_type WHEN 'baseline' THEN 0 ELSE 1 END, file_name`

	rows, err := t.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying unprocessed files: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning unprocessed file: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Stats summarizes the ledger.
type Stats struct {
	TotalFiles     int   `json:"total_files" yaml:"total_files"`
	ProcessedFiles int   `json:"processed_files" yaml:"processed_files"`
	ErrorFiles     int   `json:"error_files" yaml:"error_files"`
	BaselineFiles  int   `json:"baseline_files" yaml:"baseline_files"`
	UpdateFiles    int   `json:"update_files" yaml:"update_files"`
	TotalRecords   int64 `json:"total_records" yaml:"total_records"`
	TotalSizeBytes int64 `json:"total_size_bytes" yaml:"total_size_bytes"`
}

// Stats returns ledger-wide counters.
func (t *Tracker) Stats() (Stats, error) {
	var s Stats
	err := t.db.QueryRow(
		`SELECT count(*),
			coalesce(sum(processed), 0),
			coalesce(sum(status = 'error'), 0),
			coalesce(sum(file_type = 'baseline'), 0),
			coalesce(sum(file_type = 'update'), 0),
			coalesce(sum(record_count), 0),
			coalesce(sum(file_size), 0)
		 FROM download_history`,
	).Scan(&s.TotalFiles, &s.ProcessedFiles, &s.ErrorFiles, &s.BaselineFiles, &s.UpdateFiles, &s.TotalRecords, &s.TotalSizeBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("computing ledger stats: %w", err)
	}
	return s, nil
}
