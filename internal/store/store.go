// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists normalized documents in the corpus table. Updates
// coalesce: update files often carry partial corrections, so an incoming
// empty field never erases a previously stored value.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/medline-mirror/pkg/types"
)

// Store manages the documents table for one corpus partition.
type Store struct {
	db       *sql.DB
	sourceID string
}

// Open opens or creates the corpus database at path and bootstraps the
// schema. Documents written through this store belong to sourceID.
func Open(path, sourceID string) (*Store, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("source id must not be empty")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening corpus database: %w", err)
	}
	s := &Store{db: db, sourceID: sourceID}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating corpus schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			source_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			doi TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL DEFAULT '[]',
			journal TEXT NOT NULL DEFAULT '',
			publication_date TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			mesh_terms TEXT NOT NULL DEFAULT '[]',
			keywords TEXT NOT NULL DEFAULT '[]',
			updated_at TEXT NOT NULL,
			PRIMARY KEY (source_id, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_doi ON documents(doi)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// upsertSQL replaces each field with the incoming value unless the incoming
// value is empty, in which case the stored value survives. Arrays are
// replaced wholesale when present, never merged element-wise.
const upsertSQL = `
INSERT INTO documents (source_id, external_id, doi, title, abstract, authors,
	journal, publication_date, url, mesh_terms, keywords, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source_id, external_id) DO UPDATE SET
	doi = CASE WHEN excluded.doi != '' THEN excluded.doi ELSE documents.doi END,
	title = CASE WHEN excluded.title != '' THEN excluded.title ELSE documents.title END,
	abstract = CASE WHEN excluded.abstract != '' THEN excluded.abstract ELSE documents.abstract END,
	authors = CASE WHEN excluded.authors != '[]' THEN excluded.authors ELSE documents.authors END,
	journal = CASE WHEN excluded.journal != '' THEN excluded.journal ELSE documents.journal END,
	publication_date = CASE WHEN excluded.publication_date != '' THEN excluded.publication_date ELSE documents.publication_date END,
	url = CASE WHEN excluded.url != '' THEN excluded.url ELSE documents.url END,
	mesh_terms = CASE WHEN excluded.mesh_terms != '[]' THEN excluded.mesh_terms ELSE documents.mesh_terms END,
	keywords = CASE WHEN excluded.keywords != '[]' THEN excluded.keywords ELSE documents.keywords END,
	updated_at = excluded.updated_at`

// UpsertBatch writes one batch of documents in a single transaction and
// returns how many were upserted. A database error rolls the whole batch
// back so the file stays eligible for retry.
func (s *Store) UpsertBatch(ctx context.Context, docs []types.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, doc := range docs {
		if doc.ExternalID == "" {
			return 0, fmt.Errorf("document without external id")
		}
		_, err := stmt.ExecContext(ctx,
			s.sourceID, doc.ExternalID, doc.DOI, doc.Title, doc.Abstract,
			marshalList(doc.Authors), doc.Journal, doc.PublicationDate,
			doc.URL, marshalList(doc.MeshTerms), marshalList(doc.Keywords), now,
		)
		if err != nil {
			return 0, fmt.Errorf("upserting document %s: %w", doc.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch: %w", err)
	}
	return len(docs), nil
}

// DeleteBatch removes retracted documents by external id.
func (s *Store) DeleteBatch(ctx context.Context, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`DELETE FROM documents WHERE source_id = ? AND external_id = ?`)
	if err != nil {
		return fmt.Errorf("preparing delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range externalIDs {
		if _, err := stmt.ExecContext(ctx, s.sourceID, id); err != nil {
			return fmt.Errorf("deleting document %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Get returns the stored document for externalID, or nil when absent.
func (s *Store) Get(ctx context.Context, externalID string) (*types.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT external_id, doi, title, abstract, authors, journal,
			publication_date, url, mesh_terms, keywords
		 FROM documents WHERE source_id = ? AND external_id = ?`,
		s.sourceID, externalID)

	var doc types.Document
	var authors, meshTerms, keywords string
	err := row.Scan(&doc.ExternalID, &doc.DOI, &doc.Title, &doc.Abstract,
		&authors, &doc.Journal, &doc.PublicationDate, &doc.URL,
		&meshTerms, &keywords)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", externalID, err)
	}
	doc.SourceID = s.sourceID
	doc.Authors = unmarshalList(authors)
	doc.MeshTerms = unmarshalList(meshTerms)
	doc.Keywords = unmarshalList(keywords)
	return &doc, nil
}

// Count returns the number of documents in this partition.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE source_id = ?`, s.sourceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// marshalList renders a string slice as a JSON array column value. A nil
// slice becomes "[]" so the coalescing upsert can recognize absence.
func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func unmarshalList(raw string) []string {
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil || len(items) == 0 {
		return nil
	}
	return items
}
