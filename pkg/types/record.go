// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// FileKind distinguishes full-snapshot archive files from incremental updates.
type FileKind string

const (
	KindBaseline FileKind = "baseline"
	KindUpdate   FileKind = "update"
)

// FileStatus is the lifecycle state of a tracked archive file.
type FileStatus string

const (
	StatusDownloaded FileStatus = "downloaded"
	StatusProcessed  FileStatus = "processed"
	StatusError      FileStatus = "error"
)

// RemoteFileEntry describes one archive file as reported by a remote
// directory listing. Entries are produced fresh on every listing and
// never persisted.
type RemoteFileEntry struct {
	// Name is the filename as published by the archive (e.g. "pubmed25n0001.xml.gz").
	Name string

	// Size is the authoritative byte size from the listing.
	Size int64

	// Kind marks the entry as a baseline or update file.
	Kind FileKind
}

// DownloadRecord is one row of the download/import ledger, keyed by filename.
type DownloadRecord struct {
	// FileName is the archive filename, unique within the ledger.
	FileName string `json:"file_name" yaml:"file_name"`

	// FileType is baseline or update.
	FileType FileKind `json:"file_type" yaml:"file_type"`

	// DownloadedAt is when the file last passed download verification.
	DownloadedAt time.Time `json:"downloaded_at" yaml:"downloaded_at"`

	// Processed reports whether the file's records have been imported.
	Processed bool `json:"processed" yaml:"processed"`

	// ProcessedAt is when the import completed. Zero if never imported.
	ProcessedAt time.Time `json:"processed_at,omitempty" yaml:"processed_at,omitempty"`

	// SizeBytes is the verified on-disk size.
	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`

	// Checksum is the xxhash64 digest of the file contents, hex encoded.
	Checksum string `json:"checksum" yaml:"checksum"`

	// Status is downloaded, processed, or error.
	Status FileStatus `json:"status" yaml:"status"`
}

// Document is one normalized bibliographic record ready for the corpus store.
// Many Documents originate from a single archive file; ExternalID is unique
// within the corpus partition identified by SourceID.
type Document struct {
	// SourceID names the corpus partition (e.g. "pubmed").
	SourceID string `json:"source_id" yaml:"source_id"`

	// ExternalID is the stable source-assigned identifier (the PMID).
	ExternalID string `json:"external_id" yaml:"external_id"`

	// DOI is the digital object identifier, if the source carries one.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Title is the article title with inline markup rendered to Markdown.
	Title string `json:"title" yaml:"title"`

	// Abstract is the Markdown-formatted abstract. Structured abstracts keep
	// their section labels as bold prefixes. May be empty.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Authors lists author display names in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Journal is the publication name.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// PublicationDate is YYYY-MM-DD; month and day default to 01 when the
	// source omits them. Empty when the source has no usable year.
	PublicationDate string `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`

	// URL is the canonical public page for the record.
	URL string `json:"url" yaml:"url"`

	// MeshTerms holds the subject descriptor terms.
	MeshTerms []string `json:"mesh_terms,omitempty" yaml:"mesh_terms,omitempty"`

	// Keywords holds author-supplied keywords.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}
