// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ArchiveConfig holds settings for the remote FTP archive.
type ArchiveConfig struct {
	// Host is the archive hostname (e.g. "ftp.ncbi.nlm.nih.gov").
	Host string `json:"host" yaml:"host"`

	// Port is the FTP control port (default 21).
	Port int `json:"port" yaml:"port"`

	// User is the login name (default "anonymous").
	User string `json:"user" yaml:"user"`

	// Password is the login password. For anonymous access the archive asks
	// for a contact email address here.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// BaselineDir is the remote directory holding full-snapshot files
	// (e.g. "/pubmed/baseline").
	BaselineDir string `json:"baseline_dir" yaml:"baseline_dir"`

	// UpdateDir is the remote directory holding daily update files
	// (e.g. "/pubmed/updatefiles").
	UpdateDir string `json:"update_dir" yaml:"update_dir"`

	// Timeout is the dial and control-command timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries bounds download attempts per file (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// StorageConfig holds local mirror storage settings.
type StorageConfig struct {
	// DataDir is the base directory; baseline/ and updatefiles/
	// subdirectories mirror the remote split.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// ImportConfig holds settings for the batch import stage.
type ImportConfig struct {
	// DatabasePath is the SQLite database file holding the ledger and corpus.
	DatabasePath string `json:"database_path" yaml:"database_path"`

	// SourceID names the corpus partition records are imported into.
	SourceID string `json:"source_id" yaml:"source_id"`

	// BatchSize is the number of records per upsert transaction (default 500).
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// MirrorConfig groups all stage configurations for the mirror pipeline.
type MirrorConfig struct {
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Import  ImportConfig  `json:"import" yaml:"import"`
}
