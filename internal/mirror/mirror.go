// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mirror orchestrates the pipeline: download passes over the
// baseline and update directories, batch import into the corpus store, and
// the corruption scan/repair cycle. One logical worker runs a pass;
// transfers are deliberately serial because the archive serves a single
// data channel per connection.
package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/medline-mirror/internal/ftpx"
	"github.com/pdiddy/medline-mirror/internal/medline"
	"github.com/pdiddy/medline-mirror/internal/store"
	"github.com/pdiddy/medline-mirror/internal/tracker"
	"github.com/pdiddy/medline-mirror/pkg/checksum"
	"github.com/pdiddy/medline-mirror/pkg/types"
)

const (
	baselineSubdir = "baseline"
	updateSubdir   = "updatefiles"
)

// ArchiveClient is the slice of the FTP client the service depends on.
// Tests inject fakes.
type ArchiveClient interface {
	List(dir string, kind types.FileKind) ([]types.RemoteFileEntry, error)
	Fetch(ctx context.Context, dir, name string, expectedSize int64, localPath string) error
	Close()
}

// Service wires the archive client, the ledger, and the corpus store.
type Service struct {
	cfg     types.MirrorConfig
	archive ArchiveClient
	tracker *tracker.Tracker
	store   *store.Store
	log     *logrus.Entry
}

// New constructs a mirror service. All collaborators are injected; the
// service holds no global state.
func New(cfg types.MirrorConfig, archive ArchiveClient, tr *tracker.Tracker, st *store.Store, log *logrus.Logger) *Service {
	if cfg.Import.BatchSize <= 0 {
		cfg.Import.BatchSize = 500
	}
	return &Service{
		cfg:     cfg,
		archive: archive,
		tracker: tr,
		store:   st,
		log:     log.WithField("component", "mirror"),
	}
}

func (s *Service) remoteDir(kind types.FileKind) string {
	if kind == types.KindBaseline {
		return s.cfg.Archive.BaselineDir
	}
	return s.cfg.Archive.UpdateDir
}

func (s *Service) localDir(kind types.FileKind) string {
	if kind == types.KindBaseline {
		return filepath.Join(s.cfg.Storage.DataDir, baselineSubdir)
	}
	return filepath.Join(s.cfg.Storage.DataDir, updateSubdir)
}

func (s *Service) localPath(kind types.FileKind, name string) string {
	return filepath.Join(s.localDir(kind), name)
}

// DownloadSummary holds the outcome of one download pass.
type DownloadSummary struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// DownloadBaseline mirrors the remote baseline directory. With
// skipExisting, files already in the ledger are not transferred again.
func (s *Service) DownloadBaseline(ctx context.Context, skipExisting bool, w io.Writer) (DownloadSummary, error) {
	return s.downloadDir(ctx, types.KindBaseline, skipExisting, w)
}

// DownloadUpdates mirrors the remote update directory.
func (s *Service) DownloadUpdates(ctx context.Context, skipExisting bool, w io.Writer) (DownloadSummary, error) {
	return s.downloadDir(ctx, types.KindUpdate, skipExisting, w)
}

// downloadDir lists one remote directory and fetches its files serially.
// Per-file failures are counted and the pass continues; only listing
// failures and an unusable local directory abort the pass.
func (s *Service) downloadDir(ctx context.Context, kind types.FileKind, skipExisting bool, w io.Writer) (DownloadSummary, error) {
	var summary DownloadSummary

	dir := s.localDir(kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return summary, fmt.Errorf("creating local directory %s: %w", dir, err)
	}

	files, err := s.archive.List(s.remoteDir(kind), kind)
	if err != nil {
		return summary, fmt.Errorf("listing %s files: %w", kind, err)
	}

	for _, f := range files {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if skipExisting {
			done, err := s.tracker.IsDownloaded(f.Name)
			if err != nil {
				return summary, err
			}
			if done {
				summary.Skipped++
				continue
			}
		}

		localPath := s.localPath(kind, f.Name)
		if err := s.archive.Fetch(ctx, s.remoteDir(kind), f.Name, f.Size, localPath); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			s.log.WithField("file", f.Name).WithError(err).Error("download failed")
			fmt.Fprintf(w, "failed:  %s (%v)\n", f.Name, err)
			summary.Failed++
			continue
		}

		sum, err := checksum.FileChecksum(localPath)
		if err != nil {
			s.log.WithField("file", f.Name).WithError(err).Warn("checksum failed")
		}
		if err := s.tracker.MarkDownloaded(f.Name, kind, f.Size, sum); err != nil {
			return summary, err
		}
		summary.Downloaded++
		fmt.Fprintf(w, "downloaded: %s (%d bytes)\n", f.Name, f.Size)
	}

	fmt.Fprintf(w, "\n%s download: %d downloaded, %d skipped, %d failed\n",
		kind, summary.Downloaded, summary.Skipped, summary.Failed)
	return summary, nil
}

// ImportSummary holds the outcome of one batch import pass.
type ImportSummary struct {
	FilesProcessed int
	FilesFailed    int
	TotalRecords   int64
	TotalDeleted   int64
	TotalErrors    int64
}

// ImportAll parses every downloaded-but-unprocessed file into the corpus
// store. Baseline files import before update files so snapshot records land
// before their corrections. A structural parse failure marks the file
// status=error and the pass continues with the remaining files. An empty
// kind imports both file types.
func (s *Service) ImportAll(ctx context.Context, kind types.FileKind, w io.Writer) (ImportSummary, error) {
	var summary ImportSummary

	names, err := s.tracker.UnprocessedFiles(kind)
	if err != nil {
		return summary, err
	}

	for _, name := range names {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		rec, err := s.tracker.Get(name)
		if err != nil {
			return summary, err
		}
		if rec == nil {
			continue
		}

		res, parseErr := s.importFile(ctx, rec)
		if markErr := s.tracker.MarkProcessed(name, res.Parsed, parseErr); markErr != nil {
			return summary, markErr
		}
		if parseErr != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			s.log.WithField("file", name).WithError(parseErr).Error("import failed")
			fmt.Fprintf(w, "failed:  %s (%v)\n", name, parseErr)
			summary.FilesFailed++
			continue
		}

		summary.FilesProcessed++
		summary.TotalRecords += int64(res.Parsed)
		summary.TotalDeleted += int64(res.Deleted)
		summary.TotalErrors += int64(res.Errors)
		fmt.Fprintf(w, "imported: %s (%d records, %d deleted, %d skipped)\n",
			name, res.Parsed, res.Deleted, res.Errors)
	}

	fmt.Fprintf(w, "\nImport: %d files, %d records, %d deletions, %d record errors, %d file failures\n",
		summary.FilesProcessed, summary.TotalRecords, summary.TotalDeleted,
		summary.TotalErrors, summary.FilesFailed)
	return summary, nil
}

func (s *Service) importFile(ctx context.Context, rec *types.DownloadRecord) (medline.Result, error) {
	path := s.localPath(rec.FileType, rec.FileName)
	return medline.ParseFile(s.cfg.Import.SourceID, path, s.cfg.Import.BatchSize,
		func(docs []types.Document) (int, error) {
			return s.store.UpsertBatch(ctx, docs)
		},
		func(pmids []string) error {
			return s.store.DeleteBatch(ctx, pmids)
		})
}

// ScanForCorruption integrity-checks every local archive file of the given
// kind ("" scans both directories) and returns the paths that failed the
// decompression read-through. An intact mirror yields an empty result.
func (s *Service) ScanForCorruption(kind types.FileKind) ([]string, error) {
	var corrupt []string
	for _, k := range s.kinds(kind) {
		dir := s.localDir(k)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".xml.gz") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := ftpx.ReadThrough(path); err != nil {
				s.log.WithField("file", path).WithError(err).Warn("corrupt archive file")
				corrupt = append(corrupt, path)
			}
		}
	}
	return corrupt, nil
}

func (s *Service) kinds(kind types.FileKind) []types.FileKind {
	if kind == "" {
		return []types.FileKind{types.KindBaseline, types.KindUpdate}
	}
	return []types.FileKind{kind}
}

func (s *Service) kindOfPath(path string) types.FileKind {
	if filepath.Base(filepath.Dir(path)) == updateSubdir {
		return types.KindUpdate
	}
	return types.KindBaseline
}

// RepairSummary holds the outcome of one repair cycle.
type RepairSummary struct {
	Corrupt    int
	Repaired   int
	Failed     int
	Reimported int64
}

// Repair self-heals the mirror: corrupt files are deleted together with
// their ledger rows, the download pass refetches only the missing files,
// and every repaired file is re-verified. With reimport, repaired files are
// parsed into the corpus again. Safe to run repeatedly — an intact file is
// a no-op, and a file that fails to repair is left status=error for the
// operator rather than retried forever.
func (s *Service) Repair(ctx context.Context, kind types.FileKind, reimport bool, w io.Writer) (RepairSummary, error) {
	var summary RepairSummary

	corrupt, err := s.ScanForCorruption(kind)
	if err != nil {
		return summary, err
	}
	summary.Corrupt = len(corrupt)
	if len(corrupt) == 0 {
		fmt.Fprintln(w, "no corrupt files found")
		return summary, nil
	}

	repairKinds := make(map[types.FileKind]bool)
	for _, path := range corrupt {
		name := filepath.Base(path)
		fmt.Fprintf(w, "corrupt: %s\n", name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return summary, fmt.Errorf("removing %s: %w", path, err)
		}
		if err := s.tracker.Delete(name); err != nil {
			return summary, err
		}
		repairKinds[s.kindOfPath(path)] = true
	}

	// Refetch: skipExisting leaves intact files alone, so only the cleared
	// files transfer.
	for k := range repairKinds {
		if _, err := s.downloadDir(ctx, k, true, w); err != nil {
			return summary, err
		}
	}

	for _, path := range corrupt {
		name := filepath.Base(path)
		k := s.kindOfPath(path)
		done, err := s.tracker.IsDownloaded(name)
		if err != nil {
			return summary, err
		}
		if done && ftpx.ReadThrough(path) == nil {
			summary.Repaired++
			fmt.Fprintf(w, "repaired: %s\n", name)
			continue
		}
		summary.Failed++
		fmt.Fprintf(w, "unrepaired: %s\n", name)
		if err := s.tracker.MarkError(name, k); err != nil {
			return summary, err
		}
	}

	if reimport && summary.Repaired > 0 {
		imported, err := s.ImportAll(ctx, kind, w)
		if err != nil {
			return summary, err
		}
		summary.Reimported = imported.TotalRecords
	}

	fmt.Fprintf(w, "\nRepair: %d corrupt, %d repaired, %d failed\n",
		summary.Corrupt, summary.Repaired, summary.Failed)
	return summary, nil
}

// StatsReport pairs ledger statistics with the corpus row count.
type StatsReport struct {
	Ledger    tracker.Stats `json:"ledger" yaml:"ledger"`
	Documents int64         `json:"documents" yaml:"documents"`
}

// Stats summarizes ledger and corpus state.
func (s *Service) Stats(ctx context.Context) (StatsReport, error) {
	ledger, err := s.tracker.Stats()
	if err != nil {
		return StatsReport{}, err
	}
	docs, err := s.store.Count(ctx)
	if err != nil {
		return StatsReport{}, err
	}
	return StatsReport{Ledger: ledger, Documents: docs}, nil
}
