// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tracker

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/medline-mirror/pkg/types"
)

func openTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestMarkDownloadedAndQuery(t *testing.T) {
	tr := openTestTracker(t)

	done, err := tr.IsDownloaded("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, tr.MarkDownloaded("pubmed25n0001.xml.gz", types.KindBaseline, 1024, "abc123"))

	done, err = tr.IsDownloaded("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.True(t, done)

	processed, err := tr.IsProcessed("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.False(t, processed)

	rec, err := tr.Get("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.KindBaseline, rec.FileType)
	assert.Equal(t, int64(1024), rec.SizeBytes)
	assert.Equal(t, "abc123", rec.Checksum)
	assert.Equal(t, types.StatusDownloaded, rec.Status)
	assert.False(t, rec.DownloadedAt.IsZero())
}

func TestMarkDownloadedIsUpsert(t *testing.T) {
	tr := openTestTracker(t)

	require.NoError(t, tr.MarkDownloaded("pubmed25n0001.xml.gz", types.KindBaseline, 1024, "old"))
	require.NoError(t, tr.MarkDownloaded("pubmed25n0001.xml.gz", types.KindBaseline, 2048, "new"))

	rec, err := tr.Get("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(2048), rec.SizeBytes)
	assert.Equal(t, "new", rec.Checksum)

	stats, err := tr.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
}

func TestMarkDownloadedResetsImportState(t *testing.T) {
	tr := openTestTracker(t)

	require.NoError(t, tr.MarkDownloaded("pubmed25n0001.xml.gz", types.KindBaseline, 1024, "old"))
	require.NoError(t, tr.MarkProcessed("pubmed25n0001.xml.gz", 30000, nil))

	// A forced re-download replaces the file contents, so the import state
	// must not survive it.
	require.NoError(t, tr.MarkDownloaded("pubmed25n0001.xml.gz", types.KindBaseline, 2048, "new"))

	processed, err := tr.IsProcessed("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.False(t, processed, "re-downloaded file must be re-imported")

	rec, err := tr.Get("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDownloaded, rec.Status)
	assert.True(t, rec.ProcessedAt.IsZero())

	names, err := tr.UnprocessedFiles(types.KindBaseline)
	require.NoError(t, err)
	assert.Equal(t, []string{"pubmed25n0001.xml.gz"}, names)
}

func TestMarkProcessed(t *testing.T) {
	tr := openTestTracker(t)
	require.NoError(t, tr.MarkDownloaded("pubmed25n0001.xml.gz", types.KindBaseline, 1024, "abc"))

	require.NoError(t, tr.MarkProcessed("pubmed25n0001.xml.gz", 30000, nil))

	processed, err := tr.IsProcessed("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.True(t, processed)

	rec, err := tr.Get("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.Equal(t, types.StatusProcessed, rec.Status)
	assert.False(t, rec.ProcessedAt.IsZero())
}

func TestMarkProcessedWithError(t *testing.T) {
	tr := openTestTracker(t)
	require.NoError(t, tr.MarkDownloaded("pubmed25n0002.xml.gz", types.KindUpdate, 512, "def"))

	require.NoError(t, tr.MarkProcessed("pubmed25n0002.xml.gz", 0, errors.New("xml framing broken")))

	processed, err := tr.IsProcessed("pubmed25n0002.xml.gz")
	require.NoError(t, err)
	assert.False(t, processed, "errored file must stay unprocessed")

	rec, err := tr.Get("pubmed25n0002.xml.gz")
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, rec.Status)
}

func TestMarkProcessedUntracked(t *testing.T) {
	tr := openTestTracker(t)
	assert.Error(t, tr.MarkProcessed("ghost.xml.gz", 0, nil))
}

func TestUnprocessedFilesOrdering(t *testing.T) {
	tr := openTestTracker(t)

	require.NoError(t, tr.MarkDownloaded("pubmed25n1400.xml.gz", types.KindUpdate, 1, ""))
	require.NoError(t, tr.MarkDownloaded("pubmed25n0002.xml.gz", types.KindBaseline, 1, ""))
	require.NoError(t, tr.MarkDownloaded("pubmed25n0001.xml.gz", types.KindBaseline, 1, ""))
	require.NoError(t, tr.MarkDownloaded("pubmed25n1399.xml.gz", types.KindUpdate, 1, ""))
	require.NoError(t, tr.MarkProcessed("pubmed25n0002.xml.gz", 10, nil))

	names, err := tr.UnprocessedFiles("")
	require.NoError(t, err)
	// Baseline before updates, each ascending.
	assert.Equal(t, []string{
		"pubmed25n0001.xml.gz",
		"pubmed25n1399.xml.gz",
		"pubmed25n1400.xml.gz",
	}, names)

	updates, err := tr.UnprocessedFiles(types.KindUpdate)
	require.NoError(t, err)
	assert.Equal(t, []string{"pubmed25n1399.xml.gz", "pubmed25n1400.xml.gz"}, updates)
}

func TestResetProcessed(t *testing.T) {
	tr := openTestTracker(t)
	require.NoError(t, tr.MarkDownloaded("pubmed25n0001.xml.gz", types.KindBaseline, 1, ""))
	require.NoError(t, tr.MarkProcessed("pubmed25n0001.xml.gz", 5, nil))

	require.NoError(t, tr.ResetProcessed("pubmed25n0001.xml.gz"))

	processed, err := tr.IsProcessed("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.False(t, processed)

	rec, err := tr.Get("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDownloaded, rec.Status)
	assert.True(t, rec.ProcessedAt.IsZero())
}

func TestDelete(t *testing.T) {
	tr := openTestTracker(t)
	require.NoError(t, tr.MarkDownloaded("pubmed25n0001.xml.gz", types.KindBaseline, 1, ""))

	require.NoError(t, tr.Delete("pubmed25n0001.xml.gz"))

	done, err := tr.IsDownloaded("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.False(t, done)

	rec, err := tr.Get("pubmed25n0001.xml.gz")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMarkError(t *testing.T) {
	tr := openTestTracker(t)

	require.NoError(t, tr.MarkError("pubmed25n0009.xml.gz", types.KindUpdate))

	rec, err := tr.Get("pubmed25n0009.xml.gz")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.StatusError, rec.Status)
	assert.False(t, rec.Processed)
}

func TestStats(t *testing.T) {
	tr := openTestTracker(t)

	require.NoError(t, tr.MarkDownloaded("pubmed25n0001.xml.gz", types.KindBaseline, 1000, ""))
	require.NoError(t, tr.MarkDownloaded("pubmed25n0002.xml.gz", types.KindBaseline, 2000, ""))
	require.NoError(t, tr.MarkDownloaded("pubmed25n1400.xml.gz", types.KindUpdate, 500, ""))
	require.NoError(t, tr.MarkProcessed("pubmed25n0001.xml.gz", 30000, nil))
	require.NoError(t, tr.MarkProcessed("pubmed25n1400.xml.gz", 0, errors.New("boom")))

	stats, err := tr.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 1, stats.ProcessedFiles)
	assert.Equal(t, 1, stats.ErrorFiles)
	assert.Equal(t, 2, stats.BaselineFiles)
	assert.Equal(t, 1, stats.UpdateFiles)
	assert.Equal(t, int64(30000), stats.TotalRecords)
	assert.Equal(t, int64(3500), stats.TotalSizeBytes)
}
