// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/medline-mirror/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "corpus.db"), "pubmed")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresSourceID(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "corpus.db"), "")
	assert.Error(t, err)
}

func TestUpsertBatchInsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.UpsertBatch(ctx, []types.Document{{
		ExternalID:      "100",
		DOI:             "10.1/x",
		Title:           "First",
		Abstract:        "Text.",
		Authors:         []string{"Ada Lovelace"},
		Journal:         "J Test",
		PublicationDate: "2020-01-01",
		URL:             "https://pubmed.ncbi.nlm.nih.gov/100/",
		MeshTerms:       []string{"Computing"},
		Keywords:        []string{"history"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, err := s.Get(ctx, "100")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "First", doc.Title)
	assert.Equal(t, "10.1/x", doc.DOI)
	assert.Equal(t, []string{"Ada Lovelace"}, doc.Authors)
	assert.Equal(t, []string{"Computing"}, doc.MeshTerms)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertCoalescing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertBatch(ctx, []types.Document{{
		ExternalID: "100",
		Title:      "A",
	}})
	require.NoError(t, err)

	// An update carrying the missing DOI fills it in.
	_, err = s.UpsertBatch(ctx, []types.Document{{
		ExternalID: "100",
		Title:      "A",
		DOI:        "10.1/x",
	}})
	require.NoError(t, err)

	doc, err := s.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "A", doc.Title)
	assert.Equal(t, "10.1/x", doc.DOI)

	// A later empty update must not erase anything.
	_, err = s.UpsertBatch(ctx, []types.Document{{
		ExternalID: "100",
	}})
	require.NoError(t, err)

	doc, err = s.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "A", doc.Title)
	assert.Equal(t, "10.1/x", doc.DOI)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "upserts must not duplicate rows")
}

func TestUpsertArraysReplacedWholesale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertBatch(ctx, []types.Document{{
		ExternalID: "200",
		Authors:    []string{"Old One", "Old Two"},
		Keywords:   []string{"stale"},
	}})
	require.NoError(t, err)

	// Non-empty incoming arrays replace, not merge.
	_, err = s.UpsertBatch(ctx, []types.Document{{
		ExternalID: "200",
		Authors:    []string{"New Author"},
	}})
	require.NoError(t, err)

	doc, err := s.Get(ctx, "200")
	require.NoError(t, err)
	assert.Equal(t, []string{"New Author"}, doc.Authors)
	// Absent incoming array keeps the stored one.
	assert.Equal(t, []string{"stale"}, doc.Keywords)
}

func TestUpsertCommutesWithInsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// An update arriving before its baseline row must still insert.
	_, err := s.UpsertBatch(ctx, []types.Document{{
		ExternalID: "300",
		DOI:        "10.1/y",
	}})
	require.NoError(t, err)

	_, err = s.UpsertBatch(ctx, []types.Document{{
		ExternalID: "300",
		Title:      "Baseline title",
	}})
	require.NoError(t, err)

	doc, err := s.Get(ctx, "300")
	require.NoError(t, err)
	assert.Equal(t, "Baseline title", doc.Title)
	assert.Equal(t, "10.1/y", doc.DOI)
}

func TestDeleteBatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertBatch(ctx, []types.Document{
		{ExternalID: "100", Title: "Keep"},
		{ExternalID: "200", Title: "Retract"},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteBatch(ctx, []string{"200", "999"}))

	doc, err := s.Get(ctx, "200")
	require.NoError(t, err)
	assert.Nil(t, doc)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertRejectsMissingID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.UpsertBatch(context.Background(), []types.Document{{Title: "No id"}})
	assert.Error(t, err)
}

func TestGetAbsent(t *testing.T) {
	s := openTestStore(t)
	doc, err := s.Get(context.Background(), "404")
	require.NoError(t, err)
	assert.Nil(t, doc)
}
