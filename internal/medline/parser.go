// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package medline

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	gzip "github.com/klauspost/pgzip"

	"github.com/pdiddy/medline-mirror/pkg/types"
)

const defaultBatchSize = 500

// BatchFunc receives one batch of normalized records and returns how many
// were written to the store.
type BatchFunc func(docs []types.Document) (int, error)

// DeleteFunc receives the external ids named by a DeleteCitation block.
type DeleteFunc func(pmids []string) error

// Result counts the outcome of parsing one archive file.
type Result struct {
	// Parsed is the number of records successfully extracted.
	Parsed int

	// Imported is the number of records the batch callback reported written.
	Imported int

	// Deleted is the number of retraction ids handed to the delete callback.
	Deleted int

	// Errors is the number of individual records skipped as malformed.
	Errors int
}

// ParseFile streams one compressed archive file through an incremental
// pull-parser. Each complete record element is normalized and appended to
// an in-memory batch; when the batch reaches batchSize it is flushed
// through onBatch and released, so peak memory tracks the batch size, not
// the file size. Individual bad records are skipped and counted; a broken
// compressed container or invalid XML framing aborts the file. onDelete
// may be nil when retraction handling is not wanted.
func ParseFile(sourceID, path string, batchSize int, onBatch BatchFunc, onDelete DeleteFunc) (Result, error) {
	var res Result
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return res, fmt.Errorf("opening compressed stream of %s: %w", path, err)
	}
	defer zr.Close()

	dec := xml.NewDecoder(zr)
	batch := make([]types.Document, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := onBatch(batch)
		if err != nil {
			return err
		}
		res.Imported += n
		// Release the consumed elements; this is what keeps peak memory
		// proportional to the batch, not the file.
		batch = batch[:0]
		return nil
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("reading %s: %w", path, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "PubmedArticle":
			var art pubmedArticle
			if err := dec.DecodeElement(&art, &start); err != nil {
				var syntaxErr *xml.SyntaxError
				if errors.As(err, &syntaxErr) {
					return res, fmt.Errorf("reading %s: %w", path, err)
				}
				res.Errors++
				continue
			}
			doc, err := Normalize(sourceID, &art)
			if err != nil {
				res.Errors++
				continue
			}
			res.Parsed++
			batch = append(batch, doc)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return res, err
				}
			}

		case "DeleteCitation":
			var del deleteCitation
			if err := dec.DecodeElement(&del, &start); err != nil {
				var syntaxErr *xml.SyntaxError
				if errors.As(err, &syntaxErr) {
					return res, fmt.Errorf("reading %s: %w", path, err)
				}
				res.Errors++
				continue
			}
			if onDelete != nil && len(del.PMIDs) > 0 {
				// Pending records must land before the retraction so the
				// file's document order holds.
				if err := flush(); err != nil {
					return res, err
				}
				if err := onDelete(del.PMIDs); err != nil {
					return res, err
				}
				res.Deleted += len(del.PMIDs)
			}
		}
	}

	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}
