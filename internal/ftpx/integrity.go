// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ftpx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	gzip "github.com/klauspost/pgzip"
)

// ErrIntegrity marks a local artifact whose compressed content is broken:
// truncated stream, bad header, unreadable file. Callers delete the
// artifact and download again from scratch.
var ErrIntegrity = errors.New("integrity check failed")

// ErrSizeMismatch marks a local artifact shorter than the authoritative
// remote listing. The bytes on disk are still good, so callers keep the
// partial and resume the transfer.
var ErrSizeMismatch = errors.New("size mismatch")

// readBufferSize feeds the parallel gzip reader in large chunks; archive
// files are hundreds of MB each.
const readBufferSize = 1 << 20

// VerifyFile confirms that path is exactly expectedSize bytes and that its
// gzip content decompresses end to end.
func VerifyFile(path string, expectedSize int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	if info.Size() != expectedSize {
		return fmt.Errorf("%w: %s is %d bytes, want %d", ErrSizeMismatch, path, info.Size(), expectedSize)
	}
	return ReadThrough(path)
}

// ReadThrough decompresses the whole gzip container at path, discarding the
// output. Any decoding or I/O failure classifies the file as corrupt.
func ReadThrough(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReaderSize(f, readBufferSize))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIntegrity, path, err)
	}
	defer zr.Close()

	if _, err := io.Copy(io.Discard, zr); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIntegrity, path, err)
	}
	return nil
}
