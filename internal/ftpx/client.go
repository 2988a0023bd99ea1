// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ftpx implements the archive-facing half of the mirror: FTP
// directory listing, resumable single-file downloads, and integrity
// verification of the compressed artifacts.
package ftpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/medline-mirror/pkg/types"
)

// filePattern matches the published archive filenames, e.g.
// pubmed25n0001.xml.gz.
var filePattern = regexp.MustCompile(`^pubmed\d+n\d+\.xml\.gz$`)

// archiveConn is the slice of the FTP control connection the client uses.
// *ftp.ServerConn satisfies it through serverConn; tests substitute fakes.
type archiveConn interface {
	NoOp() error
	ChangeDir(dir string) error
	List(path string) ([]*ftp.Entry, error)
	RetrFrom(name string, offset uint64) (io.ReadCloser, error)
	Quit() error
}

// serverConn adapts *ftp.ServerConn, narrowing RetrFrom's *ftp.Response to
// the io.ReadCloser the transfer loop needs.
type serverConn struct{ *ftp.ServerConn }

func (s serverConn) RetrFrom(name string, offset uint64) (io.ReadCloser, error) {
	return s.ServerConn.RetrFrom(name, offset)
}

// Client is a stateful FTP archive client. The archive serves one data
// channel per control connection, so all transfers through a Client are
// serial. Client is not safe for concurrent use.
type Client struct {
	cfg  types.ArchiveConfig
	dial func() (archiveConn, error)
	conn archiveConn
	cwd  string
	log  *logrus.Entry
}

// NewClient returns a disconnected client; the first List or Fetch dials.
func NewClient(cfg types.ArchiveConfig, log *logrus.Logger) *Client {
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	if cfg.User == "" {
		cfg.User = "anonymous"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		cfg: cfg,
		log: log.WithField("component", "ftpx"),
	}
	c.dial = c.dialArchive
	return c
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// dialArchive establishes and authenticates the control connection.
func (c *Client) dialArchive() (archiveConn, error) {
	conn, err := ftp.Dial(c.addr(), ftp.DialWithTimeout(c.cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", c.addr(), err)
	}
	if err := conn.Login(c.cfg.User, c.cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("logging in as %s: %w", c.cfg.User, err)
	}
	return serverConn{conn}, nil
}

// connect dials the archive and enters dir.
func (c *Client) connect(dir string) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	if err := conn.ChangeDir(dir); err != nil {
		conn.Quit()
		return fmt.Errorf("entering %s: %w", dir, err)
	}
	c.conn = conn
	c.cwd = dir
	c.log.WithField("dir", dir).Debug("connected to archive")
	return nil
}

// ensureAlive health-checks the control connection with a NOOP and
// reconnects (re-authenticate, re-enter dir) when the check fails.
func (c *Client) ensureAlive(dir string) error {
	if c.conn != nil {
		if err := c.conn.NoOp(); err != nil {
			c.log.WithError(err).Warn("control connection stale, reconnecting")
			c.Close()
		} else if c.cwd != dir {
			if err := c.conn.ChangeDir(dir); err != nil {
				c.Close()
			} else {
				c.cwd = dir
			}
		}
	}
	if c.conn != nil {
		return nil
	}
	return c.connect(dir)
}

// Close quits the control connection. Safe to call on a closed client.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Quit()
		c.conn = nil
		c.cwd = ""
	}
}

// List returns the archive files in the remote directory dir, filtered to
// the published naming pattern, with authoritative sizes from the listing.
// An empty directory yields zero entries, not an error.
func (c *Client) List(dir string, kind types.FileKind) ([]types.RemoteFileEntry, error) {
	if err := c.ensureAlive(dir); err != nil {
		return nil, err
	}
	entries, err := c.conn.List(".")
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var files []types.RemoteFileEntry
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile || !filePattern.MatchString(e.Name) {
			continue
		}
		files = append(files, types.RemoteFileEntry{
			Name: e.Name,
			Size: int64(e.Size),
			Kind: kind,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Fetch downloads one remote file from dir to localPath, resuming any
// partial transfer from its last confirmed byte, and returns only after
// both the size check and the gzip read-through pass. Connection-class
// failures force a reconnect; all failures retry with exponential backoff
// up to the configured attempt limit.
func (c *Client) Fetch(ctx context.Context, dir, name string, expectedSize int64, localPath string) error {
	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt - 1)
			c.log.WithFields(logrus.Fields{
				"file":    name,
				"attempt": attempt,
				"delay":   delay,
			}).WithError(lastErr).Warn("retrying download")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.fetchOnce(dir, name, expectedSize, localPath)
		if err == nil {
			return nil
		}
		lastErr = err

		if isConnectionError(err) {
			c.Close()
		}
		if errors.Is(err, ErrIntegrity) {
			// Broken content restarts from zero. A short-but-clean
			// transfer (ErrSizeMismatch) keeps its bytes and resumes.
			os.Remove(localPath)
		}
	}
	return fmt.Errorf("downloading %s: %w", name, lastErr)
}

// fetchOnce performs a single resume-and-verify pass.
func (c *Client) fetchOnce(dir, name string, expectedSize int64, localPath string) error {
	if err := c.ensureAlive(dir); err != nil {
		return err
	}

	offset, err := resumeOffset(localPath, expectedSize)
	if err != nil {
		return err
	}
	if offset == expectedSize {
		// Already complete on disk; verification still has to pass.
		return VerifyFile(localPath, expectedSize)
	}
	if offset > 0 {
		c.log.WithFields(logrus.Fields{"file": name, "offset": offset}).Info("resuming transfer")
	}

	f, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}

	resp, err := c.conn.RetrFrom(name, uint64(offset))
	if err != nil {
		f.Close()
		return fmt.Errorf("requesting %s at offset %d: %w", name, offset, err)
	}

	_, copyErr := io.Copy(f, resp)
	respErr := resp.Close()
	syncErr := f.Sync()
	closeErr := f.Close()
	for _, e := range []error{copyErr, respErr, syncErr, closeErr} {
		if e != nil {
			return fmt.Errorf("transferring %s: %w", name, e)
		}
	}

	return VerifyFile(localPath, expectedSize)
}

// resumeOffset returns the byte position to continue from: the size of any
// partial file, or zero. A partial larger than the remote file is corrupt
// and is discarded so the transfer restarts from scratch.
func resumeOffset(localPath string, expectedSize int64) (int64, error) {
	info, err := os.Stat(localPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if info.Size() > expectedSize {
		if err := os.Remove(localPath); err != nil {
			return 0, fmt.Errorf("discarding oversized partial %s: %w", localPath, err)
		}
		return 0, nil
	}
	return info.Size(), nil
}
