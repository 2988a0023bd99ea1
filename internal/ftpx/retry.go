// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ftpx

import (
	"errors"
	"io"
	"math"
	"net"
	"net/textproto"
	"syscall"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// failed transfers. Tests override this to avoid real sleeps.
var RetryBaseDelay = 5 * time.Second

const defaultMaxRetries = 5

// backoff returns the delay before retry attempt. The delay starts at
// RetryBaseDelay and doubles each attempt: 5 s, 10 s, 20 s, 40 s, 80 s.
func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
}

// isConnectionError reports whether err is a connection-class failure
// (reset, timeout, dropped data channel, or a transient protocol reply).
// Connection-class failures force a reconnect before the next attempt;
// everything else retries on the same control connection.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		// 421 service closing, 425/426 data connection failures, and the
		// remaining 4xx transient-negative replies.
		return protoErr.Code >= 400 && protoErr.Code < 500
	}
	return false
}
