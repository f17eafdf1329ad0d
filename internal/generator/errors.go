// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	qerrors "querycraft/cli/internal/errors"
)

// transportError converts a network failure into a generation error with a
// caller-safe message. The original error stays in the chain for logs.
func transportError(err error) error {
	var msg string
	switch {
	case isTimeoutError(err):
		msg = "SQL generation timed out."
	case errors.Is(err, context.Canceled):
		msg = "SQL generation was cancelled."
	case isDNSError(err):
		msg = "Could not resolve the SQL generation service host."
	case isConnectionRefusedError(err):
		msg = "Could not connect to the SQL generation service."
	case isSSLError(err):
		msg = "Secure connection to the SQL generation service failed."
	default:
		msg = "SQL generation request failed."
	}
	return qerrors.Wrap(qerrors.Generation, msg, err)
}

// isTimeoutError checks if the error is a timeout error.
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// isDNSError checks if the error is a DNS resolution error.
func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionRefusedError checks if the error is a connection refused error.
func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

// isSSLError checks if the error is an SSL/TLS error.
func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

// statusError maps a non-success HTTP status from the model endpoint.
func statusError(code int, detail string) error {
	var msg string
	switch {
	case code == 401 || code == 403:
		msg = "The SQL generation service rejected the API key."
	case code == 429:
		msg = "The SQL generation service is rate limiting requests."
	case code >= 500:
		msg = "The SQL generation service is unavailable."
	default:
		msg = "The SQL generation service rejected the request."
	}
	return qerrors.Wrap(qerrors.Generation, msg, &StatusError{Code: code, Detail: detail})
}

// StatusError is a non-2xx response from the model endpoint.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("generation endpoint returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("generation endpoint returned HTTP %d: %s", e.Code, e.Detail)
}

// Classify tags a failure returned by any Generator as a generation error.
// Errors already classified that way are returned unchanged.
func Classify(err error) error {
	if qerrors.Is(err, qerrors.Generation) {
		return err
	}
	return transportError(err)
}
