// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with an
// Ollama-compatible model server.
package ollama

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes client errors for handling and user messaging.
type ErrorKind int

const (
	ErrKindUnknown ErrorKind = iota
	// ErrKindUnreachable: connection refused, DNS failure, network down.
	ErrKindUnreachable
	// ErrKindTimeout: connect or per-read deadline exceeded.
	ErrKindTimeout
	// ErrKindScheme: TLS/plaintext mismatch, e.g. an https:// host serving
	// plain HTTP or a certificate the client rejects.
	ErrKindScheme
	// ErrKindServerStatus: the server answered with a non-success status.
	ErrKindServerStatus
	// ErrKindMalformedBody: the response body broke off or could not be read.
	ErrKindMalformedBody
	// ErrKindMissingBody: the server answered success with no body to stream.
	ErrKindMissingBody
	// ErrKindCanceled: the caller abandoned the exchange.
	ErrKindCanceled
)

// ClientError represents an error from the client. StatusCode and Body are
// populated for ErrKindServerStatus.
type ClientError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Body       string
	Cause      error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.Kind == ErrKindServerStatus {
		msg += " (status " + strconv.Itoa(e.StatusCode) + ")"
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for easy checking.
var (
	ErrUnreachable = &ClientError{Kind: ErrKindUnreachable, Message: "server unreachable"}
	ErrTimeout     = &ClientError{Kind: ErrKindTimeout, Message: "request timed out"}
	ErrMissingBody = &ClientError{Kind: ErrKindMissingBody, Message: "response carried no body"}
)

// =============================================================================
// CLASSIFICATION
// =============================================================================

// KindOf extracts the ErrorKind from any error in the chain.
func KindOf(err error) ErrorKind {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrKindUnknown
}

// IsUnreachable checks if an error indicates the server cannot be reached.
func IsUnreachable(err error) bool { return KindOf(err) == ErrKindUnreachable }

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool { return KindOf(err) == ErrKindTimeout }

// IsServerStatus checks if an error carries a server status rejection.
func IsServerStatus(err error) bool { return KindOf(err) == ErrKindServerStatus }

// IsCanceled checks if an error came from caller-side cancellation.
func IsCanceled(err error) bool { return KindOf(err) == ErrKindCanceled }

// classifyTransport maps a transport-level failure to a ClientError. The
// distinction matters for user messaging: "start the server" vs "fix the
// address scheme" vs "it is just slow".
func classifyTransport(err error) *ClientError {
	switch {
	case errors.Is(err, context.Canceled):
		return &ClientError{Kind: ErrKindCanceled, Message: "request canceled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return &ClientError{Kind: ErrKindTimeout, Message: "request timed out", Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Kind: ErrKindTimeout, Message: "request timed out", Cause: err}
	}

	if isSchemeMismatch(err) {
		return &ClientError{
			Kind:    ErrKindScheme,
			Message: "scheme mismatch between client and server (check http:// vs https:// in the host address)",
			Cause:   err,
		}
	}

	return &ClientError{Kind: ErrKindUnreachable, Message: "server unreachable", Cause: err}
}

// isSchemeMismatch detects TLS-layer failures: an https:// address pointed
// at a plain-HTTP local server, or an untrusted certificate.
func isSchemeMismatch(err error) bool {
	var certErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) {
		return true
	}

	// net/http reports a plaintext server behind an https URL with a
	// RecordHeaderError whose text is stable across Go releases.
	msg := err.Error()
	return strings.Contains(msg, "server gave HTTP response to HTTPS client") ||
		strings.Contains(msg, "tls: first record does not look like a TLS handshake")
}
