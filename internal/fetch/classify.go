package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
)

// Failure categories recorded in PageResult.Error and keyed into the
// statistics aggregator. These names are part of the JSON output contract.
const (
	// KindTimeout covers deadline and read timeouts. Retryable.
	KindTimeout = "timeout"

	// KindConnection covers DNS, dial, and reset failures. Retryable.
	KindConnection = "connection_error"

	// KindHTTP covers non-2xx status codes. Retryable only for 429 and 5xx.
	KindHTTP = "http_error"

	// KindSSL covers TLS handshake and certificate failures. Not retryable:
	// a bad certificate does not heal between attempts.
	KindSSL = "ssl_error"

	// KindParsing covers body read and HTML parse failures after a
	// successful response. Not retryable.
	KindParsing = "parsing_error"
)

// classifyErr maps a transport error from http.Client.Do to a failure
// category.
//
// Design decision: Classification checks TLS errors before the generic
// net.Error timeout check because certificate verification failures can
// also surface wrapped in url.Error, and "ssl_error" is the more useful
// category for the operator. Everything that is neither a timeout nor a
// TLS failure is a connection error; the crawler does not need finer
// distinctions to decide retry behavior.
func classifyErr(err error) string {
	if isTLSError(err) {
		return KindSSL
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindConnection
}

// isTLSError reports whether err stems from the TLS layer.
func isTLSError(err error) bool {
	var (
		recordErr  tls.RecordHeaderError
		verifyErr  *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		invalidErr x509.CertificateInvalidError
		hostErr    x509.HostnameError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &unknownCA) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &hostErr)
}

// retryableStatus reports whether an HTTP status code is worth retrying.
// Client errors are the server's final word about this URL; only rate
// limiting and server-side failures are transient.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryableKind reports whether a failure category is transient.
func retryableKind(kind string) bool {
	return kind == KindTimeout || kind == KindConnection
}
