package staplelib

import (
	"errors"
	"fmt"
)

// Chain parsing errors.
var (
	// ErrNoCertificates is returned when a file contains no PEM
	// certificate blocks at all.
	ErrNoCertificates = errors.New("no certificates found in file")

	// ErrNoEndEntity is returned when a file contains only CA
	// certificates. The file is probably a root or intermediate bundle.
	ErrNoEndEntity = errors.New("no end-entity certificate found in file")

	// ErrNoIssuers is returned when the chain misses its CA
	// certificates, which are required to build an OCSP request.
	ErrNoIssuers = errors.New("no issuer certificates found in file")

	// ErrChainMismatch is returned when none of the CA certificates in
	// the file signed the end-entity certificate.
	ErrChainMismatch = errors.New("issuer of end-entity certificate not in file")

	// ErrNoOCSPURLs is returned when the end-entity certificate carries
	// no authority-information-access OCSP URL. Such a certificate
	// cannot be stapled without reissuance.
	ErrNoOCSPURLs = errors.New("certificate carries no OCSP responder URL")
)

// ErrorKind classifies a renewal failure into one of a closed set of
// categories. The retry policy is keyed on the kind, never on the
// concrete error types of the underlying network or crypto libraries.
type ErrorKind int

const (
	// KindNone means no failure has been recorded.
	KindNone ErrorKind = iota

	// KindNetwork covers transient network trouble: timeouts, DNS
	// failures, refused or reset connections.
	KindNetwork

	// KindBadResponse covers empty, malformed or unusable OCSP
	// responses, including responses with an "unknown" status.
	KindBadResponse

	// KindHTTPError covers HTTP 5xx and non-400 4xx replies from the
	// responder.
	KindHTTPError

	// KindHTTPBadRequest covers HTTP 400 replies. The responder rejects
	// the request itself, which usually indicates a certificate problem.
	KindHTTPBadRequest

	// KindPersist covers local staple write failures.
	KindPersist

	// KindTerminal covers conditions no retry can fix: an expired or
	// revoked certificate, a failed response validation, or a
	// certificate without an OCSP URI. Only a change of the source file
	// re-admits the record.
	KindTerminal
)

// String returns a short stable name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	case KindBadResponse:
		return "bad-response"
	case KindHTTPError:
		return "http-error"
	case KindHTTPBadRequest:
		return "http-bad-request"
	case KindPersist:
		return "persist"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Terminal reports whether the kind permits no automatic retry.
func (k ErrorKind) Terminal() bool {
	return k == KindTerminal
}

// RenewalError couples an error with its retry classification.
type RenewalError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *RenewalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

// Unwrap exposes the wrapped error to errors.Is/As.
func (e *RenewalError) Unwrap() error {
	return e.Err
}

// renewalErrorf builds a RenewalError with a formatted message.
func renewalErrorf(kind ErrorKind, format string, args ...interface{}) *RenewalError {
	return &RenewalError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
