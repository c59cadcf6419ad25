package staplelib

import (
	"bytes"
	"context"
	"crypto/x509"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/ocsp"
)

// maxResponseBytes caps how much of a responder reply is read. Real OCSP
// responses are a few kilobytes.
const maxResponseBytes = 1 << 20

// defaultFetchTimeout bounds a single request/response exchange.
const defaultFetchTimeout = 10 * time.Second

// OCSPClient performs the OCSP request/response exchange over HTTP(S).
// Errors come back classified, decoupled from net/http's error types.
type OCSPClient struct {
	client *http.Client
}

// NewOCSPClient returns a client with the given per-request timeout.
// A zero timeout selects the default of ten seconds.
func NewOCSPClient(timeout time.Duration) *OCSPClient {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &OCSPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch requests a staple for the chain's leaf from the responder at url
// and parses and verifies the reply. A non-nil *RenewalError carries the
// retry classification of whatever went wrong.
func (c *OCSPClient) Fetch(ctx context.Context, url string, chain *Chain) (*Staple, *RenewalError) {
	reqDER, err := ocsp.CreateRequest(chain.Leaf, chain.Issuer(), nil)
	if err != nil {
		// Request construction needs nothing from the network; if it
		// fails the certificate itself is unusable for OCSP.
		return nil, renewalErrorf(KindTerminal, "building OCSP request for %q: %v", url, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqDER))
	if err != nil {
		return nil, renewalErrorf(KindTerminal, "invalid OCSP URL %q: %v", url, err)
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// Timeouts, DNS failures, refused connections: all transient.
		return nil, renewalErrorf(KindNetwork, "requesting %q: %v", url, err)
	}
	defer resp.Body.Close()

	if kind, bad := classifyHTTPStatus(resp.StatusCode); bad {
		return nil, renewalErrorf(kind, "responder %q returned HTTP %d", url, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, renewalErrorf(KindNetwork, "reading response from %q: %v", url, err)
	}
	if len(raw) == 0 {
		return nil, renewalErrorf(KindBadResponse, "empty response from %q", url)
	}

	staple, err := ParseStaple(raw, chain.Leaf, chain.Issuer())
	if err != nil {
		if isMalformedResponse(err) {
			return nil, renewalErrorf(KindBadResponse, "malformed response from %q: %v", url, err)
		}
		// Structurally fine but the signature does not verify against
		// the chain. No retry can fix that.
		return nil, renewalErrorf(KindTerminal, "response from %q failed validation: %v", url, err)
	}
	return staple, nil
}

// classifyHTTPStatus maps an HTTP status code onto an error kind. The
// second return is false for acceptable codes.
func classifyHTTPStatus(code int) (ErrorKind, bool) {
	switch {
	case code == http.StatusOK:
		return KindNone, false
	case code == http.StatusBadRequest:
		return KindHTTPBadRequest, true
	default:
		// 5xx and remaining 4xx: the responder is unhappy or broken,
		// worth retrying on the normal schedule.
		return KindHTTPError, true
	}
}

// isMalformedResponse reports whether a ParseStaple error indicates
// malformed or unusable bytes rather than a failed signature check.
// Signature failures are terminal; malformed responses stay retryable at
// a degrading frequency.
func isMalformedResponse(err error) bool {
	switch err.(type) {
	case ocsp.ParseError, ocsp.ResponseError:
		return true
	case x509.ConstraintViolationError:
		return false
	}
	if strings.Contains(err.Error(), "signature") || strings.Contains(err.Error(), "verification") {
		return false
	}
	// Anything else out of the DER parser counts as malformed.
	return true
}
