package staplelib

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/ocsp"
)

// Staple is a parsed OCSP response together with its raw DER bytes, ready
// to be written to disk or pushed into a proxy.
type Staple struct {
	Raw        []byte
	Status     int // ocsp.Good, ocsp.Revoked, ocsp.Unknown
	ThisUpdate time.Time
	NextUpdate time.Time
}

// stapleFileMode is the permission mode for staple files. The proxy needs
// to read them; nobody needs to execute them.
const stapleFileMode = 0o644

// StaplePath returns the staple file path for a certificate file.
func StaplePath(certPath string) string {
	return certPath + ".ocsp"
}

// StatusString returns a short name for an OCSP certificate status.
func StatusString(status int) string {
	switch status {
	case ocsp.Good:
		return "good"
	case ocsp.Revoked:
		return "revoked"
	case ocsp.Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Base64 returns the staple DER bytes in base64, the form the HAProxy
// admin socket expects.
func (s *Staple) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Raw)
}

// ValidFor reports whether the staple remains usable for at least the
// given window beyond now.
func (s *Staple) ValidFor(now time.Time, window time.Duration) bool {
	return s.Status == ocsp.Good && now.Add(window).Before(s.NextUpdate)
}

// ParseStaple parses raw DER OCSP response bytes and verifies the
// response signature for the given certificate and its issuer. The
// returned staple may carry any status; callers decide what a non-good
// status means for them.
func ParseStaple(raw []byte, leaf, issuer *x509.Certificate) (*Staple, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty OCSP response")
	}
	resp, err := ocsp.ParseResponseForCert(raw, leaf, issuer)
	if err != nil {
		return nil, err
	}
	return &Staple{
		Raw:        raw,
		Status:     resp.Status,
		ThisUpdate: resp.ThisUpdate,
		NextUpdate: resp.NextUpdate,
	}, nil
}

// LoadStaple reads and parses an existing staple file for certPath.
// Used to recycle still-valid staples across daemon restarts.
func LoadStaple(fs afero.Fs, certPath string, leaf, issuer *x509.Certificate) (*Staple, error) {
	raw, err := afero.ReadFile(fs, StaplePath(certPath))
	if err != nil {
		return nil, err
	}
	return ParseStaple(raw, leaf, issuer)
}

// WriteStaple atomically replaces the staple file for certPath with raw.
// The bytes land in a temporary file first and are renamed into place, so
// a reader never observes a half-written staple.
func WriteStaple(fs afero.Fs, certPath string, raw []byte) error {
	target := StaplePath(certPath)
	tmp := target + ".tmp"
	if err := afero.WriteFile(fs, tmp, raw, stapleFileMode); err != nil {
		return fmt.Errorf("writing staple temp file: %w", err)
	}
	if err := fs.Rename(tmp, target); err != nil {
		// Leaving the temp file behind helps debugging a broken mount;
		// the next successful write replaces it anyway.
		return fmt.Errorf("replacing staple file: %w", err)
	}
	return nil
}

// ZeroStaple truncates the staple file for certPath to zero bytes. An
// empty staple file is harmless to the proxy at startup, unlike a stale
// staple for a certificate that has since been revoked.
func ZeroStaple(fs afero.Fs, certPath string) error {
	return WriteStaple(fs, certPath, nil)
}
