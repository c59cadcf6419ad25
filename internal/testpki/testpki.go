// Package testpki builds throwaway certificate authorities, chains and
// signed OCSP responses for pipeline tests.
package testpki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"
)

// PKI is a single-CA test hierarchy with one issued leaf certificate.
type PKI struct {
	CA    *x509.Certificate
	CAKey *ecdsa.PrivateKey
	Leaf  *x509.Certificate
}

// Option mutates the leaf template before signing.
type Option func(*x509.Certificate)

// WithOCSPURLs sets the leaf's authority-information-access OCSP URLs.
func WithOCSPURLs(urls ...string) Option {
	return func(tmpl *x509.Certificate) {
		tmpl.OCSPServer = urls
	}
}

// WithValidity sets the leaf's validity window.
func WithValidity(notBefore, notAfter time.Time) Option {
	return func(tmpl *x509.Certificate) {
		tmpl.NotBefore = notBefore
		tmpl.NotAfter = notAfter
	}
}

// New builds a CA and a leaf certificate signed by it.
func New(t testing.TB, opts ...Option) *PKI {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatal(err)
	}
	ca, err := x509.ParseCertificate(caDER)
	if err != nil {
		t.Fatal(err)
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(4321),
		Subject:      pkix.Name{CommonName: "test.example.org"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(12 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"test.example.org"},
	}
	for _, opt := range opts {
		opt(leafTmpl)
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, ca, &leafKey.PublicKey, caKey)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := x509.ParseCertificate(leafDER)
	if err != nil {
		t.Fatal(err)
	}

	return &PKI{CA: ca, CAKey: caKey, Leaf: leaf}
}

// ChainPEM returns the leaf and CA concatenated in PEM form, leaf first.
func (p *PKI) ChainPEM() []byte {
	var out []byte
	for _, crt := range []*x509.Certificate{p.Leaf, p.CA} {
		out = append(out, pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: crt.Raw,
		})...)
	}
	return out
}

// SignedResponse returns a DER OCSP response for the leaf, signed by the
// CA.
func (p *PKI) SignedResponse(t testing.TB, status int, thisUpdate, nextUpdate time.Time) []byte {
	t.Helper()
	tmpl := ocsp.Response{
		Status:       status,
		SerialNumber: p.Leaf.SerialNumber,
		ThisUpdate:   thisUpdate,
		NextUpdate:   nextUpdate,
	}
	if status == ocsp.Revoked {
		tmpl.RevokedAt = thisUpdate
		tmpl.RevocationReason = ocsp.KeyCompromise
	}
	raw, err := ocsp.CreateResponse(p.CA, p.CA, tmpl, p.CAKey)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}
