package staplelib

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"
)

// Chain is a decoded certificate chain file: the end-entity certificate
// plus the CA certificates found alongside it. Issuers are ordered so
// that the leaf's direct signer comes first.
type Chain struct {
	Leaf     *x509.Certificate
	Issuers  []*x509.Certificate
	OCSPURLs []string
}

// Issuer returns the direct signer of the leaf certificate.
func (c *Chain) Issuer() *x509.Certificate {
	return c.Issuers[0]
}

// Expired reports whether the leaf certificate is expired or not yet
// valid at the given time.
func (c *Chain) Expired(now time.Time) bool {
	return now.Before(c.Leaf.NotBefore) || now.After(c.Leaf.NotAfter)
}

// ParseChain decodes all PEM certificate blocks in data and splits them
// into the end-entity certificate and its issuers. The chain must be
// structurally complete: exactly one end-entity certificate and at least
// one CA certificate, one of which signed the end-entity.
func ParseChain(data []byte) (*Chain, error) {
	var leaf *x509.Certificate
	var cas []*x509.Certificate

	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		crt, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("malformed certificate in chain: %w", err)
		}
		if crt.IsCA {
			cas = append(cas, crt)
		} else {
			leaf = crt
		}
	}

	if leaf == nil && len(cas) == 0 {
		return nil, ErrNoCertificates
	}
	if leaf == nil {
		return nil, ErrNoEndEntity
	}
	if len(cas) == 0 {
		return nil, ErrNoIssuers
	}

	// Put the leaf's direct signer first; keep the rest in file order.
	signer := -1
	for i, ca := range cas {
		if err := leaf.CheckSignatureFrom(ca); err == nil {
			signer = i
			break
		}
	}
	if signer < 0 {
		return nil, ErrChainMismatch
	}
	issuers := make([]*x509.Certificate, 0, len(cas))
	issuers = append(issuers, cas[signer])
	for i, ca := range cas {
		if i != signer {
			issuers = append(issuers, ca)
		}
	}

	return &Chain{
		Leaf:     leaf,
		Issuers:  issuers,
		OCSPURLs: leaf.OCSPServer,
	}, nil
}
