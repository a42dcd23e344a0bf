// Package certs parses the broker CA chain and handles the certificate
// fingerprints used for pinning.
package certs

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCertificates is returned when a PEM blob holds no CERTIFICATE block.
	ErrNoCertificates = errors.New("no certificates found in PEM data")

	// ErrFingerprintMismatch is returned when no certificate in a chain
	// matches the pinned fingerprint.
	ErrFingerprintMismatch = errors.New("certificate fingerprint mismatch")
)

// ParseChain decodes every CERTIFICATE block in data. Other block types are
// skipped.
func ParseChain(data []byte) ([]*x509.Certificate, error) {
	var chain []*x509.Certificate
	rest := bytes.TrimSpace(data)
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate %d: %w", len(chain)+1, err)
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		return nil, ErrNoCertificates
	}
	return chain, nil
}

// Fingerprint returns the SHA-1 fingerprint of cert in the form printed by
// `openssl x509 -sha1 -noout -fingerprint`.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return colonHex(sum[:])
}

// FingerprintSHA256 is Fingerprint with SHA-256.
func FingerprintSHA256(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return colonHex(sum[:])
}

// NormalizeFingerprint converts a SHA-1 fingerprint in any common notation
// (openssl output, lowercase, space or colon separated, or bare hex) to
// uppercase colon-separated hex.
func NormalizeFingerprint(s string) (string, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "="); i >= 0 {
		s = s[i+1:]
	}
	s = strings.NewReplacer(":", "", " ", "", "-", "").Replace(s)
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("fingerprint is not hex: %w", err)
	}
	if len(raw) != sha1.Size {
		return "", fmt.Errorf("fingerprint has %d bytes, want %d", len(raw), sha1.Size)
	}
	return colonHex(raw), nil
}

// MatchChain returns the first certificate in chain whose SHA-1 fingerprint
// equals fp.
func MatchChain(chain []*x509.Certificate, fp string) (*x509.Certificate, bool) {
	want, err := NormalizeFingerprint(fp)
	if err != nil {
		return nil, false
	}
	for _, cert := range chain {
		if Fingerprint(cert) == want {
			return cert, true
		}
	}
	return nil, false
}

func colonHex(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
	}
	return sb.String()
}
