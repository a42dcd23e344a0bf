package certs

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// TLSConfig builds the client TLS configuration for the broker connection.
//
// With a CA chain, the chain becomes the root pool. With a fingerprint, some
// certificate in the verified chain must match it. A fingerprint without a
// CA chain is the only trust anchor: the standard verification is skipped
// and the peer chain is verified against the pinned certificate instead.
func TLSConfig(serverName string, caPEM []byte, fingerprint string, insecure bool) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}

	if len(caPEM) > 0 {
		chain, err := ParseChain(caPEM)
		if err != nil {
			return nil, fmt.Errorf("parsing CA chain: %w", err)
		}
		pool := x509.NewCertPool()
		for _, c := range chain {
			pool.AddCert(c)
		}
		cfg.RootCAs = pool
	}

	if fingerprint != "" {
		pin, err := NormalizeFingerprint(fingerprint)
		if err != nil {
			return nil, err
		}
		if len(caPEM) == 0 {
			cfg.InsecureSkipVerify = true
		}
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			return verifyPin(cs, serverName, pin)
		}
	}

	if insecure {
		cfg.InsecureSkipVerify = true
	}
	return cfg, nil
}

// verifyPin checks pin against the chains verified by crypto/tls. When
// verification was skipped, the presented certificate that matches pin
// becomes the sole root and the leaf must chain to it and match serverName.
func verifyPin(cs tls.ConnectionState, serverName, pin string) error {
	if len(cs.VerifiedChains) > 0 {
		for _, chain := range cs.VerifiedChains {
			if _, ok := MatchChain(chain, pin); ok {
				return nil
			}
		}
		return fmt.Errorf("%w: no verified certificate matches %s", ErrFingerprintMismatch, pin)
	}

	peers := cs.PeerCertificates
	if len(peers) == 0 {
		return fmt.Errorf("%w: peer sent no certificates", ErrFingerprintMismatch)
	}
	if Fingerprint(peers[0]) == pin {
		return nil
	}
	anchor, ok := MatchChain(peers[1:], pin)
	if !ok {
		return fmt.Errorf("%w: no peer certificate matches %s", ErrFingerprintMismatch, pin)
	}

	roots := x509.NewCertPool()
	roots.AddCert(anchor)
	intermediates := x509.NewCertPool()
	for _, c := range peers[1:] {
		intermediates.AddCert(c)
	}
	_, err := peers[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		DNSName:       serverName,
	})
	if err != nil {
		return fmt.Errorf("verifying against pinned %s: %w", anchor.Subject.CommonName, err)
	}
	return nil
}
