package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/Guliveer/fwsecrets/internal/certs"
)

// ErrClientCertRequired is returned for broker ports that demand a client
// certificate. Client certificates are not part of the device secrets.
var ErrClientCertRequired = errors.New("broker port requires a client certificate")

// Transport is the connection security derived from the broker port and
// the configured trust material.
type Transport int

const (
	TransportPlain Transport = iota
	TransportTLS
	TransportMutualTLS
)

func (t Transport) String() string {
	switch t {
	case TransportPlain:
		return "plain"
	case TransportTLS:
		return "tls"
	case TransportMutualTLS:
		return "mtls"
	default:
		return "unknown"
	}
}

// Port conventions of the Mosquitto test broker.
const (
	PortPlain     = 1883
	PortTLS       = 8883
	PortMutualTLS = 8884
)

// Transport reports how the broker connection is secured. Well-known ports
// decide it; any other port uses TLS when trust material is configured.
func (c *Config) Transport() Transport {
	switch c.MQTT.Port {
	case PortPlain:
		return TransportPlain
	case PortTLS:
		return TransportTLS
	case PortMutualTLS:
		return TransportMutualTLS
	}
	if c.TLS.CAChainPEM != "" || c.TLS.CAChainFile != "" || c.TLS.Fingerprint != "" {
		return TransportTLS
	}
	return TransportPlain
}

var hostLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

func validHost(h string) bool {
	if net.ParseIP(h) != nil {
		return true
	}
	h = strings.TrimSuffix(h, ".")
	if h == "" || len(h) > 253 {
		return false
	}
	for _, label := range strings.Split(h, ".") {
		if !hostLabel.MatchString(label) {
			return false
		}
	}
	return true
}

func validWiFiPassword(p string) bool {
	if p == "" {
		return true
	}
	if len(p) == 64 {
		for _, c := range p {
			if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
				return false
			}
		}
		return true
	}
	if len(p) < 8 || len(p) > 63 {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] > 0x7e {
			return false
		}
	}
	return true
}

// CAChain returns the configured CA chain, reading CAChainFile if no inline
// chain is set. It returns nil when neither is configured.
func (c *Config) CAChain() ([]byte, error) {
	if c.TLS.CAChainPEM != "" {
		return []byte(c.TLS.CAChainPEM), nil
	}
	if c.TLS.CAChainFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.TLS.CAChainFile)
	if err != nil {
		return nil, fmt.Errorf("reading CA chain: %w", err)
	}
	return data, nil
}

// Validate checks that every value is well-formed. All violations are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if n := len(c.WiFi.SSID); n == 0 || n > 32 {
		errs = append(errs, fmt.Errorf("wifi.ssid must be 1 to 32 bytes (got %d)", n))
	}
	if !validWiFiPassword(c.WiFi.Password.Reveal()) {
		errs = append(errs, errors.New("wifi.password must be 8 to 63 printable ASCII characters or 64 hex digits"))
	}

	if c.MQTT.Server == "" {
		errs = append(errs, errors.New("mqtt.server is required"))
	} else if !validHost(c.MQTT.Server) {
		errs = append(errs, fmt.Errorf("mqtt.server %q is not a valid hostname or IP address", c.MQTT.Server))
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		errs = append(errs, fmt.Errorf("mqtt.port must be in 1..65535 (got %d)", c.MQTT.Port))
	}
	if !c.MQTT.Password.IsZero() && c.MQTT.User == "" {
		errs = append(errs, errors.New("mqtt.password is set without mqtt.user"))
	}
	if c.Transport() == TransportMutualTLS {
		errs = append(errs, fmt.Errorf("mqtt.port %d: %w", c.MQTT.Port, ErrClientCertRequired))
	}

	var fingerprint string
	if c.TLS.Fingerprint != "" {
		fp, err := certs.NormalizeFingerprint(c.TLS.Fingerprint)
		if err != nil {
			errs = append(errs, fmt.Errorf("tls.fingerprint: %w", err))
		}
		fingerprint = fp
	}

	pemData, err := c.CAChain()
	if err != nil {
		errs = append(errs, fmt.Errorf("tls.ca_chain_file: %w", err))
	}
	if len(pemData) > 0 {
		chain, err := certs.ParseChain(pemData)
		if err != nil {
			errs = append(errs, fmt.Errorf("tls.ca_chain_pem: %w", err))
		} else if fingerprint != "" {
			if _, ok := certs.MatchChain(chain, fingerprint); !ok {
				errs = append(errs, fmt.Errorf("tls.fingerprint: %w: %s is not in the CA chain", certs.ErrFingerprintMismatch, fingerprint))
			}
		}
	}

	return errors.Join(errs...)
}

// Placeholder values shipped in example secrets headers.
var placeholders = map[string]string{
	"wifi.ssid":     "my_wifi_ssid",
	"wifi.password": "super_secret",
	"mqtt.user":     "username",
	"mqtt.password": "Lets_hack_it_777",
}

const placeholderCA = "fake stuff here"

// ValidateStrict runs Validate and also rejects the placeholder values of
// example secrets files, which are schema examples and never real data.
func (c *Config) ValidateStrict() error {
	errs := []error{c.Validate()}

	values := map[string]string{
		"wifi.ssid":     c.WiFi.SSID,
		"wifi.password": c.WiFi.Password.Reveal(),
		"mqtt.user":     c.MQTT.User,
		"mqtt.password": c.MQTT.Password.Reveal(),
	}
	for _, key := range []string{"wifi.ssid", "wifi.password", "mqtt.user", "mqtt.password"} {
		if values[key] == placeholders[key] {
			errs = append(errs, fmt.Errorf("%s holds a placeholder value", key))
		}
	}
	if strings.Contains(c.TLS.CAChainPEM, placeholderCA) {
		errs = append(errs, errors.New("tls.ca_chain_pem holds a placeholder certificate"))
	}
	return errors.Join(errs...)
}
