package header

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Guliveer/fwsecrets/internal/config"
	"github.com/Guliveer/fwsecrets/internal/secret"
)

// ErrDuplicateDefine is returned when a header defines a constant twice.
var ErrDuplicateDefine = errors.New("constant defined more than once")

var (
	defineRe      = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*define[ \t]+([A-Za-z_][A-Za-z0-9_]*)[ \t]+(.+?)[ \t]*$`)
	caRawRe       = regexp.MustCompile(`(?s)const\s+char\s*\*\s*CA_CHAIN_PEM\b[^=]*=\s*R"([^(\s]*)\((.*?)\)([^"\s]*)"`)
	caQuotedRe    = regexp.MustCompile(`const\s+char\s*\*\s*CA_CHAIN_PEM\b[^=]*=\s*("(?:[^"\\]|\\.)*")`)
	fingerprintRe = regexp.MustCompile(`const\s+char\s*\*\s*fingerprint\s*=\s*("(?:[^"\\]|\\.)*")`)
	comments      = regexp.MustCompile(`(?m)^[ \t]*//.*$|(?s)/\*.*?\*/`)
	leadingString = regexp.MustCompile(`^"(?:[^"\\]|\\.)*"`)
)

// Parse reads a secrets header and returns the config it describes. Values
// the header does not define keep their defaults and unrelated defines are
// ignored. Each recognized constant may appear only once.
func Parse(r io.Reader) (*config.Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	src := string(raw)
	cfg := config.DefaultConfig()

	// The raw string literal is taken out first so PEM content can't be
	// mistaken for directives or comments.
	if m := caRawRe.FindAllStringSubmatchIndex(src, -1); len(m) > 0 {
		if len(m) > 1 {
			return nil, fmt.Errorf("%s: %w", NameCAChainPEM, ErrDuplicateDefine)
		}
		opening, body, closing := src[m[0][2]:m[0][3]], src[m[0][4]:m[0][5]], src[m[0][6]:m[0][7]]
		if opening != closing {
			return nil, fmt.Errorf("%s: raw string delimiters %q and %q differ", NameCAChainPEM, opening, closing)
		}
		cfg.TLS.CAChainPEM = cleanPEM(body)
		src = src[:m[0][0]] + src[m[0][1]:]
	}

	src = comments.ReplaceAllString(src, "")

	if m := caQuotedRe.FindAllStringSubmatch(src, -1); len(m) > 0 {
		if len(m) > 1 || cfg.TLS.CAChainPEM != "" {
			return nil, fmt.Errorf("%s: %w", NameCAChainPEM, ErrDuplicateDefine)
		}
		v, err := strconv.Unquote(m[0][1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", NameCAChainPEM, err)
		}
		cfg.TLS.CAChainPEM = cleanPEM(v)
	}

	if m := fingerprintRe.FindAllStringSubmatch(src, -1); len(m) > 0 {
		if len(m) > 1 {
			return nil, fmt.Errorf("%s: %w", NameFingerprint, ErrDuplicateDefine)
		}
		v, err := strconv.Unquote(m[0][1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", NameFingerprint, err)
		}
		cfg.TLS.Fingerprint = v
	}

	seen := make(map[string]bool)
	for _, m := range defineRe.FindAllStringSubmatch(src, -1) {
		name, value := m[1], m[2]
		if !known(name) {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("%s: %w", name, ErrDuplicateDefine)
		}
		seen[name] = true
		if err := assign(cfg, name, value); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func known(name string) bool {
	switch name {
	case NameWiFiSSID, NameWiFiPassword, NameMQTTUser, NameMQTTPassword, NameMQTTServer, NameMQTTPort:
		return true
	}
	return false
}

func assign(cfg *config.Config, name, value string) error {
	if name == NameMQTTPort {
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return fmt.Errorf("%s: %q is not an integer", name, value)
		}
		port, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", name, value)
		}
		cfg.MQTT.Port = port
		return nil
	}

	s, err := strconv.Unquote(leadingString.FindString(value))
	if err != nil {
		return fmt.Errorf("%s: %q is not a string literal", name, value)
	}
	switch name {
	case NameWiFiSSID:
		cfg.WiFi.SSID = s
	case NameWiFiPassword:
		cfg.WiFi.Password = secret.Value(s)
	case NameMQTTUser:
		cfg.MQTT.User = s
	case NameMQTTPassword:
		cfg.MQTT.Password = secret.Value(s)
	case NameMQTTServer:
		cfg.MQTT.Server = s
	}
	return nil
}

// cleanPEM trims the literal's surrounding whitespace and stray quotes, which
// hand-written headers often leave inside the raw string.
func cleanPEM(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return s + "\n"
}
