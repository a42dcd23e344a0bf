// Package header converts device secrets to and from the C header that
// firmware builds include.
package header

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Guliveer/fwsecrets/internal/config"
)

// Constant names defined by a secrets header.
const (
	NameWiFiSSID     = "WIFI_SSID"
	NameWiFiPassword = "WIFI_PASSWORD"
	NameMQTTUser     = "MQTT_USER"
	NameMQTTPassword = "MQTT_PASSWORD"
	NameMQTTServer   = "MQTT_SERVER"
	NameMQTTPort     = "MQTT_PORT"
	NameCAChainPEM   = "CA_CHAIN_PEM"
	NameFingerprint  = "fingerprint"
)

const rawDelim = "EOF"

// ErrRawStringDelimiter is returned when the CA chain contains the raw string
// terminator and cannot be emitted verbatim.
var ErrRawStringDelimiter = errors.New("CA chain contains the raw string terminator")

// Options controls rendering.
type Options struct {
	// FileName is the header's file name, used for the include guard and the
	// duplicate-include diagnostic. Defaults to "secrets.h".
	FileName string
	// Guard overrides the include guard macro derived from FileName.
	Guard string
	// Progmem places the CA chain in flash on AVR/ESP toolchains.
	Progmem bool
}

func (o Options) fileName() string {
	if o.FileName == "" {
		return "secrets.h"
	}
	return filepath.Base(o.FileName)
}

func (o Options) guard() string {
	if o.Guard != "" {
		return o.Guard
	}
	var sb strings.Builder
	for _, r := range strings.ToUpper(o.fileName()) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

var tmpl = template.Must(template.New("header").Funcs(template.FuncMap{
	"c": cString,
}).Parse(`#if !defined({{.Guard}})
#define {{.Guard}}
#else
#error Multiple includes of {{.FileName}}
#endif

#define WIFI_SSID {{c .Cfg.WiFi.SSID}}
#define WIFI_PASSWORD {{c .WiFiPassword}}

#define MQTT_USER {{c .Cfg.MQTT.User}}
#define MQTT_PASSWORD {{c .MQTTPassword}}

#define MQTT_SERVER {{c .Cfg.MQTT.Server}}
#define MQTT_PORT {{.Cfg.MQTT.Port}}

const char *CA_CHAIN_PEM{{if .Progmem}} PROGMEM{{end}} = R"` + rawDelim + `(
{{.CAChain}})` + rawDelim + `";

const char *fingerprint = {{c .Fingerprint}};
`))

// Render writes cfg as a C header. The CA chain is taken from
// cfg.TLS.CAChainPEM, so callers resolve CAChainFile first.
func Render(w io.Writer, cfg *config.Config, opts Options) error {
	ca := strings.TrimSpace(cfg.TLS.CAChainPEM)
	if strings.Contains(ca, ")"+rawDelim+`"`) {
		return ErrRawStringDelimiter
	}
	if ca != "" {
		ca += "\n"
	}
	data := struct {
		Cfg          *config.Config
		Guard        string
		FileName     string
		Progmem      bool
		WiFiPassword string
		MQTTPassword string
		CAChain      string
		Fingerprint  string
	}{
		Cfg:          cfg,
		Guard:        opts.guard(),
		FileName:     opts.fileName(),
		Progmem:      opts.Progmem,
		WiFiPassword: cfg.WiFi.Password.Reveal(),
		MQTTPassword: cfg.MQTT.Password.Reveal(),
		CAChain:      ca,
		Fingerprint:  cfg.TLS.Fingerprint,
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering header: %w", err)
	}
	return nil
}

// cString quotes s as a C string literal. Non-printable bytes use
// three-digit octal escapes, which never swallow following characters.
func cString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' || c == '"':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c >= 0x20 && c <= 0x7e:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "\\%03o", c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
