package config

import (
	"strconv"

	"go.uber.org/zap/zapcore"

	"github.com/Guliveer/fwsecrets/internal/secret"
)

// MarshalLogObject lets the config be logged with zap.Object. Secrets are
// masked and the CA chain is summarized by size.
func (c *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("wifi_ssid", c.WiFi.SSID)
	enc.AddString("wifi_password", c.WiFi.Password.String())
	enc.AddString("mqtt_user", c.MQTT.User)
	enc.AddString("mqtt_password", c.MQTT.Password.String())
	enc.AddString("mqtt_server", c.MQTT.Server)
	enc.AddInt("mqtt_port", c.MQTT.Port)
	enc.AddString("transport", c.Transport().String())
	if c.TLS.CAChainFile != "" {
		enc.AddString("ca_chain_file", c.TLS.CAChainFile)
	}
	enc.AddInt("ca_chain_bytes", len(c.TLS.CAChainPEM))
	if c.TLS.Fingerprint != "" {
		enc.AddString("fingerprint", c.TLS.Fingerprint)
	}
	return nil
}

// Redacted returns a copy safe to print: secrets masked and the inline CA
// chain dropped in favour of its length.
func (c *Config) Redacted() *Config {
	out := *c
	out.WiFi.Password = secret.Value(c.WiFi.Password.String())
	out.MQTT.Password = secret.Value(c.MQTT.Password.String())
	if c.TLS.CAChainPEM != "" {
		out.TLS.CAChainPEM = "<" + strconv.Itoa(len(c.TLS.CAChainPEM)) + " bytes>"
	}
	return &out
}
