// Package config handles loading device secrets from YAML files and
// environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Guliveer/fwsecrets/internal/secret"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "10s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds the secrets and connection settings a device build consumes.
type Config struct {
	WiFi    WiFiConfig    `yaml:"wifi"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	TLS     TLSConfig     `yaml:"tls"`
	Logging LoggingConfig `yaml:"logging"`
}

// WiFiConfig holds the station credentials.
type WiFiConfig struct {
	SSID     string       `yaml:"ssid"`
	Password secret.Value `yaml:"password"`
}

// MQTTConfig holds broker address and authentication.
type MQTTConfig struct {
	User           string       `yaml:"user"`
	Password       secret.Value `yaml:"password"`
	Server         string       `yaml:"server"`
	Port           int          `yaml:"port"`
	ClientID       string       `yaml:"client_id,omitempty"`
	ConnectTimeout Duration     `yaml:"connect_timeout"`
	KeepAlive      Duration     `yaml:"keep_alive"`
}

// TLSConfig holds the broker trust material. CAChainFile is read into
// CAChainPEM by ResolveCAChain when CAChainPEM is empty.
type TLSConfig struct {
	CAChainPEM         string `yaml:"ca_chain_pem,omitempty"`
	CAChainFile        string `yaml:"ca_chain_file,omitempty"`
	Fingerprint        string `yaml:"fingerprint,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

const (
	// DefaultServer is the public Mosquitto test broker.
	DefaultServer = "test.mosquitto.org"
	// DefaultPort is the unencrypted MQTT port.
	DefaultPort = 1883
)

// DefaultConfig returns the default configuration. Credentials are empty.
func DefaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Server:         DefaultServer,
			Port:           DefaultPort,
			ConnectTimeout: Duration{10 * time.Second},
			KeepAlive:      Duration{30 * time.Second},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with defaults.
// Environment variables take highest precedence and override values from the byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config data: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		return LoadFromBytes(nil)
	}

	return LoadFromBytes(data)
}

// CLIOverrides holds values from command-line flags.
// Zero values are treated as "not set" and skipped.
type CLIOverrides struct {
	SSID         string
	WiFiPassword string
	MQTTUser     string
	MQTTPassword string
	MQTTServer   string
	MQTTPort     int
	ClientID     string
	CAFile       string
	Fingerprint  string
	LogLevel     string
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value → use that path ("" means no external file)
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cli.apply(cfg)

	return cfg, nil
}

func (cli CLIOverrides) apply(cfg *Config) {
	if cli.SSID != "" {
		cfg.WiFi.SSID = cli.SSID
	}
	if cli.WiFiPassword != "" {
		cfg.WiFi.Password = secret.Value(cli.WiFiPassword)
	}
	if cli.MQTTUser != "" {
		cfg.MQTT.User = cli.MQTTUser
	}
	if cli.MQTTPassword != "" {
		cfg.MQTT.Password = secret.Value(cli.MQTTPassword)
	}
	if cli.MQTTServer != "" {
		cfg.MQTT.Server = cli.MQTTServer
	}
	if cli.MQTTPort != 0 {
		cfg.MQTT.Port = cli.MQTTPort
	}
	if cli.ClientID != "" {
		cfg.MQTT.ClientID = cli.ClientID
	}
	if cli.CAFile != "" {
		// A file given on the command line replaces whatever inline chain
		// the lower layers carried.
		cfg.TLS.CAChainFile = cli.CAFile
		cfg.TLS.CAChainPEM = ""
	}
	if cli.Fingerprint != "" {
		cfg.TLS.Fingerprint = cli.Fingerprint
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed. The file holds secrets and is
// written owner-only.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// ResolveCAChain loads CAChainFile into CAChainPEM when no inline chain is set.
func (c *Config) ResolveCAChain() error {
	data, err := c.CAChain()
	if err != nil {
		return err
	}
	c.TLS.CAChainPEM = string(data)
	return nil
}

// Environment variable names. The credential names match the firmware
// header constants.
const (
	EnvWiFiSSID      = "WIFI_SSID"
	EnvWiFiPassword  = "WIFI_PASSWORD"
	EnvMQTTUser      = "MQTT_USER"
	EnvMQTTPassword  = "MQTT_PASSWORD"
	EnvMQTTServer    = "MQTT_SERVER"
	EnvMQTTPort      = "MQTT_PORT"
	EnvMQTTClientID  = "MQTT_CLIENT_ID"
	EnvCAChainPEM    = "CA_CHAIN_PEM"
	EnvCAChainFile   = "CA_CHAIN_PEM_FILE"
	EnvCAFingerprint = "CA_FINGERPRINT"
	EnvLogLevel      = "FWS_LOG_LEVEL"
)

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvWiFiSSID); v != "" {
		cfg.WiFi.SSID = v
	}
	if v := os.Getenv(EnvWiFiPassword); v != "" {
		cfg.WiFi.Password = secret.Value(v)
	}
	if v := os.Getenv(EnvMQTTUser); v != "" {
		cfg.MQTT.User = v
	}
	if v := os.Getenv(EnvMQTTPassword); v != "" {
		cfg.MQTT.Password = secret.Value(v)
	}
	if v := os.Getenv(EnvMQTTServer); v != "" {
		cfg.MQTT.Server = v
	}
	if v := os.Getenv(EnvMQTTPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q: %w", EnvMQTTPort, v, err)
		}
		cfg.MQTT.Port = port
	}
	if v := os.Getenv(EnvMQTTClientID); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := os.Getenv(EnvCAChainPEM); v != "" {
		cfg.TLS.CAChainPEM = v
	}
	if v := os.Getenv(EnvCAChainFile); v != "" {
		cfg.TLS.CAChainFile = v
		if os.Getenv(EnvCAChainPEM) == "" {
			cfg.TLS.CAChainPEM = ""
		}
	}
	if v := os.Getenv(EnvCAFingerprint); v != "" {
		cfg.TLS.Fingerprint = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}
