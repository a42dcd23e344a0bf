package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Guliveer/fwsecrets/internal/secret"
)

const embeddedYAML = `
wifi:
  ssid: "embedded_ssid"
  password: "embedded_pass"
mqtt:
  user: "embedded_user"
  server: "broker.embedded.example"
  port: 8883
`

func TestLoadLayered_CLIOverridesEverything(t *testing.T) {
	t.Setenv(EnvWiFiSSID, "env_ssid")
	t.Setenv(EnvMQTTServer, "broker.env.example")
	cli := CLIOverrides{SSID: "cli_ssid", MQTTServer: "broker.cli.example", MQTTPort: 1883}

	cfg, err := LoadLayered(cli, []byte(embeddedYAML), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WiFi.SSID != "cli_ssid" {
		t.Errorf("SSID = %q, want CLI override", cfg.WiFi.SSID)
	}
	if cfg.MQTT.Server != "broker.cli.example" {
		t.Errorf("Server = %q, want CLI override", cfg.MQTT.Server)
	}
	if cfg.MQTT.Port != 1883 {
		t.Errorf("Port = %d, want CLI override", cfg.MQTT.Port)
	}
}

func TestLoadLayered_EnvOverridesEmbed(t *testing.T) {
	t.Setenv(EnvMQTTPassword, "env_mqtt_pass")
	t.Setenv(EnvMQTTPort, "8884")

	cfg, err := LoadLayered(CLIOverrides{}, []byte(embeddedYAML), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTT.Password.Reveal() != "env_mqtt_pass" {
		t.Errorf("MQTT password not taken from env")
	}
	if cfg.MQTT.Port != 8884 {
		t.Errorf("Port = %d, want env override", cfg.MQTT.Port)
	}
	if cfg.WiFi.SSID != "embedded_ssid" {
		t.Errorf("SSID = %q, want embedded value", cfg.WiFi.SSID)
	}
}

func TestLoadLayered_FileOverridesEmbed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.yaml")
	if err := os.WriteFile(path, []byte("wifi:\n  ssid: file_ssid\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLayered(CLIOverrides{}, []byte(embeddedYAML), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WiFi.SSID != "file_ssid" {
		t.Errorf("SSID = %q, want file value", cfg.WiFi.SSID)
	}
	if cfg.WiFi.Password.Reveal() != "embedded_pass" {
		t.Errorf("password should survive from embedded layer")
	}
}

func TestLoadLayered_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadLayered(CLIOverrides{}, nil, filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTT.Server != DefaultServer {
		t.Errorf("Server = %q, want default", cfg.MQTT.Server)
	}
}

func TestLoadLayered_DefaultsWhenEmpty(t *testing.T) {
	cfg, err := LoadLayered(CLIOverrides{}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MQTT.Server != "test.mosquitto.org" || cfg.MQTT.Port != 1883 {
		t.Errorf("broker = %s:%d, want test.mosquitto.org:1883", cfg.MQTT.Server, cfg.MQTT.Port)
	}
	if cfg.MQTT.ConnectTimeout.Seconds() != 10 {
		t.Errorf("ConnectTimeout = %v, want 10s default", cfg.MQTT.ConnectTimeout.Duration)
	}
}

func TestLoadFromBytes_BadPortEnv(t *testing.T) {
	t.Setenv(EnvMQTTPort, "eighty")
	if _, err := LoadFromBytes(nil); err == nil {
		t.Fatal("expected error for non-numeric MQTT_PORT")
	}
}

func TestLoadLayered_CAFileReplacesInlineChain(t *testing.T) {
	embedded := []byte("tls:\n  ca_chain_pem: \"inline\"\n")
	cfg, err := LoadLayered(CLIOverrides{CAFile: "/tmp/chain.pem"}, embedded, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TLS.CAChainPEM != "" || cfg.TLS.CAChainFile != "/tmp/chain.pem" {
		t.Errorf("TLS = %+v, want file to replace inline chain", cfg.TLS)
	}
}

func TestResolveCAChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.pem")
	if err := os.WriteFile(path, []byte("PEM DATA"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.TLS.CAChainFile = path
	if err := cfg.ResolveCAChain(); err != nil {
		t.Fatal(err)
	}
	if cfg.TLS.CAChainPEM != "PEM DATA" {
		t.Errorf("CAChainPEM = %q", cfg.TLS.CAChainPEM)
	}

	cfg.TLS.CAChainPEM = ""
	cfg.TLS.CAChainFile = filepath.Join(t.TempDir(), "missing.pem")
	if err := cfg.ResolveCAChain(); err == nil {
		t.Error("expected error for missing CA file")
	}
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "secrets.yaml")

	cfg := DefaultConfig()
	cfg.WiFi.SSID = "lab"
	cfg.WiFi.Password = secret.Value("correct horse")
	cfg.MQTT.User = "device-1"
	cfg.MQTT.Password = secret.Value("hunter22")

	if err := WriteConfig(cfg, path); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		t.Errorf("secrets file mode = %v, want owner-only", perm)
	}

	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.WiFi.Password.Reveal() != "correct horse" || back.MQTT.Password.Reveal() != "hunter22" {
		t.Error("secrets did not survive the write/load round trip")
	}
	if back.MQTT.KeepAlive.Duration != cfg.MQTT.KeepAlive.Duration {
		t.Errorf("KeepAlive = %v, want %v", back.MQTT.KeepAlive.Duration, cfg.MQTT.KeepAlive.Duration)
	}
}
