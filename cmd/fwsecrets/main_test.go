package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Guliveer/fwsecrets/internal/certs"
	"github.com/Guliveer/fwsecrets/internal/certs/certtest"
	"github.com/Guliveer/fwsecrets/internal/config"
)

// clearEnv keeps the developer's shell from leaking into the layered load.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.EnvWiFiSSID, config.EnvWiFiPassword, config.EnvMQTTUser,
		config.EnvMQTTPassword, config.EnvMQTTServer, config.EnvMQTTPort,
		config.EnvMQTTClientID, config.EnvCAChainPEM, config.EnvCAChainFile,
		config.EnvCAFingerprint, config.EnvLogLevel,
	} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{logger: zap.NewNop()}
	root := a.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeSecrets(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

const plainSecrets = `
wifi:
  ssid: workshop
  password: correct horse
mqtt:
  user: device-1
  password: hunter22
  server: broker.lan
  port: 1883
logging:
  level: error
`

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fwsecrets dev\n", out)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	path := writeSecrets(t, plainSecrets)

	out, err := run(t, "--config", path, "validate")
	require.NoError(t, err)
	assert.Equal(t, "OK (plain broker.lan:1883)\n", out)

	_, err = run(t, "--config", path, "--ssid", strings.Repeat("x", 33), "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wifi.ssid")

	_, err = run(t, "--config", path, "--mqtt-password", "Lets_hack_it_777", "validate", "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
}

func TestShowMasksSecrets(t *testing.T) {
	clearEnv(t)
	path := writeSecrets(t, plainSecrets)

	out, err := run(t, "--config", path, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "ssid: workshop")
	assert.NotContains(t, out, "hunter22")
	assert.NotContains(t, out, "correct horse")
}

func TestRenderAndImport(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeSecrets(t, plainSecrets)
	headerPath := filepath.Join(dir, "device_secrets.h")

	_, err := run(t, "--config", path, "render", "-o", headerPath)
	require.NoError(t, err)
	data, err := os.ReadFile(headerPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#if !defined(DEVICE_SECRETS_H)")
	assert.Contains(t, string(data), `#define WIFI_SSID "workshop"`)

	yamlPath := filepath.Join(dir, "imported.yaml")
	_, err = run(t, "import", headerPath, "-o", yamlPath)
	require.NoError(t, err)

	cfg, err := config.Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "workshop", cfg.WiFi.SSID)
	assert.Equal(t, "hunter22", cfg.MQTT.Password.Reveal())
	assert.Equal(t, "broker.lan", cfg.MQTT.Server)
}

func TestRenderRejectsInvalid(t *testing.T) {
	clearEnv(t)
	path := writeSecrets(t, plainSecrets)

	_, err := run(t, "--config", path, "--mqtt-server", "bad host!", "render")
	require.Error(t, err)

	out, err := run(t, "--config", path, "--mqtt-server", "bad host!", "render", "--no-validate")
	require.NoError(t, err)
	assert.Contains(t, out, `#define MQTT_SERVER "bad host!"`)
}

func TestFingerprint(t *testing.T) {
	clearEnv(t)
	ca := certtest.NewCA(t, "broker CA")
	caPath := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(caPath, []byte(ca.PEM), 0600))
	path := writeSecrets(t, plainSecrets)

	out, err := run(t, "--config", path, "--fingerprint", certs.Fingerprint(ca.Cert), "fingerprint", "--file", caPath)
	require.NoError(t, err)
	assert.Contains(t, out, "SHA1:   "+certs.Fingerprint(ca.Cert))
	assert.Contains(t, out, "configured fingerprint matches")

	_, err = run(t, "--config", path, "--fingerprint", strings.Repeat("00:", 19)+"00", "fingerprint", "--file", caPath)
	assert.ErrorIs(t, err, certs.ErrFingerprintMismatch)

	_, err = run(t, "--config", path, "fingerprint")
	assert.ErrorIs(t, err, certs.ErrNoCertificates)
}

func TestInitWithFlags(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "secrets.yaml")

	_, err := run(t, "--config", path,
		"--ssid", "workshop", "--wifi-password", "correct horse",
		"--mqtt-server", "broker.lan", "--mqtt-port", "1883",
		"--mqtt-user", "device-1", "--mqtt-password", "hunter22",
		"init")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "broker.lan", cfg.MQTT.Server)
	assert.Equal(t, "hunter22", cfg.MQTT.Password.Reveal())
}
