// Package setup implements the wizard that writes a device secrets file.
package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Guliveer/fwsecrets/internal/config"
	"github.com/Guliveer/fwsecrets/internal/header"
	"github.com/Guliveer/fwsecrets/internal/secret"
)

// Options holds the flags passed to init. Empty values are prompted for.
type Options struct {
	Mode         string // "system", "user", or "" (interactive)
	SSID         string
	WiFiPassword string
	MQTTUser     string
	MQTTPassword string
	MQTTServer   string
	MQTTPort     int
	CAFile       string
	Fingerprint  string
	// Header also renders the C header next to the secrets file.
	Header bool
	// Path overrides the config path derived from Mode.
	Path string
}

// Wizard runs the setup flow against the given terminal streams.
type Wizard struct {
	in  *bufio.Reader
	out io.Writer
}

// NewWizard returns a wizard reading answers from in and writing prompts to out.
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{in: bufio.NewReader(in), out: out}
}

// Run asks for every value not given in opts, validates the result and
// writes the secrets file. It returns the path written.
func (w *Wizard) Run(version string, opts Options) (string, error) {
	fmt.Fprintf(w.out, "\nfwsecrets setup %s\n", version)
	fmt.Fprintln(w.out, strings.Repeat("─", 30))
	fmt.Fprintln(w.out)

	paths := Paths{ConfigPath: opts.Path}
	if opts.Path == "" {
		mode, err := w.resolveMode(opts.Mode)
		if err != nil {
			return "", err
		}
		if err := CheckElevation(mode); err != nil {
			return "", err
		}
		paths = ResolvePaths(mode)
	}

	cfg := config.DefaultConfig()
	var err error
	if cfg.WiFi.SSID, err = w.resolveValue(opts.SSID, "Wi-Fi SSID", ""); err != nil {
		return "", err
	}
	wifiPass, err := w.resolveValue(opts.WiFiPassword, "Wi-Fi password (empty for open network)", "")
	if err != nil {
		return "", err
	}
	cfg.WiFi.Password = secret.Value(wifiPass)
	if cfg.MQTT.Server, err = w.resolveValue(opts.MQTTServer, "MQTT server", config.DefaultServer); err != nil {
		return "", err
	}
	if cfg.MQTT.Port, err = w.resolvePort(opts.MQTTPort); err != nil {
		return "", err
	}
	if cfg.MQTT.User, err = w.resolveValue(opts.MQTTUser, "MQTT user", ""); err != nil {
		return "", err
	}
	// Without a user the password is not prompted for, but a flag value is
	// kept so validation reports it.
	mqttPass := opts.MQTTPassword
	if cfg.MQTT.User != "" {
		if mqttPass, err = w.resolveValue(opts.MQTTPassword, "MQTT password", ""); err != nil {
			return "", err
		}
	}
	cfg.MQTT.Password = secret.Value(mqttPass)
	if cfg.Transport() != config.TransportPlain || opts.CAFile != "" || opts.Fingerprint != "" {
		if cfg.TLS.CAChainFile, err = w.resolveValue(opts.CAFile, "CA chain file (PEM)", ""); err != nil {
			return "", err
		}
		if cfg.TLS.Fingerprint, err = w.resolveValue(opts.Fingerprint, "CA SHA-1 fingerprint", ""); err != nil {
			return "", err
		}
	}

	// Inline the chain so the secrets file stands on its own.
	if err := cfg.ResolveCAChain(); err != nil {
		return "", err
	}
	cfg.TLS.CAChainFile = ""
	if err := cfg.ValidateStrict(); err != nil {
		return "", fmt.Errorf("invalid secrets:\n%w", err)
	}

	fmt.Fprintln(w.out, "\nWriting...")
	if err := config.WriteConfig(cfg, paths.ConfigPath); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(w.out, "  ✓ Written secrets → %s\n", paths.ConfigPath)

	if opts.Header {
		hp := paths.HeaderPath
		if hp == "" {
			hp = strings.TrimSuffix(paths.ConfigPath, ".yaml") + ".h"
		}
		if err := writeHeader(cfg, hp); err != nil {
			return "", err
		}
		fmt.Fprintf(w.out, "  ✓ Rendered header → %s\n", hp)
	}

	fmt.Fprintln(w.out, "\nDone.")
	return paths.ConfigPath, nil
}

func writeHeader(cfg *config.Config, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating header: %w", err)
	}
	defer f.Close()
	if err := header.Render(f, cfg, header.Options{FileName: path}); err != nil {
		return err
	}
	return f.Close()
}

// resolveMode determines the install mode from flag or interactive prompt.
func (w *Wizard) resolveMode(flagValue string) (InstallMode, error) {
	if flagValue != "" {
		return ParseMode(flagValue)
	}
	fmt.Fprintln(w.out, "Installation mode:")
	fmt.Fprintln(w.out, "  [1] System (per-machine) — requires root/admin")
	fmt.Fprintln(w.out, "  [2] User (per-user) — current user only")
	fmt.Fprint(w.out, "> ")
	choice, _ := w.in.ReadString('\n')
	choice = strings.TrimSpace(choice)
	switch choice {
	case "1":
		return ModeSystem, nil
	case "2":
		return ModeUser, nil
	default:
		return 0, fmt.Errorf("invalid choice %q", choice)
	}
}

// resolveValue gets a value from flag or interactive prompt.
func (w *Wizard) resolveValue(flagValue, prompt, defaultVal string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if defaultVal != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}
	val, err := w.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	val = strings.TrimRight(val, "\r\n")
	if strings.TrimSpace(val) == "" {
		return defaultVal, nil
	}
	return val, nil
}

func (w *Wizard) resolvePort(flagValue int) (int, error) {
	if flagValue != 0 {
		return flagValue, nil
	}
	s, err := w.resolveValue("", "MQTT port (1883 plain, 8883 TLS)", strconv.Itoa(config.DefaultPort))
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}
