package main

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Guliveer/fwsecrets/internal/broker"
	"github.com/Guliveer/fwsecrets/internal/certs"
	"github.com/Guliveer/fwsecrets/internal/config"
	"github.com/Guliveer/fwsecrets/internal/header"
	"github.com/Guliveer/fwsecrets/internal/setup"
)

func (a *app) validateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that the secrets are well-formed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			validate := cfg.Validate
			if strict {
				validate = cfg.ValidateStrict
			}
			if err := validate(); err != nil {
				return fmt.Errorf("invalid secrets:\n%w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK (%s %s:%d)\n", cfg.Transport(), cfg.MQTT.Server, cfg.MQTT.Port)
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Also reject placeholder values")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective secrets with sensitive values masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if err := cfg.ResolveCAChain(); err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func (a *app) fingerprintCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print certificate fingerprints of the CA chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			var data []byte
			if file != "" {
				data, err = os.ReadFile(file)
			} else {
				data, err = cfg.CAChain()
			}
			if err != nil {
				return err
			}
			if len(data) == 0 {
				return fmt.Errorf("no CA chain configured: %w", certs.ErrNoCertificates)
			}
			chain, err := certs.ParseChain(data)
			if err != nil {
				return err
			}
			return printFingerprints(cmd.OutOrStdout(), chain, cfg.TLS.Fingerprint)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Read certificates from this PEM file instead of the config")
	return cmd
}

func printFingerprints(w io.Writer, chain []*x509.Certificate, pin string) error {
	for i, c := range chain {
		fmt.Fprintf(w, "[%d] %s\n", i, c.Subject.String())
		fmt.Fprintf(w, "    SHA1:   %s\n", certs.Fingerprint(c))
		fmt.Fprintf(w, "    SHA256: %s\n", certs.FingerprintSHA256(c))
	}
	if pin == "" {
		return nil
	}
	c, ok := certs.MatchChain(chain, pin)
	if !ok {
		return fmt.Errorf("configured fingerprint %s: %w", pin, certs.ErrFingerprintMismatch)
	}
	fmt.Fprintf(w, "configured fingerprint matches %s\n", c.Subject.String())
	return nil
}

func (a *app) renderCmd() *cobra.Command {
	var (
		output string
		opts   header.Options
		lax    bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write the secrets as a C header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if err := cfg.ResolveCAChain(); err != nil {
				return err
			}
			if !lax {
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid secrets:\n%w", err)
				}
			}

			var buf bytes.Buffer
			if output != "" && opts.FileName == "" {
				opts.FileName = output
			}
			if err := header.Render(&buf, cfg, opts); err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0600); err != nil {
				return fmt.Errorf("writing header: %w", err)
			}
			a.logger.Info("Rendered header", zap.String("path", output), zap.Stringer("transport", cfg.Transport()))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	f.StringVar(&opts.FileName, "name", "", "Header file name used for the include guard (default: output name or secrets.h)")
	f.StringVar(&opts.Guard, "guard", "", "Include guard macro")
	f.BoolVar(&opts.Progmem, "progmem", false, "Place the CA chain in flash (PROGMEM)")
	f.BoolVar(&lax, "no-validate", false, "Render even when values are invalid")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "import <header>",
		Short: "Convert an existing C secrets header to YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger = initLogger(config.LoggingConfig{Level: a.cli.LogLevel})

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			cfg, err := header.Parse(f)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			if err := cfg.ValidateStrict(); err != nil {
				a.logger.Warn("Imported header has problems", zap.Error(err))
			}

			if output == "" {
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := config.WriteConfig(cfg, output); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			a.logger.Info("Imported header", zap.String("from", args[0]), zap.String("to", output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the secrets file here instead of stdout")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Connect to the MQTT broker with the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid secrets:\n%w", err)
			}
			broker.RouteLogs(a.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := broker.Check(ctx, cfg, a.logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func (a *app) initCmd() *cobra.Command {
	var opts setup.Options
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a secrets file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.SSID = a.cli.SSID
			opts.WiFiPassword = a.cli.WiFiPassword
			opts.MQTTUser = a.cli.MQTTUser
			opts.MQTTPassword = a.cli.MQTTPassword
			opts.MQTTServer = a.cli.MQTTServer
			opts.MQTTPort = a.cli.MQTTPort
			opts.CAFile = a.cli.CAFile
			opts.Fingerprint = a.cli.Fingerprint
			if a.explicitPath {
				opts.Path = a.configPath
			}
			w := setup.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout())
			_, err := w.Run(version, opts)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Mode, "mode", "", "Install mode: system or user")
	f.BoolVar(&opts.Header, "header", false, "Also render the C header next to the secrets file")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fwsecrets %s\n", version)
		},
	}
}
