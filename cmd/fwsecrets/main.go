// Package main is the entry point for the fwsecrets CLI. It loads device
// secrets, validates them, and injects them into firmware builds.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Guliveer/fwsecrets/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

// app carries the state shared by all subcommands.
type app struct {
	configPath string
	cli        config.CLIOverrides
	logger     *zap.Logger
	// explicitPath is set when --config was given; otherwise the standard
	// locations are searched.
	explicitPath bool
}

func main() {
	a := &app{logger: zap.NewNop()}
	root := a.rootCmd()
	err := root.Execute()
	a.logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fwsecrets",
		Short:         "Manage Wi-Fi, MQTT and TLS secrets for firmware builds",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.explicitPath = cmd.Flags().Changed("config")
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Path to secrets file (default: search standard locations)")
	f.StringVar(&a.cli.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&a.cli.SSID, "ssid", "", "Wi-Fi SSID")
	f.StringVar(&a.cli.WiFiPassword, "wifi-password", "", "Wi-Fi password")
	f.StringVar(&a.cli.MQTTUser, "mqtt-user", "", "MQTT user")
	f.StringVar(&a.cli.MQTTPassword, "mqtt-password", "", "MQTT password")
	f.StringVar(&a.cli.MQTTServer, "mqtt-server", "", "MQTT broker host")
	f.IntVar(&a.cli.MQTTPort, "mqtt-port", 0, "MQTT broker port")
	f.StringVar(&a.cli.ClientID, "client-id", "", "MQTT client ID")
	f.StringVar(&a.cli.CAFile, "ca-file", "", "CA chain PEM file")
	f.StringVar(&a.cli.Fingerprint, "fingerprint", "", "SHA-1 fingerprint of the broker CA")

	root.AddCommand(
		a.validateCmd(),
		a.showCmd(),
		a.fingerprintCmd(),
		a.renderCmd(),
		a.importCmd(),
		a.checkCmd(),
		a.initCmd(),
		versionCmd(),
	)
	return root
}

// load runs the layered config load and initializes the logger from the
// result.
func (a *app) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.explicitPath {
		cfg, err = config.LoadLayered(a.cli, embeddedConfig, a.configPath)
	} else {
		cfg, err = config.LoadLayered(a.cli, embeddedConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	a.logger = initLogger(cfg.Logging)
	a.checkPermissions()
	a.logger.Debug("Loaded secrets", zap.Object("config", cfg))
	return cfg, nil
}

// checkPermissions warns when the secrets file in use is readable by others.
func (a *app) checkPermissions() {
	path := a.configPath
	if !a.explicitPath {
		path = config.Locate()
	}
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := config.CheckFilePermissions(path); err != nil {
		a.logger.Warn("Insecure secrets file", zap.String("path", path), zap.Error(err))
	}
}

// initLogger creates a zap logger based on the configuration.
// Console output goes to stderr so command output on stdout stays clean;
// a JSON log file is added when configured.
func initLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stderr),
			level,
		),
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			))
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
