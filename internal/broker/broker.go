// Package broker turns device secrets into MQTT client options and checks
// them against a live broker. The protocol itself is handled by paho.
package broker

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	"github.com/Guliveer/fwsecrets/internal/certs"
	"github.com/Guliveer/fwsecrets/internal/config"
	"github.com/Guliveer/fwsecrets/internal/secret"
)

const clientIDPrefix = "fwsecrets"

// BrokerURL returns the paho broker URL for cfg: tcp:// for plain
// connections and ssl:// when TLS applies.
func BrokerURL(cfg *config.Config) (string, error) {
	scheme := "tcp"
	switch cfg.Transport() {
	case config.TransportTLS:
		scheme = "ssl"
	case config.TransportMutualTLS:
		return "", fmt.Errorf("port %d: %w", cfg.MQTT.Port, config.ErrClientCertRequired)
	}
	return scheme + "://" + net.JoinHostPort(cfg.MQTT.Server, strconv.Itoa(cfg.MQTT.Port)), nil
}

// Options builds paho client options from cfg.
func Options(cfg *config.Config, logger *zap.Logger) (*mqtt.ClientOptions, error) {
	broker, err := BrokerURL(cfg)
	if err != nil {
		return nil, err
	}

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetProtocolVersion(4)
	opts.SetConnectTimeout(cfg.MQTT.ConnectTimeout.Duration)
	opts.SetKeepAlive(cfg.MQTT.KeepAlive.Duration)
	if cfg.MQTT.User != "" {
		opts.SetUsername(cfg.MQTT.User)
	}
	if !cfg.MQTT.Password.IsZero() {
		opts.SetPassword(cfg.MQTT.Password.Reveal())
	}

	if cfg.Transport() == config.TransportTLS {
		caPEM, err := cfg.CAChain()
		if err != nil {
			return nil, err
		}
		tlsCfg, err := certs.TLSConfig(cfg.MQTT.Server, caPEM, cfg.TLS.Fingerprint, cfg.TLS.InsecureSkipVerify)
		if err != nil {
			return nil, fmt.Errorf("building TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("Connected to broker", zap.String("broker", broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("Connection to broker lost", zap.String("broker", broker), zap.Error(err))
	})

	logger.Debug("Built MQTT client options",
		zap.String("broker", broker),
		zap.String("client_id", clientID),
		zap.String("user", cfg.MQTT.User),
		secret.Field("password", cfg.MQTT.Password))
	return opts, nil
}

// DefaultClientID derives a stable client ID from the host name and host ID.
// It falls back to the process ID when host information is unavailable.
func DefaultClientID() string {
	info, err := host.Info()
	if err != nil || info.Hostname == "" {
		return fmt.Sprintf("%s-%d", clientIDPrefix, os.Getpid())
	}
	id := clientIDPrefix + "-" + sanitize(info.Hostname)
	if hostID := strings.ReplaceAll(info.HostID, "-", ""); len(hostID) >= 8 {
		id += "-" + hostID[:8]
	}
	return id
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}

// RouteLogs sends paho's internal logging to logger.
func RouteLogs(logger *zap.Logger) {
	named := logger.Named("paho")
	mqtt.ERROR, _ = zap.NewStdLogAt(named, zap.ErrorLevel)
	mqtt.CRITICAL = mqtt.ERROR
	mqtt.WARN, _ = zap.NewStdLogAt(named, zap.WarnLevel)
	if logger.Core().Enabled(zap.DebugLevel) {
		mqtt.DEBUG, _ = zap.NewStdLogAt(named, zap.DebugLevel)
	}
}

// Check connects to the broker described by cfg, waits for the broker to
// accept the session and disconnects again. It returns nil only when the
// broker accepted the credentials.
func Check(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	opts, err := Options(cfg, logger)
	if err != nil {
		return err
	}
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	broker := opts.Servers[0].String()

	if t := cfg.MQTT.ConnectTimeout.Duration; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		// Aborts the in-flight attempt.
		client.Disconnect(0)
		return fmt.Errorf("connecting to %s: %w", broker, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to %s: %w", broker, err)
	}

	client.Disconnect(250)
	logger.Info("Broker accepted credentials", zap.String("broker", broker))
	return nil
}
