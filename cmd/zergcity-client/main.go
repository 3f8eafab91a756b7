// Command zergcity-client runs the ZergCity networking client core: it
// connects to a server, maintains the connection state machine (with
// reconnect backoff and timeout escalation), and exposes input/state-update
// queues for an embedding UI or headless driver to consume.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"zergcity/internal/netio/client"
	"zergcity/internal/netio/logging"
	"zergcity/internal/netio/metrics"
	"zergcity/internal/netio/transport"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := client.DefaultConfig()
	var address string
	var port int
	var playerName string
	var devLog bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "zergcity-client",
		Short: "ZergCity headless networking client",
		Long: `zergcity-client connects to a zergcityd server and drives the
connection state machine — join/reconnect, heartbeats, timeout escalation —
independent of any particular rendering front end.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.PlayerName = playerName
			return run(cmd.Context(), cfg, address, port, devLog, logLevel)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&address, "address", "127.0.0.1", "server address to connect to")
	flags.IntVar(&port, "port", 7777, "server port to connect to")
	flags.StringVar(&playerName, "name", cfg.PlayerName, "player name to present on join")
	flags.DurationVar(&cfg.InitialReconnectDelay, "initial-reconnect-delay", cfg.InitialReconnectDelay, "initial delay before the first reconnect attempt")
	flags.DurationVar(&cfg.MaxReconnectDelay, "max-reconnect-delay", cfg.MaxReconnectDelay, "reconnect backoff ceiling")
	flags.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "interval between client heartbeats")
	flags.BoolVar(&devLog, "dev", false, "use human-readable development logging instead of JSON")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func run(ctx context.Context, cfg client.Config, address string, port int, devLog bool, logLevel string) error {
	logger, err := buildLogger(devLog, logLevel)
	if err != nil {
		return fmt.Errorf("zergcity-client: building logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "zergcity_client")

	t := transport.NewKCPTransport()
	cl := client.New(cfg, t, logger, m)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cl.Connect(ctx, address, port); err != nil {
		return fmt.Errorf("zergcity-client: connecting: %w", err)
	}

	logger.Info("zergcity-client: connecting", zap.String("address", address), zap.Int("port", port))

	cl.Run(ctx)
	return nil
}

func buildLogger(dev bool, level string) (*zap.Logger, error) {
	if dev {
		return logging.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl)
}
