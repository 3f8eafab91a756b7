// Command zergcityd runs the ZergCity networking server core: it binds the
// transport, drives the lifecycle state machine, and routes client
// messages through validation, rate limiting, and the input handler. The
// simulation itself (terrain, population, economy) is an external
// collaborator wired in by the embedding process via Server.InputHandler.
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

	"zergcity/internal/netio/logging"
	"zergcity/internal/netio/metrics"
	"zergcity/internal/netio/server"
	"zergcity/internal/netio/transport"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := server.DefaultConfig()
	var devLog bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "zergcityd",
		Short: "ZergCity multiplayer server",
		Long: `zergcityd accepts player connections, assigns PlayerIDs, maintains
session and heartbeat state, and routes validated, rate-limited input to
the simulation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, devLog, logLevel)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.Port, "port", cfg.Port, "UDP port to listen on")
	flags.IntVar(&cfg.MaxPlayers, "max-players", cfg.MaxPlayers, "maximum concurrent players")
	flags.StringVar(&cfg.ServerName, "name", cfg.ServerName, "server name advertised to clients")
	flags.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "simulation ticks per second")
	flags.DurationVar(&cfg.SessionGracePeriod, "session-grace-period", cfg.SessionGracePeriod, "reconnect grace period before a session is reaped")
	flags.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "interval between server heartbeats")
	flags.IntVar(&cfg.HeartbeatWarningThreshold, "heartbeat-warning-threshold", cfg.HeartbeatWarningThreshold, "missed heartbeats before a warning is logged")
	flags.IntVar(&cfg.HeartbeatDisconnectThreshold, "heartbeat-disconnect-threshold", cfg.HeartbeatDisconnectThreshold, "missed heartbeats before a client is disconnected")
	flags.BoolVar(&devLog, "dev", false, "use human-readable development logging instead of JSON")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func run(ctx context.Context, cfg server.Config, devLog bool, logLevel string) error {
	logger, err := buildLogger(devLog, logLevel)
	if err != nil {
		return fmt.Errorf("zergcityd: building logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "zergcityd")

	t := transport.NewKCPTransport()
	srv := server.New(cfg, t, logger, m)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("zergcityd: starting server: %w", err)
	}

	logger.Info("zergcityd: listening",
		zap.Int("port", cfg.Port),
		zap.Int("max_players", cfg.MaxPlayers),
		zap.Int("tick_rate", cfg.TickRate),
	)

	srv.Run(ctx)
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
