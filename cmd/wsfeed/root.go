package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rickgao/wsfeed/internal/config"
	"github.com/rickgao/wsfeed/internal/connection"
	"github.com/rickgao/wsfeed/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "wsfeed",
	Short: "Real-time event feed client",
	Long: `wsfeed keeps a WebSocket connection to a server's push endpoint,
reconnecting with exponential backoff, and delivers events to subscribers
with bursty types throttled and coalesced.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "wsfeed", version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (defaults are used when empty)")
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the --config file, or the defaults when none is given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.LoadAndValidate(path)
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// managerConfig maps the client section onto the connection manager.
func managerConfig(cfg *config.Config) connection.ManagerConfig {
	return connection.ManagerConfig{
		URL:                  cfg.Server.WSURL,
		MaxReconnectAttempts: cfg.Client.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.Client.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Client.ReconnectMaxDelay,
		FlushInterval:        cfg.Client.FlushInterval,
		MaxMessagesPerSecond: cfg.Client.MaxMessagesPerSecond,
		Client: connection.ClientConfig{
			URL:              cfg.Server.WSURL,
			HandshakeTimeout: cfg.Client.HandshakeTimeout,
			PingInterval:     cfg.Client.PingInterval,
			PingTimeout:      cfg.Client.PingTimeout,
			WriteTimeout:     cfg.Client.WriteTimeout,
			BufferSize:       cfg.Client.BufferSize,
		},
	}
}
