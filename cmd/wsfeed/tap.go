package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/wsfeed/internal/api"
	"github.com/rickgao/wsfeed/internal/config"
	"github.com/rickgao/wsfeed/internal/connection"
	"github.com/rickgao/wsfeed/internal/event"
	"github.com/rickgao/wsfeed/internal/poller"
)

var tapCmd = &cobra.Command{
	Use:   "tap [event-type...]",
	Short: "Print delivered events as JSON lines",
	Long: `Connect to the push endpoint and print every delivered event of the
given types, one JSON object per line. With no types, the "message"
catch-all is used. Lifecycle events (open, close, error) can be named too.`,
	RunE: runTap,
}

func init() {
	tapCmd.Flags().String("url", "", "push endpoint, overrides server.ws_url")
	tapCmd.Flags().String("health-addr", "", "serve /health on this address, overrides health.listen_addr")
	tapCmd.Flags().Bool("no-health", false, "disable the server health poller")
	rootCmd.AddCommand(tapCmd)
}

// applyTapFlags copies command-line overrides into cfg and reports whether
// the health poller was disabled.
func applyTapFlags(cfg *config.Config, fs *pflag.FlagSet) (noHealth bool) {
	if url, _ := fs.GetString("url"); url != "" {
		cfg.Server.WSURL = url
	}
	if addr, _ := fs.GetString("health-addr"); addr != "" {
		cfg.Health.ListenAddr = addr
	}
	noHealth, _ = fs.GetBool("no-health")
	return noHealth
}

// delivery is one output line.
type delivery struct {
	Event      string      `json:"event"`
	ReceivedAt time.Time   `json:"received_at"`
	Payload    event.Event `json:"payload"`
}

func runTap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	noHealth := applyTapFlags(cfg, cmd.Flags())

	logger := newLogger(cfg.Log, cmd.ErrOrStderr())

	types := args
	if len(types) == 0 {
		types = []string{event.TypeMessage}
	}

	mgr := connection.NewManager(managerConfig(cfg), logger)

	var outMu sync.Mutex
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, typ := range types {
		mgr.Subscribe(typ, func(ev event.Event) {
			outMu.Lock()
			defer outMu.Unlock()
			if err := enc.Encode(delivery{Event: typ, ReceivedAt: ev.ReceivedAt, Payload: ev}); err != nil {
				logger.Warn("write event", "event", typ, "error", err)
			}
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var hp *poller.Poller
	if cfg.Health.IsEnabled() && !noHealth {
		client := api.NewClient(cfg.Server.HealthURL,
			api.WithLogger(logger),
			api.WithTimeout(cfg.Health.Timeout),
			api.WithRetries(cfg.Health.Retries, cfg.Health.RetryBackoff),
		)
		hp = poller.New(poller.Config{
			Interval: cfg.Health.Interval,
			Timeout:  cfg.Health.Timeout,
		}, client, mgr, logger.With("component", "health"))

		g.Go(func() error {
			if err := hp.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hp.Stop(stopCtx)
		})
	}

	if cfg.Health.ListenAddr != "" {
		srv := &http.Server{
			Addr:              cfg.Health.ListenAddr,
			Handler:           healthHandler(mgr, hp),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting health server", "addr", cfg.Health.ListenAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("tapping events", "url", cfg.Server.WSURL, "types", types)
	mgr.Connect()

	g.Go(func() error {
		<-ctx.Done()
		mgr.Disconnect()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	s := mgr.Stats()
	logger.Info("tap stopped",
		"received", s.Received,
		"delivered", s.Dispatcher.Delivered,
		"coalesced", s.Router.Coalesced,
		"malformed", s.Malformed,
	)
	return nil
}
