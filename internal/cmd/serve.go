package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atikulmunna/lognorm/internal/aggregator"
	"github.com/atikulmunna/lognorm/internal/config"
	"github.com/atikulmunna/lognorm/internal/hub"
	"github.com/atikulmunna/lognorm/internal/logger"
	"github.com/atikulmunna/lognorm/internal/metrics"
	"github.com/atikulmunna/lognorm/internal/parser"
	"github.com/atikulmunna/lognorm/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the normalizer over HTTP and WebSocket",
	Long: `Start an HTTP server exposing:

  POST /api/parse   normalize a JSON {"lines": [...]} list or a plain-text body
  GET  /ws          one raw line per text frame, one JSON entry per reply
  GET  /ws/stream   live feed of every entry the server normalizes
  GET  /api/stats   running level and format counts
  GET  /metrics     Prometheus metrics
  GET  /healthz     liveness`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	cobra.CheckErr(viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr")))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewParseMetrics(reg)

	// The feed has no raw input: the server publishes what it normalizes and
	// stream clients that fall behind lose entries.
	feed := hub.New(nil, parser.Default(), hub.WithMetrics(m))
	go feed.Start(ctx)

	// No channel: the server records entries directly, Start only prunes.
	agg := aggregator.New(nil, feed.Dropped, m)
	go agg.Start(ctx)

	srv := server.New(parser.Default(), agg, feed, reg, cfg.Server.Addr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
