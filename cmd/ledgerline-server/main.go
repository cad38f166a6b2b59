// Command ledgerline-server runs the matching engine's TCP front end:
// a cobra root command wiring configuration, the exchange, the TCP
// server, and the metrics listener.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	tomb "gopkg.in/tomb.v2"

	"github.com/saiputravu/ledgerline/internal/config"
	"github.com/saiputravu/ledgerline/internal/exchange"
	"github.com/saiputravu/ledgerline/internal/metrics"
	"github.com/saiputravu/ledgerline/internal/netproto"
	"github.com/saiputravu/ledgerline/internal/publish"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "ledgerline-server",
		Short: "Price-time-priority limit order matching engine",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the TCP front end and matching engine",
		RunE:  runServe,
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to a YAML/JSON/TOML config file")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("ledgerline-server exited with error")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	publisher, err := newPublisher(cmd.Context(), cfg.PublisherEndpoint)
	if err != nil {
		return fmt.Errorf("constructing publisher: %w", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)

	ex := exchange.New(cfg.IterationOrder(), collector, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	t, ctx := tomb.WithContext(ctx)
	ex.Start(t)

	srv := netproto.New(cfg.ListenAddress, cfg.ListenPort, ex)
	t.Go(func() error { return srv.Run(ctx) })

	go serveMetrics(cfg.MetricsAddress, registry)

	log.Info().
		Str("listenAddress", cfg.ListenAddress).
		Int("listenPort", cfg.ListenPort).
		Str("publisherEndpoint", cfg.PublisherEndpoint).
		Msg("ledgerline-server running")

	<-ctx.Done()
	t.Kill(nil)
	return t.Wait()
}

func newPublisher(ctx context.Context, endpoint string) (publish.ExecutionPublisher, error) {
	const redisScheme = "redis://"
	if len(endpoint) > len(redisScheme) && endpoint[:len(redisScheme)] == redisScheme {
		return publish.NewRedisPublisher(ctx, endpoint[len(redisScheme):]), nil
	}
	return publish.NewLogPublisher(), nil
}

func serveMetrics(address string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(address, mux); err != nil {
		log.Error().Err(err).Str("address", address).Msg("metrics listener exited")
	}
}
