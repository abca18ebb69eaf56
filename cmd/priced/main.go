// Package main is the entry point for the token price engine.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-price-engine/business/blockchain"
	"github.com/fd1az/token-price-engine/business/pricing"
	"github.com/fd1az/token-price-engine/business/watch"
	"github.com/fd1az/token-price-engine/internal/apm"
	"github.com/fd1az/token-price-engine/internal/config"
	"github.com/fd1az/token-price-engine/internal/health"
	"github.com/fd1az/token-price-engine/internal/logger"
	"github.com/fd1az/token-price-engine/internal/metrics"
	"github.com/fd1az/token-price-engine/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "priced",
		Short:        "Cross-chain token USD price engine",
		SilenceUsage: true,
		RunE:         runWatch,
	}

	root.PersistentFlags().String("config", "", "path to configuration file")
	root.PersistentFlags().Bool("cli", false, "run with logs on stderr instead of the TUI")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Price the configured tokens on an interval (default)",
		RunE:  runWatch,
	}

	priceCmd := &cobra.Command{
		Use:   "price <chain> <token>",
		Short: "Resolve the USD price of one token",
		Args:  cobra.ExactArgs(2),
		RunE:  runPrice,
	}
	priceCmd.Flags().Int("decimals", -1, "token decimals, read on-chain when negative")

	primeCmd := &cobra.Command{
		Use:   "prime <chain> <token>",
		Short: "Locate the best venue for a token and persist it",
		Args:  cobra.ExactArgs(2),
		RunE:  runPrime,
	}
	primeCmd.Flags().Int("decimals", -1, "token decimals, read on-chain when negative")
	primeCmd.Flags().String("token-id", "", "key the venue is stored under (defaults to chain:token)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "priced %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	}

	root.AddCommand(watchCmd, priceCmd, primeCmd, versionCmd)
	return root
}

// container is the part of the monolith the commands drive.
type container interface {
	monolith.Monolith
	RegisterModules(modules ...monolith.Module) error
	StartModules(ctx context.Context, modules ...monolith.Module) error
	Close() error
}

// application bundles what every command needs after bootstrap.
type application struct {
	cfg     *config.Config
	log     *logger.Logger
	health  *health.Server
	mono    container
	modules []monolith.Module
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// bootstrap loads config, builds the logger and telemetry, and registers
// every module. Modules are not started.
func bootstrap(ctx context.Context, cmd *cobra.Command, tuiMode bool) (*application, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set TUI mode in config so modules know
	cfg.Watch.TUIMode = tuiMode

	var out io.Writer = os.Stderr
	if tuiMode {
		// In TUI mode, suppress logs (discard output)
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, traceID)

	a := &application{cfg: cfg, log: log}

	if cfg.Telemetry.Enabled {
		startTelemetry(ctx, a)
	}

	a.health = health.NewServer(cfg.Health.Port, version, log)

	mono := monolith.New(cfg, log, a.health)
	a.mono = mono
	a.closers = append(a.closers, func() {
		if err := mono.Close(); err != nil {
			log.Warn(ctx, "error releasing resources", "error", err)
		}
	})

	// Define modules in dependency order
	a.modules = []monolith.Module{
		&blockchain.Module{}, // Must be first - provides chain readers
		&pricing.Module{},    // Depends on blockchain for chain readers
		&watch.Module{},      // Depends on blockchain and pricing
	}

	if err := mono.RegisterModules(a.modules...); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}

	return a, nil
}

func startTelemetry(ctx context.Context, a *application) {
	cfg := a.cfg.Telemetry

	provider := apm.ParseProvider(cfg.TraceProvider)
	traceProvider := apm.NewTraceProvider(a.log, apm.WithProvider(provider, apm.ExporterConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Headers:     cfg.OTLPHeaders,
	}, a.log))
	a.log.Info(ctx, "tracing initialized", "provider", string(provider), "endpoint", cfg.OTLPEndpoint)

	metrics.NewMetricProvider(
		metrics.WithServiceName(cfg.ServiceName),
		metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
	)

	metricsCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := metrics.ServePrometheusMetrics(metricsCtx,
			metrics.WithPort(cfg.PrometheusPort),
			metrics.WithLogger(a.log),
		); err != nil {
			a.log.Warn(ctx, "prometheus metrics server stopped", "error", err)
		}
	}()
	a.log.Info(ctx, "prometheus metrics server started", "port", cfg.PrometheusPort)

	a.closers = append(a.closers, func() {
		cancel()
		if err := traceProvider.Stop(); err != nil {
			a.log.Warn(ctx, "error stopping trace provider", "error", err)
		}
	})
}

// traceID tags log lines with the active span's trace id.
func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
