// Package watch implements the watch bounded context: periodic pricing of
// a configured token list with console or TUI reporting.
package watch

import (
	"context"
	"os"

	blockchainDI "github.com/fd1az/token-price-engine/business/blockchain/di"
	pricingDI "github.com/fd1az/token-price-engine/business/pricing/di"
	"github.com/fd1az/token-price-engine/business/watch/app"
	watchDI "github.com/fd1az/token-price-engine/business/watch/di"
	"github.com/fd1az/token-price-engine/business/watch/domain"
	"github.com/fd1az/token-price-engine/business/watch/infra"
	"github.com/fd1az/token-price-engine/internal/clock"
	"github.com/fd1az/token-price-engine/internal/config"
	"github.com/fd1az/token-price-engine/internal/di"
	"github.com/fd1az/token-price-engine/internal/logger"
	"github.com/fd1az/token-price-engine/internal/monolith"
	"github.com/fd1az/token-price-engine/pkg/ui"
)

// Module implements the watch bounded context.
type Module struct{}

// RegisterServices registers all watch services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Reporter (private - TUI or console output)
	di.RegisterToken(c, watchDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Watch.TUIMode {
			return infra.NewTUIReporter()
		}
		return infra.NewConsoleReporter(os.Stdout)
	})

	// Register Watcher (public - started by the watch command)
	di.RegisterToken(c, watchDI.Watcher, func(sr di.ServiceRegistry) *app.Watcher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		targets, err := domain.ParseTargets(cfg.Watch.Tokens)
		if err != nil {
			panic("invalid watch tokens: " + err.Error())
		}

		watcher, err := app.NewWatcher(
			pricingDI.GetPriceService(sr),
			pricingDI.GetQuoteCache(sr),
			blockchainDI.GetChainService(sr),
			watchDI.GetReporter(sr),
			app.Config{
				Targets:     targets,
				Interval:    cfg.Watch.Interval,
				Parallelism: cfg.Watch.Parallelism,
			},
			clock.Real(),
			log,
		)
		if err != nil {
			panic("failed to create watcher: " + err.Error())
		}
		return watcher
	})

	return nil
}

// Startup seeds the TUI with the watch list. The watcher itself is started
// by the caller so one-shot commands can skip it.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	if !cfg.Watch.TUIMode {
		return nil
	}

	targets, err := domain.ParseTargets(cfg.Watch.Tokens)
	if err != nil {
		return err
	}
	ui.Send(ui.TargetsMsg{Targets: targets})
	return nil
}
