package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	pricingApp "github.com/fd1az/token-price-engine/business/pricing/app"
	"github.com/fd1az/token-price-engine/business/watch/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/clock"
	"github.com/fd1az/token-price-engine/internal/logger"
)

const (
	defaultInterval       = 30 * time.Second
	defaultRequestTimeout = 45 * time.Second
)

// Config holds configuration for the watcher.
type Config struct {
	Targets     []domain.Target
	Interval    time.Duration
	Parallelism int
	// RequestTimeout bounds one target's resolution across every stage.
	RequestTimeout time.Duration
}

// Watcher prices every target once per interval with bounded parallelism.
// A target that fails is reported and retried next cycle.
type Watcher struct {
	pricer   Pricer
	refs     ReferenceReader
	chains   ChainProber
	reporter Reporter
	config   Config
	clock    clock.Clock
	logger   logger.LoggerInterface

	mu     sync.Mutex
	cycle  uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a new Watcher. refs and chains may be nil.
func NewWatcher(
	pricer Pricer,
	refs ReferenceReader,
	chains ChainProber,
	reporter Reporter,
	config Config,
	clk clock.Clock,
	log logger.LoggerInterface,
) (*Watcher, error) {
	if len(config.Targets) == 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "watch needs at least one target")
	}
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultRequestTimeout
	}
	if clk == nil {
		clk = clock.Real()
	}

	return &Watcher{
		pricer:   pricer,
		refs:     refs,
		chains:   chains,
		reporter: reporter,
		config:   config,
		clock:    clk,
		logger:   log,
	}, nil
}

// Start starts the reporter and the polling loop.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "starting price watcher",
		"targets", len(w.config.Targets),
		"interval", w.config.Interval.String(),
		"parallelism", w.config.Parallelism,
	)

	if err := w.reporter.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.run(runCtx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.probeChains(ctx)
	w.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "watcher stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			w.probeChains(ctx)
			w.Cycle(ctx)
		}
	}
}

// Cycle prices every target once and reports each observation as it
// lands. It returns once every target has been observed or ctx is done.
func (w *Watcher) Cycle(ctx context.Context) domain.CycleSummary {
	w.mu.Lock()
	w.cycle++
	summary := domain.CycleSummary{Number: w.cycle, Started: w.clock.Now()}
	w.mu.Unlock()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(w.config.Parallelism)

	for _, target := range w.config.Targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			obs := w.observe(ctx, target)
			w.reporter.Report(obs)

			mu.Lock()
			if obs.OK() {
				summary.Priced++
			} else {
				summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = w.clock.Now().Sub(summary.Started)
	if w.refs != nil {
		w.reporter.ReportCycle(summary, w.refs.Snapshot(ctx))
	} else {
		w.reporter.ReportCycle(summary, nil)
	}

	w.logger.Debug(ctx, "watch cycle complete",
		"cycle", summary.Number,
		"priced", summary.Priced,
		"failed", summary.Failed,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary
}

func (w *Watcher) observe(ctx context.Context, target domain.Target) domain.Observation {
	ctx, cancel := context.WithTimeout(ctx, w.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := w.pricer.GetPriceUSD(ctx, pricingApp.PriceRequest{
		TokenID:    target.TokenID,
		Chain:      target.Chain,
		Identifier: target.Identifier,
		Decimals:   target.Decimals,
	})
	obs := domain.Observation{
		Target:  target,
		Latency: time.Since(start),
	}
	if err != nil {
		w.logger.Warn(ctx, "price unavailable, skipping this cycle",
			"token_id", target.TokenID, "error", err)
		obs.Err = err
		obs.ObservedAt = w.clock.Now()
		return obs
	}

	obs.PriceUSD = res.PriceUSD
	obs.MarketCapUSD = res.MarketCapUSD
	obs.Source = string(res.Source)
	obs.Provider = res.Provider
	obs.ObservedAt = res.ObservedAt
	return obs
}

func (w *Watcher) probeChains(ctx context.Context) {
	if w.chains == nil {
		return
	}
	for _, status := range w.chains.Status(ctx) {
		w.reporter.UpdateChainStatus(status)
	}
}

// Stop cancels the loop, waits for the running cycle and stops the reporter.
func (w *Watcher) Stop() error {
	w.logger.Info(context.Background(), "stopping price watcher")

	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return w.reporter.Stop()
}
