package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainDomain "github.com/fd1az/token-price-engine/business/blockchain/domain"
	pricingApp "github.com/fd1az/token-price-engine/business/pricing/app"
	pricingDomain "github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/business/watch/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/clock"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakePricer prices every token at 1 USD except those listed in failing.
// It tracks the peak number of concurrent calls.
type fakePricer struct {
	failing  map[string]bool
	delay    time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (p *fakePricer) GetPriceUSD(ctx context.Context, req pricingApp.PriceRequest) (pricingApp.PriceResult, error) {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return pricingApp.PriceResult{}, ctx.Err()
		}
	}

	if p.failing[req.TokenID] {
		return pricingApp.PriceResult{}, apperror.New(apperror.CodeAllSourcesFailed)
	}
	return pricingApp.PriceResult{
		PriceUSD:   decimal.NewFromInt(1),
		Source:     pricingDomain.SourceFreshVenue,
		ObservedAt: epoch,
	}, nil
}

type fakeReporter struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	obs      []domain.Observation
	cycles   []domain.CycleSummary
	refs     [][]pricingDomain.QuoteCurrencyEntry
	statuses []chainDomain.ChainStatus
}

func (r *fakeReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return nil
}

func (r *fakeReporter) Report(obs domain.Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, obs)
}

func (r *fakeReporter) ReportCycle(s domain.CycleSummary, refs []pricingDomain.QuoteCurrencyEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, s)
	r.refs = append(r.refs, refs)
}

func (r *fakeReporter) UpdateChainStatus(s chainDomain.ChainStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *fakeReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

func (r *fakeReporter) cycleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cycles)
}

type fakeRefs struct{}

func (fakeRefs) Snapshot(ctx context.Context) []pricingDomain.QuoteCurrencyEntry {
	return []pricingDomain.QuoteCurrencyEntry{{Asset: "ETH", PriceUSD: decimal.NewFromInt(3000), Source: "home-venue"}}
}

type fakeChains struct{}

func (fakeChains) Status(ctx context.Context) []chainDomain.ChainStatus {
	return []chainDomain.ChainStatus{{Chain: asset.ChainEthereum, State: chainDomain.StateConnected, Height: 19_000_000}}
}

func targets(t *testing.T, n int) []domain.Target {
	t.Helper()
	// Distinct valid EVM addresses.
	out := make([]domain.Target, 0, n)
	for i := 0; i < n; i++ {
		tgt, err := domain.ParseTarget(fmt.Sprintf("ethereum:0x%040x", i+1))
		require.NoError(t, err)
		out = append(out, tgt)
	}
	return out
}

func TestWatcher_CycleReportsEveryTarget(t *testing.T) {
	tgts := targets(t, 3)
	pricer := &fakePricer{failing: map[string]bool{tgts[1].TokenID: true}}
	rep := &fakeReporter{}

	w, err := NewWatcher(pricer, fakeRefs{}, nil, rep, Config{Targets: tgts, Parallelism: 2}, clock.NewFake(epoch), &mockLogger{})
	require.NoError(t, err)

	summary := w.Cycle(context.Background())

	assert.Equal(t, uint64(1), summary.Number)
	assert.Equal(t, 2, summary.Priced)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, rep.obs, 3)
	require.Len(t, rep.refs, 1)
	assert.Equal(t, "ETH", rep.refs[0][0].Asset)

	var failed int
	for _, o := range rep.obs {
		if !o.OK() {
			failed++
			assert.Equal(t, tgts[1].TokenID, o.Target.TokenID)
			assert.True(t, apperror.HasCode(o.Err, apperror.CodeAllSourcesFailed))
		} else {
			assert.Equal(t, string(pricingDomain.SourceFreshVenue), o.Source)
		}
	}
	assert.Equal(t, 1, failed)

	assert.Equal(t, uint64(2), w.Cycle(context.Background()).Number)
}

func TestWatcher_BoundedParallelism(t *testing.T) {
	pricer := &fakePricer{delay: 20 * time.Millisecond}
	rep := &fakeReporter{}

	w, err := NewWatcher(pricer, nil, nil, rep, Config{Targets: targets(t, 8), Parallelism: 3}, nil, &mockLogger{})
	require.NoError(t, err)

	summary := w.Cycle(context.Background())

	assert.Equal(t, 8, summary.Priced)
	assert.Equal(t, int32(8), pricer.calls.Load())
	assert.LessOrEqual(t, pricer.peak.Load(), int32(3))
}

func TestWatcher_StartStop(t *testing.T) {
	pricer := &fakePricer{}
	rep := &fakeReporter{}

	w, err := NewWatcher(pricer, fakeRefs{}, fakeChains{}, rep,
		Config{Targets: targets(t, 2), Interval: 10 * time.Millisecond, Parallelism: 2}, nil, &mockLogger{})
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	require.Eventually(t, func() bool { return rep.cycleCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	rep.mu.Lock()
	defer rep.mu.Unlock()
	assert.True(t, rep.started)
	assert.True(t, rep.stopped)
	require.NotEmpty(t, rep.statuses)
	assert.Equal(t, chainDomain.StateConnected, rep.statuses[0].State)
}

func TestNewWatcher_NoTargets(t *testing.T) {
	_, err := NewWatcher(&fakePricer{}, nil, nil, &fakeReporter{}, Config{}, nil, &mockLogger{})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidInput, apperror.GetCode(err))
}
