// Package evm provides read-only EVM chain access over JSON-RPC.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/circuitbreaker"
	"github.com/fd1az/token-price-engine/internal/logger"
	"github.com/fd1az/token-price-engine/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/token-price-engine/business/blockchain/infra/evm"
	meterName  = "github.com/fd1az/token-price-engine/business/blockchain/infra/evm"
)

// Config holds configuration for one EVM endpoint.
type Config struct {
	Chain          asset.Chain
	RPCURL         string
	Timeout        time.Duration // per call
	MaxConcurrency int
	RequestDelay   time.Duration // minimum spacing between calls, 0 = none
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(chain asset.Chain, rpcURL string) Config {
	return Config{
		Chain:          chain,
		RPCURL:         rpcURL,
		Timeout:        10 * time.Second,
		MaxConcurrency: 8,
	}
}

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

// contractCaller is the subset of ethclient.Client used for reads.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Client implements app.EVMReader using go-ethereum.
type Client struct {
	config Config
	logger logger.LoggerInterface
	rpc    contractCaller
	gate   *ratelimit.Gate

	callCB   *circuitbreaker.CircuitBreaker[[]byte]
	heightCB *circuitbreaker.CircuitBreaker[uint64]

	// Observability
	tracer  trace.Tracer
	metrics *clientMetrics
}

// Dial connects to the endpoint and returns a Client.
func Dial(ctx context.Context, cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(string(cfg.Chain)+" rpc url not configured"))
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, apperror.New(apperror.CodeRPCConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(string(cfg.Chain)))
	}

	return newClient(cfg, rpc, log)
}

func newClient(cfg Config, rpc contractCaller, log logger.LoggerInterface) (*Client, error) {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}

	c := &Client{
		config: cfg,
		logger: log,
		rpc:    rpc,
		gate:   ratelimit.NewGate(cfg.MaxConcurrency, cfg.RequestDelay),
		tracer: otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	c.initCircuitBreakers()

	return c, nil
}

// initMetrics initializes OTEL metric instruments.
func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.calls, err = meter.Int64Counter(
		"evm_rpc_calls_total",
		metric.WithDescription("Total EVM RPC calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	c.metrics.latency, err = meter.Float64Histogram(
		"evm_rpc_latency_ms",
		metric.WithDescription("EVM RPC call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// initCircuitBreakers initializes one breaker per call shape.
func (c *Client) initCircuitBreakers() {
	onChange := func(name string, from, to gobreaker.State) {
		c.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	callCfg := circuitbreaker.DefaultConfig(string(c.config.Chain) + "-eth-call")
	callCfg.OnStateChange = onChange
	c.callCB = circuitbreaker.New[[]byte](callCfg)

	heightCfg := circuitbreaker.DefaultConfig(string(c.config.Chain) + "-block-number")
	heightCfg.OnStateChange = onChange
	c.heightCB = circuitbreaker.New[uint64](heightCfg)
}

// Chain returns the chain this client serves.
func (c *Client) Chain() asset.Chain {
	return c.config.Chain
}

// CallContract executes an eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "evm.call",
		trace.WithAttributes(
			attribute.String("chain", string(c.config.Chain)),
			attribute.String("to", to.Hex()),
		),
	)
	defer span.End()

	release, err := c.gate.Acquire(ctx)
	if err != nil {
		return nil, c.fail(ctx, span, "eth_call", c.classify(err, "eth_call "+to.Hex()))
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	out, err := c.callCB.Execute(func() ([]byte, error) {
		res, err := c.rpc.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
		if err != nil {
			return nil, c.classify(err, "eth_call "+to.Hex())
		}
		return res, nil
	})
	c.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("chain", string(c.config.Chain)), attribute.String("method", "eth_call")))
	if err != nil {
		return nil, c.fail(ctx, span, "eth_call", err)
	}

	c.record(ctx, "eth_call", "ok")
	span.SetStatus(codes.Ok, "called")
	return out, nil
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, span := c.tracer.Start(ctx, "evm.block_number",
		trace.WithAttributes(attribute.String("chain", string(c.config.Chain))),
	)
	defer span.End()

	release, err := c.gate.Acquire(ctx)
	if err != nil {
		return 0, c.fail(ctx, span, "eth_blockNumber", c.classify(err, "eth_blockNumber"))
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	n, err := c.heightCB.Execute(func() (uint64, error) {
		n, err := c.rpc.BlockNumber(callCtx)
		if err != nil {
			return 0, c.classify(err, "eth_blockNumber")
		}
		return n, nil
	})
	if err != nil {
		return 0, c.fail(ctx, span, "eth_blockNumber", err)
	}

	c.record(ctx, "eth_blockNumber", "ok")
	return n, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// classify maps transport errors onto the engine taxonomy: deadlines become
// RPC_TIMEOUT and reverts become DECODE_FAILED (the target is not the
// contract shape we expected).
func (c *Client) classify(err error, what string) error {
	if apperror.IsAppError(err) {
		return err
	}
	ctxInfo := string(c.config.Chain) + " " + what
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.New(apperror.CodeRPCTimeout, apperror.WithCause(err), apperror.WithContext(ctxInfo))
	case errors.Is(err, context.Canceled):
		return err
	case strings.Contains(err.Error(), "execution reverted"):
		return apperror.New(apperror.CodeDecodeFailed, apperror.WithCause(err), apperror.WithContext(ctxInfo))
	default:
		return apperror.New(apperror.CodeRPCCallFailed, apperror.WithCause(err), apperror.WithContext(ctxInfo))
	}
}

func (c *Client) fail(ctx context.Context, span trace.Span, method string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.record(ctx, method, string(apperror.GetCode(err)))
	return err
}

func (c *Client) record(ctx context.Context, method, outcome string) {
	c.metrics.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("chain", string(c.config.Chain)),
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}
