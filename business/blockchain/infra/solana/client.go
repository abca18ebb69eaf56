// Package solana provides read-only Solana account access over JSON-RPC 2.0.
package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-price-engine/business/blockchain/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/circuitbreaker"
	"github.com/fd1az/token-price-engine/internal/httpclient"
	"github.com/fd1az/token-price-engine/internal/logger"
	"github.com/fd1az/token-price-engine/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/token-price-engine/business/blockchain/infra/solana"
	meterName  = "github.com/fd1az/token-price-engine/business/blockchain/infra/solana"

	commitment = "confirmed"

	// getMultipleAccounts accepts at most 100 keys per request.
	maxAccountsPerRequest = 100
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Config holds configuration for the Solana RPC client.
type Config struct {
	RPCURL         string
	Timeout        time.Duration // per attempt
	MaxConcurrency int
	RequestDelay   time.Duration // minimum spacing between requests
	MaxRetries     int
	RetryDelay     time.Duration
	MaxRetryDelay  time.Duration
}

// DefaultConfig returns sensible defaults for a public endpoint.
func DefaultConfig(rpcURL string) Config {
	return Config{
		RPCURL:         rpcURL,
		Timeout:        DefaultTimeout,
		MaxConcurrency: 2,
		RequestDelay:   250 * time.Millisecond,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		MaxRetryDelay:  DefaultMaxDelay,
	}
}

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	calls   metric.Int64Counter
	retries metric.Int64Counter
}

// Client implements app.SolanaReader.
type Client struct {
	config    Config
	logger    logger.LoggerInterface
	http      httpclient.Client
	gate      *ratelimit.Gate
	cb        *circuitbreaker.CircuitBreaker[json.RawMessage]
	requestID atomic.Uint64

	// Observability
	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a Solana RPC client. Extra options are applied to the
// underlying HTTP client.
func NewClient(cfg Config, log logger.LoggerInterface, opts ...httpclient.ClientOption) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("solana rpc url not configured"))
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpOpts := append([]httpclient.ClientOption{
		httpclient.WithBaseURL(cfg.RPCURL),
		httpclient.WithProviderName("solana-rpc"),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithMaxConnsPerHost(cfg.MaxConcurrency),
		httpclient.WithHeaders(map[string]string{"Content-Type": "application/json"}),
	}, opts...)

	hc, err := httpclient.NewInstrumentedClient(httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	c := &Client{
		config: cfg,
		logger: log,
		http:   hc,
		gate:   ratelimit.NewGate(cfg.MaxConcurrency, cfg.RequestDelay),
		tracer: otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("solana-rpc")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	c.cb = circuitbreaker.New[json.RawMessage](cbCfg)

	return c, nil
}

// initMetrics initializes OTEL metric instruments.
func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.calls, err = meter.Int64Counter(
		"solana_rpc_calls_total",
		metric.WithDescription("Total Solana RPC calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	c.metrics.retries, err = meter.Int64Counter(
		"solana_rpc_retries_total",
		metric.WithDescription("Solana RPC attempts retried after throttling or upstream errors"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// retryableError marks an attempt worth repeating.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// statusError is a non-retryable HTTP status.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

// statusErrorHandler flags throttling and upstream failures as retryable.
func statusErrorHandler(status int, body []byte) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &retryableError{err: errors.New("rate limited (429)")}
	case status >= 500:
		return &retryableError{err: &statusError{status: status, body: truncate(body)}}
	case status != http.StatusOK:
		return &statusError{status: status, body: truncate(body)}
	}
	return nil
}

// call performs one logical JSON-RPC call: gate, breaker, retries.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	ctx, span := c.tracer.Start(ctx, "solana."+method,
		trace.WithAttributes(attribute.String("method", method)),
	)
	defer span.End()

	release, err := c.gate.Acquire(ctx)
	if err != nil {
		return c.fail(ctx, span, method, c.classify(err, method))
	}
	defer release()

	raw, err := c.cb.Execute(func() (json.RawMessage, error) {
		return c.callWithRetry(ctx, method, params)
	})
	if err != nil {
		return c.fail(ctx, span, method, err)
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return c.fail(ctx, span, method, apperror.New(apperror.CodeDecodeFailed,
				apperror.WithCause(err),
				apperror.WithContext("solana "+method+" result")))
		}
	}

	c.record(ctx, method, "ok")
	span.SetStatus(codes.Ok, "called")
	return nil
}

// callWithRetry repeats retryable attempts with exponential backoff.
func (c *Client) callWithRetry(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	delay := c.config.RetryDelay
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
			select {
			case <-ctx.Done():
				return nil, c.classify(ctx.Err(), method)
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * DefaultBackoffMult)
			if delay > c.config.MaxRetryDelay {
				delay = c.config.MaxRetryDelay
			}
		}

		var resp rpcResponse
		_, err := c.http.NewRequestWithOptions(
			httpclient.WithLabels(httpclient.NewLabel("method", method)),
			httpclient.WithResponseErrorHandler(statusErrorHandler),
		).
			SetBody(req).
			SetResult(&resp).
			Post(ctx, "")
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.classify(ctx.Err(), method)
			}
			var retryable *retryableError
			var status *statusError
			switch {
			case errors.As(err, &retryable):
				lastErr = err
				continue
			case errors.Is(err, httpclient.ErrDecodeBody):
				return nil, apperror.New(apperror.CodeDecodeFailed,
					apperror.WithCause(err), apperror.WithContext("solana "+method))
			case errors.As(err, &status):
				return nil, apperror.New(apperror.CodeRPCCallFailed,
					apperror.WithCause(err), apperror.WithContext("solana "+method))
			}
			// Network errors are retried
			lastErr = err
			continue
		}

		if resp.Error != nil {
			// RPC errors are not retried
			return nil, apperror.New(apperror.CodeRPCCallFailed,
				apperror.WithCause(resp.Error), apperror.WithContext("solana "+method))
		}

		return resp.Result, nil
	}

	return nil, c.classify(fmt.Errorf("max retries exceeded: %w", lastErr), method)
}

// GetAccountInfo returns the raw account or a NOT_FOUND error.
func (c *Client) GetAccountInfo(ctx context.Context, account domain.PublicKey) (*domain.AccountInfo, error) {
	var result struct {
		Value *rpcAccount `json:"value"`
	}
	params := []interface{}{account.String(), map[string]string{"encoding": "base64", "commitment": commitment}}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, apperror.New(apperror.CodeNotFound, apperror.WithContext("solana account "+account.String()))
	}
	return result.Value.decode()
}

// GetTokenBalances returns jsonParsed SPL token balances in request order.
func (c *Client) GetTokenBalances(ctx context.Context, accounts []domain.PublicKey) ([]domain.TokenBalance, error) {
	out := make([]domain.TokenBalance, 0, len(accounts))

	for start := 0; start < len(accounts); start += maxAccountsPerRequest {
		end := min(start+maxAccountsPerRequest, len(accounts))
		chunk := accounts[start:end]

		keys := make([]string, len(chunk))
		for i, k := range chunk {
			keys[i] = k.String()
		}

		var result struct {
			Value []*parsedAccount `json:"value"`
		}
		params := []interface{}{keys, map[string]string{"encoding": "jsonParsed", "commitment": commitment}}
		if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
			return nil, err
		}
		if len(result.Value) != len(chunk) {
			return nil, apperror.New(apperror.CodeDecodeFailed,
				apperror.WithContext(fmt.Sprintf("getMultipleAccounts returned %d values for %d keys", len(result.Value), len(chunk))))
		}

		for i, v := range result.Value {
			if v == nil {
				return nil, apperror.New(apperror.CodeNotFound, apperror.WithContext("token account "+chunk[i].String()))
			}
			bal, err := v.tokenBalance(chunk[i])
			if err != nil {
				return nil, err
			}
			out = append(out, bal)
		}
	}

	return out, nil
}

// GetProgramAccounts scans program-owned accounts matching every filter.
func (c *Client) GetProgramAccounts(ctx context.Context, program domain.PublicKey, filters ...domain.AccountFilter) ([]domain.ProgramAccount, error) {
	rpcFilters := make([]map[string]interface{}, 0, len(filters))
	for _, f := range filters {
		if f.Memcmp != nil {
			rpcFilters = append(rpcFilters, map[string]interface{}{
				"memcmp": map[string]interface{}{
					"offset": f.Memcmp.Offset,
					"bytes":  base58.Encode(f.Memcmp.Bytes),
				},
			})
			continue
		}
		rpcFilters = append(rpcFilters, map[string]interface{}{"dataSize": f.DataSize})
	}

	var result []struct {
		Pubkey  string     `json:"pubkey"`
		Account rpcAccount `json:"account"`
	}
	params := []interface{}{program.String(), map[string]interface{}{
		"encoding":   "base64",
		"commitment": commitment,
		"filters":    rpcFilters,
	}}
	if err := c.call(ctx, "getProgramAccounts", params, &result); err != nil {
		return nil, err
	}

	out := make([]domain.ProgramAccount, 0, len(result))
	for _, r := range result {
		pk, err := domain.ParsePublicKey(r.Pubkey)
		if err != nil {
			return nil, apperror.New(apperror.CodeDecodeFailed, apperror.WithCause(err))
		}
		info, err := r.Account.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ProgramAccount{Pubkey: pk, Account: *info})
	}
	return out, nil
}

// GetSlot returns the latest confirmed slot.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", []interface{}{map[string]string{"commitment": commitment}}, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// classify maps transport errors onto the engine taxonomy.
func (c *Client) classify(err error, method string) error {
	if apperror.IsAppError(err) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.New(apperror.CodeRPCTimeout, apperror.WithCause(err), apperror.WithContext("solana "+method))
	case errors.Is(err, context.Canceled):
		return err
	default:
		return apperror.New(apperror.CodeRPCCallFailed, apperror.WithCause(err), apperror.WithContext("solana "+method))
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
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

// rpcAccount is an account encoded as base64.
type rpcAccount struct {
	Data     []string `json:"data"`
	Owner    string   `json:"owner"`
	Lamports uint64   `json:"lamports"`
}

func (a *rpcAccount) decode() (*domain.AccountInfo, error) {
	if len(a.Data) != 2 || a.Data[1] != "base64" {
		return nil, apperror.New(apperror.CodeDecodeFailed, apperror.WithContext("account data is not base64 encoded"))
	}
	data, err := base64.StdEncoding.DecodeString(a.Data[0])
	if err != nil {
		return nil, apperror.New(apperror.CodeDecodeFailed, apperror.WithCause(err))
	}
	owner, err := domain.ParsePublicKey(a.Owner)
	if err != nil {
		return nil, apperror.New(apperror.CodeDecodeFailed, apperror.WithCause(err))
	}
	return &domain.AccountInfo{Owner: owner, Lamports: a.Lamports, Data: data}, nil
}

// parsedAccount is an account encoded as jsonParsed.
type parsedAccount struct {
	Data json.RawMessage `json:"data"`
}

type parsedTokenData struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string `json:"type"`
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount         string `json:"amount"`
				Decimals       uint8  `json:"decimals"`
				UIAmountString string `json:"uiAmountString"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

func (p *parsedAccount) tokenBalance(account domain.PublicKey) (domain.TokenBalance, error) {
	var data parsedTokenData
	if err := json.Unmarshal(p.Data, &data); err != nil || data.Parsed.Type != "account" {
		return domain.TokenBalance{}, apperror.New(apperror.CodeDecodeFailed,
			apperror.WithContext(account.String()+" is not a token account"))
	}
	info := data.Parsed.Info
	return domain.TokenBalance{
		Account:  account,
		Mint:     info.Mint,
		Decimals: info.TokenAmount.Decimals,
		UIAmount: info.TokenAmount.UIAmountString,
	}, nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
