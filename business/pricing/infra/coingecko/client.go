// Package coingecko prices tokens and reference assets from the CoinGecko
// simple price API.
package coingecko

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/token-price-engine/business/pricing/app"
	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
	"github.com/fd1az/token-price-engine/internal/circuitbreaker"
	"github.com/fd1az/token-price-engine/internal/httpclient"
	"github.com/fd1az/token-price-engine/internal/logger"
	"github.com/fd1az/token-price-engine/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/token-price-engine/business/pricing/infra/coingecko"

	// BaseAPIURL is the public API.
	BaseAPIURL = "https://api.coingecko.com/api/v3"

	tokenPriceEndpoint  = "/simple/token_price/"
	simplePriceEndpoint = "/simple/price"
	httpTimeout         = 8 * time.Second

	apiKeyHeader = "x-cg-demo-api-key"

	// Name identifies the source.
	Name = "coingecko"
)

var (
	_ app.AggregatorSource = (*Client)(nil)
	_ app.ReferenceSource  = (*Client)(nil)
)

// platforms maps chains onto CoinGecko asset platforms.
var platforms = map[asset.Chain]string{
	asset.ChainEthereum: "ethereum",
	asset.ChainBSC:      "binance-smart-chain",
	asset.ChainSolana:   "solana",
}

// coinIDs maps reference symbols onto CoinGecko coin ids.
var coinIDs = map[string]string{
	"ETH": "ethereum",
	"BNB": "binancecoin",
	"SOL": "solana",
}

// Config holds the client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// APIKey is optional; the public tier works without it.
	APIKey string
	// RequestsPerMinute throttles calls; zero disables throttling.
	RequestsPerMinute int
}

// Client is a CoinGecko aggregator and reference source.
type Client struct {
	client  httpclient.Client
	config  Config
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[priceResponse]
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// NewClient creates a CoinGecko client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = httpTimeout
	}

	headers := map[string]string{"Accept": "application/json"}
	if cfg.APIKey != "" {
		headers[apiKeyHeader] = cfg.APIKey
	}

	tracer := otel.Tracer(tracerName)
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(Name),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest),
		httpclient.WithHeaders(headers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig(Name)
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	c := &Client{
		client: client,
		config: cfg,
		cb:     circuitbreaker.New[priceResponse](cbCfg),
		logger: log,
		tracer: tracer,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = ratelimit.New(cfg.RequestsPerMinute)
	}
	return c, nil
}

// Name returns the source name.
func (c *Client) Name() string { return Name }

// Supports reports whether CoinGecko lists tokens of chain by contract.
func (c *Client) Supports(chain asset.Chain) bool {
	_, ok := platforms[chain]
	return ok
}

// priceResponse maps an id or contract address onto its quote, e.g.
// {"ethereum": {"usd": 3400.1}}.
type priceResponse map[string]struct {
	USD          decimal.Decimal `json:"usd"`
	USDMarketCap decimal.Decimal `json:"usd_market_cap"`
}

// TokenPriceUSD returns the USD price and market cap of a token contract.
func (c *Client) TokenPriceUSD(ctx context.Context, token domain.Token) (domain.AggregatorQuote, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.token_price",
		trace.WithAttributes(
			attribute.String("chain", string(token.Chain)),
			attribute.String("token", token.Identifier),
		),
	)
	defer span.End()

	platform, ok := platforms[token.Chain]
	if !ok {
		err := apperror.New(apperror.CodeUnsupportedChain, apperror.WithContext(string(token.Chain)))
		span.SetStatus(codes.Error, err.Error())
		return domain.AggregatorQuote{}, err
	}

	result, err := c.get(ctx, "token_price", tokenPriceEndpoint+platform, map[string]string{
		"contract_addresses": token.Identifier,
		"vs_currencies":      "usd",
		"include_market_cap": "true",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.AggregatorQuote{}, err
	}

	// EVM contracts come back lowercased.
	for key, q := range result {
		if !strings.EqualFold(key, token.Identifier) {
			continue
		}
		if !q.USD.IsPositive() {
			break
		}
		span.SetStatus(codes.Ok, "priced")
		return domain.AggregatorQuote{PriceUSD: q.USD, MarketCapUSD: q.USDMarketCap, Chain: token.Chain}, nil
	}

	err = apperror.New(apperror.CodeAggregatorNoPrice, apperror.WithContext("coingecko "+token.ID()))
	span.SetStatus(codes.Error, err.Error())
	return domain.AggregatorQuote{}, err
}

// ReferencePriceUSD returns the USD price of ETH, BNB or SOL.
func (c *Client) ReferencePriceUSD(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.reference_price",
		trace.WithAttributes(attribute.String("symbol", symbol)),
	)
	defer span.End()

	id, ok := coinIDs[strings.ToUpper(symbol)]
	if !ok {
		err := apperror.New(apperror.CodeInvalidInput, apperror.WithContext("no coingecko id for "+symbol))
		span.SetStatus(codes.Error, err.Error())
		return decimal.Zero, err
	}

	result, err := c.get(ctx, "simple_price", simplePriceEndpoint, map[string]string{
		"ids":           id,
		"vs_currencies": "usd",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return decimal.Zero, err
	}

	q, ok := result[id]
	if !ok || !q.USD.IsPositive() {
		err := apperror.New(apperror.CodeAggregatorNoPrice, apperror.WithContext("coingecko "+id))
		span.SetStatus(codes.Error, err.Error())
		return decimal.Zero, err
	}

	span.SetStatus(codes.Ok, "priced")
	return q.USD, nil
}

// get throttles, then runs one GET through the breaker.
func (c *Client) get(ctx context.Context, endpoint, path string, query map[string]string) (priceResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperror.New(apperror.CodeAggregatorFailed,
				apperror.WithCause(err), apperror.WithContext("coingecko rate limit wait"))
		}
	}

	return c.cb.Execute(func() (priceResponse, error) {
		var result priceResponse
		req := c.client.NewRequestWithOptions(
			httpclient.WithLabels(httpclient.NewLabel("endpoint", endpoint)),
			httpclient.WithResponseErrorHandler(statusErrorHandler),
			httpclient.WithHeadersLogConfig(true, apiKeyHeader),
		)
		for k, v := range query {
			req = req.SetQueryParam(k, v)
		}
		if _, err := req.SetResult(&result).Get(ctx, path); err != nil {
			return nil, apperror.New(apperror.CodeAggregatorFailed,
				apperror.WithCause(err), apperror.WithContext("coingecko "+endpoint))
		}
		return result, nil
	})
}

func statusErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
