// Package dexscreener prices tokens from the DexScreener pairs API.
package dexscreener

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
)

const (
	tracerName = "github.com/fd1az/token-price-engine/business/pricing/infra/dexscreener"

	// BaseAPIURL is the public API.
	BaseAPIURL = "https://api.dexscreener.com"

	tokensEndpoint = "/latest/dex/tokens/"
	httpTimeout    = 8 * time.Second

	// Name identifies the source.
	Name = "dexscreener"
)

var _ app.AggregatorSource = (*Client)(nil)

// chainIDs maps chains onto DexScreener chain ids.
var chainIDs = map[asset.Chain]string{
	asset.ChainEthereum: "ethereum",
	asset.ChainBSC:      "bsc",
	asset.ChainSolana:   "solana",
}

// Config holds the client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a DexScreener aggregator source.
type Client struct {
	client httpclient.Client
	cb     *circuitbreaker.CircuitBreaker[domain.AggregatorQuote]
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewClient creates a DexScreener client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(Name),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig(Name)
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	return &Client{
		client: client,
		cb:     circuitbreaker.New[domain.AggregatorQuote](cbCfg),
		logger: log,
		tracer: tracer,
	}, nil
}

// Name returns the source name.
func (c *Client) Name() string { return Name }

// Supports reports whether DexScreener indexes chain.
func (c *Client) Supports(chain asset.Chain) bool {
	_, ok := chainIDs[chain]
	return ok
}

type tokensResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  decimal.NullDecimal `json:"priceUsd"`
	Liquidity struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"liquidity"`
	FDV       decimal.Decimal `json:"fdv"`
	MarketCap decimal.Decimal `json:"marketCap"`
}

// TokenPriceUSD returns the price of token from its most liquid pair on
// the token's chain.
func (c *Client) TokenPriceUSD(ctx context.Context, token domain.Token) (domain.AggregatorQuote, error) {
	ctx, span := c.tracer.Start(ctx, "dexscreener.token_price",
		trace.WithAttributes(
			attribute.String("chain", string(token.Chain)),
			attribute.String("token", token.Identifier),
		),
	)
	defer span.End()

	q, err := c.cb.Execute(func() (domain.AggregatorQuote, error) {
		return c.tokenPrice(ctx, token)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.AggregatorQuote{}, err
	}

	span.SetStatus(codes.Ok, "priced")
	return q, nil
}

func (c *Client) tokenPrice(ctx context.Context, token domain.Token) (domain.AggregatorQuote, error) {
	chainID, ok := chainIDs[token.Chain]
	if !ok {
		return domain.AggregatorQuote{}, apperror.New(apperror.CodeUnsupportedChain, apperror.WithContext(string(token.Chain)))
	}

	var result tokensResponse
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "tokens")),
		httpclient.WithResponseErrorHandler(statusErrorHandler),
	).
		SetResult(&result).
		Get(ctx, tokensEndpoint+token.Identifier)
	if err != nil {
		return domain.AggregatorQuote{}, apperror.New(apperror.CodeAggregatorFailed,
			apperror.WithCause(err),
			apperror.WithContext("dexscreener "+token.ID()))
	}

	best, ok := bestPair(result.Pairs, chainID, token.Identifier)
	if !ok {
		return domain.AggregatorQuote{}, apperror.New(apperror.CodeAggregatorNoPrice,
			apperror.WithContext(fmt.Sprintf("dexscreener has no priced %s pair for %s", chainID, token.Identifier)))
	}

	marketCap := best.MarketCap
	if !marketCap.IsPositive() {
		marketCap = best.FDV
	}

	c.logger.Debug(ctx, "dexscreener price",
		"token", token.ID(), "pair", best.PairAddress, "dex", best.DexID,
		"price", best.PriceUSD.Decimal.String(), "liquidity_usd", best.Liquidity.USD.String())

	return domain.AggregatorQuote{
		PriceUSD:     best.PriceUSD.Decimal,
		MarketCapUSD: marketCap,
		Chain:        token.Chain,
	}, nil
}

// bestPair returns the most liquid priced pair on chainID whose base token
// is identifier.
func bestPair(pairs []pair, chainID, identifier string) (pair, bool) {
	var best pair
	found := false
	for _, p := range pairs {
		if p.ChainID != chainID || !p.PriceUSD.Valid || !p.PriceUSD.Decimal.IsPositive() {
			continue
		}
		if !strings.EqualFold(p.BaseToken.Address, identifier) {
			continue
		}
		if !found || p.Liquidity.USD.GreaterThan(best.Liquidity.USD) {
			best, found = p, true
		}
	}
	return best, found
}

func statusErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", statusCode, truncate(body))
	}
	return nil
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
