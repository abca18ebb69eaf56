// Package binance prices reference assets from Binance spot tickers.
package binance

import (
	"context"
	"encoding/json"
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
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/circuitbreaker"
	"github.com/fd1az/token-price-engine/internal/httpclient"
	"github.com/fd1az/token-price-engine/internal/logger"
)

const (
	tracerName = "github.com/fd1az/token-price-engine/business/pricing/infra/binance"

	// BaseAPIURL is the public spot API.
	BaseAPIURL = "https://api.binance.com"

	tickerEndpoint = "/api/v3/ticker/price"
	httpTimeout    = 10 * time.Second

	// Name identifies the source in quote-cache entries.
	Name = "binance"
)

var _ app.ReferenceSource = (*Client)(nil)

// Config holds the Binance client settings.
type Config struct {
	BaseURL string        // API base URL (empty = default)
	Timeout time.Duration // Request timeout
	// Quote is the USD stable the tickers are quoted in.
	Quote string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: BaseAPIURL,
		Timeout: httpTimeout,
		Quote:   "USDT",
	}
}

// Client reads spot prices of reference assets.
type Client struct {
	client httpclient.Client
	config Config
	cb     *circuitbreaker.CircuitBreaker[decimal.Decimal]
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewClient creates a Binance client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = httpTimeout
	}
	if cfg.Quote == "" {
		cfg.Quote = "USDT"
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(Name),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("binance-ticker")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	return &Client{
		client: client,
		config: cfg,
		cb:     circuitbreaker.New[decimal.Decimal](cbCfg),
		logger: log,
		tracer: tracer,
	}, nil
}

// Name returns the source name.
func (c *Client) Name() string { return Name }

// tickerResponse is the REST response of the price ticker.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// ReferencePriceUSD returns the last trade price of symbol against the
// configured stable, e.g. ETH → ETHUSDT.
func (c *Client) ReferencePriceUSD(ctx context.Context, symbol string) (decimal.Decimal, error) {
	pair := strings.ToUpper(symbol) + c.config.Quote

	ctx, span := c.tracer.Start(ctx, "binance.http.ticker_price",
		trace.WithAttributes(attribute.String("symbol", pair)),
	)
	defer span.End()

	price, err := c.cb.Execute(func() (decimal.Decimal, error) {
		return c.tickerPrice(ctx, pair)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return decimal.Zero, err
	}

	span.SetAttributes(attribute.String("price", price.String()))
	span.SetStatus(codes.Ok, "priced")
	c.logger.Debug(ctx, "fetched ticker price", "symbol", pair, "price", price.String())
	return price, nil
}

func (c *Client) tickerPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	var result tickerResponse
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "ticker_price"),
			httpclient.NewLabel("symbol", pair),
		),
		httpclient.WithResponseErrorHandler(binanceErrorHandler),
	).
		SetQueryParam("symbol", pair).
		SetResult(&result).
		Get(ctx, tickerEndpoint)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeAggregatorFailed,
			apperror.WithCause(err),
			apperror.WithContext("binance ticker "+pair))
	}

	price, err := decimal.NewFromString(result.Price)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, apperror.New(apperror.CodeAggregatorNoPrice,
			apperror.WithContext(fmt.Sprintf("binance ticker %s price %q", pair, result.Price)))
	}
	return price, nil
}

// APIError represents an error response from the Binance API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

// binanceErrorHandler parses Binance API error responses.
func binanceErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 300 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
