// Package jupiter prices Solana tokens from the Jupiter price API.
package jupiter

import (
	"context"
	"fmt"
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
	tracerName = "github.com/fd1az/token-price-engine/business/pricing/infra/jupiter"

	// BaseAPIURL is the v2 price API.
	BaseAPIURL = "https://api.jup.ag/price/v2"

	priceEndpoint = "/price"
	httpTimeout   = 8 * time.Second

	// Name identifies the source.
	Name = "jupiter"
)

var _ app.AggregatorSource = (*Client)(nil)

// Config holds the client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a Jupiter aggregator source. It only prices Solana mints.
type Client struct {
	client httpclient.Client
	cb     *circuitbreaker.CircuitBreaker[decimal.Decimal]
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewClient creates a Jupiter client.
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
		cb:     circuitbreaker.New[decimal.Decimal](cbCfg),
		logger: log,
		tracer: tracer,
	}, nil
}

// Name returns the source name.
func (c *Client) Name() string { return Name }

// Supports reports true for Solana only.
func (c *Client) Supports(chain asset.Chain) bool {
	return chain == asset.ChainSolana
}

type priceResponse struct {
	Data map[string]*struct {
		ID    string              `json:"id"`
		Type  string              `json:"type"`
		Price decimal.NullDecimal `json:"price"`
	} `json:"data"`
}

// TokenPriceUSD returns the USD price of a mint. Jupiter reports no market cap.
func (c *Client) TokenPriceUSD(ctx context.Context, token domain.Token) (domain.AggregatorQuote, error) {
	ctx, span := c.tracer.Start(ctx, "jupiter.token_price",
		trace.WithAttributes(attribute.String("mint", token.Identifier)),
	)
	defer span.End()

	if !c.Supports(token.Chain) {
		err := apperror.New(apperror.CodeUnsupportedChain, apperror.WithContext(string(token.Chain)))
		span.SetStatus(codes.Error, err.Error())
		return domain.AggregatorQuote{}, err
	}

	price, err := c.cb.Execute(func() (decimal.Decimal, error) {
		return c.price(ctx, token.Identifier)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.AggregatorQuote{}, err
	}

	span.SetStatus(codes.Ok, "priced")
	return domain.AggregatorQuote{PriceUSD: price, Chain: token.Chain}, nil
}

func (c *Client) price(ctx context.Context, mint string) (decimal.Decimal, error) {
	var result priceResponse
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "price")),
		httpclient.WithResponseErrorHandler(func(statusCode int, body []byte) error {
			if statusCode >= 300 {
				return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
			}
			return nil
		}),
	).
		SetQueryParam("ids", mint).
		SetResult(&result).
		Get(ctx, priceEndpoint)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeAggregatorFailed,
			apperror.WithCause(err),
			apperror.WithContext("jupiter "+mint))
	}

	entry := result.Data[mint]
	if entry == nil || !entry.Price.Valid || !entry.Price.Decimal.IsPositive() {
		return decimal.Zero, apperror.New(apperror.CodeAggregatorNoPrice, apperror.WithContext("jupiter "+mint))
	}

	c.logger.Debug(ctx, "jupiter price", "mint", mint, "price", entry.Price.Decimal.String(), "type", entry.Type)
	return entry.Price.Decimal, nil
}
