package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 8
	defaultUserAgent       = "token-price-engine"
	defaultProviderName    = "default"

	dialKeepAlive         = 30 * time.Second
	idleConnTimeout       = 90 * time.Second
	expectContinueTimeout = 100 * time.Millisecond

	instrumentationName   = "instrumented_http_client"
	metricRequestCounter  = "http_client_requests_total"
	metricRequestDuration = "http_client_request_duration_seconds"
)

// Client builds requests against one upstream.
type Client interface {
	NewRequest() Request
	NewRequestWithOptions(opts ...RequestOption) Request
}

// instruments are shared by every request of one client.
type instruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// InstrumentedClient wraps http.Client with OTEL tracing and request metrics.
type InstrumentedClient struct {
	http         *http.Client
	inst         instruments
	tracer       trace.Tracer
	providerName string
	baseURL      string
	headers      map[string]string
	traceBodies  map[TraceOption]bool
}

// NewInstrumentedClient creates a new instrumented HTTP client.
func NewInstrumentedClient(opts ...ClientOption) (Client, error) {
	o := newClientOptions(opts...)

	transport := o.transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{KeepAlive: dialKeepAlive}).DialContext,
			MaxConnsPerHost:       o.maxConnsPerHost,
			MaxIdleConnsPerHost:   o.maxConnsPerHost,
			IdleConnTimeout:       idleConnTimeout,
			ExpectContinueTimeout: expectContinueTimeout,
		}
	}

	providerName := o.providerName
	if providerName == "" {
		providerName = defaultProviderName
	}

	inst, err := newInstruments(o.meterProvider, providerName)
	if err != nil {
		return nil, err
	}

	tracer := o.tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}

	headers := copyHeaders(o.headers)
	if _, ok := headers["User-Agent"]; !ok && o.userAgent != "" {
		headers["User-Agent"] = o.userAgent
	}

	return &InstrumentedClient{
		http: &http.Client{
			Timeout: o.timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				}),
			),
		},
		inst:         inst,
		tracer:       tracer,
		providerName: providerName,
		baseURL:      o.baseURL,
		headers:      headers,
		traceBodies:  o.traceBodies,
	}, nil
}

func newInstruments(mp metric.MeterProvider, providerName string) (instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName,
		metric.WithInstrumentationAttributes(attribute.String("provider", providerName)),
	)

	requests, err := meter.Int64Counter(metricRequestCounter,
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return instruments{}, err
	}

	duration, err := meter.Float64Histogram(metricRequestDuration,
		metric.WithDescription("HTTP request latency including the body read"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return instruments{}, err
	}

	return instruments{requests: requests, duration: duration}, nil
}

// NewRequest creates a new request builder with default options.
func (c *InstrumentedClient) NewRequest() Request {
	return c.NewRequestWithOptions()
}

// NewRequestWithOptions creates a new request builder with custom options.
func (c *InstrumentedClient) NewRequestWithOptions(opts ...RequestOption) Request {
	ro := &RequestOptions{}
	for _, opt := range opts {
		opt(ro)
	}

	return &requestBuilder{
		client:  c,
		headers: copyHeaders(c.headers),
		opts:    ro,
	}
}

func copyHeaders(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[http.CanonicalHeaderKey(k)] = v
	}
	return dst
}
