// Package httpclient provides an instrumented HTTP client with OTEL tracing and metrics.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TraceOption selects which bodies are copied onto the request span.
type TraceOption string

const (
	TraceRequest  TraceOption = "request"
	TraceResponse TraceOption = "response"
)

// ClientOptions holds configuration for the instrumented HTTP client.
type ClientOptions struct {
	baseURL         string
	providerName    string
	userAgent       string
	headers         map[string]string
	timeout         time.Duration
	maxConnsPerHost int
	transport       http.RoundTripper
	meterProvider   metric.MeterProvider
	tracer          trace.Tracer
	traceBodies     map[TraceOption]bool
}

// ClientOption configures ClientOptions.
type ClientOption func(*ClientOptions)

func newClientOptions(opts ...ClientOption) *ClientOptions {
	o := &ClientOptions{
		timeout:         defaultRequestTimeout,
		maxConnsPerHost: defaultMaxConnsPerHost,
		userAgent:       defaultUserAgent,
		traceBodies:     map[TraceOption]bool{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithBaseURL prefixes every relative request path.
func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) { o.baseURL = url }
}

// WithProviderName tags metrics and spans with the upstream's name.
func WithProviderName(name string) ClientOption {
	return func(o *ClientOptions) { o.providerName = name }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(o *ClientOptions) { o.userAgent = ua }
}

// WithHeaders sets default headers for all requests.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) { o.headers = headers }
}

// WithRequestTimeout bounds a whole request including the body read.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithMaxConnsPerHost caps open connections to the upstream. Ignored when
// a custom transport is set.
func WithMaxConnsPerHost(n int) ClientOption {
	return func(o *ClientOptions) {
		if n > 0 {
			o.maxConnsPerHost = n
		}
	}
}

// WithTransport replaces the pooled default transport. It is still wrapped
// with OTEL instrumentation.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *ClientOptions) { o.transport = rt }
}

// WithMeterProvider sets the OTEL meter provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(o *ClientOptions) { o.meterProvider = mp }
}

// WithTraceOptions copies request and/or response bodies onto spans.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(o *ClientOptions) {
		o.tracer = tracer
		for _, opt := range opts {
			o.traceBodies[opt] = true
		}
	}
}

// RequestOptions holds per-request configuration.
type RequestOptions struct {
	responseErrorHandler ResponseErrorHandler
	labels               []*Label
	logHeaders           bool
	redactHeaders        map[string]bool
}

// RequestOption configures a single request.
type RequestOption func(*RequestOptions)

// ResponseErrorHandler maps a response to an error; nil means success.
type ResponseErrorHandler func(statusCode int, body []byte) error

// WithResponseErrorHandler sets a custom error handler for responses.
func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(o *RequestOptions) { o.responseErrorHandler = handler }
}

// Label is an extra metric attribute for one request.
type Label struct {
	Key   string
	Value string
}

// NewLabel creates a new label.
func NewLabel(key, value string) *Label {
	return &Label{Key: key, Value: value}
}

// WithLabels sets labels for the request.
func WithLabels(labels ...*Label) RequestOption {
	return func(o *RequestOptions) { o.labels = labels }
}

// WithHeadersLogConfig records request headers on the span, masking the
// redacted ones.
func WithHeadersLogConfig(enable bool, redact ...string) RequestOption {
	return func(o *RequestOptions) {
		o.logHeaders = enable
		o.redactHeaders = make(map[string]bool, len(redact))
		for _, h := range redact {
			o.redactHeaders[http.CanonicalHeaderKey(h)] = true
		}
	}
}
