package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fd1az/token-price-engine/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp-grpc"
	OTLPHTTPProvider Provider = "otlp-http"
	ConsoleProvider  Provider = "console"
	EmptyProvider    Provider = "empty"
)

// ParseProvider maps a config value to a Provider; unknown values are EmptyProvider.
func ParseProvider(s string) Provider {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ZipkinProvider, OTLPGRPCProvider, OTLPHTTPProvider, ConsoleProvider:
		return p
	default:
		return EmptyProvider
	}
}

type TraceProvider interface {
	Stop() error
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

type emptyTraceProvider struct{}

func (emptyTraceProvider) Stop() error { return nil }

// ExporterConfig carries the collector settings of the chosen provider.
type ExporterConfig struct {
	ServiceName string
	Endpoint    string
	Headers     string // comma separated key=value pairs
}

type TracerOptions struct {
	exporter           sdktrace.SpanExporter
	tracerProviderName string
	serviceName        string
	useEmpty           bool
}

type TracerOption func(*TracerOptions)

func WithProvider(provider Provider, cfg ExporterConfig, log logger.LoggerInterface) TracerOption {
	switch provider {
	case ZipkinProvider:
		return useZipkin(cfg)
	case OTLPGRPCProvider:
		return useOTLP(cfg, log, false)
	case OTLPHTTPProvider:
		return useOTLP(cfg, log, true)
	case ConsoleProvider:
		return useConsole(cfg)
	case EmptyProvider:
		return useEmpty()
	}

	log.Warn(context.Background(), "TracerProvider not found, using EmptyProvider", "provider", provider)

	return useEmpty()
}

func useEmpty() TracerOption {
	return func(option *TracerOptions) {
		option.useEmpty = true
		option.tracerProviderName = string(EmptyProvider)
	}
}

func useConsole(cfg ExporterConfig) TracerOption {
	return func(option *TracerOptions) {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			panic(err)
		}

		option.exporter = exp
		option.serviceName = cfg.ServiceName
		option.tracerProviderName = string(ConsoleProvider)
	}
}

func useZipkin(cfg ExporterConfig) TracerOption {
	return func(option *TracerOptions) {
		exp, err := zipkin.New(cfg.Endpoint)
		if err != nil {
			panic(err)
		}

		option.exporter = exp
		option.serviceName = cfg.ServiceName
		option.tracerProviderName = string(ZipkinProvider)
	}
}

func useOTLP(cfg ExporterConfig, log logger.LoggerInterface, overHTTP bool) TracerOption {
	return func(option *TracerOptions) {
		headers, err := ParseHeaders(cfg.Headers)
		if err != nil {
			log.Error(context.Background(), "Invalid OTLP headers, expected key=value[,key=value]", "error", err)
			panic(err)
		}

		var exp sdktrace.SpanExporter
		if overHTTP {
			log.Info(context.Background(), "Initializing OTLP HTTP/Protobuf exporter", "endpoint", cfg.Endpoint)
			exp, err = otlptracehttp.New(
				context.Background(),
				otlptracehttp.WithEndpointURL(cfg.Endpoint),
				otlptracehttp.WithHeaders(headers),
			)
			option.tracerProviderName = string(OTLPHTTPProvider)
		} else {
			log.Info(context.Background(), "Initializing OTLP gRPC exporter", "endpoint", cfg.Endpoint)
			exp, err = otlptracegrpc.New(
				context.Background(),
				otlptracegrpc.WithEndpointURL(cfg.Endpoint),
				otlptracegrpc.WithHeaders(headers),
			)
			option.tracerProviderName = string(OTLPGRPCProvider)
		}

		if err != nil {
			log.Error(context.Background(), "Error initializing OTLP exporter", "error", err)
			panic(err)
		}

		option.exporter = exp
		option.serviceName = cfg.ServiceName
	}
}

// ParseHeaders parses "k1=v1,k2=v2" into a map. An empty string yields an empty map.
func ParseHeaders(s string) (map[string]string, error) {
	headers := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return headers, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("apm: malformed header %q", pair)
		}
		headers[key] = value
	}
	return headers, nil
}

func NewTraceProvider(log logger.LoggerInterface, options ...TracerOption) TraceProvider {
	if len(options) == 0 {
		options = []TracerOption{useEmpty()}
	}

	opts := &TracerOptions{}

	for _, opt := range options {
		opt(opts)
	}

	if opts.useEmpty {
		return emptyTraceProvider{}
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.serviceName),
			attribute.String("otel.provider", opts.tracerProviderName),
		))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(opts.exporter),
		sdktrace.WithResource(rsrc),
	)

	// Set global trace provider
	otel.SetTracerProvider(tp)

	// Set trace propagator
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(context.Background(), "Trace provider initialized", "provider", opts.tracerProviderName)

	return &traceProvider{
		tp,
	}
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	if err := o.tp.Shutdown(ctx); err != nil {
		return err
	}

	return nil
}
