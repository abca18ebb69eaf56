package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans wrapped in the package Span type.
type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
	// StartSpan is StartSpanFromContext with only attributes.
	StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, Span)
	SpanFromContext(ctx context.Context) Span
}

type openTracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer bound to the global provider. The provider is
// resolved on every span so a tracer created before telemetry setup still
// exports.
func NewTracer(name string) Tracer {
	return &openTracer{otel.Tracer(name)}
}

// NewTracerFrom returns a Tracer bound to tp.
func NewTracerFrom(tp trace.TracerProvider, name string) Tracer {
	return &openTracer{tp.Tracer(name)}
}

func (t *openTracer) StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, NewSpan(span)
}

func (t *openTracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	if len(attrs) == 0 {
		return t.StartSpanFromContext(ctx, name)
	}
	return t.StartSpanFromContext(ctx, name, trace.WithAttributes(attrs...))
}

func (t *openTracer) SpanFromContext(ctx context.Context) Span {
	return NewSpan(trace.SpanFromContext(ctx))
}
