package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTPClientConfig holds configuration for an instrumented HTTP client
type HTTPClientConfig struct {
	ServiceName string        // Name of the external service (e.g., "mastodon", "gorse")
	Timeout     time.Duration // Request timeout
}

// NewInstrumentedHTTPClient creates an HTTP client whose requests are traced
func NewInstrumentedHTTPClient(cfg HTTPClientConfig) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: otelhttp.NewTransport(
			http.DefaultTransport,
			otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if cfg.ServiceName == "" {
					return r.Method
				}
				return cfg.ServiceName + " " + r.Method
			}),
		),
	}
}

// TraceExternalCall creates a span for an external service call
func TraceExternalCall(ctx context.Context, service, operation, resourceID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("external-api").Start(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("external.service", service),
			attribute.String("external.operation", operation),
		),
	)
	if resourceID != "" {
		span.SetAttributes(attribute.String("external.resource_id", resourceID))
	}
	return ctx, span
}

// RecordExternalCallError records error details in a span
func RecordExternalCallError(span trace.Span, err error, statusCode int) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	if statusCode > 0 {
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
		if statusCode >= 500 || statusCode == 408 || statusCode == 429 {
			span.SetAttributes(attribute.Bool("external.error.retryable", true))
		}
	}
}

// RecordExternalCallSuccess records success metrics in a span
func RecordExternalCallSuccess(span trace.Span, statusCode int, items int) {
	span.SetAttributes(attribute.Int("http.status_code", statusCode))
	if items > 0 {
		span.SetAttributes(attribute.Int("external.items", items))
	}
	span.SetStatus(codes.Ok, "")
}
