package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "corgi/injection"

// TimelineAttrs describes the outcome of one timeline build
type TimelineAttrs struct {
	Strategy      string
	Source        string
	Performed     bool
	Reason        string
	RealCount     int
	InjectedCount int
}

// TraceBuildTimeline starts the span covering a timeline build
func TraceBuildTimeline(ctx context.Context, anonymous bool) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "timeline.build",
		trace.WithAttributes(attribute.Bool("user.anonymous", anonymous)),
	)
}

// EndBuildTimeline records the outcome and ends the span
func EndBuildTimeline(span trace.Span, attrs TimelineAttrs) {
	span.SetAttributes(
		attribute.Bool("injection.performed", attrs.Performed),
		attribute.Int("timeline.real_count", attrs.RealCount),
		attribute.Int("injection.injected_count", attrs.InjectedCount),
	)
	if attrs.Strategy != "" {
		span.SetAttributes(attribute.String("injection.strategy", attrs.Strategy))
	}
	if attrs.Source != "" {
		span.SetAttributes(attribute.String("injection.source", attrs.Source))
	}
	if attrs.Reason != "" {
		span.SetAttributes(attribute.String("injection.reason", attrs.Reason))
	}
	span.End()
}

// TraceFetch starts a span for one of the concurrent timeline fetches
func TraceFetch(ctx context.Context, stage string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "timeline.fetch."+stage,
		trace.WithAttributes(attribute.String("fetch.stage", stage)),
	)
}

// EndFetch records the fetch result and ends the span
func EndFetch(span trace.Span, count int, err error) {
	span.SetAttributes(attribute.Int("fetch.count", count))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}

// TraceInteraction starts a span for logging an interaction
func TraceInteraction(ctx context.Context, action, postID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "interaction.log",
		trace.WithAttributes(
			attribute.String("interaction.action", action),
			attribute.String("post.id", postID),
		),
	)
}

// EndInteraction records whether the interaction reached the profile and ends the span
func EndInteraction(span trace.Span, applied, promoted bool, err error) {
	span.SetAttributes(
		attribute.Bool("interaction.applied", applied),
		attribute.Bool("signals.promoted", promoted),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	span.End()
}
