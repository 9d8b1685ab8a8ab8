package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/wormhole"

// Tracer provides OpenTelemetry tracing for the relay.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// NewTracerFrom creates a tracer from a specific provider.
func NewTracerFrom(tp trace.TracerProvider) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(tracerName),
	}
}

// StartRelaySpan starts the span covering one inbound event.
func (t *Tracer) StartRelaySpan(ctx context.Context, kind, channelID, messageID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "wormhole.relay",
		trace.WithAttributes(
			attribute.String("wormhole.event", kind),
			attribute.String("wormhole.channel_id", channelID),
			attribute.String("wormhole.message_id", messageID),
		),
	)
}

// EndRelaySpan ends a relay span with its outcome.
func (t *Tracer) EndRelaySpan(span trace.Span, beam, state string, copies int, err error) {
	span.SetAttributes(
		attribute.String("wormhole.beam", beam),
		attribute.String("wormhole.state", state),
		attribute.Int("wormhole.copies", copies),
	)
	end(span, err)
}

// StartDeliverySpan starts the span of one destination operation.
func (t *Tracer) StartDeliverySpan(ctx context.Context, op, channelID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "wormhole.deliver",
		trace.WithAttributes(
			attribute.String("wormhole.op", op),
			attribute.String("wormhole.destination", channelID),
		),
	)
}

// EndDeliverySpan ends a delivery span.
func (t *Tracer) EndDeliverySpan(span trace.Span, err error) {
	end(span, err)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
