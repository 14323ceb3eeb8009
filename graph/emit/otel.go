package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into an OpenTelemetry span.
//
// Span name is the event's Msg; identifying fields and Meta entries become
// attributes. Events are points in time, so spans end immediately; the
// configured span processor batches them for export.
//
// Setup:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	emitter := emit.NewOTelEmitter(otel.Tracer("stategraph"))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an emitter over the given tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit records the event as an immediately-ended span. An "error" Meta
// entry sets the span's error status.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("stategraph.thread_id", event.ThreadID),
		attribute.String("stategraph.execution_id", event.ExecutionID),
		attribute.Int("stategraph.step", event.Step),
	)
	if event.NodeID != "" {
		span.SetAttributes(attribute.String("stategraph.node_id", event.NodeID))
	}

	for k, v := range event.Meta {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String("stategraph."+k, val))
		case int:
			span.SetAttributes(attribute.Int("stategraph."+k, val))
		case int64:
			span.SetAttributes(attribute.Int64("stategraph."+k, val))
		case float64:
			span.SetAttributes(attribute.Float64("stategraph."+k, val))
		case bool:
			span.SetAttributes(attribute.Bool("stategraph."+k, val))
		default:
			span.SetAttributes(attribute.String("stategraph."+k, fmt.Sprintf("%v", val)))
		}
	}

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}
