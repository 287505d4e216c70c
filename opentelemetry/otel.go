package opentelemetry

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the named tracer from the globally installed provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a child span of the span carried by ctx.
func StartSpan(ctx context.Context, tracerName, spanName string) (context.Context, trace.Span) {
	return Tracer(tracerName).Start(ctx, spanName)
}

// HandleSpanError sets the status of the span to error and records the error.
func HandleSpanError(span *trace.Span, message string, err error) {
	if span != nil && err != nil {
		(*span).SetStatus(codes.Error, message+": "+err.Error())
		(*span).RecordError(err)
	}
}

// HandleSpanEvent adds an event to the span.
func HandleSpanEvent(span *trace.Span, eventName string, attributes ...attribute.KeyValue) {
	if span != nil {
		(*span).AddEvent(eventName, trace.WithAttributes(attributes...))
	}
}

// SetSpanAttributesFromStruct converts a struct to a JSON string and sets it
// as an attribute on the span.
func SetSpanAttributesFromStruct(span *trace.Span, key string, valueStruct any) error {
	jsonByte, err := json.Marshal(valueStruct)
	if err != nil {
		return err
	}

	(*span).SetAttributes(attribute.KeyValue{
		Key:   attribute.Key(key),
		Value: attribute.StringValue(string(jsonByte)),
	})

	return nil
}
