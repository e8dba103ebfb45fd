package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "invoiceledger/invoice"

// StartOperation opens an internal span for one aggregate operation.
func StartOperation(ctx context.Context, operation string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, "invoice."+operation,
		trace.WithAttributes(attribute.String("invoice.operation", operation)))
}

// EndOperation records the outcome and ends span. Expected domain failures
// carry their kind as an attribute without marking the span as errored.
func EndOperation(span trace.Span, kind string, err error) {
	if err != nil {
		if kind != "" {
			span.SetAttributes(attribute.String("invoice.error_kind", kind))
		} else {
			span.RecordError(SafeError(err))
			span.SetStatus(codes.Error, "operation failed")
		}
	}
	span.End()
}
