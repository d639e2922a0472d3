package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
)

// TracerName is the instrumentation scope of the node spans.
const TracerName = "github.com/aretw0/stategraph"

// Tracing returns a middleware that wraps every node invocation in a span.
// A nil tracer uses the global provider.
func Tracing(tracer trace.Tracer) graph.Middleware {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return func(node domain.NodeInfo, next graph.NodeFunc) graph.NodeFunc {
		return func(ctx context.Context, s domain.State) (domain.Partial, error) {
			attrs := []attribute.KeyValue{
				attribute.String("stategraph.node", node.Name),
				attribute.String("stategraph.node.kind", node.Kind),
			}
			if id, ok := domain.RunIDFromContext(ctx); ok {
				attrs = append(attrs, attribute.String("stategraph.run_id", id))
			}
			ctx, span := tracer.Start(ctx, "node "+node.Name, trace.WithAttributes(attrs...))
			defer span.End()

			out, err := next(ctx, s)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return out, err
			}
			span.SetAttributes(attribute.Int("stategraph.fields_written", len(out)))
			span.SetStatus(codes.Ok, "")
			return out, nil
		}
	}
}

// InitStdoutTracing installs a global tracer provider that writes spans as JSON to w.
// The returned function flushes and shuts the provider down.
func InitStdoutTracing(w io.Writer, serviceName, serviceVersion string) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
