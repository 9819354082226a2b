// Package otel turns eventbus events into OpenTelemetry spans exported over
// OTLP/gRPC.
package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/restgraph/internal/eventbus"
	events "github.com/hanpama/restgraph/internal/events"
	reqid "github.com/hanpama/restgraph/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(ctx context.Context, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Attach(otel.Tracer("restgraph"))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Attach subscribes span-producing handlers for tracer on the global bus.
// The returned function removes them.
func Attach(tracer trace.Tracer) func() {
	s := &subscriber{tracer: tracer}
	return s.register()
}

type subscriber struct {
	tracer      trace.Tracer
	httpSpans   sync.Map // rid -> trace.Span
	gqlSpans    sync.Map // operation id -> trace.Span
	clientSpans sync.Map // call id -> trace.Span
	buildSpans  sync.Map // source -> trace.Span
}

// parent returns ctx carrying the innermost open span of the request.
func (s *subscriber) parent(ctx context.Context) context.Context {
	rid, _ := reqid.FromContext(ctx)
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

// operationKey is the ID of an operation event, else the request ID. Over
// WebSocket both name the operation, so upstream calls find their parent.
func operationKey(ctx context.Context, id string) string {
	if id != "" {
		return id
	}
	rid, _ := reqid.FromContext(ctx)
	return rid
}

func end(m *sync.Map, key any, fn func(trace.Span)) {
	v, ok := m.LoadAndDelete(key)
	if !ok {
		return
	}
	span := v.(trace.Span)
	fn(span)
	span.End()
}

func fail(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (s *subscriber) register() func() {
	var unsubs []func()
	unsubs = append(unsubs, eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
		)
		s.httpSpans.Store(rid, span)
	}))

	unsubs = append(unsubs, eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		end(&s.httpSpans, rid, func(span trace.Span) {
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		})
	}))

	unsubs = append(unsubs, eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
		_, span := s.tracer.Start(s.parent(ctx), "graphql.operation")
		span.SetAttributes(
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.String("graphql.operation.type", e.OperationType),
			attribute.String("graphql.transport", e.Transport),
		)
		s.gqlSpans.Store(operationKey(ctx, e.ID), span)
	}))

	unsubs = append(unsubs, eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		end(&s.gqlSpans, operationKey(ctx, e.ID), func(span trace.Span) {
			span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
		})
	}))

	unsubs = append(unsubs, eventbus.Subscribe(func(ctx context.Context, e events.WebhookPublished) {
		_, span := s.tracer.Start(ctx, "webhook.publish", trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.String("messaging.destination.name", e.Topic),
			attribute.Int("messaging.message.body.size", e.Bytes),
		)
		fail(span, e.Err)
		span.End()
	}))

	unsubs = append(unsubs, eventbus.Subscribe(func(ctx context.Context, e events.HTTPClientStart) {
		_, span := s.tracer.Start(s.parent(ctx), "http.client", trace.WithSpanKind(trace.SpanKindClient))
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Method),
			semconv.HTTPURLKey.String(e.URL),
			attribute.String("graphql.field", e.Field),
		)
		s.clientSpans.Store(e.Call, span)
	}))

	unsubs = append(unsubs, eventbus.Subscribe(func(ctx context.Context, e events.HTTPClientFinish) {
		end(&s.clientSpans, e.Call, func(span trace.Span) {
			if e.Status != 0 {
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			}
			span.SetAttributes(attribute.Bool("http.cached", e.Cached))
			fail(span, e.Err)
		})
	}))

	unsubs = append(unsubs, eventbus.Subscribe(func(ctx context.Context, e events.SchemaBuildStart) {
		_, span := s.tracer.Start(ctx, "schema.build")
		span.SetAttributes(
			attribute.String("restgraph.source", e.Source),
			attribute.Int("restgraph.operations", e.Operations),
		)
		s.buildSpans.Store(e.Source, span)
	}))

	unsubs = append(unsubs, eventbus.Subscribe(func(ctx context.Context, e events.SchemaBuildFinish) {
		end(&s.buildSpans, e.Source, func(span trace.Span) {
			span.SetAttributes(
				attribute.Int("restgraph.types", e.Types),
				attribute.Int("restgraph.diagnostics", e.Diagnostics),
				attribute.Bool("restgraph.cached", e.Cached),
			)
			fail(span, e.Err)
		})
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
