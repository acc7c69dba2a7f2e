// Package tracing's propagation helpers carry a trace context across every
// transport this platform uses. The teacher only ever crossed a process
// boundary over Kafka; this platform also crosses one over plain HTTP
// (order-service's synchronous probe of user-service, spec.md §4.4), so the
// Kafka header carrier the teacher wrote is extended here with an HTTP
// header counterpart built on the same otel propagator.
package tracing

import (
	"context"
	"net/http"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const TraceparentHeader = "traceparent"

// InjectKafkaHeaders stamps the current trace context onto an outgoing
// Kafka record. The outbox publisher (C2) does not call it; it forwards the
// row's stored Traceparent as a header instead.
func InjectKafkaHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

// ExtractKafkaHeaders recovers a trace context from a consumed Kafka
// record's headers, for the cross-service consumer (C5).
func ExtractKafkaHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}

	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}

	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// InjectHTTPHeaders stamps the current trace context onto an outgoing HTTP
// request, so a span started for POST /api/orders continues across
// userclient's synchronous probe of user-service instead of starting a new
// trace at the peer.
func InjectHTTPHeaders(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}

// ExtractHTTPHeaders recovers a trace context from an incoming HTTP
// request's headers, so a handler's span joins the caller's trace instead
// of starting a disconnected one.
func ExtractHTTPHeaders(ctx context.Context, header http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(header))
}
