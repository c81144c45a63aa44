package command

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// extractContext pulls the trace context the publisher injected into the
// record headers.
func extractContext(ctx context.Context, message *kafka.Message) context.Context {
	if len(message.Headers) == 0 {
		return ctx
	}

	headersMap := make(map[string]string, len(message.Headers))
	for _, header := range message.Headers {
		headersMap[header.Key] = string(header.Value)
	}

	carrier := propagation.MapCarrier(headersMap)
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func startConsumerSpan(ctx context.Context, tracer trace.Tracer, message *kafka.Message) (context.Context, trace.Span) {
	return tracer.Start(ctx, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", *message.TopicPartition.Topic),
			attribute.Int("messaging.partition", int(message.TopicPartition.Partition)),
			attribute.Int64("messaging.offset", int64(message.TopicPartition.Offset)),
			attribute.String("messaging.message.key", string(message.Key)),
		),
	)
}
