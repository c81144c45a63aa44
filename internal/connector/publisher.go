package connector

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	kafkaconf "github.com/reactiveblueprint/schedule-pipeline/pkg/kafka"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/schedule"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// transport is the slice of the broker producer the publisher uses; tests
// substitute a fake.
type transport interface {
	Produce(message *kafka.Message, deliveryChan chan kafka.Event) error
}

// Publisher owns the broker producer client. Its mailbox is consumed by a
// single goroutine and every delivery is awaited before the next record is
// taken, so records sharing a key keep their submission order.
type Publisher struct {
	registry  *bus.Registry
	transport transport
	topic     string
	log       *zap.Logger
}

func NewPublisher(registry *bus.Registry, transport transport, conf kafkaconf.Config, log *zap.Logger) *Publisher {
	return &Publisher{
		registry:  registry,
		transport: transport,
		topic:     conf.Topic,
		log:       log.With(zap.String("component", "schedule-publisher")),
	}
}

func (p *Publisher) Register() error {
	return p.registry.Register(schedule.AddressProduce, p.handle)
}

func (p *Publisher) handle(ctx context.Context, body any) (any, error) {
	pub, ok := body.(publication)
	if !ok {
		return nil, bus.NewFailure(bus.KindInternal, "unexpected message type %T at %s", body, schedule.AddressProduce)
	}

	msg, err := p.buildRecord(ctx, pub)
	if err != nil {
		return nil, bus.NewFailure(bus.KindInternal, "%s", err.Error())
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := p.transport.Produce(msg, deliveryChan); err != nil {
		return nil, bus.NewFailure(bus.KindConnectionError, "%s", err.Error())
	}

	// Reply only after the broker acknowledged durability.
	select {
	case ev := <-deliveryChan:
		delivered, ok := ev.(*kafka.Message)
		if !ok {
			return nil, bus.NewFailure(bus.KindInternal, "unexpected delivery event %T", ev)
		}
		if delivered.TopicPartition.Error != nil {
			p.log.Error("broker rejected record",
				zap.String("requestId", pub.RequestID),
				zap.String("key", pub.Event.Key()),
				zap.Error(delivered.TopicPartition.Error))
			return nil, bus.NewFailure(bus.KindConnectionError, "%s", delivered.TopicPartition.Error.Error())
		}

		p.log.Info("record published",
			zap.String("requestId", pub.RequestID),
			zap.String("key", pub.Event.Key()),
			zap.Int32("partition", delivered.TopicPartition.Partition),
			zap.Int64("offset", int64(delivered.TopicPartition.Offset)))
		return schedule.ReplyOK, nil

	case <-ctx.Done():
		return nil, bus.NewFailure(bus.KindTimeout, "broker acknowledgement not received within deadline")
	}
}

// buildRecord keys the record by document number so equal customers land in
// the same partition. The request-id header stays first; trace context
// headers follow it.
func (p *Publisher) buildRecord(ctx context.Context, pub publication) (*kafka.Message, error) {
	value, err := pub.Event.Encode()
	if err != nil {
		return nil, err
	}

	headers := []kafka.Header{
		{Key: schedule.HeaderRequestID, Value: []byte(pub.RequestID)},
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for _, key := range carrier.Keys() {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(carrier.Get(key))})
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(pub.Event.Key()),
		Value:          value,
		Headers:        headers,
	}, nil
}
