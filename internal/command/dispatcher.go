package command

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	kafkaconsumer "github.com/reactiveblueprint/schedule-pipeline/pkg/kafka/consumer"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/schedule"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// consumerClient is the slice of *kafka.Consumer the dispatcher uses; tests
// substitute a fake.
type consumerClient interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Seek(partition kafka.TopicPartition, ignoredTimeoutMs int) error
}

// Dispatcher drives the log→store stage: read a record, hand it to the
// persister mailbox, commit the offset only after the persister replied OK.
// On persister failure nothing is committed; the partition is rewound to the
// failed offset so the record is redelivered on the next poll.
type Dispatcher struct {
	registry *bus.Registry
	client   consumerClient
	topic    string
	log      *zap.Logger
	retry    backoff.BackOff
}

func NewDispatcher(registry *bus.Registry, client consumerClient, topic string, log *zap.Logger) *Dispatcher {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 500 * time.Millisecond
	retry.MaxInterval = 10 * time.Second
	retry.MaxElapsedTime = 0 // keep retrying until the store recovers

	return &Dispatcher{
		registry: registry,
		client:   client,
		topic:    topic,
		log:      log.With(zap.String("component", "schedule-dispatcher")),
		retry:    retry,
	}
}

// Run consumes until the context ends. Offsets within a partition are
// committed strictly in record order because a failed record blocks the loop
// until it persists.
func (d *Dispatcher) Run(ctx context.Context) error {
	tracer := otel.Tracer("schedule-command")

	for {
		msg, err := kafkaconsumer.ReadNext(ctx, d.client, d.topic, d.log)
		if err != nil {
			// Only context cancellation reaches here.
			return nil
		}
		d.dispatch(ctx, tracer, msg)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, tracer trace.Tracer, msg *kafka.Message) {
	msgCtx := extractContext(ctx, msg)
	msgCtx, span := startConsumerSpan(msgCtx, tracer, msg)
	defer span.End()

	requestID := kafkaconsumer.HeaderValue(msg.Headers, schedule.HeaderRequestID)

	event, err := schedule.DecodeEvent(msg.Value)
	if err != nil {
		// Undecodable records can never persist; skip past them.
		span.SetStatus(codes.Error, "undecodable record")
		d.log.Error("skipping undecodable record",
			zap.String("requestId", requestID),
			zap.Int32("partition", msg.TopicPartition.Partition),
			zap.Int64("offset", int64(msg.TopicPartition.Offset)),
			zap.Error(err))
		d.commit(msg)
		return
	}

	if _, err := d.registry.Request(msgCtx, schedule.AddressReceived, event); err != nil {
		failure := bus.AsFailure(err)
		span.RecordError(failure)
		span.SetStatus(codes.Error, "persistence failed")
		d.log.Warn("persistence failed, record stays uncommitted",
			zap.String("requestId", requestID),
			zap.String("kind", string(failure.Kind)),
			zap.String("reason", failure.Message),
			zap.String("key", string(msg.Key)),
			zap.Int32("partition", msg.TopicPartition.Partition),
			zap.Int64("offset", int64(msg.TopicPartition.Offset)))

		d.rewind(msg)
		d.wait(ctx)
		return
	}

	span.SetStatus(codes.Ok, "record persisted")
	d.retry.Reset()
	d.commit(msg)
}

func (d *Dispatcher) commit(msg *kafka.Message) {
	if _, err := d.client.CommitMessage(msg); err != nil {
		d.log.Error("failed to commit offset",
			zap.String("key", string(msg.Key)),
			zap.Int32("partition", msg.TopicPartition.Partition),
			zap.Int64("offset", int64(msg.TopicPartition.Offset)),
			zap.Error(err))
	}
}

// rewind points the partition back at the failed record so the next poll
// redelivers it instead of skipping ahead past an unpersisted offset.
func (d *Dispatcher) rewind(msg *kafka.Message) {
	seekTo := kafka.TopicPartition{
		Topic:     msg.TopicPartition.Topic,
		Partition: msg.TopicPartition.Partition,
		Offset:    msg.TopicPartition.Offset,
	}
	if err := d.client.Seek(seekTo, 0); err != nil {
		d.log.Error("failed to seek back to uncommitted offset", zap.Error(err))
	}
}

func (d *Dispatcher) wait(ctx context.Context) {
	interval := d.retry.NextBackOff()
	if interval == backoff.Stop {
		return
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
