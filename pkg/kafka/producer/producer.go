package producer

import (
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	kafkaconf "github.com/reactiveblueprint/schedule-pipeline/pkg/kafka"
	"go.uber.org/zap"
)

type Producer interface {
	Produce(message *kafka.Message, deliveryChan chan kafka.Event) error
	Close()
}

type producer struct {
	producer *kafka.Producer
	log      *zap.Logger
}

func newProducer(conf kafkaconf.Config, log *zap.Logger) (*producer, error) {
	// Idempotent delivery pins retries to their original sequence, so
	// records sharing a key cannot be reordered by a retried batch.
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     conf.Brokers,
		"enable.idempotence":                    true,
		"acks":                                  "all",
		"max.in.flight.requests.per.connection": 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &producer{producer: p, log: log}, nil
}

func (p *producer) Produce(message *kafka.Message, deliveryChan chan kafka.Event) error {
	if err := p.producer.Produce(message, deliveryChan); err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", message.TopicPartition, err)
	}
	return nil
}

func (p *producer) Close() {
	p.producer.Close()
}
