package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/health"
	kafkaconf "github.com/reactiveblueprint/schedule-pipeline/pkg/kafka"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewConsumerModule provides the broker consumer client subscribed to the
// schedule topic. Auto-commit stays disabled; the dispatcher commits each
// offset itself once persistence is acknowledged.
func NewConsumerModule() fx.Option {
	return fx.Provide(provideKafkaConsumer)
}

func provideKafkaConsumer(lc fx.Lifecycle, conf kafkaconf.Config, log *zap.Logger, componentMgr health.ComponentManager) (*kafka.Consumer, error) {
	kafkaConsumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": conf.Brokers,
		"group.id":          conf.Consumer.GroupID,
		// Offsets are neither stored nor committed automatically: a read
		// record must not become committable before the dispatcher saw the
		// persister acknowledge it.
		"enable.auto.commit":       false,
		"enable.auto.offset.store": false,
		"auto.offset.reset":        conf.Consumer.AutoOffsetReset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer for group %s: %w", conf.Consumer.GroupID, err)
	}

	markReady := componentMgr.AddComponent("kafka-consumer")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("subscribing to topic", zap.String("topic", conf.Topic))

			rebalanceCb := func(c *kafka.Consumer, event kafka.Event) error {
				switch ev := event.(type) {
				case kafka.AssignedPartitions:
					logPartitionEvent(log, "partitions assigned", ev.Partitions)
				case kafka.RevokedPartitions:
					logPartitionEvent(log, "partitions revoked", ev.Partitions)
				}
				return nil
			}

			if err := kafkaConsumer.SubscribeTopics([]string{conf.Topic}, rebalanceCb); err != nil {
				log.Error("failed to subscribe to topic", zap.Error(err))
				return err
			}

			if err := verifyTopicAvailable(kafkaConsumer, conf.Topic, log); err != nil {
				if conf.Consumer.FailOnTopicError {
					return err
				}
				log.Warn("topic verification failed, continuing anyway", zap.Error(err))
			}

			markReady()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Everything the persister acknowledged was already committed
			// in order, so ErrNoOffset is the normal outcome here.
			if _, commitErr := kafkaConsumer.Commit(); commitErr != nil {
				var kafkaErr kafka.Error
				if !errors.As(commitErr, &kafkaErr) || kafkaErr.Code() != kafka.ErrNoOffset {
					log.Warn("failed to commit offsets on shutdown", zap.Error(commitErr))
				}
			}

			log.Info("closing kafka consumer")
			return kafkaConsumer.Close()
		},
	})

	return kafkaConsumer, nil
}

func logPartitionEvent(log *zap.Logger, event string, partitions []kafka.TopicPartition) {
	if len(partitions) == 0 {
		log.Warn(event + ": no partitions")
		return
	}

	partitionIDs := make([]int32, len(partitions))
	for idx, partition := range partitions {
		partitionIDs[idx] = partition.Partition
	}

	log.Info(event,
		zap.Int("partition_count", len(partitions)),
		zap.Int32s("partitions", partitionIDs))
}

// verifyTopicAvailable checks if topic exists and has partitions.
func verifyTopicAvailable(consumer *kafka.Consumer, topic string, log *zap.Logger) error {
	metadata, err := consumer.GetMetadata(&topic, false, 10000)
	if err != nil {
		return fmt.Errorf("failed to get topic metadata: %w", err)
	}

	topicMeta, ok := metadata.Topics[topic]
	if !ok {
		return fmt.Errorf("topic %s not found in metadata", topic)
	}

	if topicMeta.Error.Code() != kafka.ErrNoError {
		return fmt.Errorf("topic %s has error: %s", topic, topicMeta.Error.String())
	}

	if len(topicMeta.Partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", topic)
	}

	log.Info("topic is ready",
		zap.String("topic", topic),
		zap.Int("partitions", len(topicMeta.Partitions)))
	return nil
}
