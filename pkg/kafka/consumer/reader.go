package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// messageReader is the slice of *kafka.Consumer the reader needs; the
// dispatcher tests substitute a fake.
type messageReader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
}

// ReadNext blocks until a record arrives or the context ends. Transient
// broker conditions are waited out in place so callers only ever see a
// record or cancellation.
func ReadNext(ctx context.Context, c messageReader, topic string, log *zap.Logger) (*kafka.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := c.ReadMessage(5 * time.Second)
		if err == nil {
			return msg, nil
		}

		var kafkaErr kafka.Error
		if errors.As(err, &kafkaErr) {
			if kafkaErr.IsTimeout() {
				continue
			}

			if kafkaErr.Code() == kafka.ErrUnknownTopicOrPart {
				log.Warn("topic not available, waiting for topic creation",
					zap.String("topic", topic))
				sleep(ctx, 10*time.Second)
				continue
			}

			if kafkaErr.Code() == kafka.ErrTransport ||
				kafkaErr.Code() == kafka.ErrAllBrokersDown ||
				kafkaErr.Code() == kafka.ErrNetworkException {
				log.Warn("broker connection issue, retrying",
					zap.String("topic", topic),
					zap.Error(err))
				sleep(ctx, 5*time.Second)
				continue
			}

			if kafkaErr.Code() == kafka.ErrLeaderNotAvailable ||
				kafkaErr.Code() == kafka.ErrNotLeaderForPartition {
				log.Debug("partition leader changing, retrying",
					zap.String("topic", topic))
				sleep(ctx, 2*time.Second)
				continue
			}
		}

		log.Error("failed to read message", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
