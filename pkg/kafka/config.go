// Package kafka holds the broker configuration shared by the producer and
// consumer transports.
package kafka

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	OffsetResetEarliest = "earliest"
	OffsetResetLatest   = "latest"
)

// DefaultTopic is the schedule log topic unless configuration overrides it.
const DefaultTopic = "schedule-request"

type Config struct {
	// Brokers is the comma-separated bootstrap server list.
	Brokers string `mapstructure:"bootstrap-servers"`

	// Topic is the schedule log topic.
	Topic string `mapstructure:"topic"`

	// Serializer identifiers, carried for configuration parity with other
	// clients of the same topic. Those clients spell the keys with dots
	// (kafka.key.serializer); the env key replacer folds both spellings to
	// the same KAFKA_KEY_SERIALIZER override. The Go transports always use
	// UTF-8 string keys and UTF-8 JSON values.
	KeySerializer     string `mapstructure:"key-serializer"`
	ValueSerializer   string `mapstructure:"value-serializer"`
	KeyDeserializer   string `mapstructure:"key-deserializer"`
	ValueDeserializer string `mapstructure:"value-deserializer"`

	Consumer ConsumerConfig `mapstructure:"consumer"`
	Producer ProducerConfig `mapstructure:"producer"`
}

type ConsumerConfig struct {
	// GroupID names the consumer group, supplied per subscription.
	GroupID string `mapstructure:"group-id"`

	// AutoOffsetReset is "earliest" or "latest". A new group starts from
	// earliest by default.
	AutoOffsetReset string `mapstructure:"auto-offset-reset"`

	// EnableAutoCommit must stay false: offsets are committed only after
	// the persister acknowledged the record. Configuration validation
	// rejects true.
	EnableAutoCommit *bool `mapstructure:"enable-auto-commit"`

	// FailOnTopicError fails startup when the topic is missing.
	FailOnTopicError bool `mapstructure:"fail-on-topic-error"`
}

type ProducerConfig struct {
	// ReadinessTimeoutSeconds bounds the broker visibility probe on startup
	// (0 = no timeout).
	ReadinessTimeoutSeconds int `mapstructure:"readiness-timeout-seconds"`

	// FailOnBrokerError fails startup when brokers are unreachable.
	FailOnBrokerError *bool `mapstructure:"fail-on-broker-error"`
}

// NewKafkaConfigModule provides the broker configuration.
func NewKafkaConfigModule() fx.Option {
	return fx.Provide(newConfig)
}

func newConfig(v *viper.Viper, log *zap.Logger) (Config, error) {
	var cfg Config
	sub := v.Sub("kafka")
	if sub == nil {
		return cfg, fmt.Errorf("kafka config section is missing")
	}
	if err := sub.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to load kafka config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	log.Info("loaded kafka config",
		zap.String("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.String("group-id", cfg.Consumer.GroupID),
		zap.String("auto-offset-reset", cfg.Consumer.AutoOffsetReset),
	)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Consumer.AutoOffsetReset == "" {
		cfg.Consumer.AutoOffsetReset = OffsetResetEarliest
	}
	if cfg.Consumer.EnableAutoCommit == nil {
		cfg.Consumer.EnableAutoCommit = lo.ToPtr(false)
	}
	if cfg.Producer.ReadinessTimeoutSeconds == 0 {
		cfg.Producer.ReadinessTimeoutSeconds = 60
	}
	if cfg.Producer.FailOnBrokerError == nil {
		cfg.Producer.FailOnBrokerError = lo.ToPtr(true)
	}
}

func (c Config) Validate() error {
	if c.Brokers == "" {
		return fmt.Errorf("kafka.bootstrap-servers is required")
	}
	if c.Consumer.AutoOffsetReset != OffsetResetEarliest && c.Consumer.AutoOffsetReset != OffsetResetLatest {
		return fmt.Errorf("kafka.consumer.auto-offset-reset must be %q or %q, got %q",
			OffsetResetEarliest, OffsetResetLatest, c.Consumer.AutoOffsetReset)
	}
	if c.Consumer.EnableAutoCommit != nil && *c.Consumer.EnableAutoCommit {
		return fmt.Errorf("kafka.consumer.enable-auto-commit must be false: offsets are committed only after persistence is acknowledged")
	}
	return nil
}
