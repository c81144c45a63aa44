// Package cassandra owns the wide-column store session and its schema.
package cassandra

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	// ContactPoints are the store nodes to bootstrap from.
	ContactPoints []string `mapstructure:"contact-points"`

	// Keyspace holds the schedule table.
	Keyspace string `mapstructure:"keyspace"`

	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`

	// ReplicationFactor is used when the keyspace has to be created.
	ReplicationFactor int `mapstructure:"replication-factor"`

	// Migrate runs the embedded schema migrations on startup.
	Migrate *bool `mapstructure:"migrate"`
}

// NewCassandraConfigModule provides the store configuration.
func NewCassandraConfigModule() fx.Option {
	return fx.Provide(newConfig)
}

func newConfig(v *viper.Viper, log *zap.Logger) (Config, error) {
	var cfg Config
	sub := v.Sub("cassandra")
	if sub == nil {
		return cfg, fmt.Errorf("cassandra config section is missing")
	}
	if err := sub.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to load cassandra config: %w", err)
	}

	if len(cfg.ContactPoints) == 0 {
		return cfg, fmt.Errorf("cassandra.contact-points is required")
	}
	if cfg.Keyspace == "" {
		return cfg, fmt.Errorf("cassandra.keyspace is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 9042
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ReplicationFactor == 0 {
		cfg.ReplicationFactor = 1
	}
	if cfg.Migrate == nil {
		migrate := true
		cfg.Migrate = &migrate
	}

	log.Info("loaded cassandra config",
		zap.Strings("contact-points", cfg.ContactPoints),
		zap.String("keyspace", cfg.Keyspace),
		zap.Int("port", cfg.Port),
	)
	return cfg, nil
}
