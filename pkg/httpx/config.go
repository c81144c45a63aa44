package httpx

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Port int `mapstructure:"port"`

	// RequestTimeout bounds the ingress handler's wait for the bus reply.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	RateLimit RateLimitConfig `mapstructure:"rate-limit"`
}

type RateLimitConfig struct {
	Enabled           *bool `mapstructure:"enabled"`
	RequestsPerSecond int   `mapstructure:"requests-per-second"`
	Burst             int   `mapstructure:"burst"`
}

// NewServerConfigModule provides the HTTP server configuration.
func NewServerConfigModule() fx.Option {
	return fx.Provide(newConfig)
}

func newConfig(v *viper.Viper, log *zap.Logger) (Config, error) {
	var cfg Config
	if sub := v.Sub("server"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to load server config: %w", err)
		}
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	cfg.RateLimit.setDefaults()

	log.Info("loaded server config",
		zap.Int("port", cfg.Port),
		zap.Duration("request-timeout", cfg.RequestTimeout),
	)
	return cfg, nil
}

func (c *RateLimitConfig) setDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if !*c.Enabled {
		return
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 1000
	}
	if c.Burst == 0 {
		c.Burst = 100
	}
}
