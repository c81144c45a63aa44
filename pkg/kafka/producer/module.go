package producer

import (
	"context"

	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/health"
	kafkaconf "github.com/reactiveblueprint/schedule-pipeline/pkg/kafka"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewProducerModule provides the broker producer client. The client is owned
// by exactly one component, created at startup and destroyed at shutdown.
func NewProducerModule() fx.Option {
	return fx.Provide(provideProducer)
}

func provideProducer(lc fx.Lifecycle, log *zap.Logger, conf kafkaconf.Config, readiness health.ComponentManager) (Producer, error) {
	componentLog := log.With(zap.String("component", "kafka-producer"))

	p, err := newProducer(conf, componentLog)
	if err != nil {
		return nil, err
	}

	markReady := readiness.AddComponent("kafka-producer")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			err := waitForBrokers(ctx, p.producer, componentLog,
				conf.Producer.ReadinessTimeoutSeconds, *conf.Producer.FailOnBrokerError)
			if err != nil {
				return err
			}
			markReady()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Close()
			return nil
		},
	})

	return p, nil
}
