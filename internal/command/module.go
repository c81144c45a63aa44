package command

import (
	"context"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/health"
	kafkaconf "github.com/reactiveblueprint/schedule-pipeline/pkg/kafka"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewCommandModule wires the log→store pipeline: dispatcher → persister.
func NewCommandModule() fx.Option {
	return fx.Options(
		fx.Provide(
			NewPersister,
			provideDispatcher,
		),
		fx.Invoke(func(p *Persister) error {
			return p.Register()
		}),
		fx.Invoke(runDispatcher),
	)
}

func provideDispatcher(registry *bus.Registry, consumer *kafka.Consumer, conf kafkaconf.Config, log *zap.Logger) *Dispatcher {
	return NewDispatcher(registry, consumer, conf.Topic, log)
}

// runDispatcher runs the consume loop as a lifecycle-managed worker. The
// worker holds its first poll until every component reported ready.
func runDispatcher(lc fx.Lifecycle, d *Dispatcher, readiness health.ReadinessWaiter, log *zap.Logger) {
	var (
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())

			wg.Add(1)
			go func() {
				defer wg.Done()

				log.Info("waiting for components readiness")
				if err := readiness.WaitReady(runCtx); err != nil {
					log.Info("dispatcher stopped while waiting for readiness")
					return
				}
				log.Info("readiness achieved, starting dispatcher")

				if err := d.Run(runCtx); err != nil {
					log.Error("dispatcher stopped with error", zap.Error(err))
					return
				}
				log.Info("dispatcher stopped")
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			wg.Wait()
			return nil
		},
	})
}
