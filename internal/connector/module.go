package connector

import (
	"github.com/gin-gonic/gin"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	kafkaconf "github.com/reactiveblueprint/schedule-pipeline/pkg/kafka"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/kafka/producer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewConnectorModule wires the ingress pipeline: endpoint → processor →
// publisher. Mailboxes are registered before the HTTP server starts taking
// traffic.
func NewConnectorModule() fx.Option {
	return fx.Options(
		fx.Provide(
			NewProcessor,
			providePublisher,
			NewEndpoint,
		),
		fx.Invoke(registerMailboxes),
		fx.Invoke(func(e *Endpoint, engine *gin.Engine) {
			e.RegisterRoutes(engine)
		}),
	)
}

func providePublisher(registry *bus.Registry, p producer.Producer, conf kafkaconf.Config, log *zap.Logger) *Publisher {
	return NewPublisher(registry, p, conf, log)
}

func registerMailboxes(p *Processor, pub *Publisher) error {
	if err := p.Register(); err != nil {
		return err
	}
	return pub.Register()
}
