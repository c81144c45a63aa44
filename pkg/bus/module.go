package bus

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewBusModule provides the in-process mailbox registry.
func NewBusModule() fx.Option {
	return fx.Provide(provideRegistry)
}

func provideRegistry(lc fx.Lifecycle, log *zap.Logger) *Registry {
	r := NewRegistry(log.With(zap.String("component", "bus")))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			r.Close()
			return nil
		},
	})

	return r
}
