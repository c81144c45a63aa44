package health

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewHealthModule provides the readiness registry under each of its roles.
func NewHealthModule() fx.Option {
	return fx.Provide(
		func(log *zap.Logger) Readiness {
			return NewReadiness(log.With(zap.String("component", "readiness")))
		},
		func(r Readiness) ComponentManager { return r },
		func(r Readiness) ReadinessChecker { return r },
		func(r Readiness) ReadinessWaiter { return r },
	)
}
