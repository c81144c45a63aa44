package httpx

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/core/health"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewHTTPServerModule provides the gin engine, registers the health probes
// and runs the HTTP server under the fx lifecycle.
func NewHTTPServerModule() fx.Option {
	return fx.Options(
		fx.Provide(provideEngine),
		fx.Invoke(registerHealthRoutes),
		fx.Invoke(startHTTPServer),
	)
}

func provideEngine(log *zap.Logger, conf Config) *gin.Engine {
	return newEngine(log.With(zap.String("component", "http")), conf)
}

func registerHealthRoutes(engine *gin.Engine, checker health.ReadinessChecker) {
	engine.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	engine.GET("/health/ready", func(c *gin.Context) {
		status := checker.GetStatus()
		code := http.StatusOK
		if !status.Ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
}

func startHTTPServer(lc fx.Lifecycle, log *zap.Logger, conf Config, engine *gin.Engine, shutdowner fx.Shutdowner) {
	componentLog := log.With(zap.String("component", "http-server"))
	srv := newServer(componentLog, conf, engine)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Serve(); err != nil {
					componentLog.Error("server failed, initiating shutdown", zap.Error(err))
					if shutdownErr := shutdowner.Shutdown(fx.ExitCode(1)); shutdownErr != nil {
						componentLog.Error("failed to initiate shutdown", zap.Error(shutdownErr))
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
