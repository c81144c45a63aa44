// Package httpx assembles the gin engine and the HTTP server lifecycle
// around it.
package httpx

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newEngine(log *zap.Logger, conf Config) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLoggerMiddleware(log))
	if *conf.RateLimit.Enabled {
		engine.Use(rateLimitMiddleware(conf.RateLimit))
	}
	return engine
}

func requestLoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}

		if len(c.Errors) > 0 {
			for _, e := range c.Errors {
				log.Error("request error", append(fields, zap.String("error", e.Error()))...)
			}
			return
		}
		log.Info("request", fields...)
	}
}

func rateLimitMiddleware(conf RateLimitConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(conf.RequestsPerSecond), conf.Burst)

	return func(c *gin.Context) {
		// Health probes are exempt.
		if c.Request.URL.Path == "/health/live" || c.Request.URL.Path == "/health/ready" {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "ERROR",
				"message": "rate limit exceeded, please try again later",
			})
			return
		}

		c.Next()
	}
}
