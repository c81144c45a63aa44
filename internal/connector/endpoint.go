package connector

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/httpx"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/schedule"
	"go.uber.org/zap"
)

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Endpoint is the ingress receiver: it validates the request shape, tags it
// with a fresh request id and awaits the processor's reply. The HTTP answer
// is produced from that reply, never synthesized locally.
type Endpoint struct {
	registry *bus.Registry
	conf     httpx.Config
	log      *zap.Logger
}

func NewEndpoint(registry *bus.Registry, conf httpx.Config, log *zap.Logger) *Endpoint {
	return &Endpoint{
		registry: registry,
		conf:     conf,
		log:      log.With(zap.String("component", "schedule-endpoint")),
	}
}

func (e *Endpoint) RegisterRoutes(engine *gin.Engine) {
	engine.POST("/schedules", e.postSchedule)
}

func (e *Endpoint) postSchedule(c *gin.Context) {
	var req schedule.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, statusBody{
			Status:  string(bus.KindInvalidBody),
			Message: err.Error(),
		})
		return
	}

	req.EnsureRequestID()

	ctx, cancel := context.WithTimeout(c.Request.Context(), e.conf.RequestTimeout)
	defer cancel()

	if _, err := e.registry.Request(ctx, schedule.AddressRequest, req); err != nil {
		failure := bus.AsFailure(err)
		e.log.Warn("schedule request rejected",
			zap.String("requestId", req.RequestID),
			zap.String("kind", string(failure.Kind)),
			zap.String("reason", failure.Message))
		c.JSON(statusCode(failure.Kind), statusBody{
			Status:  string(failure.Kind),
			Message: failure.Message,
		})
		return
	}

	c.JSON(http.StatusCreated, statusBody{Status: "OK", Message: req.RequestID})
}

func statusCode(kind bus.Kind) int {
	switch kind {
	case bus.KindInvalidBody:
		return http.StatusBadRequest
	case bus.KindConnectionError:
		return http.StatusBadGateway
	case bus.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
