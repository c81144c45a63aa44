package connector

import (
	"context"
	"time"

	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/schedule"
	"go.uber.org/zap"
)

// publication is the envelope handed to the publisher mailbox: the canonical
// event plus the request id destined for the record header.
type publication struct {
	RequestID string
	Event     schedule.Event
}

// Processor is a stateless transformer between the ingress and the log
// publisher. It authors INVALID_BODY on rule violations; any failure coming
// back from the publisher is forwarded unchanged.
type Processor struct {
	registry *bus.Registry
	log      *zap.Logger
	now      func() time.Time
}

func NewProcessor(registry *bus.Registry, log *zap.Logger) *Processor {
	return &Processor{
		registry: registry,
		log:      log.With(zap.String("component", "schedule-processor")),
		now:      time.Now,
	}
}

func (p *Processor) Register() error {
	return p.registry.Register(schedule.AddressRequest, p.handle)
}

func (p *Processor) handle(ctx context.Context, body any) (any, error) {
	req, ok := body.(schedule.Request)
	if !ok {
		return nil, bus.NewFailure(bus.KindInternal, "unexpected message type %T at %s", body, schedule.AddressRequest)
	}

	if err := req.Validate(p.now()); err != nil {
		p.log.Info("schedule request failed validation",
			zap.String("requestId", req.RequestID),
			zap.String("reason", err.Error()))
		return nil, bus.NewFailure(bus.KindInvalidBody, "%s", err.Error())
	}

	return p.registry.Request(ctx, schedule.AddressProduce, publication{
		RequestID: req.RequestID,
		Event:     schedule.NewEvent(req),
	})
}
