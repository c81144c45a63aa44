package connector

import (
	"context"
	"testing"
	"time"

	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProcessor(t *testing.T, produceHandler bus.Handler) (*Processor, *bus.Registry) {
	t.Helper()

	registry := bus.NewRegistry(zap.NewNop())
	t.Cleanup(registry.Close)
	require.NoError(t, registry.Register(schedule.AddressProduce, produceHandler))

	p := NewProcessor(registry, zap.NewNop())
	require.NoError(t, p.Register())
	return p, registry
}

func TestProcessor(t *testing.T) {
	req := schedule.Request{
		RequestID:   "req-1",
		DateTime:    time.Now().Add(24 * time.Hour),
		Description: "Complete Test",
		Customer: schedule.Customer{
			DocumentNumber: "948948393849",
			Name:           "Customer 1",
			Phone:          "4499099493",
		},
	}

	t.Run("forwards a valid request as a publication", func(t *testing.T) {
		var published publication
		_, registry := newTestProcessor(t, func(ctx context.Context, body any) (any, error) {
			published = body.(publication)
			return schedule.ReplyOK, nil
		})

		reply, err := registry.Request(context.Background(), schedule.AddressRequest, req)
		require.NoError(t, err)
		assert.Equal(t, schedule.ReplyOK, reply)

		assert.Equal(t, "req-1", published.RequestID)
		assert.Equal(t, "948948393849", published.Event.Key())
		assert.Equal(t, "Complete Test", published.Event.Description)
	})

	t.Run("authors INVALID_BODY on validation failure", func(t *testing.T) {
		_, registry := newTestProcessor(t, func(ctx context.Context, body any) (any, error) {
			t.Fatal("publisher must not be reached")
			return nil, nil
		})

		past := req
		past.DateTime = time.Now().Add(-time.Hour)

		_, err := registry.Request(context.Background(), schedule.AddressRequest, past)
		require.Error(t, err)
		assert.Equal(t, bus.KindInvalidBody, bus.AsFailure(err).Kind)
	})

	t.Run("forwards the publisher failure unchanged", func(t *testing.T) {
		_, registry := newTestProcessor(t, func(ctx context.Context, body any) (any, error) {
			return nil, bus.NewFailure(bus.KindConnectionError, "broker unreachable")
		})

		_, err := registry.Request(context.Background(), schedule.AddressRequest, req)
		require.Error(t, err)
		failure := bus.AsFailure(err)
		assert.Equal(t, bus.KindConnectionError, failure.Kind)
		assert.Equal(t, "broker unreachable", failure.Message)
	})

	t.Run("rejects unexpected message types", func(t *testing.T) {
		_, registry := newTestProcessor(t, func(ctx context.Context, body any) (any, error) {
			return schedule.ReplyOK, nil
		})

		_, err := registry.Request(context.Background(), schedule.AddressRequest, "not a request")
		require.Error(t, err)
		assert.Equal(t, bus.KindInternal, bus.AsFailure(err).Kind)
	})
}
