package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/httpx"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEndpoint(t *testing.T, handler bus.Handler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := bus.NewRegistry(zap.NewNop())
	t.Cleanup(registry.Close)
	require.NoError(t, registry.Register(schedule.AddressRequest, handler))

	engine := gin.New()
	endpoint := NewEndpoint(registry, httpx.Config{RequestTimeout: 100 * time.Millisecond}, zap.NewNop())
	endpoint.RegisterRoutes(engine)
	return engine
}

func postSchedule(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	return rec
}

func scheduleBody(description string) string {
	return fmt.Sprintf(`{
		"dateTime": %q,
		"description": %q,
		"customer": {
			"documentNumber": "948948393849",
			"name": "Customer 1",
			"phone": "4499099493"
		}
	}`, time.Now().Add(24*time.Hour).Format(time.RFC3339), description)
}

func TestPostSchedule(t *testing.T) {
	t.Run("accepted request returns 201 with the request id", func(t *testing.T) {
		var received schedule.Request
		engine := newTestEndpoint(t, func(ctx context.Context, body any) (any, error) {
			received = body.(schedule.Request)
			return schedule.ReplyOK, nil
		})

		rec := postSchedule(engine, scheduleBody("Complete Test"))

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp statusBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "OK", resp.Status)
		assert.NotEmpty(t, resp.Message)

		// The id in the reply is the one tagged onto the forwarded request.
		assert.Equal(t, received.RequestID, resp.Message)
		assert.Equal(t, "948948393849", received.Customer.DocumentNumber)
		assert.Equal(t, "Complete Test", received.Description)
	})

	t.Run("malformed body returns 400 without touching the bus", func(t *testing.T) {
		engine := newTestEndpoint(t, func(ctx context.Context, body any) (any, error) {
			t.Fatal("processor must not be reached")
			return nil, nil
		})

		rec := postSchedule(engine, "{not json")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp statusBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(bus.KindInvalidBody), resp.Status)
	})

	t.Run("validation failure maps to 400", func(t *testing.T) {
		engine := newTestEndpoint(t, func(ctx context.Context, body any) (any, error) {
			return nil, bus.NewFailure(bus.KindInvalidBody, "dateTime must be in the future")
		})

		rec := postSchedule(engine, scheduleBody("late"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("broker failure maps to 502", func(t *testing.T) {
		engine := newTestEndpoint(t, func(ctx context.Context, body any) (any, error) {
			return nil, bus.NewFailure(bus.KindConnectionError, "all brokers down")
		})

		rec := postSchedule(engine, scheduleBody("unlucky"))

		require.Equal(t, http.StatusBadGateway, rec.Code)
		var resp statusBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(bus.KindConnectionError), resp.Status)
	})

	t.Run("slow processor maps to 504", func(t *testing.T) {
		engine := newTestEndpoint(t, func(ctx context.Context, body any) (any, error) {
			time.Sleep(300 * time.Millisecond)
			return schedule.ReplyOK, nil
		})

		rec := postSchedule(engine, scheduleBody("slow"))

		require.Equal(t, http.StatusGatewayTimeout, rec.Code)
		var resp statusBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(bus.KindTimeout), resp.Status)
	})

	t.Run("unexpected failure maps to 500", func(t *testing.T) {
		engine := newTestEndpoint(t, func(ctx context.Context, body any) (any, error) {
			return nil, bus.NewFailure(bus.KindInternal, "unexpected")
		})

		rec := postSchedule(engine, scheduleBody("broken"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
