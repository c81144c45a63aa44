package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	results []func() (*kafka.Message, error)
	calls   int
}

func (f *fakeReader) ReadMessage(timeout time.Duration) (*kafka.Message, error) {
	if f.calls >= len(f.results) {
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	res := f.results[f.calls]
	f.calls++
	return res()
}

func TestReadNext(t *testing.T) {
	topic := "schedule-request"

	t.Run("returns the first record", func(t *testing.T) {
		want := &kafka.Message{Key: []byte("948948393849")}
		reader := &fakeReader{results: []func() (*kafka.Message, error){
			func() (*kafka.Message, error) { return want, nil },
		}}

		got, err := ReadNext(context.Background(), reader, topic, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("skips poll timeouts", func(t *testing.T) {
		want := &kafka.Message{Key: []byte("948948393849")}
		reader := &fakeReader{results: []func() (*kafka.Message, error){
			func() (*kafka.Message, error) { return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false) },
			func() (*kafka.Message, error) { return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false) },
			func() (*kafka.Message, error) { return want, nil },
		}}

		got, err := ReadNext(context.Background(), reader, topic, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, 3, reader.calls)
	})

	t.Run("returns on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		reader := &fakeReader{}
		_, err := ReadNext(ctx, reader, topic, zap.NewNop())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHeaderValue(t *testing.T) {
	headers := []kafka.Header{
		{Key: "request-id", Value: []byte("req-1")},
		{Key: "traceparent", Value: []byte("00-abc-def-01")},
	}

	assert.Equal(t, "req-1", HeaderValue(headers, "request-id"))
	assert.Equal(t, "00-abc-def-01", HeaderValue(headers, "traceparent"))
	assert.Empty(t, HeaderValue(headers, "missing"))
	assert.Empty(t, HeaderValue(nil, "request-id"))
}
