package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/bus"
	"github.com/reactiveblueprint/schedule-pipeline/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConsumer struct {
	mu      sync.Mutex
	queue   []*kafka.Message
	next    int
	commits []kafka.Offset
	seeks   []kafka.TopicPartition
}

func (f *fakeConsumer) ReadMessage(_ time.Duration) (*kafka.Message, error) {
	f.mu.Lock()
	if f.next >= len(f.queue) {
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	msg := f.queue[f.next]
	f.next++
	f.mu.Unlock()
	return msg, nil
}

func (f *fakeConsumer) CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, m.TopicPartition.Offset)
	return []kafka.TopicPartition{m.TopicPartition}, nil
}

func (f *fakeConsumer) Seek(partition kafka.TopicPartition, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, partition)
	for i, msg := range f.queue {
		if msg.TopicPartition.Offset == partition.Offset {
			f.next = i
			return nil
		}
	}
	return nil
}

func (f *fakeConsumer) committed() []kafka.Offset {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Offset(nil), f.commits...)
}

func (f *fakeConsumer) sought() []kafka.TopicPartition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.TopicPartition(nil), f.seeks...)
}

const testTopic = "schedule-request"

func recordAt(t *testing.T, offset int64, event schedule.Event) *kafka.Message {
	t.Helper()
	value, err := event.Encode()
	require.NoError(t, err)

	topic := testTopic
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 0, Offset: kafka.Offset(offset)},
		Key:            []byte(event.Key()),
		Value:          value,
		Headers: []kafka.Header{
			{Key: schedule.HeaderRequestID, Value: []byte("req-1")},
		},
	}
}

// startDispatcher starts Run in the background and returns a stop function
// that cancels the loop and waits for it to return.
func startDispatcher(t *testing.T, registry *bus.Registry, client *fakeConsumer) func() {
	t.Helper()

	d := NewDispatcher(registry, client, testTopic, zap.NewNop())
	d.retry = backoff.NewConstantBackOff(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, d.Run(ctx))
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestDispatcher(t *testing.T) {
	t.Run("commits offsets in order after persistence", func(t *testing.T) {
		registry := bus.NewRegistry(zap.NewNop())
		t.Cleanup(registry.Close)
		require.NoError(t, registry.Register(schedule.AddressReceived, func(_ context.Context, _ any) (any, error) {
			return schedule.ReplyOK, nil
		}))

		client := &fakeConsumer{queue: []*kafka.Message{
			recordAt(t, 0, testEvent()),
			recordAt(t, 1, testEvent()),
			recordAt(t, 2, testEvent()),
		}}
		stop := startDispatcher(t, registry, client)
		defer stop()

		assert.Eventually(t, func() bool {
			return len(client.committed()) == 3
		}, 2*time.Second, 5*time.Millisecond)

		assert.Equal(t, []kafka.Offset{0, 1, 2}, client.committed())
		assert.Empty(t, client.sought())
	})

	t.Run("failed persistence seeks back and commits nothing until retry succeeds", func(t *testing.T) {
		registry := bus.NewRegistry(zap.NewNop())
		t.Cleanup(registry.Close)

		var mu sync.Mutex
		attempts := 0
		require.NoError(t, registry.Register(schedule.AddressReceived, func(_ context.Context, _ any) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts <= 2 {
				return nil, bus.NewFailure(bus.KindConnectionError, "no hosts available")
			}
			return schedule.ReplyOK, nil
		}))

		client := &fakeConsumer{queue: []*kafka.Message{recordAt(t, 7, testEvent())}}
		stop := startDispatcher(t, registry, client)
		defer stop()

		assert.Eventually(t, func() bool {
			return len(client.committed()) == 1
		}, 2*time.Second, 5*time.Millisecond)

		assert.Equal(t, []kafka.Offset{7}, client.committed())

		seeks := client.sought()
		require.Len(t, seeks, 2)
		for _, seek := range seeks {
			assert.Equal(t, kafka.Offset(7), seek.Offset)
			assert.Equal(t, int32(0), seek.Partition)
		}

		mu.Lock()
		assert.Equal(t, 3, attempts)
		mu.Unlock()
	})

	t.Run("undecodable record is committed and never reaches the persister", func(t *testing.T) {
		registry := bus.NewRegistry(zap.NewNop())
		t.Cleanup(registry.Close)

		var mu sync.Mutex
		requests := 0
		require.NoError(t, registry.Register(schedule.AddressReceived, func(_ context.Context, _ any) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			requests++
			return schedule.ReplyOK, nil
		}))

		topic := testTopic
		poison := &kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 0, Offset: 0},
			Value:          []byte("not json"),
		}
		client := &fakeConsumer{queue: []*kafka.Message{poison, recordAt(t, 1, testEvent())}}
		stop := startDispatcher(t, registry, client)
		defer stop()

		assert.Eventually(t, func() bool {
			return len(client.committed()) == 2
		}, 2*time.Second, 5*time.Millisecond)

		assert.Equal(t, []kafka.Offset{0, 1}, client.committed())
		mu.Lock()
		assert.Equal(t, 1, requests)
		mu.Unlock()
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		registry := bus.NewRegistry(zap.NewNop())
		t.Cleanup(registry.Close)
		require.NoError(t, registry.Register(schedule.AddressReceived, func(_ context.Context, _ any) (any, error) {
			return schedule.ReplyOK, nil
		}))

		stop := startDispatcher(t, registry, &fakeConsumer{})
		stop()
	})
}
