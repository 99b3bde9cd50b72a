package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/npezzotti/go-jobboard/internal/notify"
	"github.com/npezzotti/go-jobboard/internal/stats"
	"github.com/npezzotti/go-jobboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type fakeSubscription struct {
	ch     chan *redis.Message
	closed chan struct{}
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		ch:     make(chan *redis.Message, 8),
		closed: make(chan struct{}),
	}
}

func (s *fakeSubscription) Channel() <-chan *redis.Message { return s.ch }

func (s *fakeSubscription) Close() error {
	close(s.closed)
	return nil
}

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) Handle(ctx context.Context, e notify.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func newTestConsumer(t *testing.T, h Handler) (*Consumer, *fakeSubscription, *stats.MockStatsUpdater) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", stats.EventsConsumed).Return().Once()
	su.On("Incr", stats.EventsConsumed).Return().Maybe()

	sub := newFakeSubscription()
	return NewConsumer(testutil.TestLogger(t), sub, h, su), sub, su
}

func TestConsumerHandle(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		handleErr error
		handled   bool
		counted   bool
	}{
		{
			name:    "valid event",
			payload: `{"type":"job.posted","payload":{"company_id":3,"job_id":5}}`,
			handled: true,
			counted: true,
		},
		{
			name:    "malformed json",
			payload: `{"type":`,
		},
		{
			name:    "missing type",
			payload: `{"payload":{}}`,
		},
		{
			name:      "unknown event",
			payload:   `{"type":"job.deleted","payload":{}}`,
			handleErr: notify.ErrUnknownEvent,
			handled:   true,
		},
		{
			name:      "handler failure",
			payload:   `{"type":"job.posted","payload":{"company_id":3,"job_id":5}}`,
			handleErr: errors.New("db down"),
			handled:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &mockHandler{}
			if tt.handled {
				h.On("Handle", mock.Anything, mock.AnythingOfType("notify.Event")).Return(tt.handleErr).Once()
			}

			c, _, su := newTestConsumer(t, h)
			c.handle(context.Background(), &redis.Message{Channel: "jobboard.events", Payload: tt.payload})

			h.AssertExpectations(t)
			if tt.counted {
				su.AssertCalled(t, "Incr", stats.EventsConsumed)
			} else {
				su.AssertNotCalled(t, "Incr", stats.EventsConsumed)
			}
		})
	}
}

func TestConsumerRun(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		handled := make(chan struct{})
		h := &mockHandler{}
		h.On("Handle", mock.Anything, mock.MatchedBy(func(e notify.Event) bool {
			return e.Type == notify.EventJobReported
		})).Return(nil).Once().Run(func(mock.Arguments) { close(handled) })

		c, sub, _ := newTestConsumer(t, h)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		go func() {
			c.Run(ctx)
			close(done)
		}()

		sub.ch <- &redis.Message{Payload: `{"type":"job.reported","payload":{"company_id":3,"job_id":5}}`}
		select {
		case <-handled:
		case <-time.After(time.Second):
			t.Fatal("event was not handled")
		}

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("consumer did not stop")
		}
		_, open := <-sub.closed
		assert.False(t, open, "expected subscription to be closed")
	})

	t.Run("stops when the subscription closes", func(t *testing.T) {
		c, sub, _ := newTestConsumer(t, &mockHandler{})

		done := make(chan struct{})
		go func() {
			c.Run(context.Background())
			close(done)
		}()

		close(sub.ch)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("consumer did not stop")
		}
	})
}
