package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/events"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
	fail   bool
}

func (s *recordingSink) Send(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broker down")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestEventForwarderDeliversAndFlushes(t *testing.T) {
	sink := &recordingSink{}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	fwd := NewEventForwarder(sink, 8, zap.NewNop())
	fwd.Register(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	fwd.Start(ctx)

	for _, eventType := range events.AllEventTypes {
		require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(eventType, 1, events.Actor{}, time.Now(), nil)))
	}

	assert.Eventually(t, func() bool { return sink.count() == 3 }, time.Second, 10*time.Millisecond)
	cancel()
	fwd.Wait()
}

func TestEventForwarderDropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	fwd := NewEventForwarder(sink, 2, zap.NewNop())

	for i := 0; i < 5; i++ {
		require.NoError(t, fwd.enqueue(context.Background(), events.NewEvent(events.EventTicketCreated, int64(i), events.Actor{}, time.Now(), nil)))
	}
	assert.Len(t, fwd.queue, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fwd.Run(ctx)
	assert.Equal(t, 2, sink.count())
}

func TestEventForwarderSurvivesSinkErrors(t *testing.T) {
	sink := &recordingSink{fail: true}
	fwd := NewEventForwarder(sink, 4, zap.NewNop())
	require.NoError(t, fwd.enqueue(context.Background(), events.NewEvent(events.EventTicketCreated, 1, events.Actor{}, time.Now(), nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fwd.Run(ctx)
	assert.Equal(t, 0, sink.count())
}
