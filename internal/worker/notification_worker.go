package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/events"
	"github.com/spec-kit/ticket-portal/internal/service"
)

const sendTimeout = 10 * time.Second

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// EventForwarder relays dispatched events to an external sink from a single
// goroutine. Events arriving while the buffer is full are dropped.
type EventForwarder struct {
	sink   events.Sink
	queue  chan events.Event
	logger *zap.Logger

	once sync.Once
	done chan struct{}
}

// NewEventForwarder builds a forwarder with the given buffer size.
func NewEventForwarder(sink events.Sink, bufferSize int, logger *zap.Logger) *EventForwarder {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &EventForwarder{
		sink:   sink,
		queue:  make(chan events.Event, bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Register subscribes the forwarder to every ticket event.
func (f *EventForwarder) Register(dispatcher events.Dispatcher) {
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, f.enqueue)
	}
}

func (f *EventForwarder) enqueue(_ context.Context, event events.Event) error {
	select {
	case f.queue <- event:
	default:
		f.logger.Warn("event buffer full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID))
	}
	return nil
}

// Run drains the buffer until ctx is cancelled, then flushes what is left.
func (f *EventForwarder) Run(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case event := <-f.queue:
			f.send(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-f.queue:
					f.send(event)
				default:
					return
				}
			}
		}
	}
}

// Start runs the forwarder in its own goroutine.
func (f *EventForwarder) Start(ctx context.Context) {
	f.once.Do(func() { go f.Run(ctx) })
}

// Wait blocks until Run has returned.
func (f *EventForwarder) Wait() {
	<-f.done
}

func (f *EventForwarder) send(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := f.sink.Send(ctx, event); err != nil {
		f.logger.Warn("event forward failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return
	}
	f.logger.Debug("event forwarded", zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
}
