package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler processes a domain event. Implementations must tolerate being called
// from the bus goroutine while services keep publishing.
type Handler interface {
	HandleEvent(ctx context.Context, evt DomainEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt DomainEvent) error {
	return f(ctx, evt)
}

// Bus is an in-process event bus. Events go to a buffered channel and are
// dispatched to every subscriber from a single consumer goroutine, so
// subscribers see events in publish order.
type Bus struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers []namedHandler
	closed      bool

	events chan DomainEvent
	done   chan struct{}
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewBus creates a Bus with the given buffer size.
func NewBus(bufSize int, logger *zap.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger: logger,
		events: make(chan DomainEvent, bufSize),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a named handler. Call before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish enqueues an event without blocking. A full buffer drops the event
// with a warning; a stopped bus drops silently.
func (b *Bus) Publish(_ context.Context, evt DomainEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- evt:
	default:
		b.logger.Warn("event buffer full, dropping event",
			zap.String("event_type", evt.Type),
			zap.String("event_id", evt.ID),
		)
	}
}

// Start runs the consumer goroutine until the context is cancelled or Stop is
// called. Cancellation closes the bus to new events and dispatches those
// already queued.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				b.mu.Lock()
				b.closed = true
				b.mu.Unlock()
				b.drain(context.WithoutCancel(ctx))
				return
			}
		}
	}()
}

// Stop closes the bus and waits for queued events to be dispatched. It must
// only be called after Start.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	b.mu.Unlock()
	<-b.done
}

func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case evt, ok := <-b.events:
			if !ok {
				return
			}
			b.dispatch(ctx, evt)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, evt DomainEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.logger.Error("event handler failed",
				zap.String("handler", s.name),
				zap.String("event_type", evt.Type),
				zap.String("event_id", evt.ID),
				zap.Error(err),
			)
		}
	}
}
