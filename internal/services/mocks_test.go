package services

import (
	"context"
	"sync"

	"github.com/stackgo/backend/internal/events"
	"github.com/stackgo/backend/internal/models"
)

// busRecorder captures published events in order.
type busRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *busRecorder) Publish(_ context.Context, evt events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *busRecorder) published() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}

// hubRecorder captures topic publishes in order.
type hubRecorder struct {
	mu     sync.Mutex
	topics []string
	msgs   []models.OutboundMessage
}

func (h *hubRecorder) Publish(topic string, msg models.OutboundMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.topics = append(h.topics, topic)
	h.msgs = append(h.msgs, msg)
}
