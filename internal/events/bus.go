package events

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
)

// HandlerFunc consumes one event. A handler error is logged and isolated; it
// never stops the remaining handlers and never unwinds state an earlier
// handler already committed.
type HandlerFunc func(ctx context.Context, evt Event) error

const stripeCount = 64

type dispatchKey struct{}

// Bus routes domain events to statically registered handlers. Dispatch is
// synchronous on the publisher's goroutine. Publishes for the same target
// serialize on a stripe lock, so handlers observe per-target FIFO order;
// events for different targets carry no ordering guarantee.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	stripes  [stripeCount]sync.Mutex
}

type registration struct {
	name string
	fn   HandlerFunc
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]registration),
	}
}

// Subscribe registers a named handler for one event kind. Registration is
// done once at startup, before any Publish.
func (b *Bus) Subscribe(kind, name string, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], registration{name: name, fn: fn})
}

// Publish delivers the event to every handler registered for its kind.
// Handlers run in registration order; failures are logged per handler and
// the rest still run. Publish itself never returns an error to the caller.
//
// A handler may itself publish; such nested publishes dispatch inline on
// the goroutine the outer publish already serialized, instead of
// re-acquiring a stripe lock they may already hold.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	regs := b.handlers[evt.Kind]
	b.mu.RUnlock()

	if len(regs) == 0 {
		return
	}

	if nested, _ := ctx.Value(dispatchKey{}).(bool); nested {
		b.dispatch(ctx, regs, evt)
		return
	}

	stripe := &b.stripes[b.stripeFor(evt)]
	stripe.Lock()
	defer stripe.Unlock()

	b.dispatch(context.WithValue(ctx, dispatchKey{}, true), regs, evt)
}

func (b *Bus) dispatch(ctx context.Context, regs []registration, evt Event) {
	for _, reg := range regs {
		b.invoke(ctx, reg, evt)
	}
}

func (b *Bus) invoke(ctx context.Context, reg registration, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[EVENTS] handler %s panicked on %s %s: %v", reg.name, evt.Kind, evt.Target, r)
		}
	}()

	if err := reg.fn(ctx, evt); err != nil {
		log.Printf("[EVENTS] handler %s failed on %s %s: %v", reg.name, evt.Kind, evt.Target, err)
	}
}

func (b *Bus) stripeFor(evt Event) uint32 {
	h := fnv.New32a()
	h.Write([]byte(evt.Target.String()))
	return h.Sum32() % stripeCount
}
