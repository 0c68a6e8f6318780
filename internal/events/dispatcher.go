package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/observability"
)

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// HandlerFunc handles a published event.
type HandlerFunc func(context.Context, Event) error

type registration struct {
	name string
	fn   HandlerFunc
}

// Dispatcher is a synchronous in-process event bus. Handlers for a kind run in
// registration order; a failing or panicking handler is logged and does not stop the
// rest.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Kind][]registration
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewDispatcher creates a dispatcher. metrics may be nil.
func NewDispatcher(logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Kind][]registration),
		logger:   logger,
		metrics:  metrics,
	}
}

// Handle registers fn for kind under name. Prefer Subscribe.
func (d *Dispatcher) Handle(kind Kind, name string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], registration{name: name, fn: fn})
	d.logger.Debug("handler subscribed", zap.String("event_kind", string(kind)), zap.String("handler", name))
}

// Subscribe registers a handler typed to one event variant.
func Subscribe[E Event](d *Dispatcher, name string, fn func(context.Context, E) error) {
	var zero E
	d.Handle(zero.Kind(), name, func(ctx context.Context, event Event) error {
		typed, ok := event.(E)
		if !ok {
			return fmt.Errorf("handler %s: unexpected event %T", name, event)
		}
		return fn(ctx, typed)
	})
}

// Publish runs every handler for the event's kind and returns once all have finished.
// Handler failures are logged, never returned.
func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	d.mu.RLock()
	handlers := append([]registration{}, d.handlers[event.Kind()]...)
	d.mu.RUnlock()

	d.metrics.RecordEvent(string(event.Kind()))
	for _, h := range handlers {
		if err := d.invoke(ctx, h, event); err != nil {
			meta := event.Metadata()
			d.metrics.RecordHandlerFailure(string(event.Kind()), h.name)
			d.logger.Error("event handler failed",
				zap.String("event_kind", string(event.Kind())),
				zap.String("event_id", meta.ID.String()),
				zap.String("tenant_id", meta.TenantID.String()),
				zap.String("handler", h.name),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) invoke(ctx context.Context, h registration, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			d.logger.Debug("handler panic stack", zap.String("handler", h.name), zap.ByteString("stack", debug.Stack()))
		}
	}()
	return h.fn(ctx, event)
}
