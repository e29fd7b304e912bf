// Package event dispatches the pre/post events fired around batch operations.
package event

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/resdomain/internal/domain/action"
	"github.com/kailas-cloud/resdomain/internal/domain/batch"
)

// Phase is the moment an event fires relative to the batch work.
type Phase string

// Event phases.
const (
	Pre  Phase = "pre"
	Post Phase = "post"
)

// Name builds "<entityType>.domain.<phase>_<action>".
func Name(entityType string, phase Phase, kind action.Kind) string {
	return fmt.Sprintf("%s.domain.%s_%s", entityType, phase, kind)
}

// Event carries the batch of one call.
// Pre-event listeners may change item contents but never the item count.
type Event struct {
	Name       string
	EntityType string
	Phase      Phase
	Action     action.Kind
	Batch      *batch.Batch

	stopped bool
}

// New creates an event for the given phase and action.
func New(entityType string, phase Phase, kind action.Kind, b *batch.Batch) *Event {
	return &Event{
		Name:       Name(entityType, phase, kind),
		EntityType: entityType,
		Phase:      phase,
		Action:     kind,
		Batch:      b,
	}
}

// StopPropagation prevents lower priority listeners from running.
func (e *Event) StopPropagation() { e.stopped = true }

// IsPropagationStopped reports whether a listener stopped the event.
func (e *Event) IsPropagationStopped() bool { return e.stopped }

// Listener reacts to an event.
type Listener interface {
	Handle(ctx context.Context, e *Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, e *Event)

// Handle calls f.
func (f ListenerFunc) Handle(ctx context.Context, e *Event) { f(ctx, e) }

type subscription struct {
	listener Listener
	priority int
	seq      int
}

// Dispatcher routes events to listeners subscribed by name.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	seq    int
	logger *zap.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{subs: make(map[string][]subscription), logger: logger}
}

// Subscribe registers l for name. Higher priorities run first,
// equal priorities run in subscription order.
func (d *Dispatcher) Subscribe(name string, l Listener, priority int) {
	if l == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	subs := append(d.subs[name], subscription{listener: l, priority: priority, seq: d.seq})
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].priority != subs[j].priority {
			return subs[i].priority > subs[j].priority
		}
		return subs[i].seq < subs[j].seq
	})
	d.subs[name] = subs
}

// HasListeners reports whether anything listens to name.
func (d *Dispatcher) HasListeners(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[name]) > 0
}

// Dispatch runs the listeners of e.Name in order.
// A panicking listener is logged and skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, e *Event) {
	d.mu.RLock()
	subs := append([]subscription(nil), d.subs[e.Name]...)
	d.mu.RUnlock()

	for _, s := range subs {
		if e.IsPropagationStopped() {
			return
		}
		d.call(ctx, s.listener, e)
	}
}

func (d *Dispatcher) call(ctx context.Context, l Listener, e *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event listener panicked",
				zap.String("event", e.Name),
				zap.Any("panic", r),
			)
		}
	}()
	l.Handle(ctx, e)
}

// SubscribeAll registers l for phase of every action of entityType.
func (d *Dispatcher) SubscribeAll(entityType string, phase Phase, l Listener, priority int) {
	for _, k := range action.Kinds() {
		d.Subscribe(Name(entityType, phase, k), l, priority)
	}
}
