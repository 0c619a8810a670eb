// Package registry maintains the set of local leadership event listeners and
// fans incoming events out to them.
package registry

import (
	"sync"

	"github.com/kmntree/onos/types"
)

// Registry is an ordered, identity-deduplicated set of listeners.
//
// Add and Remove are idempotent. Post invokes every registered listener
// sequentially in registration order; a panicking listener is logged and does
// not prevent delivery to the remaining listeners.
//
// Delivery happens on the caller's goroutine. Listeners must be non-blocking
// or the caller accepts the delay.
type Registry struct {
	logger  types.Logger
	metrics types.MetricsCollector

	mu        sync.RWMutex
	listeners []types.LeadershipEventListener
}

// New creates an empty listener registry.
//
// Parameters:
//   - logger: Logger for listener faults
//   - metrics: Metrics collector for listener faults
func New(logger types.Logger, metrics types.MetricsCollector) *Registry {
	return &Registry{
		logger:  logger,
		metrics: metrics,
	}
}

// Add registers a listener. Registering the same listener twice is a no-op.
func (r *Registry) Add(listener types.LeadershipEventListener) {
	if listener == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.listeners {
		if l == listener {
			return
		}
	}
	r.listeners = append(r.listeners, listener)
}

// Remove unregisters a listener. Removing an unknown listener is a no-op.
func (r *Registry) Remove(listener types.LeadershipEventListener) {
	if listener == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, l := range r.listeners {
		if l == listener {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)

			return
		}
	}
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.listeners)
}

// Post delivers the event to every registered listener in order.
func (r *Registry) Post(event types.LeadershipEvent) {
	r.mu.RLock()
	snapshot := make([]types.LeadershipEventListener, len(r.listeners))
	copy(snapshot, r.listeners)
	r.mu.RUnlock()

	for _, listener := range snapshot {
		r.deliver(listener, event)
	}
}

// deliver invokes one listener, isolating panics.
func (r *Registry) deliver(listener types.LeadershipEventListener, event types.LeadershipEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.Error("leadership event listener panicked",
					"topic", event.Subject.Topic,
					"type", event.Type.String(),
					"panic", rec,
				)
			}
			if r.metrics != nil {
				r.metrics.RecordListenerFault()
			}
		}
	}()

	listener.HandleEvent(event)
}
