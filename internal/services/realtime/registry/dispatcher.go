package registry

import (
	"log"
	"strings"
	"sync"
)

// Dispatcher fans envelopes out to connected project subscribers.
//
// Delivery is best-effort: a failed send evicts that one connection and never
// blocks or aborts delivery to the remaining recipients.
type Dispatcher struct {
	registry *Registry
	logf     func(format string, args ...any)
}

// NewDispatcher constructs a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logf:     log.Printf,
	}
}

// Broadcast delivers envelope to every connected subscriber of projectID,
// skipping excludeUserID. Subscribers are snapshotted before any send so
// transport I/O never runs under the registry lock; sends run concurrently so
// one stalled recipient cannot delay the rest.
func (d *Dispatcher) Broadcast(projectID string, envelope Envelope, excludeUserID string) {
	if d == nil || d.registry == nil {
		return
	}
	subscribers := d.registry.SubscribersOf(projectID)
	if len(subscribers) == 0 {
		return
	}

	excludeUserID = strings.TrimSpace(excludeUserID)
	var wg sync.WaitGroup
	for _, userID := range subscribers {
		if userID == excludeUserID {
			continue
		}
		transport := d.registry.transportFor(userID)
		if transport == nil {
			continue
		}
		wg.Add(1)
		go func(userID string, transport Transport) {
			defer wg.Done()
			d.send(userID, transport, envelope)
		}(userID, transport)
	}
	wg.Wait()
}

// SendTo delivers envelope to one user if currently connected, with the same
// evict-on-failure isolation as Broadcast.
func (d *Dispatcher) SendTo(userID string, envelope Envelope) {
	if d == nil || d.registry == nil {
		return
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return
	}
	transport := d.registry.transportFor(userID)
	if transport == nil {
		return
	}
	d.send(userID, transport, envelope)
}

func (d *Dispatcher) send(userID string, transport Transport, envelope Envelope) {
	if err := transport.Send(envelope); err != nil {
		if d.logf != nil {
			d.logf("realtime: send to user=%q failed, evicting connection: %v", userID, err)
		}
		// Guarded eviction: if the user already reconnected with a fresh
		// transport, the replacement connection stays registered.
		d.registry.ReleaseTransport(userID, transport)
	}
}
