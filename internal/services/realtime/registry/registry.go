// Package registry tracks live client connections and project subscriptions.
//
// The registry is the only shared mutable state in the real-time core. All
// map mutation happens under one mutex; reads used for fan-out return copies
// so no caller ever performs transport I/O while the lock is held.
package registry

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// Envelope is the wire shape for one outbound live push.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Transport is one live, addressable channel to a connected client.
type Transport interface {
	Send(envelope Envelope) error
	Close() error
}

// Connection pairs one user identity with its live transport.
type Connection struct {
	userID    string
	transport Transport
	createdAt time.Time
}

// UserID returns the identity that owns the connection.
func (c *Connection) UserID() string {
	if c == nil {
		return ""
	}
	return c.userID
}

// CreatedAt returns when the connection was registered.
func (c *Connection) CreatedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.createdAt
}

// Stats is a read-only diagnostic snapshot of registry state.
type Stats struct {
	ActiveConnections       int `json:"active_connections"`
	SubscribedUsers         int `json:"subscribed_users"`
	ProjectsWithSubscribers int `json:"projects_with_subscribers"`
	TotalSubscriptions      int `json:"total_subscriptions"`
}

// Registry is the authoritative in-memory map of who is online and which
// projects each online user follows. Construct one per server process and
// pass it by handle; it is safe for concurrent use.
type Registry struct {
	mu                   sync.Mutex
	clock                func() time.Time
	connections          map[string]*Connection
	subscribersByProject map[string]map[string]struct{}
	projectsByUser       map[string]map[string]struct{}
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{
		clock:                time.Now,
		connections:          make(map[string]*Connection),
		subscribersByProject: make(map[string]map[string]struct{}),
		projectsByUser:       make(map[string]map[string]struct{}),
	}
}

// Connect registers the live transport for userID, replacing any prior
// connection atomically. The evicted transport is closed outside the lock.
// Existing subscriptions are kept: the user still holds a connection.
func (r *Registry) Connect(userID string, transport Transport) {
	userID = strings.TrimSpace(userID)
	if r == nil || userID == "" || transport == nil {
		return
	}

	r.mu.Lock()
	previous := r.connections[userID]
	r.connections[userID] = &Connection{
		userID:    userID,
		transport: transport,
		createdAt: r.now(),
	}
	r.mu.Unlock()

	if previous != nil && previous.transport != nil && previous.transport != transport {
		_ = previous.transport.Close()
	}
}

// Disconnect removes userID's connection and purges the user from every
// project subscriber set. Calling it for an absent user is a no-op.
func (r *Registry) Disconnect(userID string) {
	userID = strings.TrimSpace(userID)
	if r == nil || userID == "" {
		return
	}

	r.mu.Lock()
	connection := r.connections[userID]
	delete(r.connections, userID)
	r.purgeSubscriptionsLocked(userID)
	r.mu.Unlock()

	if connection != nil && connection.transport != nil {
		_ = connection.transport.Close()
	}
}

// ReleaseTransport unwinds userID's registration only when the registered
// connection still wraps transport. A connection handler uses this on exit so
// a stale handler cannot tear down the replacement connection of the same
// user.
func (r *Registry) ReleaseTransport(userID string, transport Transport) {
	userID = strings.TrimSpace(userID)
	if r == nil || userID == "" || transport == nil {
		return
	}

	r.mu.Lock()
	connection := r.connections[userID]
	if connection == nil || connection.transport != transport {
		r.mu.Unlock()
		_ = transport.Close()
		return
	}
	delete(r.connections, userID)
	r.purgeSubscriptionsLocked(userID)
	r.mu.Unlock()

	_ = transport.Close()
}

// Subscribe adds userID to each named project's subscriber set. A user
// without a live connection cannot usefully subscribe, so the call is a
// silent no-op in that case to tolerate disconnect races.
func (r *Registry) Subscribe(userID string, projectIDs []string) {
	userID = strings.TrimSpace(userID)
	if r == nil || userID == "" || len(projectIDs) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, connected := r.connections[userID]; !connected {
		return
	}
	for _, projectID := range projectIDs {
		projectID = strings.TrimSpace(projectID)
		if projectID == "" {
			continue
		}
		subscribers := r.subscribersByProject[projectID]
		if subscribers == nil {
			subscribers = make(map[string]struct{})
			r.subscribersByProject[projectID] = subscribers
		}
		subscribers[userID] = struct{}{}

		projects := r.projectsByUser[userID]
		if projects == nil {
			projects = make(map[string]struct{})
			r.projectsByUser[userID] = projects
		}
		projects[projectID] = struct{}{}
	}
}

// SubscribersOf returns a point-in-time copy of projectID's subscriber set.
func (r *Registry) SubscribersOf(projectID string) []string {
	projectID = strings.TrimSpace(projectID)
	if r == nil || projectID == "" {
		return nil
	}

	r.mu.Lock()
	subscribers := r.subscribersByProject[projectID]
	snapshot := make([]string, 0, len(subscribers))
	for userID := range subscribers {
		snapshot = append(snapshot, userID)
	}
	r.mu.Unlock()

	sort.Strings(snapshot)
	return snapshot
}

// ProjectsFor returns a point-in-time copy of the projects userID follows.
func (r *Registry) ProjectsFor(userID string) []string {
	userID = strings.TrimSpace(userID)
	if r == nil || userID == "" {
		return nil
	}

	r.mu.Lock()
	projects := r.projectsByUser[userID]
	snapshot := make([]string, 0, len(projects))
	for projectID := range projects {
		snapshot = append(snapshot, projectID)
	}
	r.mu.Unlock()

	sort.Strings(snapshot)
	return snapshot
}

// Connected reports whether userID currently holds a live connection.
func (r *Registry) Connected(userID string) bool {
	userID = strings.TrimSpace(userID)
	if r == nil || userID == "" {
		return false
	}
	r.mu.Lock()
	_, connected := r.connections[userID]
	r.mu.Unlock()
	return connected
}

// Stats returns a diagnostic snapshot of the registry counters.
func (r *Registry) Stats() Stats {
	if r == nil {
		return Stats{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		ActiveConnections: len(r.connections),
		SubscribedUsers:   len(r.projectsByUser),
	}
	for _, subscribers := range r.subscribersByProject {
		if len(subscribers) == 0 {
			continue
		}
		stats.ProjectsWithSubscribers++
		stats.TotalSubscriptions += len(subscribers)
	}
	return stats
}

func (r *Registry) transportFor(userID string) Transport {
	r.mu.Lock()
	defer r.mu.Unlock()
	connection := r.connections[userID]
	if connection == nil {
		return nil
	}
	return connection.transport
}

func (r *Registry) purgeSubscriptionsLocked(userID string) {
	for projectID := range r.projectsByUser[userID] {
		subscribers := r.subscribersByProject[projectID]
		delete(subscribers, userID)
		if len(subscribers) == 0 {
			delete(r.subscribersByProject, projectID)
		}
	}
	delete(r.projectsByUser, userID)
}

func (r *Registry) now() time.Time {
	if r.clock == nil {
		return time.Now()
	}
	return r.clock()
}
