package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dcdock/dcdock/internal/dock"
)

// Filter restricts which broadcast events a client receives. The zero
// value is the empty filter and matches everything.
type Filter struct {
	Direction *dock.Direction `json:"direction,omitempty"`
}

// IsEmpty reports whether the filter has no predicates.
func (f Filter) IsEmpty() bool {
	return f.Direction == nil
}

// Matches reports whether an event tagged with direction passes the
// filter. Matching is exact tag equality or wildcard-empty; nothing fuzzy.
func (f Filter) Matches(direction dock.Direction) bool {
	if f.Direction == nil {
		return true
	}
	return *f.Direction == direction
}

// Sink is the outbound half of a live connection. Send must not block
// indefinitely; a failed send marks the connection dead and the owner
// closes it. Close must be idempotent.
type Sink interface {
	Send(message any) error
	Close()
}

// ClientInfo is a point-in-time view of one registered client.
type ClientInfo struct {
	ClientID string `json:"client_id"`
	Filter   Filter `json:"filters"`
}

type clientEntry struct {
	id     string
	filter Filter
	sink   Sink
}

// Registry tracks live push connections and their filters. All access is
// mutex-guarded; broadcast iteration works on a copied slice so clients
// may connect and disconnect while a fan-out is in flight.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*clientEntry
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*clientEntry)}
}

// Register stores the connection under a fresh opaque id with an empty
// filter and returns the id.
func (r *Registry) Register(sink Sink) string {
	clientID := uuid.NewString()
	r.mu.Lock()
	r.clients[clientID] = &clientEntry{id: clientID, sink: sink}
	r.mu.Unlock()
	return clientID
}

// SetFilter replaces the client's filter wholesale. Unknown ids are
// ignored; the connection may have been unregistered concurrently.
func (r *Registry) SetFilter(clientID string, filter Filter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.clients[clientID]
	if !ok {
		return false
	}
	entry.filter = filter
	return true
}

// Filter returns the client's current filter.
func (r *Registry) Filter(clientID string) (Filter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.clients[clientID]
	if !ok {
		return Filter{}, false
	}
	return entry.filter, true
}

// Unregister removes the client. Safe to call twice and safe for ids that
// were never registered.
func (r *Registry) Unregister(clientID string) {
	r.mu.Lock()
	delete(r.clients, clientID)
	r.mu.Unlock()
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot returns a point-in-time listing for diagnostics.
func (r *Registry) Snapshot() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ClientInfo, 0, len(r.clients))
	for _, entry := range r.clients {
		infos = append(infos, ClientInfo{ClientID: entry.id, Filter: entry.filter})
	}
	return infos
}

// entries copies the registered clients so broadcast iteration never
// holds the lock across sends.
func (r *Registry) entries() []clientEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	copies := make([]clientEntry, 0, len(r.clients))
	for _, entry := range r.clients {
		copies = append(copies, *entry)
	}
	return copies
}
