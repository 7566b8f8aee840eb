package realtime

import (
	"time"

	"go.uber.org/zap"

	"github.com/dcdock/dcdock/internal/dock"
)

const conflictAdvisory = "Another user has modified this assignment"

// RouterConfig describes the dependencies of the notification router.
type RouterConfig struct {
	Registry *Registry
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Router fans state-change events out to registered clients. It matches
// each event against the client's filter, isolates per-client delivery
// failures and unregisters connections whose sends fail. It satisfies
// dock.Notifier.
type Router struct {
	registry *Registry
	clock    func() time.Time
	logger   *zap.Logger
}

// NewRouter constructs a Router over the given registry.
func NewRouter(cfg RouterConfig) *Router {
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{registry: registry, clock: clock, logger: logger}
}

// Registry exposes the underlying connection registry.
func (r *Router) Registry() *Registry {
	return r.registry
}

// AssignmentCreated broadcasts a created event to matching clients.
func (r *Router) AssignmentCreated(actor dock.Actor, detail dock.AssignmentDetail) {
	r.broadcastAssignment(MessageTypeAssignmentCreated, ActionCreate, actor, detail)
}

// AssignmentUpdated broadcasts an updated event to matching clients.
func (r *Router) AssignmentUpdated(actor dock.Actor, detail dock.AssignmentDetail) {
	r.broadcastAssignment(MessageTypeAssignmentUpdated, ActionUpdate, actor, detail)
}

// AssignmentDeleted broadcasts a deleted event to matching clients.
func (r *Router) AssignmentDeleted(actor dock.Actor, detail dock.AssignmentDetail) {
	r.broadcastAssignment(MessageTypeAssignmentDeleted, ActionDelete, actor, detail)
}

// AssignmentConflict advises every connected client of a rejected write.
// A conflict is operationally relevant to anyone editing assignments, so
// direction filters do not apply here.
func (r *Router) AssignmentConflict(conflict dock.VersionConflict) {
	message := ConflictMessage{
		Type:             MessageTypeConflictDetected,
		Timestamp:        r.clock().UTC(),
		AssignmentID:     conflict.AssignmentID,
		CurrentVersion:   conflict.CurrentVersion,
		AttemptedVersion: conflict.AttemptedVersion,
		CurrentData:      conflict.Current,
		Message:          conflictAdvisory,
	}
	for _, entry := range r.registry.entries() {
		r.deliver(entry, message)
	}
}

// broadcastAssignment derives the match key from the embedded load's
// direction and walks the registry. The entry slice is a copy, so a
// client disconnecting mid-broadcast is simply skipped and cleaned up.
func (r *Router) broadcastAssignment(messageType, action string, actor dock.Actor, detail dock.AssignmentDetail) {
	message := AssignmentEventMessage{
		Type:         messageType,
		Timestamp:    r.clock().UTC(),
		AssignmentID: detail.ID,
		Action:       action,
		UserID:       actor.ID,
		UserEmail:    actor.Email,
		Data:         detail,
	}
	for _, entry := range r.registry.entries() {
		if !entry.filter.Matches(detail.Load.Direction) {
			continue
		}
		r.deliver(entry, message)
	}
}

// deliver pushes one message to one client. A failed send never reaches
// the broadcasting caller; the dead connection is unregistered and its
// transport closed so the owning read loop unwinds, and iteration
// continues with the remaining clients.
func (r *Router) deliver(entry clientEntry, message any) {
	if err := entry.sink.Send(message); err != nil {
		r.logger.Warn("dropping client after failed send",
			zap.String("client_id", entry.id),
			zap.Error(err))
		r.registry.Unregister(entry.id)
		entry.sink.Close()
	}
}
