package dock

// Notifier receives state-change notifications after a write commits. The
// realtime router implements this to fan events out to live clients; the
// service never learns how delivery happens or to whom.
type Notifier interface {
	AssignmentCreated(actor Actor, detail AssignmentDetail)
	AssignmentUpdated(actor Actor, detail AssignmentDetail)
	AssignmentDeleted(actor Actor, detail AssignmentDetail)
	AssignmentConflict(conflict VersionConflict)
}

// Actor identifies the authenticated principal performing a write.
type Actor struct {
	ID    int64
	Email string
}

type nopNotifier struct{}

func (nopNotifier) AssignmentCreated(Actor, AssignmentDetail) {}
func (nopNotifier) AssignmentUpdated(Actor, AssignmentDetail) {}
func (nopNotifier) AssignmentDeleted(Actor, AssignmentDetail) {}
func (nopNotifier) AssignmentConflict(VersionConflict)        {}
