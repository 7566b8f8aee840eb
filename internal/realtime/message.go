package realtime

import (
	"time"

	"github.com/dcdock/dcdock/internal/dock"
)

// Server-to-client message types.
const (
	MessageTypeConnectionAck     = "connection_ack"
	MessageTypeSubscribeAck      = "subscribe_ack"
	MessageTypeUnsubscribeAck    = "unsubscribe_ack"
	MessageTypePong              = "pong"
	MessageTypeAssignmentCreated = "assignment_created"
	MessageTypeAssignmentUpdated = "assignment_updated"
	MessageTypeAssignmentDeleted = "assignment_deleted"
	MessageTypeConflictDetected  = "conflict_detected"
	MessageTypeError             = "error"
)

// Client-to-server message types.
const (
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
)

// Actions carried on assignment events.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// FilterPayload is the wire shape of a subscription filter.
type FilterPayload struct {
	Direction *dock.Direction `json:"direction,omitempty"`
}

// InboundMessage is the envelope for client control messages.
type InboundMessage struct {
	Type    string         `json:"type"`
	Filters *FilterPayload `json:"filters,omitempty"`
}

// ConnectionAckMessage is sent once immediately after registration.
type ConnectionAckMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"client_id"`
	Message   string    `json:"message"`
}

// SubscribeAckMessage acknowledges a subscribe, echoing the applied filter.
type SubscribeAckMessage struct {
	Type    string        `json:"type"`
	Message string        `json:"message"`
	Filters FilterPayload `json:"filters"`
}

// UnsubscribeAckMessage acknowledges an unsubscribe.
type UnsubscribeAckMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PongMessage answers a keepalive ping.
type PongMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// AssignmentEventMessage carries a created/updated/deleted assignment with
// its fully resolved snapshot so subscribers can render without a fetch.
type AssignmentEventMessage struct {
	Type         string                `json:"type"`
	Timestamp    time.Time             `json:"timestamp"`
	AssignmentID int64                 `json:"assignment_id"`
	Action       string                `json:"action"`
	UserID       int64                 `json:"user_id"`
	UserEmail    string                `json:"user_email"`
	Data         dock.AssignmentDetail `json:"data"`
}

// ConflictMessage advises live editors that a concurrent write was
// rejected and what the authoritative state is.
type ConflictMessage struct {
	Type             string                `json:"type"`
	Timestamp        time.Time             `json:"timestamp"`
	AssignmentID     int64                 `json:"assignment_id"`
	CurrentVersion   int64                 `json:"current_version"`
	AttemptedVersion int64                 `json:"attempted_version"`
	CurrentData      dock.AssignmentDetail `json:"current_data"`
	Message          string                `json:"message"`
}

// ErrorMessage reports a protocol-level problem without closing the
// connection.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
