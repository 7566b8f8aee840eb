package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dcdock/dcdock/internal/dock"
)

// ProtocolConfig describes the dependencies of the control-plane handler.
type ProtocolConfig struct {
	Registry *Registry
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Protocol interprets control messages from a registered connection:
// subscribe, unsubscribe and ping. It only ever mutates the client's
// filter; connection lifecycle stays with the owning read loop.
type Protocol struct {
	registry *Registry
	clock    func() time.Time
	logger   *zap.Logger
}

// NewProtocol constructs the control-message handler.
func NewProtocol(cfg ProtocolConfig) *Protocol {
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
	return &Protocol{registry: registry, clock: clock, logger: logger}
}

// Handle parses one raw control message and returns the reply to send, or
// nil when no reply applies. Malformed input and internal failures become
// error replies; the connection always survives handling.
func (p *Protocol) Handle(clientID string, raw []byte) (reply any) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.logger.Error("panic while handling control message",
				zap.String("client_id", clientID),
				zap.Any("panic", recovered))
			reply = ErrorMessage{Type: MessageTypeError, Message: "internal server error"}
		}
	}()

	var message InboundMessage
	if err := json.Unmarshal(raw, &message); err != nil {
		p.logger.Warn("invalid control message",
			zap.String("client_id", clientID),
			zap.Error(err))
		return ErrorMessage{Type: MessageTypeError, Message: "invalid message format", Details: err.Error()}
	}

	switch message.Type {
	case MessageTypeSubscribe:
		return p.handleSubscribe(clientID, message.Filters)
	case MessageTypeUnsubscribe:
		if !p.registry.SetFilter(clientID, Filter{}) {
			return p.unknownClientReply(clientID)
		}
		return UnsubscribeAckMessage{
			Type:    MessageTypeUnsubscribeAck,
			Message: "Unsubscribed from all updates",
		}
	case MessageTypePing:
		return PongMessage{Type: MessageTypePong, Timestamp: p.clock().UTC()}
	default:
		return ErrorMessage{
			Type:    MessageTypeError,
			Message: fmt.Sprintf("unknown message type: %s", message.Type),
		}
	}
}

func (p *Protocol) handleSubscribe(clientID string, payload *FilterPayload) any {
	filter := Filter{}
	if payload != nil && payload.Direction != nil {
		direction, err := dock.ParseDirection(string(*payload.Direction))
		if err != nil {
			return ErrorMessage{
				Type:    MessageTypeError,
				Message: "invalid message format",
				Details: err.Error(),
			}
		}
		filter.Direction = &direction
	}

	if !p.registry.SetFilter(clientID, filter) {
		return p.unknownClientReply(clientID)
	}
	return SubscribeAckMessage{
		Type:    MessageTypeSubscribeAck,
		Message: "Subscription updated",
		Filters: FilterPayload{Direction: filter.Direction},
	}
}

// unknownClientReply covers the race where the client was dropped after a
// failed send while its read loop still had a control message in flight.
func (p *Protocol) unknownClientReply(clientID string) ErrorMessage {
	p.logger.Warn("control message from unregistered client",
		zap.String("client_id", clientID))
	return ErrorMessage{Type: MessageTypeError, Message: "connection is no longer registered"}
}
