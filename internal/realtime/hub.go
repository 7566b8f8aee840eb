package realtime

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const connectedGreeting = "Connected to DCDock real-time updates"

// HubConfig describes the dependencies of the connection hub.
type HubConfig struct {
	Registry *Registry
	Protocol *Protocol
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Hub owns the lifecycle of upgraded websocket connections: registration,
// the connection acknowledgement, the read loop and final cleanup.
type Hub struct {
	registry *Registry
	protocol *Protocol
	clock    func() time.Time
	logger   *zap.Logger
}

// NewHub constructs a Hub. Registry and Protocol default to fresh
// instances sharing one registry when omitted.
func NewHub(cfg HubConfig) *Hub {
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
	protocol := cfg.Protocol
	if protocol == nil {
		protocol = NewProtocol(ProtocolConfig{Registry: registry, Clock: clock, Logger: logger})
	}
	return &Hub{registry: registry, protocol: protocol, clock: clock, logger: logger}
}

// Registry exposes the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// HandleConnection serves one websocket connection until it closes. The
// caller has already authenticated the peer and upgraded the transport.
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	socket := NewSocket(conn)
	clientID := h.registry.Register(socket)
	go socket.writePump()

	defer func() {
		h.registry.Unregister(clientID)
		socket.Close()
		h.logger.Debug("realtime client disconnected", zap.String("client_id", clientID))
	}()

	ack := ConnectionAckMessage{
		Type:      MessageTypeConnectionAck,
		Timestamp: h.clock().UTC(),
		ClientID:  clientID,
		Message:   connectedGreeting,
	}
	if err := socket.Send(ack); err != nil {
		return
	}
	h.logger.Debug("realtime client connected", zap.String("client_id", clientID))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply := h.protocol.Handle(clientID, raw)
		if reply == nil {
			continue
		}
		if err := socket.Send(reply); err != nil {
			return
		}
	}
}
