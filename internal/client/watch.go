package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dcdock/dcdock/internal/dock"
	"github.com/dcdock/dcdock/internal/realtime"
)

const (
	dialTimeout      = 10 * time.Second
	maxDialAttempts  = 5
	maxBackoff       = 32 * time.Second
	pingInterval     = 30 * time.Second
	outboundDeadline = 5 * time.Second
)

var errMissingToken = errors.New("watcher requires a bearer token")

// Event is one decoded server push. Raw keeps the full frame for callers
// that want fields the envelope does not surface.
type Event struct {
	Type string
	Raw  json.RawMessage
}

// WatcherConfig describes a realtime subscription.
type WatcherConfig struct {
	// BaseURL is the http(s) address of the API server. The scheme is
	// rewritten to ws(s) before dialing.
	BaseURL string
	Token   string
	// Direction, when set, narrows the subscription to loads moving
	// that way.
	Direction string
	Logger    *zap.Logger
}

// Watcher maintains a realtime connection and redelivers server pushes
// on a channel. Dropped connections are redialed with exponential backoff.
type Watcher struct {
	config WatcherConfig
	logger *zap.Logger
	events chan Event
}

// NewWatcher constructs a Watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Token == "" {
		return nil, errMissingToken
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		config: cfg,
		logger: logger,
		events: make(chan Event, 32),
	}, nil
}

// Events returns the channel server pushes arrive on. It is closed when
// Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run dials the server and pumps events until ctx is cancelled or the
// connection is lost beyond recovery.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	attempt := 0
	for {
		conn, err := w.dial(ctx)
		if err != nil {
			attempt++
			if attempt >= maxDialAttempts {
				return fmt.Errorf("realtime connection failed after %d attempts: %w", attempt, err)
			}
			backoff := time.Duration(1<<attempt) * time.Second
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			w.logger.Warn("realtime dial failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		attempt = 0

		err = w.pump(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("realtime connection lost, reconnecting", zap.Error(err))
	}
}

func (w *Watcher) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := w.endpoint()
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	if err := w.subscribe(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (w *Watcher) endpoint() (string, error) {
	base := w.config.BaseURL
	if base == "" {
		base = "http://localhost:8080"
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(parsed.Scheme) {
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/api/ws"
	query := parsed.Query()
	query.Set("token", w.config.Token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (w *Watcher) subscribe(conn *websocket.Conn) error {
	message := realtime.InboundMessage{Type: realtime.MessageTypeSubscribe}
	if w.config.Direction != "" {
		direction, err := dock.ParseDirection(w.config.Direction)
		if err != nil {
			return err
		}
		message.Filters = &realtime.FilterPayload{Direction: &direction}
	}
	conn.SetWriteDeadline(time.Now().Add(outboundDeadline))
	return conn.WriteJSON(message)
}

func (w *Watcher) pump(ctx context.Context, conn *websocket.Conn) error {
	go w.keepAlive(ctx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			w.logger.Warn("unreadable realtime frame", zap.Error(err))
			continue
		}

		select {
		case w.events <- Event{Type: envelope.Type, Raw: raw}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// keepAlive sends protocol pings so idle connections are not reaped by
// intermediaries. Write errors surface through the read loop.
func (w *Watcher) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(outboundDeadline))
			if err := conn.WriteJSON(realtime.InboundMessage{Type: realtime.MessageTypePing}); err != nil {
				return
			}
		}
	}
}
