package chat

import (
	"fmt"
	"sync"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
	"go.uber.org/zap"
)

// Conn abstracts the wire connection so the gate can be tested without a
// server. socketConn is the production implementation.
type Conn interface {
	Connect() error
	Close()
	IsConnected() bool
	Emit(event string, data map[string]any) error
	On(event EventType, handler func(map[string]any))
}

// Dialer creates a Conn for the given endpoint and credentials.
type Dialer func(serverURL, token, sessionID string, log *zap.Logger) Conn

// socketConn is a Socket.IO connection to the agent-chat namespace.
type socketConn struct {
	serverURL string
	token     string
	sessionID string
	log       *zap.Logger

	mu        sync.RWMutex
	socket    *socket.Socket
	handlers  map[EventType]func(map[string]any)
	connected bool
	closeOnce sync.Once
}

// DialSocket is the production Dialer.
func DialSocket(serverURL, token, sessionID string, log *zap.Logger) Conn {
	return &socketConn{
		serverURL: serverURL,
		token:     token,
		sessionID: sessionID,
		log:       log,
		handlers:  make(map[EventType]func(map[string]any)),
	}
}

// On registers an event handler. Handlers registered after Connect still
// receive events.
func (c *socketConn) On(event EventType, handler func(map[string]any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

// Connect establishes the Socket.IO connection to the agent-chat namespace.
func (c *socketConn) Connect() error {
	opts := socket.DefaultOptions()
	opts.SetPath("/v1/agent-chat")
	opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	opts.SetAuth(map[string]any{
		"token":      c.token,
		"sessionId":  c.sessionID,
		"clientType": "agent-chat",
	})

	sock, err := socket.Connect(c.serverURL, opts)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.mu.Lock()
	c.socket = sock
	c.mu.Unlock()

	sock.On(types.EventName("connect"), func(args ...any) {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		c.log.Debug("agent chat connected", zap.String("socket_id", string(sock.Id())))
	})

	sock.On(types.EventName("disconnect"), func(args ...any) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	})

	for _, event := range []EventType{EventAgentResponse, EventExecutionFailed} {
		ev := event
		sock.On(types.EventName(ev), func(args ...any) {
			var data map[string]any
			if len(args) > 0 {
				if m, ok := args[0].(map[string]any); ok {
					data = m
				}
			}
			c.mu.RLock()
			handler := c.handlers[ev]
			c.mu.RUnlock()
			if handler != nil {
				go handler(data)
			}
		})
	}

	return nil
}

// IsConnected reports socket connectivity.
func (c *socketConn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Emit sends one event to the server.
func (c *socketConn) Emit(event string, data map[string]any) error {
	c.mu.RLock()
	sock := c.socket
	c.mu.RUnlock()
	if sock == nil {
		return fmt.Errorf("not connected")
	}
	sock.Emit(event, data)
	return nil
}

// Close tears the socket down. Idempotent.
func (c *socketConn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		sock := c.socket
		c.socket = nil
		c.connected = false
		c.mu.Unlock()
		if sock != nil {
			sock.Disconnect()
		}
	})
}
