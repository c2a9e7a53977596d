package runtimeapi

import (
	"encoding/json"
	"fmt"
	"sync"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
	"go.uber.org/zap"
)

// eventExecutionUpdate is the push event carrying execution status changes.
const eventExecutionUpdate = "execution-update"

// streamSocket multiplexes pushed execution updates over one Socket.IO
// connection. Registrations are keyed by execution id; updates for ids nobody
// registered are dropped.
type streamSocket struct {
	serverURL string
	tokens    TokenSource
	log       *zap.Logger

	mu       sync.Mutex
	socket   *socket.Socket
	handlers map[string]*streamSub
}

type streamSub struct {
	parent      *streamSocket
	executionID string
	onUpdate    func(Execution)
	onError     func(error)
	closeOnce   sync.Once
}

// Close implements Subscription.
func (s *streamSub) Close() {
	s.closeOnce.Do(func() {
		s.parent.mu.Lock()
		defer s.parent.mu.Unlock()
		if s.parent.handlers[s.executionID] == s {
			delete(s.parent.handlers, s.executionID)
		}
	})
}

func newStreamSocket(serverURL string, tokens TokenSource, log *zap.Logger) *streamSocket {
	return &streamSocket{
		serverURL: serverURL,
		tokens:    tokens,
		log:       log.Named("stream"),
		handlers:  make(map[string]*streamSub),
	}
}

func (s *streamSocket) subscribe(executionID string, onUpdate func(Execution), onError func(error)) (Subscription, error) {
	if executionID == "" {
		return nil, fmt.Errorf("missing execution id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.socket == nil {
		if err := s.connectLocked(); err != nil {
			return nil, &TransportError{Op: "connect update stream", Err: err}
		}
	}

	sub := &streamSub{parent: s, executionID: executionID, onUpdate: onUpdate, onError: onError}
	s.handlers[executionID] = sub
	return sub, nil
}

// connectLocked dials the updates namespace. Caller holds s.mu.
func (s *streamSocket) connectLocked() error {
	opts := socket.DefaultOptions()
	opts.SetPath("/v1/updates")
	opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	opts.SetAuth(map[string]any{
		"token":      s.tokens.AccessToken(),
		"clientType": "execution-updates",
	})

	sock, err := socket.Connect(s.serverURL, opts)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	s.socket = sock

	sock.On(types.EventName(eventExecutionUpdate), func(args ...any) {
		if len(args) == 0 {
			return
		}
		data, ok := args[0].(map[string]any)
		if !ok {
			return
		}
		exec, err := decodeExecution(data)
		if err != nil {
			s.log.Warn("dropping malformed execution update", zap.Error(err))
			return
		}

		s.mu.Lock()
		sub := s.handlers[exec.ExecutionID]
		s.mu.Unlock()

		if sub != nil {
			go sub.onUpdate(exec)
		}
	})

	sock.On(types.EventName("connect_error"), func(args ...any) {
		errVal := fmt.Errorf("update stream connect error")
		if len(args) > 0 {
			errVal = fmt.Errorf("update stream connect error: %v", args[0])
		}
		s.mu.Lock()
		subs := make([]*streamSub, 0, len(s.handlers))
		for _, sub := range s.handlers {
			subs = append(subs, sub)
		}
		s.mu.Unlock()
		for _, sub := range subs {
			if sub.onError != nil {
				go sub.onError(errVal)
			}
		}
	})

	return nil
}

func (s *streamSocket) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket != nil {
		s.socket.Disconnect()
		s.socket = nil
	}
	s.handlers = make(map[string]*streamSub)
}

// decodeExecution converts a loosely-typed socket payload into an Execution
// by round-tripping through JSON. Socket.IO delivers maps, not structs.
func decodeExecution(data map[string]any) (Execution, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Execution{}, err
	}
	var exec Execution
	if err := json.Unmarshal(raw, &exec); err != nil {
		return Execution{}, err
	}
	if exec.ExecutionID == "" {
		return Execution{}, fmt.Errorf("update missing execution_id")
	}
	return exec, nil
}
