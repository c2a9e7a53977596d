package chat

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/session"
)

// State is the derived connection state. It is a function of session state
// and socket connectivity, never an independent source of truth.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// connectDelay defers dialing briefly after a token becomes valid so the gate
// does not race credential initialization.
const connectDelay = 150 * time.Millisecond

// Sessions is the slice of the session manager the gate needs.
type Sessions interface {
	State() session.Session
	Subscribe(session.Subscriber) func()
}

// Gate enforces the connection policy: an agent-chat socket may only exist
// while the session is active, and is torn down synchronously the moment the
// session becomes invalid. A declined connect never raises; it records a
// user-visible error and stays disconnected.
type Gate struct {
	serverURL string
	sessions  Sessions
	creds     session.CredentialSource
	dial      Dialer
	log       *zap.Logger
	delay     time.Duration

	mu             sync.Mutex
	state          State
	conn           Conn
	errMsg         string
	agentType      string
	pillar         string
	conversationID string
	listener       Listener

	unsubscribe func()
}

// NewGate wires a gate to the session manager. dial may be nil, selecting the
// production Socket.IO dialer.
func NewGate(serverURL string, sessions Sessions, creds session.CredentialSource, dial Dialer, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	if dial == nil {
		dial = DialSocket
	}
	g := &Gate{
		serverURL: serverURL,
		sessions:  sessions,
		creds:     creds,
		dial:      dial,
		log:       log.Named("chat"),
		delay:     connectDelay,
		state:     StateDisconnected,
	}
	g.unsubscribe = sessions.Subscribe(g.onSessionChange)
	return g
}

// SetListener registers the chat event listener.
func (g *Gate) SetListener(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listener = l
}

// SetAgent selects the agent (and optional pillar) for subsequent messages.
// Switching agents does not reconnect; it starts a fresh logical conversation
// thread on the next send.
func (g *Gate) SetAgent(agentType, pillar string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if agentType == g.agentType && pillar == g.pillar {
		return
	}
	g.agentType = agentType
	g.pillar = pillar
	g.conversationID = ""
}

// State returns the current connection state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// IsConnected reports whether the socket is live.
func (g *Gate) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateConnected && g.conn != nil && g.conn.IsConnected()
}

// Error returns the last user-visible gate error, if any.
func (g *Gate) Error() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errMsg
}

// ConversationID returns the active logical conversation thread id.
func (g *Gate) ConversationID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conversationID
}

// Connect opens the agent-chat socket if, and only if, the session is active
// and credentials are usable. No-op when already connected. A refused connect
// sets Error and returns false; it never panics or raises, and there is no
// retry loop. The next attempt happens on an explicit Connect or a session
// transition.
func (g *Gate) Connect() bool {
	g.mu.Lock()
	if g.state == StateConnected && g.conn != nil && g.conn.IsConnected() {
		g.mu.Unlock()
		return true
	}

	sess := g.sessions.State()
	if sess.Status != session.StatusActive {
		g.errMsg = "chat unavailable: session not active"
		g.state = StateDisconnected
		g.mu.Unlock()
		g.log.Warn("declined chat connect", zap.String("session_status", string(sess.Status)))
		return false
	}
	token := g.creds.AccessToken()
	if !session.TokenUsable(token) {
		g.errMsg = "chat unavailable: credential not ready"
		g.state = StateDisconnected
		g.mu.Unlock()
		return false
	}
	if sess.SessionID == "" {
		g.errMsg = "chat unavailable: no session identifier"
		g.state = StateDisconnected
		g.mu.Unlock()
		return false
	}

	g.state = StateConnecting
	delay := g.delay
	g.mu.Unlock()

	// Token just validated; give credential propagation a beat before dialing.
	if delay > 0 {
		time.Sleep(delay)
	}

	conn := g.dial(g.serverURL, token, sess.SessionID, g.log)
	conn.On(EventAgentResponse, g.handleAgentResponse)
	conn.On(EventExecutionFailed, g.handleExecutionFailed)

	if err := conn.Connect(); err != nil {
		g.mu.Lock()
		g.state = StateDisconnected
		g.errMsg = fmt.Sprintf("chat connect failed: %v", err)
		g.mu.Unlock()
		g.log.Warn("chat connect failed", zap.Error(err))
		return false
	}

	g.mu.Lock()
	// The session may have been invalidated while dialing.
	if g.sessions.State().Status != session.StatusActive {
		g.state = StateDisconnected
		g.mu.Unlock()
		conn.Close()
		return false
	}
	g.conn = conn
	g.state = StateConnected
	g.errMsg = ""
	g.mu.Unlock()
	return true
}

// Disconnect closes the socket and clears pending error/loading state.
func (g *Gate) Disconnect() {
	g.mu.Lock()
	conn := g.conn
	g.conn = nil
	g.state = StateDisconnected
	g.errMsg = ""
	g.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Close detaches from the session manager and closes any open socket.
func (g *Gate) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
	g.Disconnect()
}

// SendMessage sends one user message to the active agent, connecting lazily
// when needed. Returns false with a recorded error when the gate declines.
func (g *Gate) SendMessage(text string) bool {
	if !g.Connect() {
		return false
	}

	g.mu.Lock()
	if g.agentType == "" {
		g.agentType = "liaison"
	}
	if g.conversationID == "" {
		g.conversationID = newConversationID(g.agentType, g.pillar)
	}
	payload := map[string]any{
		"intent":     text,
		"session_id": g.sessions.State().SessionID,
		"agent_type": g.agentType,
		"metadata": map[string]any{
			"pillar":          g.pillar,
			"conversation_id": g.conversationID,
		},
	}
	conn := g.conn
	g.mu.Unlock()

	if conn == nil {
		return false
	}
	if err := conn.Emit(eventMessage, payload); err != nil {
		g.mu.Lock()
		g.errMsg = fmt.Sprintf("chat send failed: %v", err)
		g.mu.Unlock()
		return false
	}
	return true
}

// onSessionChange runs inside the session manager's transition. Invalidation
// tears the socket down before the transition returns, so a dead session can
// never be observed with a live chat socket.
func (g *Gate) onSessionChange(s session.Session) {
	if s.Status == session.StatusInvalid || s.Status == session.StatusInitializing {
		g.Disconnect()
	}
}

func (g *Gate) handleAgentResponse(data map[string]any) {
	msg := AgentMessage{
		AgentType: stringField(data, "agent_type"),
		Content:   stringField(data, "content"),
	}
	msg.ConversationID = stringField(data, "conversation_id")

	g.mu.Lock()
	// The server may assign a new conversation id; adopt it for the thread.
	if msg.ConversationID != "" && msg.ConversationID != g.conversationID {
		g.conversationID = msg.ConversationID
	}
	listener := g.listener
	g.mu.Unlock()

	if listener != nil {
		listener.OnAgentMessage(msg)
	}
}

// handleExecutionFailed surfaces a failed agent execution without closing the
// socket.
func (g *Gate) handleExecutionFailed(data map[string]any) {
	message := stringField(data, "error")
	if message == "" {
		message = "agent execution failed"
	}
	g.mu.Lock()
	g.errMsg = message
	listener := g.listener
	g.mu.Unlock()
	if listener != nil {
		listener.OnChatError(message)
	}
}

// newConversationID builds `{agentType}[_{pillar}]_{timestamp}_{random}` so a
// fresh logical thread starts whenever the agent or pillar changes.
func newConversationID(agentType, pillar string) string {
	parts := []string{agentType}
	if pillar != "" {
		parts = append(parts, pillar)
	}
	parts = append(parts,
		fmt.Sprintf("%d", time.Now().UnixMilli()),
		uuid.NewString()[:8])
	return strings.Join(parts, "_")
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
