// Package chat gates the real-time agent-chat connection on session validity
// and carries the agent message protocol over it.
package chat

// EventType names the typed events exchanged on the agent-chat socket.
type EventType string

const (
	// EventAgentResponse carries an assistant message, optionally with a
	// server-assigned conversation id.
	EventAgentResponse EventType = "AGENT_RESPONSE"
	// EventExecutionFailed reports a failed agent execution. The socket stays
	// open; the failure is user-visible, not fatal.
	EventExecutionFailed EventType = "EXECUTION_FAILED"

	// eventMessage is the outbound event name for agent intents.
	eventMessage = "message"
)

// AgentMessage is one inbound assistant message.
type AgentMessage struct {
	ConversationID string
	AgentType      string
	Content        string
}

// Listener receives chat events. Methods may be called from socket goroutines
// and must be safe to call from any goroutine.
type Listener interface {
	// OnAgentMessage delivers an assistant response.
	OnAgentMessage(msg AgentMessage)
	// OnChatError delivers a user-visible, non-fatal chat error.
	OnChatError(message string)
}
