package sdk

// Agent-chat surface. All of it delegates to the connection gate, which
// enforces the session-validity policy; a dead session can never hold a live
// chat socket.

// SetChatListener registers the receiver for agent responses and chat errors.
func (c *Client) SetChatListener(l ChatListener) {
	c.gate.SetListener(l)
}

// SetChatAgent selects the agent type and pillar for subsequent messages.
// Switching starts a fresh conversation thread without reconnecting.
func (c *Client) SetChatAgent(agentType, pillar string) {
	c.gate.SetAgent(agentType, pillar)
}

// ConnectChat opens the agent-chat connection if the session permits it.
// Returns false (with ChatError set) when the gate declines.
func (c *Client) ConnectChat() bool {
	value, _ := c.dispatch.call(func() (interface{}, error) {
		return c.gate.Connect(), nil
	})
	ok, _ := value.(bool)
	return ok
}

// DisconnectChat closes the agent-chat connection.
func (c *Client) DisconnectChat() {
	_, _ = c.dispatch.call(func() (interface{}, error) {
		c.gate.Disconnect()
		return nil, nil
	})
}

// SendChatMessage sends one message to the active agent, connecting lazily.
func (c *Client) SendChatMessage(text string) bool {
	value, _ := c.dispatch.call(func() (interface{}, error) {
		return c.gate.SendMessage(text), nil
	})
	ok, _ := value.(bool)
	return ok
}

// ChatConnected reports whether the chat socket is live.
func (c *Client) ChatConnected() bool {
	return c.gate.IsConnected()
}

// ChatError returns the last user-visible chat error, empty when none.
func (c *Client) ChatError() string {
	return c.gate.Error()
}

// ChatConversationID returns the active logical conversation thread id.
func (c *Client) ChatConversationID() string {
	return c.gate.ConversationID()
}
