// Package runtimeapi implements the transport layer between the client core
// and the Symphainy Runtime. It owns HTTP calls for intent submission,
// execution status, and session state, plus the socket-based push stream for
// execution updates. It holds no business state.
package runtimeapi

import (
	"time"
)

// Status is the lifecycle status of one execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status is final. A terminal status is never
// overwritten by later updates.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Execution is the Runtime's view of one in-flight or completed intent.
type Execution struct {
	ExecutionID string         `json:"execution_id"`
	IntentID    string         `json:"intent_id"`
	Status      Status         `json:"status"`
	TenantID    string         `json:"tenant_id"`
	SessionID   string         `json:"session_id"`
	StartedAt   time.Time      `json:"started_at"`
	Artifacts   map[string]any `json:"artifacts,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SubmitIntentRequest is the payload for an intent submission.
type SubmitIntentRequest struct {
	IntentType string         `json:"intent_type"`
	TenantID   string         `json:"tenant_id"`
	SessionID  string         `json:"session_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SubmitIntentResponse is the Runtime's acknowledgement of a submission.
type SubmitIntentResponse struct {
	ExecutionID string    `json:"execution_id"`
	IntentID    string    `json:"intent_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionState is the server-held per-session state snapshot. RealmState is
// keyed by realm name, then by entry key.
type SessionState struct {
	RealmState map[string]map[string]any `json:"realm_state,omitempty"`
}

// SessionEnvelope is the Runtime's session record.
type SessionEnvelope struct {
	SessionID string        `json:"session_id"`
	TenantID  string        `json:"tenant_id"`
	UserID    string        `json:"user_id"`
	State     *SessionState `json:"state,omitempty"`
}
