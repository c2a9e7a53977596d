package runtimeapi

import (
	"context"
)

// Client is the transport contract the core depends on. The HTTP
// implementation below is the production one; tests substitute fakes.
type Client interface {
	// SubmitIntent asks the Runtime to perform work and returns the execution
	// handle. Transport failures are returned (not swallowed) so callers can
	// roll back optimistic state.
	SubmitIntent(ctx context.Context, req SubmitIntentRequest) (SubmitIntentResponse, error)

	// GetExecutionStatus pulls the current status of one execution.
	GetExecutionStatus(ctx context.Context, executionID, tenantID string) (Execution, error)

	// StreamExecution subscribes to pushed status updates for one execution.
	// Updates arrive on onUpdate until the subscription is closed or the
	// execution reaches a terminal status; stream-level failures arrive on
	// onError.
	StreamExecution(executionID string, onUpdate func(Execution), onError func(error)) (Subscription, error)

	// GetSession fetches the Runtime's session record, including the
	// server-authoritative realm state snapshot.
	GetSession(ctx context.Context, sessionID, tenantID string) (SessionEnvelope, error)

	// PutRealmState persists one realm entry to the Runtime. Best-effort from
	// the caller's perspective: failure is reported but the local optimistic
	// write stands.
	PutRealmState(ctx context.Context, sessionID, tenantID, realm, key string, value any) error
}

// Subscription is a handle to an active push stream registration.
type Subscription interface {
	// Close cancels the registration. Idempotent. It does not cancel
	// server-side work.
	Close()
}
