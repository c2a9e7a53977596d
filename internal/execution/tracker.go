// Package execution submits intents and tracks their asynchronous completion,
// by push stream where available and by cooperative polling otherwise.
package execution

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/runtimeapi"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/session"
)

// ErrSessionRequired is returned when an operation needs an active session
// with tenant and session identifiers and none is present.
var ErrSessionRequired = errors.New("session not active")

// Sessions is the slice of the session manager the tracker needs.
type Sessions interface {
	State() session.Session
	Subscribe(session.Subscriber) func()
}

// Tracker owns the execution map. Entries are whole-value replacements so
// concurrent readers never see partial updates. The whole map is cleared when
// the session is invalidated.
type Tracker struct {
	api      runtimeapi.Client
	sessions Sessions
	log      *zap.Logger

	mu         sync.Mutex
	executions map[string]runtimeapi.Execution
	active     map[string]struct{}
	streams    map[string]runtimeapi.Subscription

	unsubscribe func()
}

// NewTracker creates a tracker bound to the session manager. The tracker
// clears itself as part of the session invalidation cascade.
func NewTracker(api runtimeapi.Client, sessions Sessions, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracker{
		api:        api,
		sessions:   sessions,
		log:        log.Named("execution"),
		executions: make(map[string]runtimeapi.Execution),
		active:     make(map[string]struct{}),
		streams:    make(map[string]runtimeapi.Subscription),
	}
	t.unsubscribe = sessions.Subscribe(func(s session.Session) {
		if s.Status == session.StatusInvalid || s.Status == session.StatusInitializing {
			t.Clear()
		}
	})
	return t
}

// SubmitIntent submits one intent and registers the returned execution as
// pending and active. Requires session and tenant identifiers; callers are
// responsible for the broader active-session check.
func (t *Tracker) SubmitIntent(ctx context.Context, intentType string, parameters, metadata map[string]any) (string, error) {
	sess := t.sessions.State()
	if sess.SessionID == "" || sess.TenantID == "" {
		return "", ErrSessionRequired
	}

	// Client-generated idempotency key: retries of the same logical submit
	// can be de-duplicated server-side.
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if _, ok := meta["idempotency_key"]; !ok {
		meta["idempotency_key"] = uuid.NewString()
	}

	resp, err := t.api.SubmitIntent(ctx, runtimeapi.SubmitIntentRequest{
		IntentType: intentType,
		TenantID:   sess.TenantID,
		SessionID:  sess.SessionID,
		Parameters: parameters,
		Metadata:   meta,
	})
	if err != nil {
		t.log.Error("intent submission failed",
			zap.String("intent_type", intentType), zap.Error(err))
		return "", err
	}

	t.mu.Lock()
	t.executions[resp.ExecutionID] = runtimeapi.Execution{
		ExecutionID: resp.ExecutionID,
		IntentID:    resp.IntentID,
		Status:      runtimeapi.StatusPending,
		TenantID:    sess.TenantID,
		SessionID:   sess.SessionID,
		StartedAt:   resp.CreatedAt,
	}
	t.active[resp.ExecutionID] = struct{}{}
	t.mu.Unlock()

	t.log.Debug("intent submitted",
		zap.String("intent_type", intentType), zap.String("execution_id", resp.ExecutionID))
	return resp.ExecutionID, nil
}

// GetExecutionStatus pulls the current status from the Runtime and applies it
// to the map. Returns nil on transport failure (logged, not raised) so
// pollers can retry on the next tick.
func (t *Tracker) GetExecutionStatus(ctx context.Context, executionID string) *runtimeapi.Execution {
	sess := t.sessions.State()
	exec, err := t.api.GetExecutionStatus(ctx, executionID, sess.TenantID)
	if err != nil {
		t.log.Warn("execution status poll failed",
			zap.String("execution_id", executionID), zap.Error(err))
		return nil
	}
	applied := t.applyUpdate(exec)
	return &applied
}

// Lookup returns the locally-known execution, if any.
func (t *Tracker) Lookup(executionID string) (runtimeapi.Execution, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	exec, ok := t.executions[executionID]
	return exec, ok
}

// ActiveCount returns how many executions are still being tracked live.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// TrackExecution subscribes to pushed updates for one execution. Updates flow
// into the map until a terminal status arrives, at which point the execution
// leaves the active set and the stream is closed.
func (t *Tracker) TrackExecution(executionID string) error {
	sub, err := t.api.StreamExecution(executionID,
		func(exec runtimeapi.Execution) {
			t.applyUpdate(exec)
		},
		func(err error) {
			t.log.Warn("execution stream error",
				zap.String("execution_id", executionID), zap.Error(err))
		})
	if err != nil {
		t.log.Warn("execution stream unavailable, callers fall back to polling",
			zap.String("execution_id", executionID), zap.Error(err))
		return err
	}
	t.mu.Lock()
	if old, ok := t.streams[executionID]; ok {
		old.Close()
	}
	t.streams[executionID] = sub
	t.active[executionID] = struct{}{}
	t.mu.Unlock()
	return nil
}

// UntrackExecution drops client-side interest in an execution. Server-side
// work continues; a later GetExecutionStatus can still retrieve the result.
func (t *Tracker) UntrackExecution(executionID string) {
	t.mu.Lock()
	delete(t.active, executionID)
	if sub, ok := t.streams[executionID]; ok {
		sub.Close()
		delete(t.streams, executionID)
	}
	t.mu.Unlock()
}

// Clear drops every tracked execution and closes all streams. Runs inside the
// session invalidation cascade.
func (t *Tracker) Clear() {
	t.mu.Lock()
	streams := t.streams
	t.executions = make(map[string]runtimeapi.Execution)
	t.active = make(map[string]struct{})
	t.streams = make(map[string]runtimeapi.Subscription)
	t.mu.Unlock()
	for _, sub := range streams {
		sub.Close()
	}
}

// Close detaches the tracker from the session manager and drops state.
func (t *Tracker) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	t.Clear()
}

// applyUpdate merges one status observation into the map, enforcing terminal
// monotonicity: once an execution reached a terminal status, later (stale)
// non-terminal observations are dropped. Returns the record as stored.
func (t *Tracker) applyUpdate(exec runtimeapi.Execution) runtimeapi.Execution {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.executions[exec.ExecutionID]; ok {
		if cur.Status.IsTerminal() {
			return cur
		}
		// Preserve submission-time fields the push payload may omit.
		if exec.IntentID == "" {
			exec.IntentID = cur.IntentID
		}
		if exec.StartedAt.IsZero() {
			exec.StartedAt = cur.StartedAt
		}
	}
	t.executions[exec.ExecutionID] = exec

	if exec.Status.IsTerminal() {
		delete(t.active, exec.ExecutionID)
		if sub, ok := t.streams[exec.ExecutionID]; ok {
			sub.Close()
			delete(t.streams, exec.ExecutionID)
		}
	}
	return exec
}
