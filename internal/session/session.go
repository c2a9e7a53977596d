// Package session owns the single authoritative session record and its state
// machine. Every other component subscribes to it; none mutates it directly.
package session

// Status is the session lifecycle state.
type Status string

const (
	// StatusInitializing is the state at process start and after an explicit
	// reset. No traffic is permitted.
	StatusInitializing Status = "initializing"
	// StatusActive means the Runtime confirmed a valid authenticated session.
	StatusActive Status = "active"
	// StatusAnonymous means the Runtime confirmed a valid session without a
	// tenant or user binding. Realm reads work; intent submission does not.
	StatusAnonymous Status = "anonymous"
	// StatusRecovering means revalidation hit a transient failure and is being
	// retried. User-visible state is kept.
	StatusRecovering Status = "recovering"
	// StatusInvalid means the Runtime rejected the session terminally. The
	// invalidation cascade (socket teardown, cache clears, timer cancel) runs
	// synchronously on entry.
	StatusInvalid Status = "invalid"
)

// Session is the client's identity/connectivity context with the Runtime.
// Empty strings stand for absent identifiers.
type Session struct {
	SessionID string
	TenantID  string
	UserID    string
	Status    Status
	Error     string
}

// CanSubmit reports whether intent submission is permitted: the session must
// be confirmed and carry both identifiers required at submission time.
func (s Session) CanSubmit() bool {
	return s.Status == StatusActive && s.SessionID != "" && s.TenantID != ""
}

// allowedTransitions encodes the lifecycle state machine. A transition to
// StatusInitializing (explicit reset) is always allowed and not listed.
var allowedTransitions = map[Status][]Status{
	StatusInitializing: {StatusActive, StatusAnonymous, StatusRecovering, StatusInvalid},
	StatusActive:       {StatusRecovering, StatusInvalid, StatusAnonymous},
	StatusAnonymous:    {StatusActive, StatusRecovering, StatusInvalid},
	StatusRecovering:   {StatusActive, StatusAnonymous, StatusInvalid},
	StatusInvalid:      {},
}

// canTransition reports whether the state machine permits from -> to.
func canTransition(from, to Status) bool {
	if to == StatusInitializing {
		return true
	}
	if from == to {
		return true
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
