package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/runtimeapi"
)

// ErrInvalidTransition is returned when a requested lifecycle transition is
// not permitted by the state machine.
var ErrInvalidTransition = errors.New("invalid session transition")

// Subscriber observes session changes. Subscribers run synchronously, in
// registration order, inside the transition call: by the time a transition
// returns, every subscriber has seen the new state. Subscribers must not
// trigger further transitions.
type Subscriber func(Session)

// Manager is the single writer of the Session record.
//
// Transitions are serialized: a transition into StatusInvalid fully
// propagates (sockets closed, caches cleared, timers cancelled by the
// registered subscribers) before the next transition or gated operation can
// observe the state.
type Manager struct {
	api   runtimeapi.Client
	creds CredentialSource
	log   *zap.Logger

	// transMu serializes transitions and is held across subscriber
	// notification. stateMu guards only the snapshot so State() never blocks
	// on a running cascade.
	transMu sync.Mutex
	stateMu sync.RWMutex
	cur     Session

	subMu     sync.Mutex
	subs      []subEntry
	nextSubID int

	revalidate singleflight.Group
}

type subEntry struct {
	id int
	fn Subscriber
}

// NewManager creates a Manager in StatusInitializing.
func NewManager(api runtimeapi.Client, creds CredentialSource, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		api:   api,
		creds: creds,
		log:   log.Named("session"),
		cur:   Session{Status: StatusInitializing},
	}
}

// State returns a copy of the current session record.
func (m *Manager) State() Session {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.cur
}

// Subscribe registers fn and returns an unsubscribe func. fn is not called
// with the current state; callers should read State() after subscribing if
// they need it.
func (m *Manager) Subscribe(fn Subscriber) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.subs = append(m.subs, subEntry{id: id, fn: fn})
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, e := range m.subs {
			if e.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Activate records a confirmed session. An empty tenantID/userID yields an
// anonymous session.
func (m *Manager) Activate(sessionID, tenantID, userID string) error {
	status := StatusActive
	if tenantID == "" && userID == "" {
		status = StatusAnonymous
	}
	return m.transition(func(s *Session) {
		s.SessionID = sessionID
		s.TenantID = tenantID
		s.UserID = userID
		s.Error = ""
	}, status)
}

// MarkRecovering flags a transient failure during revalidation. Identifiers
// and user-visible state are kept so recovery can resume without teardown.
func (m *Manager) MarkRecovering(cause error) error {
	return m.transition(func(s *Session) {
		if cause != nil {
			s.Error = cause.Error()
		}
	}, StatusRecovering)
}

// ReportError records a connectivity error without leaving the current
// status. Loss of connectivity while active is not, by itself, invalidation.
func (m *Manager) ReportError(cause error) {
	m.transMu.Lock()
	defer m.transMu.Unlock()
	m.stateMu.Lock()
	if cause != nil {
		m.cur.Error = cause.Error()
	} else {
		m.cur.Error = ""
	}
	next := m.cur
	m.stateMu.Unlock()
	m.notify(next)
}

// Invalidate records a terminal rejection. The invalidation cascade runs in
// the registered subscribers before this call returns.
func (m *Manager) Invalidate(reason string) error {
	return m.transition(func(s *Session) {
		s.Error = reason
	}, StatusInvalid)
}

// Reset returns to StatusInitializing, dropping identifiers. Used on logout
// or explicit new-session requests.
func (m *Manager) Reset() {
	// Reset is always a legal transition.
	_ = m.transition(func(s *Session) {
		s.SessionID = ""
		s.TenantID = ""
		s.UserID = ""
		s.Error = ""
	}, StatusInitializing)
}

func (m *Manager) transition(mutate func(*Session), to Status) error {
	m.transMu.Lock()
	defer m.transMu.Unlock()

	m.stateMu.Lock()
	from := m.cur.Status
	if !canTransition(from, to) {
		m.stateMu.Unlock()
		m.log.Warn("rejected session transition",
			zap.String("from", string(from)), zap.String("to", string(to)))
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	next := m.cur
	mutate(&next)
	next.Status = to
	m.cur = next
	m.stateMu.Unlock()

	m.log.Info("session transition",
		zap.String("from", string(from)), zap.String("to", string(to)))
	m.notify(next)
	return nil
}

// notify runs subscribers synchronously with a value copy of the new state.
// Caller holds transMu, which is what makes the invalidation cascade atomic
// with respect to subsequent transitions.
func (m *Manager) notify(s Session) {
	m.subMu.Lock()
	subs := make([]subEntry, len(m.subs))
	copy(subs, m.subs)
	m.subMu.Unlock()
	for _, e := range subs {
		e.fn(s)
	}
}

// Bootstrap establishes the session from the credential source, confirming it
// against the Runtime. Called once at startup and again after Reset.
func (m *Manager) Bootstrap(ctx context.Context) error {
	token := m.creds.AccessToken()
	sessionID := m.creds.SessionID()
	if err := ValidateToken(token); err != nil {
		m.log.Warn("bootstrap credential unusable", zap.Error(err))
		return m.Invalidate(fmt.Sprintf("credential unusable: %v", err))
	}
	if sessionID == "" {
		return m.Invalidate("no session identifier")
	}

	// Remember the identifier before confirming so a transient failure can be
	// retried from Recovering without consulting the credential source again.
	m.transMu.Lock()
	m.stateMu.Lock()
	m.cur.SessionID = sessionID
	m.stateMu.Unlock()
	m.transMu.Unlock()

	return m.confirm(ctx, sessionID)
}

// Revalidate re-confirms the current session against the Runtime. Concurrent
// callers share one in-flight confirmation.
func (m *Manager) Revalidate(ctx context.Context) error {
	cur := m.State()
	if cur.SessionID == "" {
		return m.Invalidate("no session identifier")
	}
	_, err, _ := m.revalidate.Do(cur.SessionID, func() (any, error) {
		return nil, m.confirm(ctx, cur.SessionID)
	})
	return err
}

// confirm fetches the session record and applies the matching transition:
// Active/Anonymous on success, Recovering on transient failure, Invalid on
// explicit rejection.
func (m *Manager) confirm(ctx context.Context, sessionID string) error {
	envelope, err := m.api.GetSession(ctx, sessionID, m.State().TenantID)
	if err != nil {
		if errors.Is(err, runtimeapi.ErrSessionRejected) {
			return m.Invalidate("session rejected by runtime")
		}
		m.log.Warn("session confirmation failed, entering recovery", zap.Error(err))
		return m.MarkRecovering(err)
	}
	return m.Activate(envelope.SessionID, envelope.TenantID, envelope.UserID)
}
