// Package sdk is the public surface of the Symphainy client runtime core. It
// composes the session lifecycle manager, execution tracker, realm state
// store, and the gated agent-chat connection behind one Client, and exposes
// the derived operations (file and insights intents, chat) with a uniform
// result shape.
//
// UI layers should be pure views over this package: they read session and
// realm snapshots, invoke operations, and render OperationResult values.
// Expected failures never surface as panics or raw errors.
package sdk

import (
	"context"

	"go.uber.org/zap"

	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/chat"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/config"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/execution"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/realm"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/runtimeapi"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/session"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/storage"
)

// Session re-exports the session record for callers.
type Session = session.Session

// SessionStatus re-exports the session lifecycle status.
type SessionStatus = session.Status

// Session status values.
const (
	SessionInitializing = session.StatusInitializing
	SessionActive       = session.StatusActive
	SessionAnonymous    = session.StatusAnonymous
	SessionRecovering   = session.StatusRecovering
	SessionInvalid      = session.StatusInvalid
)

// Realm re-exports the realm partition names.
type Realm = realm.Realm

// Realm partitions.
const (
	RealmContent  = realm.RealmContent
	RealmInsights = realm.RealmInsights
	RealmJourney  = realm.RealmJourney
	RealmOutcomes = realm.RealmOutcomes
)

// CredentialSource re-exports the external credential contract.
type CredentialSource = session.CredentialSource

// ChatListener re-exports the chat event listener contract.
type ChatListener = chat.Listener

// ChatMessage re-exports the inbound assistant message.
type ChatMessage = chat.AgentMessage

// Client is the runtime-synchronization core.
type Client struct {
	cfg   *config.Config
	log   *zap.Logger
	creds session.CredentialSource

	api      runtimeapi.Client
	sessions *session.Manager
	tracker  *execution.Tracker
	realms   *realm.Reconciler
	gate     *chat.Gate

	filePolicy     execution.PollPolicy
	insightsPolicy execution.PollPolicy

	dispatch *dispatcher
}

// Option customizes Client construction.
type Option func(*options)

type options struct {
	cfg    *config.Config
	log    *zap.Logger
	api    runtimeapi.Client
	dialer chat.Dialer
}

// WithConfig overrides the environment-loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the root logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithTransport substitutes the Runtime transport. Tests use this to inject
// fakes; production code should not.
func WithTransport(api runtimeapi.Client) Option {
	return func(o *options) { o.api = api }
}

// WithChatDialer substitutes the chat socket dialer.
func WithChatDialer(d chat.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// New builds a Client around the given credential source.
//
// Invalidation cascade ordering is fixed by subscription order here: when the
// session transitions to invalid, the chat socket closes first, then the
// execution map clears, then the realm caches clear and the sync timer stops,
// all before the transition call returns.
func New(creds session.CredentialSource, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	log := o.log
	if log == nil {
		if cfg.Debug {
			log, _ = zap.NewDevelopment()
		} else {
			log = zap.NewNop()
		}
	}

	api := o.api
	if api == nil {
		api = runtimeapi.NewHTTPClient(cfg.ServerURL, tokenSource{creds}, log)
	}

	// Bootstrap identifiers fall back to the sealed on-disk cache so a
	// restarted client can recover its previous session.
	bootCreds := recoveringCredentials{CredentialSource: creds, home: cfg.SymphainyHome}
	sessions := session.NewManager(api, bootCreds, log)
	gate := chat.NewGate(cfg.ServerURL, sessions, creds, o.dialer, log)
	tracker := execution.NewTracker(api, sessions, log)
	realms := realm.NewReconciler(realm.NewStore(), api, sessions, cfg.RealmSyncInterval, log)

	return &Client{
		cfg:      cfg,
		log:      log,
		creds:    creds,
		api:      api,
		sessions: sessions,
		tracker:  tracker,
		realms:   realms,
		gate:     gate,
		filePolicy: execution.PollPolicy{
			Interval: cfg.FilePollInterval,
			MaxWait:  cfg.FilePollMaxWait,
		},
		insightsPolicy: execution.PollPolicy{
			Interval: cfg.InsightsPollInterval,
			MaxWait:  cfg.InsightsPollMaxWait,
		},
		dispatch: newDispatcher(0),
	}, nil
}

// tokenSource adapts the credential source to the transport contract.
type tokenSource struct {
	creds session.CredentialSource
}

func (t tokenSource) AccessToken() string { return t.creds.AccessToken() }

// recoveringCredentials consults the persisted bootstrap cache when the
// credential source has no session identifier yet.
type recoveringCredentials struct {
	session.CredentialSource
	home string
}

func (r recoveringCredentials) SessionID() string {
	if id := r.CredentialSource.SessionID(); id != "" {
		return id
	}
	if info, ok, _ := storage.LoadBootstrapInfo(r.home); ok {
		return info.SessionID
	}
	return ""
}

// Session returns a snapshot of the current session record.
func (c *Client) Session() Session {
	return c.sessions.State()
}

// SubscribeSession registers a synchronous observer of session transitions.
func (c *Client) SubscribeSession(fn func(Session)) func() {
	return c.sessions.Subscribe(func(s session.Session) { fn(s) })
}

// Bootstrap establishes the session: credential checks, Runtime confirmation,
// realm sync start, and persistence of the bootstrap cache for recovery after
// restart. Serialized with other lifecycle calls.
func (c *Client) Bootstrap(ctx context.Context) error {
	_, err := c.dispatch.call(func() (interface{}, error) {
		if err := c.sessions.Bootstrap(ctx); err != nil {
			return nil, err
		}
		c.afterConfirm(ctx)
		return nil, nil
	})
	return err
}

// Revalidate re-confirms the session against the Runtime. Serialized with
// other lifecycle calls; concurrent calls share one in-flight confirmation.
func (c *Client) Revalidate(ctx context.Context) error {
	_, err := c.dispatch.call(func() (interface{}, error) {
		if err := c.sessions.Revalidate(ctx); err != nil {
			return nil, err
		}
		c.afterConfirm(ctx)
		return nil, nil
	})
	return err
}

// afterConfirm runs the post-confirmation side effects: start the periodic
// realm sync while active, and refresh the persisted bootstrap cache.
func (c *Client) afterConfirm(ctx context.Context) {
	s := c.sessions.State()
	if s.Status != session.StatusActive && s.Status != session.StatusAnonymous {
		return
	}
	c.realms.Run(context.WithoutCancel(ctx))
	if s.SessionID != "" {
		if err := storage.SaveBootstrapInfo(c.cfg.SymphainyHome, storage.BootstrapInfo{
			SessionID: s.SessionID,
			TenantID:  s.TenantID,
			UserID:    s.UserID,
		}); err != nil {
			c.log.Warn("failed to persist session bootstrap cache", zap.Error(err))
		}
	}
}

// Invalidate marks the session terminally invalid. The teardown cascade runs
// before this returns.
func (c *Client) Invalidate(reason string) {
	_, _ = c.dispatch.call(func() (interface{}, error) {
		return nil, c.sessions.Invalidate(reason)
	})
}

// Reset returns the session to its initial state (logout/new-session) and
// clears the persisted bootstrap cache.
func (c *Client) Reset() {
	_, _ = c.dispatch.call(func() (interface{}, error) {
		c.sessions.Reset()
		if err := storage.ClearBootstrapInfo(c.cfg.SymphainyHome); err != nil {
			c.log.Warn("failed to clear session bootstrap cache", zap.Error(err))
		}
		return nil, nil
	})
}

// Close releases every component. The Client is unusable afterwards.
func (c *Client) Close() {
	c.gate.Close()
	c.tracker.Close()
	c.realms.Close()
	if hc, ok := c.api.(*runtimeapi.HTTPClient); ok {
		hc.Close()
	}
}

// SetRealmState writes a realm entry optimistically and persists it to the
// Runtime while the session is active.
func (c *Client) SetRealmState(ctx context.Context, realmName Realm, key string, value any) {
	c.realms.SetRealmState(ctx, realmName, key, value)
}

// GetRealmState reads a realm entry from the local cache.
func (c *Client) GetRealmState(realmName Realm, key string) (any, bool) {
	return c.realms.GetRealmState(realmName, key)
}

// ClearRealmState empties one realm's local cache.
func (c *Client) ClearRealmState(realmName Realm) {
	c.realms.ClearRealmState(realmName)
}

// SyncRealmsNow runs one reconciliation pass outside the periodic schedule.
func (c *Client) SyncRealmsNow(ctx context.Context) {
	c.realms.SyncWithRuntime(ctx)
}

// UntrackExecution drops client-side interest in an execution without
// cancelling server-side work.
func (c *Client) UntrackExecution(executionID string) {
	c.tracker.UntrackExecution(executionID)
}

// TrackExecution subscribes to pushed status updates for an execution.
func (c *Client) TrackExecution(executionID string) error {
	return c.tracker.TrackExecution(executionID)
}
