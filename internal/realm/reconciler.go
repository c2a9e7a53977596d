package realm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/runtimeapi"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/session"
)

// defaultSyncInterval is how often the reconciler pulls the server snapshot
// while the session is active.
const defaultSyncInterval = 30 * time.Second

// Sessions is the slice of the session manager the reconciler needs.
type Sessions interface {
	State() session.Session
	Subscribe(session.Subscriber) func()
}

// Reconciler couples the Store to the Runtime: optimistic write-through,
// periodic pull reconciliation, and the invalidation clear. All network
// failures on the sync path are logged, never propagated; reconciliation is
// best-effort and must not take the UI down with it.
type Reconciler struct {
	store    *Store
	api      runtimeapi.Client
	sessions Sessions
	log      *zap.Logger
	interval time.Duration

	mu          sync.Mutex
	cancelLoop  context.CancelFunc
	unsubscribe func()
}

// NewReconciler wires a reconciler. interval <= 0 selects the default.
func NewReconciler(store *Store, api runtimeapi.Client, sessions Sessions, interval time.Duration, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	r := &Reconciler{
		store:    store,
		api:      api,
		sessions: sessions,
		log:      log.Named("realm"),
		interval: interval,
	}
	r.unsubscribe = sessions.Subscribe(r.onSessionChange)
	return r
}

// Store exposes the underlying cache for read paths.
func (r *Reconciler) Store() *Store {
	return r.store
}

// SetRealmState writes locally first, then persists to the Runtime only while
// the session is active. Persistence failure does not roll back the local
// write; the server will overwrite on the next sync if it disagrees.
func (r *Reconciler) SetRealmState(ctx context.Context, realm Realm, key string, value any) {
	r.store.Set(realm, key, value)

	sess := r.sessions.State()
	if sess.Status != session.StatusActive {
		return
	}
	if err := r.api.PutRealmState(ctx, sess.SessionID, sess.TenantID, string(realm), key, value); err != nil {
		r.log.Warn("realm state persistence failed, keeping local write",
			zap.String("realm", string(realm)), zap.String("key", key), zap.Error(err))
	}
}

// GetRealmState is a pure local read.
func (r *Reconciler) GetRealmState(realm Realm, key string) (any, bool) {
	return r.store.Get(realm, key)
}

// ClearRealmState empties one realm's local cache.
func (r *Reconciler) ClearRealmState(realm Realm) {
	r.store.Clear(realm)
}

// SyncWithRuntime performs one reconciliation pass. For each realm the base
// version is captured before the fetch so writes racing the fetch are not
// clobbered by the stale snapshot.
func (r *Reconciler) SyncWithRuntime(ctx context.Context) {
	sess := r.sessions.State()
	if sess.Status != session.StatusActive {
		return
	}

	baseVersions := make(map[Realm]uint64, len(Realms))
	for _, realm := range Realms {
		baseVersions[realm] = r.store.Version(realm)
	}

	envelope, err := r.api.GetSession(ctx, sess.SessionID, sess.TenantID)
	if err != nil {
		r.log.Warn("realm sync fetch failed", zap.Error(err))
		return
	}
	if envelope.State == nil {
		return
	}

	for _, realm := range Realms {
		server, ok := envelope.State.RealmState[string(realm)]
		if !ok || len(server) == 0 {
			continue
		}
		if r.store.Reconcile(realm, server, baseVersions[realm]) {
			r.log.Debug("realm reconciled from server", zap.String("realm", string(realm)))
		}
	}
}

// Run starts the periodic sync loop. It returns immediately; the loop runs
// until ctx is cancelled, the session is invalidated, or Stop is called.
func (r *Reconciler) Run(ctx context.Context) {
	r.mu.Lock()
	if r.cancelLoop != nil {
		r.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancelLoop = cancel
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				r.SyncWithRuntime(loopCtx)
			}
		}
	}()
}

// Stop cancels the periodic sync loop. Idempotent.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancelLoop
	r.cancelLoop = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close stops the loop and detaches from the session manager.
func (r *Reconciler) Close() {
	r.Stop()
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

// onSessionChange runs inside the session manager's transition: on
// invalidation the caches are emptied and the sync timer cancelled before the
// transition returns.
func (r *Reconciler) onSessionChange(s session.Session) {
	if s.Status == session.StatusInvalid || s.Status == session.StatusInitializing {
		r.Stop()
		r.store.ClearAll()
	}
}
