package realm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSetGet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, ok := s.Get(RealmContent, "fileId")
	require.False(t, ok)

	s.Set(RealmContent, "fileId", "A")
	got, ok := s.Get(RealmContent, "fileId")
	require.True(t, ok)
	require.Equal(t, "A", got)
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Set(RealmInsights, "score", 0.9)

	snap := s.Snapshot(RealmInsights)
	snap["score"] = 0.1

	got, _ := s.Get(RealmInsights, "score")
	require.Equal(t, 0.9, got)
}

func TestStoreClear(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Set(RealmContent, "fileId", "A")
	s.Set(RealmJourney, "step", 3)

	s.Clear(RealmContent)
	_, ok := s.Get(RealmContent, "fileId")
	require.False(t, ok)
	_, ok = s.Get(RealmJourney, "step")
	require.True(t, ok)

	s.ClearAll()
	_, ok = s.Get(RealmJourney, "step")
	require.False(t, ok)
}

func TestReconcileServerWins(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Set(RealmContent, "fileId", "A")
	base := s.Version(RealmContent)

	changed := s.Reconcile(RealmContent, map[string]any{"fileId": "B"}, base)
	require.True(t, changed)

	got, _ := s.Get(RealmContent, "fileId")
	require.Equal(t, "B", got)
}

func TestReconcilePreservesLocalOnlyKeys(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Set(RealmContent, "fileId", "A")
	s.Set(RealmContent, "draft", "unsaved")
	base := s.Version(RealmContent)

	require.True(t, s.Reconcile(RealmContent, map[string]any{"fileId": "B"}, base))

	got, ok := s.Get(RealmContent, "draft")
	require.True(t, ok, "local-only keys survive reconciliation")
	require.Equal(t, "unsaved", got)
}

func TestReconcileIdempotent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Set(RealmContent, "fileId", "A")

	server := map[string]any{"fileId": "B", "status": "ready"}
	require.True(t, s.Reconcile(RealmContent, server, s.Version(RealmContent)))

	// Second pass with the same snapshot and no intervening writes is a no-op.
	require.False(t, s.Reconcile(RealmContent, server, s.Version(RealmContent)))
}

func TestReconcileNoDivergenceNoChange(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Set(RealmOutcomes, "status", "ready")
	base := s.Version(RealmOutcomes)

	require.False(t, s.Reconcile(RealmOutcomes, map[string]any{"status": "ready"}, base))
}

func TestReconcileSkipsWritesNewerThanSnapshot(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Set(RealmContent, "fileId", "A")

	// Snapshot version captured, then a local write lands while the server
	// fetch is in flight. The stale server value must not clobber it.
	base := s.Version(RealmContent)
	s.Set(RealmContent, "fileId", "C")

	s.Reconcile(RealmContent, map[string]any{"fileId": "B"}, base)
	got, _ := s.Get(RealmContent, "fileId")
	require.Equal(t, "C", got)
}

func TestReconcileValueEqualityNotIdentity(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Set(RealmInsights, "report", map[string]any{"score": 1.0})
	base := s.Version(RealmInsights)

	// Equal-by-value payload from a fresh decode: no divergence.
	require.False(t, s.Reconcile(RealmInsights, map[string]any{
		"report": map[string]any{"score": 1.0},
	}, base))
}
