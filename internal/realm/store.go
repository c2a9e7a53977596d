// Package realm caches server-owned, realm-partitioned state locally with
// optimistic writes and periodic server-authoritative reconciliation.
//
// Known limitation: reconciliation is periodic pull, not CRDT merge. A local
// write that lands between a sync's fetch and its apply would be overwritten
// by the (older) server snapshot; the store defends against this with
// per-key write versions: reconciliation skips any key written after the
// snapshot was taken. A local write concurrent with a remote write on
// another device still resolves server-wins on the next sync.
package realm

import (
	"reflect"
	"sync"
)

// Realm names the known state partitions.
type Realm string

const (
	RealmContent  Realm = "content"
	RealmInsights Realm = "insights"
	RealmJourney  Realm = "journey"
	RealmOutcomes Realm = "outcomes"
)

// Realms lists every known partition, in sync order.
var Realms = []Realm{RealmContent, RealmInsights, RealmJourney, RealmOutcomes}

// cache is one realm's immutable snapshot. values is replaced wholesale on
// every mutation (copy-on-write) so concurrent readers never observe a torn
// map.
type cache struct {
	values map[string]any
	// writes records, per key, the store version at which the key was last
	// written locally. Used to protect fresh local writes from stale
	// reconciliation snapshots.
	writes  map[string]uint64
	version uint64
}

// Store is the in-memory realm cache. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	realms map[Realm]*cache
}

// NewStore creates an empty store covering all known realms.
func NewStore() *Store {
	s := &Store{realms: make(map[Realm]*cache, len(Realms))}
	for _, r := range Realms {
		s.realms[r] = &cache{values: map[string]any{}, writes: map[string]uint64{}}
	}
	return s
}

// Get returns the local value for key. Pure local read, no network.
func (s *Store) Get(realm Realm, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.realms[realm]
	if !ok {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}

// Snapshot returns a copy of one realm's values.
func (s *Store) Snapshot(realm Realm) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.realms[realm]
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Version returns the realm's current write version. Reconciliation captures
// it before fetching the server snapshot.
func (s *Store) Version(realm Realm) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.realms[realm]; ok {
		return c.version
	}
	return 0
}

// Set writes key optimistically. The realm map is replaced, not mutated.
func (s *Store) Set(realm Realm, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.realms[realm]
	if !ok {
		c = &cache{values: map[string]any{}, writes: map[string]uint64{}}
		s.realms[realm] = c
	}
	next := make(map[string]any, len(c.values)+1)
	for k, v := range c.values {
		next[k] = v
	}
	next[key] = value
	writes := make(map[string]uint64, len(c.writes)+1)
	for k, v := range c.writes {
		writes[k] = v
	}
	version := c.version + 1
	writes[key] = version
	s.realms[realm] = &cache{values: next, writes: writes, version: version}
}

// Clear empties one realm.
func (s *Store) Clear(realm Realm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realms[realm] = &cache{values: map[string]any{}, writes: map[string]uint64{}}
}

// ClearAll empties every realm. Runs as part of the session invalidation
// cascade.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for r := range s.realms {
		s.realms[r] = &cache{values: map[string]any{}, writes: map[string]uint64{}}
	}
}

// Reconcile merges a server snapshot into one realm. Server values win
// key-by-key on divergence; keys present only locally are preserved; keys
// written locally after baseVersion (i.e. after the server snapshot was
// fetched) are left untouched. The realm map is swapped in a single atomic
// update, and only when something actually diverged, so an unchanged
// snapshot produces no observable state change.
//
// Returns whether the realm changed.
func (s *Store) Reconcile(realm Realm, server map[string]any, baseVersion uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.realms[realm]
	if !ok {
		return false
	}

	diverged := false
	for k, sv := range server {
		if wv, written := c.writes[k]; written && wv > baseVersion {
			continue
		}
		lv, present := c.values[k]
		if !present || !reflect.DeepEqual(lv, sv) {
			diverged = true
			break
		}
	}
	if !diverged {
		return false
	}

	merged := make(map[string]any, len(c.values)+len(server))
	for k, v := range c.values {
		merged[k] = v
	}
	for k, sv := range server {
		if wv, written := c.writes[k]; written && wv > baseVersion {
			continue
		}
		merged[k] = sv
	}
	s.realms[realm] = &cache{values: merged, writes: c.writes, version: c.version + 1}
	return true
}
