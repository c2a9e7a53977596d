// Package storage persists machine-local client state under the Symphainy
// home directory. The session bootstrap cache lets a restarted client attempt
// recovery without a fresh credential exchange; it is sealed at rest because
// it names a live session.
package storage

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/crypto"
)

// BootstrapInfo is the durable session bootstrap cache.
type BootstrapInfo struct {
	// SessionID is the Runtime session id (server-generated).
	SessionID string `json:"sessionId"`
	// TenantID is the tenant the session was bound to, empty for anonymous.
	TenantID string `json:"tenantId,omitempty"`
	// UserID is the authenticated user, empty for anonymous.
	UserID string `json:"userId,omitempty"`
	// UpdatedAtMs is the wall-clock timestamp of the most recent write.
	UpdatedAtMs int64 `json:"updatedAtMs,omitempty"`
}

// LoadBootstrapInfo reads and unseals the bootstrap cache.
//
// ok is false when no cache exists.
func LoadBootstrapInfo(home string) (info BootstrapInfo, ok bool, err error) {
	path, err := bootstrapPath(home)
	if err != nil {
		return BootstrapInfo{}, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BootstrapInfo{}, false, nil
		}
		return BootstrapInfo{}, false, err
	}
	key, err := sealKey(home)
	if err != nil {
		return BootstrapInfo{}, false, err
	}
	if err := crypto.Open(data, key, &info); err != nil {
		// An unreadable cache is treated as absent; the client falls back to
		// a full bootstrap.
		return BootstrapInfo{}, false, nil
	}
	return info, true, nil
}

// SaveBootstrapInfo seals and writes the bootstrap cache atomically.
func SaveBootstrapInfo(home string, info BootstrapInfo) error {
	if strings.TrimSpace(info.SessionID) == "" {
		return fmt.Errorf("missing session id")
	}
	path, err := bootstrapPath(home)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	info.UpdatedAtMs = time.Now().UnixMilli()
	key, err := sealKey(home)
	if err != nil {
		return err
	}
	sealed, err := crypto.Seal(info, key)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ClearBootstrapInfo deletes the bootstrap cache. Used on logout.
func ClearBootstrapInfo(home string) error {
	path, err := bootstrapPath(home)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func bootstrapPath(home string) (string, error) {
	if strings.TrimSpace(home) == "" {
		return "", fmt.Errorf("missing symphainy home")
	}
	return filepath.Join(home, "session", "bootstrap.sealed"), nil
}

// sealKey loads the machine-local seal key, generating it on first use.
func sealKey(home string) (*[32]byte, error) {
	path := filepath.Join(home, "seal.key")
	if data, err := os.ReadFile(path); err == nil {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err == nil && len(raw) == 32 {
			var key [32]byte
			copy(key[:], raw)
			return &key, nil
		}
	}
	key, err := crypto.NewKey()
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(key[:])
	if err := os.MkdirAll(home, 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}
