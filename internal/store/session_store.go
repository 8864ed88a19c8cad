package store

import (
	"quietwire/internal/domain"
)

// SessionStore persists serialized session snapshots keyed by peer. The
// snapshot bytes come from the registry and are opaque here; the vault
// encrypts them at rest.
type SessionStore struct {
	vault domain.Keystore
}

// NewSessionStore wraps vault with the session-snapshot schema.
func NewSessionStore(vault domain.Keystore) *SessionStore {
	return &SessionStore{vault: vault}
}

var _ domain.SessionStore = (*SessionStore)(nil)

func sessionLabel(peer string) string { return "session-" + peer }

// SaveSnapshot stores the snapshot for peer.
func (s *SessionStore) SaveSnapshot(peer string, snapshot []byte) error {
	return s.vault.Store(sessionLabel(peer), snapshot)
}

// LoadSnapshot fetches the snapshot for peer; (nil, false, nil) when absent.
func (s *SessionStore) LoadSnapshot(peer string) ([]byte, bool, error) {
	return s.vault.Load(sessionLabel(peer))
}

// DeleteSnapshot removes the snapshot for peer.
func (s *SessionStore) DeleteSnapshot(peer string) error {
	return s.vault.Delete(sessionLabel(peer))
}
