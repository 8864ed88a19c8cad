package store

import (
	"encoding/json"

	"quietwire/internal/domain"
)

const identityLabel = "identity"

// IdentityStore persists the local identity in a Keystore.
type IdentityStore struct {
	vault domain.Keystore
}

// NewIdentityStore wraps vault with the identity schema.
func NewIdentityStore(vault domain.Keystore) *IdentityStore {
	return &IdentityStore{vault: vault}
}

var _ domain.IdentityStore = (*IdentityStore)(nil)

// SaveIdentity writes the identity; refusing to overwrite an existing one.
func (s *IdentityStore) SaveIdentity(id domain.Identity) error {
	if _, ok, err := s.vault.Load(identityLabel); err != nil {
		return err
	} else if ok {
		return domain.ErrIdentityExists
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.vault.Store(identityLabel, raw)
}

// LoadIdentity reads the identity back; (zero, false, nil) when absent.
func (s *IdentityStore) LoadIdentity() (domain.Identity, bool, error) {
	raw, ok, err := s.vault.Load(identityLabel)
	if err != nil || !ok {
		return domain.Identity{}, false, err
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, false, err
	}
	return id, true, nil
}

// DeleteIdentity wipes the stored identity.
func (s *IdentityStore) DeleteIdentity() error {
	return s.vault.Delete(identityLabel)
}
