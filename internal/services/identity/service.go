package identity

import (
	"quietwire/internal/crypto"
	"quietwire/internal/domain"
)

// Service generates and loads the device identity.
type Service struct {
	store domain.IdentityStore
}

// New constructs the identity service over a store.
func New(store domain.IdentityStore) *Service {
	return &Service{store: store}
}

var _ domain.IdentityService = (*Service)(nil)

// Generate creates a fresh identity, persists it, and returns it with the
// fingerprint of the X25519 public key.
func (s *Service) Generate() (domain.Identity, string, error) {
	id, err := crypto.GenerateIdentity()
	if err != nil {
		return domain.Identity{}, "", err
	}
	if err := s.store.SaveIdentity(id); err != nil {
		return domain.Identity{}, "", err
	}
	return id, crypto.Fingerprint(id.XPub.Slice()), nil
}

// Load fetches the stored identity.
func (s *Service) Load() (domain.Identity, bool, error) {
	return s.store.LoadIdentity()
}

// Fingerprint returns the display fingerprint of the stored identity.
func (s *Service) Fingerprint() (string, error) {
	id, ok, err := s.store.LoadIdentity()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNoIdentity
	}
	return crypto.Fingerprint(id.XPub.Slice()), nil
}
