package prekey

import (
	"quietwire/internal/config"
	"quietwire/internal/crypto"
	"quietwire/internal/domain"
	"quietwire/internal/protocol/x3dh"
)

// Service provisions prekeys. Id policy: signed prekeys count up from 1,
// one-time ids continue above the highest id still in the unconsumed pool.
// Consumed ids are not remembered: when the pair holding the highest id has
// been consumed, the next Provision issues that id again.
type Service struct {
	ids     domain.IdentityStore
	prekeys domain.PrekeyStore
	cfg     config.Config
}

// New constructs the prekey service.
func New(ids domain.IdentityStore, prekeys domain.PrekeyStore, cfg config.Config) *Service {
	return &Service{ids: ids, prekeys: prekeys, cfg: cfg}
}

var _ domain.PrekeyService = (*Service)(nil)

// Provision rotates in a fresh signed prekey and tops the one-time pool up
// with oneTimeCount new pairs (the configured batch size when zero).
func (s *Service) Provision(oneTimeCount int) (domain.SignedPreKey, []domain.OneTimePreKey, error) {
	id, ok, err := s.ids.LoadIdentity()
	if err != nil {
		return domain.SignedPreKey{}, nil, err
	}
	if !ok {
		return domain.SignedPreKey{}, nil, domain.ErrNoIdentity
	}
	if oneTimeCount <= 0 {
		oneTimeCount = int(s.cfg.OneTimePreKeyBatchSize)
	}

	spkID := uint32(1)
	if cur, found, err := s.prekeys.CurrentSignedPreKey(); err != nil {
		return domain.SignedPreKey{}, nil, err
	} else if found {
		spkID = cur.ID + 1
	}
	spk, err := crypto.GenerateSignedPreKey(id, spkID)
	if err != nil {
		return domain.SignedPreKey{}, nil, err
	}
	if err := s.prekeys.SaveSignedPreKey(spk); err != nil {
		return domain.SignedPreKey{}, nil, err
	}

	nextID := uint32(1)
	existing, err := s.prekeys.ListOneTimePublics()
	if err != nil {
		return domain.SignedPreKey{}, nil, err
	}
	for _, p := range existing {
		if p.ID >= nextID {
			nextID = p.ID + 1
		}
	}
	ids := make([]uint32, oneTimeCount)
	for i := range ids {
		ids[i] = nextID + uint32(i)
	}
	pairs, err := crypto.GenerateOneTimePreKeys(ids)
	if err != nil {
		return domain.SignedPreKey{}, nil, err
	}
	if err := s.prekeys.SaveOneTimePreKeys(pairs); err != nil {
		return domain.SignedPreKey{}, nil, err
	}

	publics := make([]domain.OneTimePreKey, 0, len(pairs))
	for _, p := range pairs {
		publics = append(publics, p.OneTimePreKey)
	}
	return spk.SignedPreKey, publics, nil
}

// Bundle assembles the public bundle plus the current one-time pool for
// publication. The bundle itself carries no one-time prekey; the directory
// picks one per fetch from the pool.
func (s *Service) Bundle() (domain.PreKeyBundle, []domain.OneTimePreKey, error) {
	id, ok, err := s.ids.LoadIdentity()
	if err != nil {
		return domain.PreKeyBundle{}, nil, err
	}
	if !ok {
		return domain.PreKeyBundle{}, nil, domain.ErrNoIdentity
	}
	spk, found, err := s.prekeys.CurrentSignedPreKey()
	if err != nil {
		return domain.PreKeyBundle{}, nil, err
	}
	if !found {
		return domain.PreKeyBundle{}, nil, domain.ErrNoIdentity
	}
	pool, err := s.prekeys.ListOneTimePublics()
	if err != nil {
		return domain.PreKeyBundle{}, nil, err
	}
	return x3dh.BuildBundle(id, spk.SignedPreKey, nil), pool, nil
}
