package store

import (
	"encoding/json"
	"sync"

	"quietwire/internal/domain"
)

const prekeysLabel = "prekeys"

// prekeysOnDisk is the serialised prekey pool.
type prekeysOnDisk struct {
	Version      int                        `json:"version"`
	CurrentSPKID uint32                     `json:"current_spk_id"`
	Signed       []domain.SignedPreKeyPair  `json:"signed"`
	OneTime      []domain.OneTimePreKeyPair `json:"one_time"`
}

// PrekeyStore keeps signed and one-time prekey pairs in a Keystore. Old
// signed prekeys are retained so straggling handshakes still resolve;
// one-time pairs are deleted the moment they are consumed.
type PrekeyStore struct {
	mu    sync.Mutex
	vault domain.Keystore
}

// NewPrekeyStore wraps vault with the prekey schema.
func NewPrekeyStore(vault domain.Keystore) *PrekeyStore {
	return &PrekeyStore{vault: vault}
}

var _ domain.PrekeyStore = (*PrekeyStore)(nil)

func (s *PrekeyStore) load() (prekeysOnDisk, error) {
	raw, ok, err := s.vault.Load(prekeysLabel)
	if err != nil || !ok {
		return prekeysOnDisk{Version: 1}, err
	}
	var pd prekeysOnDisk
	if err := json.Unmarshal(raw, &pd); err != nil {
		return prekeysOnDisk{}, err
	}
	return pd, nil
}

func (s *PrekeyStore) save(pd prekeysOnDisk) error {
	raw, err := json.Marshal(pd)
	if err != nil {
		return err
	}
	return s.vault.Store(prekeysLabel, raw)
}

// SaveSignedPreKey appends a signed prekey pair and marks it current.
func (s *PrekeyStore) SaveSignedPreKey(p domain.SignedPreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd, err := s.load()
	if err != nil {
		return err
	}
	pd.Signed = append(pd.Signed, p)
	pd.CurrentSPKID = p.ID
	return s.save(pd)
}

// LoadSignedPreKey fetches a signed prekey pair by id.
func (s *PrekeyStore) LoadSignedPreKey(id uint32) (domain.SignedPreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd, err := s.load()
	if err != nil {
		return domain.SignedPreKeyPair{}, false, err
	}
	for _, p := range pd.Signed {
		if p.ID == id {
			return p, true, nil
		}
	}
	return domain.SignedPreKeyPair{}, false, nil
}

// CurrentSignedPreKey fetches the most recently provisioned signed prekey.
func (s *PrekeyStore) CurrentSignedPreKey() (domain.SignedPreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd, err := s.load()
	if err != nil {
		return domain.SignedPreKeyPair{}, false, err
	}
	for _, p := range pd.Signed {
		if p.ID == pd.CurrentSPKID {
			return p, true, nil
		}
	}
	return domain.SignedPreKeyPair{}, false, nil
}

// SaveOneTimePreKeys appends freshly generated one-time pairs to the pool.
func (s *PrekeyStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd, err := s.load()
	if err != nil {
		return err
	}
	pd.OneTime = append(pd.OneTime, pairs...)
	return s.save(pd)
}

// ConsumeOneTimePreKey removes and returns the pair with the given id. A
// second consume of the same id reports (zero, false, nil): the private
// half is gone for good.
func (s *PrekeyStore) ConsumeOneTimePreKey(id uint32) (domain.OneTimePreKeyPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd, err := s.load()
	if err != nil {
		return domain.OneTimePreKeyPair{}, false, err
	}
	for i, p := range pd.OneTime {
		if p.ID == id {
			pd.OneTime = append(pd.OneTime[:i], pd.OneTime[i+1:]...)
			if err := s.save(pd); err != nil {
				return domain.OneTimePreKeyPair{}, false, err
			}
			return p, true, nil
		}
	}
	return domain.OneTimePreKeyPair{}, false, nil
}

// ListOneTimePublics returns the public halves of the unconsumed pool.
func (s *PrekeyStore) ListOneTimePublics() ([]domain.OneTimePreKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.OneTimePreKey, 0, len(pd.OneTime))
	for _, p := range pd.OneTime {
		out = append(out, p.OneTimePreKey)
	}
	return out, nil
}
