package ratchet

import (
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"quietwire/internal/crypto"
	"quietwire/internal/domain"
)

// snapshotVersion tags serialized state so incompatible layouts are
// rejected instead of misparsed.
const snapshotVersion = 1

type snapshot struct {
	Version int    `json:"version"`
	State   *State `json:"state"`
}

// Snapshot serializes the state for caller-controlled persistence. The
// caller is expected to encrypt the bytes at rest via the keystore.
func (s *State) Snapshot() ([]byte, error) {
	return json.Marshal(snapshot{Version: snapshotVersion, State: s})
}

// LoadSnapshot deserialises a snapshot, running internal consistency
// checks. Any failure is domain.ErrStateCorrupt; the only safe response is
// destroying the session and performing a new handshake.
func LoadSnapshot(raw []byte) (*State, error) {
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStateCorrupt, err)
	}
	if snap.Version != snapshotVersion || snap.State == nil {
		return nil, fmt.Errorf("%w: snapshot version %d", domain.ErrStateCorrupt, snap.Version)
	}
	st := snap.State
	if err := st.check(); err != nil {
		return nil, err
	}
	return st, nil
}

// check validates internal consistency of a deserialised state.
func (s *State) check() error {
	if len(s.RootKey) != 32 {
		return fmt.Errorf("%w: root key length %d", domain.ErrStateCorrupt, len(s.RootKey))
	}
	if s.SendCK != nil && len(s.SendCK) != 32 {
		return fmt.Errorf("%w: sending chain key length %d", domain.ErrStateCorrupt, len(s.SendCK))
	}
	if s.RecvCK != nil && len(s.RecvCK) != 32 {
		return fmt.Errorf("%w: receiving chain key length %d", domain.ErrStateCorrupt, len(s.RecvCK))
	}
	if s.MaxSkipPerChain == 0 || s.MaxSkipSessions == 0 {
		return fmt.Errorf("%w: zero skip bounds", domain.ErrStateCorrupt)
	}

	// The stored ratchet public must match the stored private.
	pub, err := curve25519.X25519(s.DHsPriv.Slice(), curve25519.Basepoint)
	if err != nil || !crypto.ConstantTimeEqual(pub, s.DHsPub.Slice()) {
		return fmt.Errorf("%w: ratchet key pair mismatch", domain.ErrStateCorrupt)
	}

	for _, c := range s.Skipped.Chains {
		if len(c.Keys) != len(c.Order) {
			return fmt.Errorf("%w: skipped-key index mismatch", domain.ErrStateCorrupt)
		}
		for n, mk := range c.Keys {
			if len(mk) != 32 {
				return fmt.Errorf("%w: skipped key length %d", domain.ErrStateCorrupt, len(mk))
			}
			found := false
			for _, v := range c.Order {
				if v == n {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%w: skipped-key index mismatch", domain.ErrStateCorrupt)
			}
		}
	}
	return nil
}
