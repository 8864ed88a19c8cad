package ratchet

import (
	"quietwire/internal/config"
	"quietwire/internal/crypto"
	"quietwire/internal/domain"
	"quietwire/internal/protocol/envelope"
)

// State contains all fields the Double Ratchet needs to track for one
// peer. It is owned exclusively by the session registry; callers hold only
// opaque handles.
type State struct {
	// RootKey is the current root key, updated on every DH ratchet step.
	RootKey []byte `json:"root_key"`

	// DHsPriv/DHsPub are the local ratchet key pair.
	DHsPriv domain.X25519Private `json:"dhs_priv"`
	DHsPub  domain.X25519Public  `json:"dhs_pub"`

	// DHr is the last ratchet public key seen from the peer.
	DHr domain.X25519Public `json:"dhr"`

	// SendCK/RecvCK are the chain keys. A nil chain is uninitialised.
	SendCK []byte `json:"send_ck,omitempty"`
	RecvCK []byte `json:"recv_ck,omitempty"`

	// Ns/Nr are the message counters within the current chains; PN is the
	// length of the previous sending chain.
	Ns uint32 `json:"ns"`
	Nr uint32 `json:"nr"`
	PN uint32 `json:"pn"`

	// SendRatchetPending is set when an inbound message carried a new DHr
	// and no send has happened since. The next Encrypt performs the
	// send-side ratchet step first.
	SendRatchetPending bool `json:"send_ratchet_pending,omitempty"`

	// Handshake carries the X3DH parameters attached to outgoing messages
	// until the first inbound message confirms the session.
	Handshake *envelope.Handshake `json:"handshake,omitempty"`

	// Skipped retains message keys for messages not yet received, bounded
	// by the limits below.
	Skipped skippedStore `json:"skipped"`

	MaxSkipPerChain uint32 `json:"max_skip_per_chain"`
	MaxSkipSessions uint32 `json:"max_skip_sessions"`

	// Dirty increments on every committed mutation so persistence hooks
	// can detect stale snapshots.
	Dirty uint64 `json:"dirty"`
}

// ApplyLimits copies the skip bounds out of cfg, falling back to the
// defaults for zero values.
func (s *State) ApplyLimits(cfg config.Config) {
	s.MaxSkipPerChain = cfg.MaxSkipPerChain
	s.MaxSkipSessions = cfg.MaxSkipSessions
	if s.MaxSkipPerChain == 0 {
		s.MaxSkipPerChain = config.DefaultMaxSkipPerChain
	}
	if s.MaxSkipSessions == 0 {
		s.MaxSkipSessions = config.DefaultMaxSkipSessions
	}
}

// Clone performs a deep copy. Decrypt mutates a clone and commits it only
// after the tag verifies.
func (s *State) Clone() *State {
	out := *s
	out.RootKey = append([]byte(nil), s.RootKey...)
	out.SendCK = append([]byte(nil), s.SendCK...)
	out.RecvCK = append([]byte(nil), s.RecvCK...)
	if s.Handshake != nil {
		hs := *s.Handshake
		out.Handshake = &hs
	}
	out.Skipped = s.Skipped.clone()
	return &out
}

// Wipe zeroes all secret material in place. Best-effort.
func (s *State) Wipe() {
	crypto.Wipe(s.RootKey)
	crypto.Wipe(s.SendCK)
	crypto.Wipe(s.RecvCK)
	crypto.Wipe(s.DHsPriv[:])
	s.Skipped.wipe()
}

// --- Skipped-key store ---

// skippedChain holds retained message keys for one peer ratchet key.
// Insertion order is tracked so overflow can evict the oldest entry.
type skippedChain struct {
	Pub   domain.X25519Public `json:"pub"`
	Keys  map[uint32][]byte   `json:"keys"`
	Order []uint32            `json:"order"`
}

// skippedStore maps (peer ratchet public, message number) to a retained
// message key. Chains are ordered oldest first.
type skippedStore struct {
	Chains []*skippedChain `json:"chains,omitempty"`
}

func (st *skippedStore) clone() skippedStore {
	if len(st.Chains) == 0 {
		return skippedStore{}
	}
	out := skippedStore{Chains: make([]*skippedChain, 0, len(st.Chains))}
	for _, c := range st.Chains {
		nc := &skippedChain{
			Pub:   c.Pub,
			Keys:  make(map[uint32][]byte, len(c.Keys)),
			Order: append([]uint32(nil), c.Order...),
		}
		for n, k := range c.Keys {
			nc.Keys[n] = append([]byte(nil), k...)
		}
		out.Chains = append(out.Chains, nc)
	}
	return out
}

func (st *skippedStore) wipe() {
	for _, c := range st.Chains {
		for _, k := range c.Keys {
			crypto.Wipe(k)
		}
	}
	st.Chains = nil
}

func (st *skippedStore) chain(pub domain.X25519Public) *skippedChain {
	for _, c := range st.Chains {
		if crypto.ConstantTimeEqual(c.Pub[:], pub[:]) {
			return c
		}
	}
	return nil
}

// peek returns the retained key for (pub, n) without removing it.
func (st *skippedStore) peek(pub domain.X25519Public, n uint32) ([]byte, bool) {
	c := st.chain(pub)
	if c == nil {
		return nil, false
	}
	mk, ok := c.Keys[n]
	return mk, ok
}

// remove deletes the entry for (pub, n), wiping the key.
func (st *skippedStore) remove(pub domain.X25519Public, n uint32) {
	c := st.chain(pub)
	if c == nil {
		return
	}
	if mk, ok := c.Keys[n]; ok {
		crypto.Wipe(mk)
		delete(c.Keys, n)
		for i, v := range c.Order {
			if v == n {
				c.Order = append(c.Order[:i], c.Order[i+1:]...)
				break
			}
		}
	}
}

// put stores a key under (pub, n), enforcing both bounds: at most
// maxPerChain keys per chain and at most maxChains recent chains. Overflow
// drops the oldest entry; those messages become permanently undecryptable.
func (st *skippedStore) put(pub domain.X25519Public, n uint32, mk []byte, maxPerChain, maxChains uint32) {
	c := st.chain(pub)
	if c == nil {
		c = &skippedChain{Pub: pub, Keys: make(map[uint32][]byte)}
		st.Chains = append(st.Chains, c)
		for uint32(len(st.Chains)) > maxChains {
			old := st.Chains[0]
			for _, k := range old.Keys {
				crypto.Wipe(k)
			}
			st.Chains = st.Chains[1:]
		}
	}
	for uint32(len(c.Order)) >= maxPerChain && len(c.Order) > 0 {
		oldest := c.Order[0]
		crypto.Wipe(c.Keys[oldest])
		delete(c.Keys, oldest)
		c.Order = c.Order[1:]
	}
	c.Keys[n] = append([]byte(nil), mk...)
	c.Order = append(c.Order, n)
}

// size reports the total number of retained keys.
func (st *skippedStore) size() int {
	total := 0
	for _, c := range st.Chains {
		total += len(c.Keys)
	}
	return total
}

// SkippedCount reports how many message keys are currently retained.
func (s *State) SkippedCount() int { return s.Skipped.size() }
