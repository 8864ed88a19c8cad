package ratchet

import (
	"fmt"

	"quietwire/internal/crypto"
	"quietwire/internal/domain"
	"quietwire/internal/protocol/envelope"
)

// Encrypt seals plaintext under the sending chain, performing the pending
// DH-ratchet step first when an inbound message introduced a new peer
// ratchet key. The returned envelope carries the handshake parameters while
// the session is still unconfirmed.
func (s *State) Encrypt(plaintext []byte) (*envelope.Envelope, error) {
	if s.SendRatchetPending {
		if err := s.ratchetSend(); err != nil {
			return nil, err
		}
	}
	if s.SendCK == nil {
		return nil, fmt.Errorf("%w: sending chain uninitialised", domain.ErrStateCorrupt)
	}

	nextCK, mk := crypto.KDFChain(s.SendCK)
	key, nonce, ctxSecret := crypto.ExpandMessageKey(mk)
	crypto.Wipe(mk)

	hdr := envelope.Header{
		DHPub:     s.DHsPub,
		PN:        s.PN,
		N:         s.Ns,
		Handshake: s.Handshake,
	}
	sealed := crypto.SealAEAD(key, nonce, plaintext, hdr.AssociatedData(ctxSecret))
	crypto.Wipe(key[:])
	crypto.Wipe(ctxSecret[:])

	env := &envelope.Envelope{Header: hdr}
	env.FromSealed(sealed)

	crypto.Wipe(s.SendCK)
	s.SendCK = nextCK
	s.Ns++
	s.Dirty++
	return env, nil
}

// Decrypt opens an envelope, handling skipped keys and ratchet steps.
// State mutates only on success; any failure leaves it bitwise unchanged.
func (s *State) Decrypt(env *envelope.Envelope) ([]byte, error) {
	hdr := env.Header

	// A retained skipped key is used and removed, never re-derived.
	if mk, ok := s.Skipped.peek(hdr.DHPub, hdr.N); ok {
		pt, err := openWith(mk, env)
		if err != nil {
			return nil, err
		}
		s.Skipped.remove(hdr.DHPub, hdr.N)
		s.confirm()
		s.Dirty++
		return pt, nil
	}

	// Work on a clone; commit only after the tag verifies.
	tmp := s.Clone()

	if !crypto.ConstantTimeEqual(hdr.DHPub[:], tmp.DHr[:]) {
		// New peer ratchet key: finish the previous receiving chain up to
		// the advertised length, then ratchet.
		if err := tmp.skipTo(hdr.PN); err != nil {
			return nil, err
		}
		if err := tmp.ratchetRecv(hdr.DHPub); err != nil {
			return nil, err
		}
	}
	if tmp.RecvCK == nil {
		return nil, fmt.Errorf("%w: receiving chain uninitialised", domain.ErrStateCorrupt)
	}
	if hdr.N >= tmp.Nr && hdr.N-tmp.Nr+1 > tmp.MaxSkipPerChain {
		return nil, domain.ErrTooManySkipped
	}
	if err := tmp.skipTo(hdr.N); err != nil {
		return nil, err
	}

	nextCK, mk := crypto.KDFChain(tmp.RecvCK)
	pt, err := openWith(mk, env)
	crypto.Wipe(mk)
	if err != nil {
		return nil, err
	}
	crypto.Wipe(tmp.RecvCK)
	tmp.RecvCK = nextCK
	tmp.Nr = hdr.N + 1
	tmp.confirm()
	tmp.Dirty++

	s.replaceWith(tmp)
	return pt, nil
}

// confirm drops the handshake parameters once any inbound message proves
// the peer holds the session.
func (s *State) confirm() {
	s.Handshake = nil
}

// replaceWith commits a clone, wiping the superseded secrets.
func (s *State) replaceWith(tmp *State) {
	crypto.Wipe(s.RootKey)
	crypto.Wipe(s.SendCK)
	crypto.Wipe(s.RecvCK)
	*s = *tmp
}

// skipTo advances the receiving chain to message number until, stashing
// each intermediate key in the skipped store. A single advance past
// MaxSkipPerChain fails without mutation of the receiving chain.
func (s *State) skipTo(until uint32) error {
	if s.RecvCK == nil || until <= s.Nr {
		return nil
	}
	if until-s.Nr > s.MaxSkipPerChain {
		return domain.ErrTooManySkipped
	}
	for s.Nr < until {
		nextCK, mk := crypto.KDFChain(s.RecvCK)
		s.Skipped.put(s.DHr, s.Nr, mk, s.MaxSkipPerChain, s.MaxSkipSessions)
		crypto.Wipe(mk)
		crypto.Wipe(s.RecvCK)
		s.RecvCK = nextCK
		s.Nr++
	}
	return nil
}

// ratchetRecv performs the receive-side DH ratchet: a new root and
// receiving chain from the peer's fresh ratchet key. The matching
// send-side step is deferred until the next Encrypt.
func (s *State) ratchetRecv(peer domain.X25519Public) error {
	dh, err := crypto.DH(s.DHsPriv, peer)
	if err != nil {
		return err
	}
	newRK, ck := crypto.KDFRoot(s.RootKey, dh[:])
	crypto.Wipe(dh[:])
	crypto.Wipe(s.RootKey)
	crypto.Wipe(s.RecvCK)
	s.RootKey = newRK
	s.RecvCK = ck
	s.DHr = peer
	s.Nr = 0
	s.SendRatchetPending = true
	return nil
}

// ratchetSend performs the send-side DH ratchet: fresh local key pair, new
// root and sending chain. The finished chain's length is published as PN.
func (s *State) ratchetSend() error {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	dh, err := crypto.DH(priv, s.DHr)
	if err != nil {
		return err
	}
	newRK, ck := crypto.KDFRoot(s.RootKey, dh[:])
	crypto.Wipe(dh[:])
	crypto.Wipe(s.RootKey)
	crypto.Wipe(s.SendCK)
	crypto.Wipe(s.DHsPriv[:])
	s.RootKey = newRK
	s.SendCK = ck
	s.DHsPriv = priv
	s.DHsPub = pub
	s.PN = s.Ns
	s.Ns = 0
	s.SendRatchetPending = false
	return nil
}

// openWith expands mk and opens the envelope against its bound header.
func openWith(mk []byte, env *envelope.Envelope) ([]byte, error) {
	key, nonce, ctxSecret := crypto.ExpandMessageKey(mk)
	defer crypto.Wipe(key[:])
	defer crypto.Wipe(ctxSecret[:])
	return crypto.OpenAEAD(key, nonce, env.Sealed(), env.Header.AssociatedData(ctxSecret))
}
