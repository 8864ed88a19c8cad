package x3dh

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"quietwire/internal/config"
	"quietwire/internal/crypto"
	"quietwire/internal/domain"
	"quietwire/internal/protocol/envelope"
	"quietwire/internal/protocol/ratchet"
)

// transcriptPrefix separates the KDF input from the X25519 valid-point
// space: no DH output can be 32 bytes of 0xFF.
var transcriptPrefix = [32]byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
}

// BuildBundle assembles the public bundle a responder publishes. opk may
// be nil when the one-time pool is exhausted.
func BuildBundle(id domain.Identity, spk domain.SignedPreKey, opk *domain.OneTimePreKey) domain.PreKeyBundle {
	b := domain.PreKeyBundle{
		IdentityKey:  id.XPub,
		SigningKey:   id.EdPub,
		SignedPreKey: spk,
	}
	if opk != nil {
		o := *opk
		b.OneTime = &o
	}
	return b
}

// VerifyBundle checks the bundle's shape and the Ed25519 signature over
// the signed prekey. The signature is the sole integrity check on material
// fetched from the directory.
func VerifyBundle(b domain.PreKeyBundle) error {
	if b.IdentityKey.IsZero() || b.SignedPreKey.Pub.IsZero() {
		return fmt.Errorf("%w: zero public key in bundle", domain.ErrMalformed)
	}
	if len(b.SignedPreKey.Sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature length %d", domain.ErrMalformed, len(b.SignedPreKey.Sig))
	}
	if b.OneTime != nil && b.OneTime.Pub.IsZero() {
		return fmt.Errorf("%w: zero one-time prekey", domain.ErrMalformed)
	}
	if !crypto.VerifyEd25519(b.SigningKey, b.SignedPreKey.Pub.Slice(), b.SignedPreKey.Sig) {
		return domain.ErrBadSignature
	}
	return nil
}

// Initiate runs the initiator side of the handshake against a fetched
// bundle. It returns a ready ratchet state (sending chain seeded, first
// outgoing ratchet prepared against the responder's SPK) and the handshake
// parameters the first envelopes must carry.
func Initiate(own domain.Identity, b domain.PreKeyBundle, cfg config.Config) (*ratchet.State, *envelope.Handshake, error) {
	if err := VerifyBundle(b); err != nil {
		return nil, nil, err
	}

	ekPriv, ekPub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, nil, err
	}

	dh1, err := crypto.DH(own.XPriv, b.SignedPreKey.Pub)
	if err != nil {
		return nil, nil, err
	}
	dh2, err := crypto.DH(ekPriv, b.IdentityKey)
	if err != nil {
		return nil, nil, err
	}
	dh3, err := crypto.DH(ekPriv, b.SignedPreKey.Pub)
	if err != nil {
		return nil, nil, err
	}

	transcript := make([]byte, 0, 32*5)
	transcript = append(transcript, transcriptPrefix[:]...)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	opkID := domain.NoOneTimeID
	if b.OneTime != nil {
		dh4, err := crypto.DH(ekPriv, b.OneTime.Pub)
		if err != nil {
			return nil, nil, err
		}
		transcript = append(transcript, dh4[:]...)
		crypto.Wipe(dh4[:])
		opkID = b.OneTime.ID
	}
	crypto.Wipe(dh1[:])
	crypto.Wipe(dh2[:])
	crypto.Wipe(dh3[:])

	rk, ck := crypto.KDFHandshake(transcript)
	crypto.Wipe(transcript)

	hs := &envelope.Handshake{
		IdentityKey:     own.XPub,
		EphemeralKey:    ekPub,
		SignedPreKeyID:  b.SignedPreKey.ID,
		OneTimePreKeyID: opkID,
	}

	// The ephemeral doubles as the first ratchet key; it is replaced by the
	// first send-side DH ratchet once the responder replies.
	st := &ratchet.State{
		RootKey:   rk,
		DHsPriv:   ekPriv,
		DHsPub:    ekPub,
		DHr:       b.SignedPreKey.Pub,
		SendCK:    ck,
		Handshake: hs,
	}
	st.ApplyLimits(cfg)
	return st, hs, nil
}

// Respond runs the responder side against an inbound initial envelope,
// returning the new session state and the decrypted first plaintext.
//
// opk must be the pair named by the envelope's one-time prekey id, or nil
// when the handshake ran without one. Its private half is destroyed in
// place once the handshake completes, fulfilling the single-use contract;
// the caller is expected to have already removed the pair from its store.
//
// On decryption failure the derived state is discarded — nothing may be
// persisted — and domain.ErrHandshakeDecrypt is returned.
func Respond(
	own domain.Identity,
	spk domain.SignedPreKeyPair,
	opk *domain.OneTimePreKeyPair,
	env *envelope.Envelope,
	cfg config.Config,
) (*ratchet.State, []byte, error) {
	hs := env.Header.Handshake
	if hs == nil {
		return nil, nil, fmt.Errorf("%w: missing handshake header", domain.ErrMalformed)
	}
	if hs.IdentityKey.IsZero() || hs.EphemeralKey.IsZero() {
		return nil, nil, fmt.Errorf("%w: zero key in handshake header", domain.ErrMalformed)
	}
	if (opk == nil) != (hs.OneTimePreKeyID == domain.NoOneTimeID) {
		return nil, nil, fmt.Errorf("%w: one-time prekey mismatch", domain.ErrMalformed)
	}

	dh1, err := crypto.DH(spk.Priv, hs.IdentityKey)
	if err != nil {
		return nil, nil, err
	}
	dh2, err := crypto.DH(own.XPriv, hs.EphemeralKey)
	if err != nil {
		return nil, nil, err
	}
	dh3, err := crypto.DH(spk.Priv, hs.EphemeralKey)
	if err != nil {
		return nil, nil, err
	}

	transcript := make([]byte, 0, 32*5)
	transcript = append(transcript, transcriptPrefix[:]...)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	if opk != nil {
		dh4, err := crypto.DH(opk.Priv, hs.EphemeralKey)
		if err != nil {
			return nil, nil, err
		}
		transcript = append(transcript, dh4[:]...)
		crypto.Wipe(dh4[:])
	}
	crypto.Wipe(dh1[:])
	crypto.Wipe(dh2[:])
	crypto.Wipe(dh3[:])

	rk, ck := crypto.KDFHandshake(transcript)
	crypto.Wipe(transcript)

	// The initiator's sending chain is our receiving chain. Our ratchet key
	// starts as the signed prekey; the first reply performs the send-side
	// DH ratchet with a fresh pair.
	st := &ratchet.State{
		RootKey:            rk,
		DHsPriv:            spk.Priv,
		DHsPub:             spk.Pub,
		DHr:                hs.EphemeralKey,
		RecvCK:             ck,
		SendRatchetPending: true,
	}
	st.ApplyLimits(cfg)

	pt, err := st.Decrypt(env)
	if err != nil {
		st.Wipe()
		if errors.Is(err, domain.ErrBadTag) {
			return nil, nil, domain.ErrHandshakeDecrypt
		}
		return nil, nil, err
	}

	// Single-use: the consumed one-time prekey private is gone for good.
	if opk != nil {
		crypto.Wipe(opk.Priv[:])
	}
	return st, pt, nil
}
