package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Info strings separating the KDF domains. Each derivation step uses its
// own label so outputs can never collide across steps.
const (
	infoHandshake = "X3DH"
	infoRoot      = "DH_RATCHET"
	infoMessage   = "MK→AEAD"
)

// KDF constants feeding the symmetric-ratchet HMAC.
const (
	chainConst   = 0x02
	messageConst = 0x01
)

// KDFHandshake derives the initial (root key, sending chain key) pair from
// the concatenated X3DH Diffie–Hellman outputs. The transcript must already
// carry the 32-byte 0xFF prefix that separates it from the X25519
// valid-point space.
func KDFHandshake(transcript []byte) (rk, ck []byte) {
	salt := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, transcript, salt, []byte(infoHandshake))
	rk = make([]byte, 32)
	ck = make([]byte, 32)
	mustRead(r, rk)
	mustRead(r, ck)
	return rk, ck
}

// KDFRoot applies a DH-ratchet step: keyed by the current root key (as
// HKDF salt), it absorbs a fresh Diffie–Hellman output and returns the new
// (root key, chain key) pair.
func KDFRoot(rk, dh []byte) (newRK, ck []byte) {
	r := hkdf.New(sha256.New, dh, rk, []byte(infoRoot))
	newRK = make([]byte, 32)
	ck = make([]byte, 32)
	mustRead(r, newRK)
	mustRead(r, ck)
	return newRK, ck
}

// KDFChain advances a sending or receiving chain one step, returning the
// next chain key and the message key for the current index. There is no
// inverse.
func KDFChain(ck []byte) (nextCK, mk []byte) {
	h := hmac.New(sha256.New, ck)
	h.Write([]byte{chainConst})
	nextCK = h.Sum(nil)

	h = hmac.New(sha256.New, ck)
	h.Write([]byte{messageConst})
	mk = h.Sum(nil)
	return nextCK, mk
}

// ExpandMessageKey stretches a message key into the AEAD parameters: a
// 32-byte encryption key, the deterministic 12-byte nonce for this
// (chain, N) position, and a 32-byte context secret folded into the
// associated data.
func ExpandMessageKey(mk []byte) (key [32]byte, nonce [12]byte, ctxSecret [32]byte) {
	r := hkdf.New(sha256.New, mk, nil, []byte(infoMessage))
	mustRead(r, key[:])
	mustRead(r, nonce[:])
	mustRead(r, ctxSecret[:])
	return key, nonce, ctxSecret
}

// ConstantTimeEqual compares two byte slices in constant time.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// mustRead pulls from an HKDF stream; the stream cannot fail before its
// 255-block limit, which no caller approaches.
func mustRead(r io.Reader, b []byte) {
	if _, err := io.ReadFull(r, b); err != nil {
		panic(err)
	}
}
