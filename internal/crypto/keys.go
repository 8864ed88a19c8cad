package crypto

import (
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"quietwire/internal/domain"
)

// newScalar draws a fresh X25519 private scalar from the OS CSRNG and
// clamps it per RFC 7748.
func newScalar() (domain.X25519Private, error) {
	var s domain.X25519Private
	if err := ReadRandom(s[:]); err != nil {
		return s, err
	}
	clampScalar(s[:])
	return s, nil
}

// clampScalar forces the three RFC 7748 bit conditions on a 32-byte scalar.
func clampScalar(s []byte) {
	s[0] &= 248
	s[31] &= 127
	s[31] |= 64
}

// GenerateX25519 returns a fresh Diffie–Hellman key pair.
func GenerateX25519() (domain.X25519Private, domain.X25519Public, error) {
	priv, err := newScalar()
	if err != nil {
		return domain.X25519Private{}, domain.X25519Public{}, err
	}
	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, (*[32]byte)(&priv))
	return priv, domain.X25519Public(pub), nil
}

// DH computes the shared secret between priv and pub. Public keys on the
// curve's small subgroup are rejected rather than yielding an all-zero
// secret.
func DH(priv domain.X25519Private, pub domain.X25519Public) ([32]byte, error) {
	if pub.IsZero() {
		return [32]byte{}, fmt.Errorf("%w: zero X25519 public key", domain.ErrMalformed)
	}
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: low-order X25519 public key", domain.ErrMalformed)
	}
	return [32]byte(secret), nil
}

// GenerateEd25519 returns a fresh signing key pair. The key is derived
// from a CSRNG seed so randomness failures surface as the same tagged
// error as the rest of the key material.
func GenerateEd25519() (domain.Ed25519Private, domain.Ed25519Public, error) {
	seed := make([]byte, ed25519.SeedSize)
	if err := ReadRandom(seed); err != nil {
		return domain.Ed25519Private{}, domain.Ed25519Public{}, err
	}
	sk := ed25519.NewKeyFromSeed(seed)
	Wipe(seed)

	priv := domain.MustEd25519Private(sk)
	pub := domain.MustEd25519Public(sk.Public().(ed25519.PublicKey))
	return priv, pub, nil
}

// SignEd25519 signs msg under priv.
func SignEd25519(priv domain.Ed25519Private, msg []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(priv.Slice()), msg)
}

// VerifyEd25519 reports whether sig is a valid signature of msg under pub.
func VerifyEd25519(pub domain.Ed25519Public, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub.Slice()), msg, sig)
}
