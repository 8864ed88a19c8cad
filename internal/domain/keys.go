package domain

import "fmt"

// ------------- X25519 -------------

// X25519Private is a Curve25519 private scalar (clamped per RFC 7748).
type X25519Private [32]byte

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is all zero bytes.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// MustX25519Private converts b to an X25519Private, panicking on bad length.
func MustX25519Private(b []byte) X25519Private {
	if len(b) != 32 {
		panic(fmt.Errorf("X25519 private: want 32 bytes, got %d", len(b)))
	}
	var out X25519Private
	copy(out[:], b)
	return out
}

// MustX25519Public converts b to an X25519Public, panicking on bad length.
func MustX25519Public(b []byte) X25519Public {
	if len(b) != 32 {
		panic(fmt.Errorf("X25519 public: want 32 bytes, got %d", len(b)))
	}
	var out X25519Public
	copy(out[:], b)
	return out
}

// ------------- Ed25519 -------------

// Ed25519Private is an Ed25519 signing private key (seed ‖ public).
type Ed25519Private [64]byte

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// MustEd25519Private converts b to an Ed25519Private, panicking on bad length.
func MustEd25519Private(b []byte) Ed25519Private {
	if len(b) != 64 {
		panic(fmt.Errorf("Ed25519 private: want 64 bytes, got %d", len(b)))
	}
	var out Ed25519Private
	copy(out[:], b)
	return out
}

// MustEd25519Public converts b to an Ed25519Public, panicking on bad length.
func MustEd25519Public(b []byte) Ed25519Public {
	if len(b) != 32 {
		panic(fmt.Errorf("Ed25519 public: want 32 bytes, got %d", len(b)))
	}
	var out Ed25519Public
	copy(out[:], b)
	return out
}
