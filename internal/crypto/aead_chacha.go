//go:build chacha20poly1305

package crypto

import (
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEADName identifies the construction compiled into this binary. The
// choice is fixed at build time and never negotiated on the wire.
const AEADName = "chacha20poly1305"

func newAEAD(key [32]byte) cipher.AEAD {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		panic(err) // key size is fixed at 32 bytes
	}
	return aead
}
