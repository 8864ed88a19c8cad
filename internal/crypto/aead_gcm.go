//go:build !chacha20poly1305

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
)

// AEADName identifies the construction compiled into this binary. The
// choice is fixed at build time and never negotiated on the wire.
const AEADName = "aes256gcm"

func newAEAD(key [32]byte) cipher.AEAD {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err) // key size is fixed at 32 bytes
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	return aead
}
