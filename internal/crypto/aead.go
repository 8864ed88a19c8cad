package crypto

import (
	"quietwire/internal/domain"
)

// AEADTagSize is the authentication tag length for both supported
// constructions.
const AEADTagSize = 16

// AEADNonceSize is the nonce length for both supported constructions.
const AEADNonceSize = 12

// SealAEAD encrypts plaintext under key/nonce binding ad, returning
// ciphertext with the 16-byte tag appended.
func SealAEAD(key [32]byte, nonce [12]byte, plaintext, ad []byte) []byte {
	aead := newAEAD(key)
	return aead.Seal(nil, nonce[:], plaintext, ad)
}

// OpenAEAD decrypts sealed (ciphertext ‖ tag) under key/nonce binding ad.
// Failure is reported as domain.ErrBadTag.
func OpenAEAD(key [32]byte, nonce [12]byte, sealed, ad []byte) ([]byte, error) {
	aead := newAEAD(key)
	pt, err := aead.Open(nil, nonce[:], sealed, ad)
	if err != nil {
		return nil, domain.ErrBadTag
	}
	return pt, nil
}
