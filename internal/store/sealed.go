package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"quietwire/internal/crypto"
)

// sealedFormat versions the at-rest blob layout.
const sealedFormat = 1

// Current scrypt cost choices for newly written blobs. Old blobs carry
// their own parameters, so these can be raised without a migration.
const (
	scryptLogN = 15
	scryptR    = 8
	scryptP    = 1
)

const vaultSaltSize = 16

// errWrongPassphrase covers both a bad passphrase and a modified or
// corrupted blob; the AEAD cannot tell them apart.
var errWrongPassphrase = errors.New("wrong passphrase or corrupted keystore entry")

// kdfParams records the scrypt cost a blob was written under.
type kdfParams struct {
	LogN int `json:"log_n"`
	R    int `json:"r"`
	P    int `json:"p"`
}

// sealedBlob is the on-disk envelope around every vault entry.
type sealedBlob struct {
	Format int       `json:"format"`
	KDF    kdfParams `json:"kdf"`
	Salt   []byte    `json:"salt"`
	Nonce  []byte    `json:"nonce"`
	Cipher []byte    `json:"cipher"`
}

// deriveVaultKey stretches the passphrase into a ChaCha20-Poly1305 key.
func deriveVaultKey(passphrase string, salt []byte, p kdfParams) ([]byte, error) {
	if p.LogN <= 0 || p.LogN > 30 || p.R <= 0 || p.P <= 0 {
		return nil, fmt.Errorf("implausible scrypt parameters %+v", p)
	}
	return scrypt.Key([]byte(passphrase), salt, 1<<p.LogN, p.R, p.P, chacha20poly1305.KeySize)
}

// sealBlob encrypts raw under the passphrase. The label rides along as
// associated data, so a blob pasted under a different label refuses to
// open.
func sealBlob(passphrase, label string, raw []byte) ([]byte, error) {
	params := kdfParams{LogN: scryptLogN, R: scryptR, P: scryptP}

	salt := make([]byte, vaultSaltSize)
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if err := crypto.ReadRandom(salt); err != nil {
		return nil, err
	}
	if err := crypto.ReadRandom(nonce); err != nil {
		return nil, err
	}

	key, err := deriveVaultKey(passphrase, salt, params)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	crypto.Wipe(key)
	if err != nil {
		return nil, err
	}

	return json.Marshal(sealedBlob{
		Format: sealedFormat,
		KDF:    params,
		Salt:   salt,
		Nonce:  nonce,
		Cipher: aead.Seal(nil, nonce, raw, []byte(label)),
	})
}

// openBlob reverses sealBlob for the same passphrase and label.
func openBlob(passphrase, label string, blob []byte) ([]byte, error) {
	var sb sealedBlob
	if err := json.Unmarshal(blob, &sb); err != nil {
		return nil, err
	}
	if sb.Format != sealedFormat {
		return nil, fmt.Errorf("unsupported keystore blob format %d", sb.Format)
	}
	if len(sb.Nonce) != chacha20poly1305.NonceSize {
		return nil, errWrongPassphrase
	}

	key, err := deriveVaultKey(passphrase, sb.Salt, sb.KDF)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	crypto.Wipe(key)
	if err != nil {
		return nil, err
	}

	raw, err := aead.Open(nil, sb.Nonce, sb.Cipher, []byte(label))
	if err != nil {
		return nil, errWrongPassphrase
	}
	return raw, nil
}
