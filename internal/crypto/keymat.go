package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"quietwire/internal/domain"
)

// GenerateIdentity produces a fresh device identity: an X25519 pair for
// Diffie–Hellman and an Ed25519 pair for signatures.
func GenerateIdentity() (domain.Identity, error) {
	xpriv, xpub, err := GenerateX25519()
	if err != nil {
		return domain.Identity{}, err
	}
	edpriv, edpub, err := GenerateEd25519()
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{
		XPriv:  xpriv,
		XPub:   xpub,
		EdPriv: edpriv,
		EdPub:  edpub,
	}, nil
}

// GenerateSignedPreKey produces a signed prekey pair under the identity's
// signing key. The signature covers exactly the SPK public value.
func GenerateSignedPreKey(id domain.Identity, kid uint32) (domain.SignedPreKeyPair, error) {
	priv, pub, err := GenerateX25519()
	if err != nil {
		return domain.SignedPreKeyPair{}, err
	}
	sig := SignEd25519(id.EdPriv, pub.Slice())
	return domain.SignedPreKeyPair{
		SignedPreKey: domain.SignedPreKey{
			ID:        kid,
			Pub:       pub,
			Sig:       sig,
			CreatedAt: time.Now().Unix(),
		},
		Priv: priv,
	}, nil
}

// GenerateOneTimePreKeys produces one pair per id. Id assignment policy
// belongs to the caller; ids must be distinct within a device's pool.
func GenerateOneTimePreKeys(ids []uint32) ([]domain.OneTimePreKeyPair, error) {
	pairs := make([]domain.OneTimePreKeyPair, 0, len(ids))
	for _, kid := range ids {
		priv, pub, err := GenerateX25519()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{
			OneTimePreKey: domain.OneTimePreKey{ID: kid, Pub: pub},
			Priv:          priv,
		})
	}
	return pairs, nil
}

// fingerprintBytes is how much of the key digest the fingerprint shows:
// 12 bytes gives six groups of four hex digits.
const fingerprintBytes = 12

// Fingerprint renders the display form of a public key: a truncated
// SHA-256 digest as colon-separated groups of four hex digits, e.g.
// "9f86:d081:884c:7d65:9a2f:eaa0".
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	digits := hex.EncodeToString(sum[:fingerprintBytes])

	groups := make([]string, 0, fingerprintBytes/2)
	for i := 0; i < len(digits); i += 4 {
		groups = append(groups, digits[i:i+4])
	}
	return strings.Join(groups, ":")
}
