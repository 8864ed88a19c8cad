// Package crypto exposes the primitives used by quietwire.
//
// Contents
//
//   - X25519 key pairs and Diffie–Hellman with small-subgroup rejection,
//     Ed25519 seed-based key pairs, signing and verification (keys.go)
//   - Device key material: identity, signed-prekey and one-time-prekey
//     generation, plus display fingerprints (keymat.go)
//   - The KDF steps of the ratchet: root-key derivation, chain advancement
//     and message-key expansion, and the X3DH secret derivation (kdf.go)
//   - AEAD sealing/opening with the construction fixed at build time
//     (aead.go; aead_gcm.go / aead_chacha.go select the cipher)
//   - The OS randomness source and best-effort wiping of sensitive
//     buffers (rand.go)
//
// # Notes
//
// Randomness always comes from the operating system source; a read failure
// surfaces as domain.ErrRandomSource. All secret comparisons go through
// constant-time equality. Callers should treat returned secrets as
// sensitive and rely on Wipe when practical to reduce lifetime in memory.
package crypto
