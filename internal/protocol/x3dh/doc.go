// Package x3dh implements the asynchronous key agreement that bootstraps a
// Double Ratchet session between two parties, plus assembly and
// verification of the published prekey bundle.
//
// # Overview
//
// X3DH lets an initiator derive a shared 32-byte root key with a responder
// who has published a prekey bundle. The bundle contains:
//   - Identity key (X25519) and its Ed25519 signing key
//   - Signed prekey (X25519) with an Ed25519 signature over its public
//   - Optionally one one-time prekey (X25519), consumed by this handshake
//
// # Flows
//
// Initiator:
//  1. Verify the signed-prekey signature.
//  2. Generate an ephemeral X25519 key pair.
//  3. Compute DH values (IKa·SPKb, EKa·IKb, EKa·SPKb[, EKa·OPKb]).
//  4. HKDF over the 0xFF-prefixed DH transcript to produce the root key
//     and the initial sending chain key.
//  5. Return the ratchet state and the handshake header for the first
//     envelope.
//
// Responder:
//  1. Receive the initial envelope (initiator IK, ephemeral EK, SPK id,
//     optional OPK id).
//  2. Compute the symmetric DH set with the SPK/OPK privates.
//  3. Derive the identical root key; the initiator's sending chain becomes
//     the responder's receiving chain.
//  4. Decrypt the initial ciphertext; discard everything on failure.
//  5. Destroy the consumed one-time prekey private.
//
// # Security notes
//
// Only public material crosses the wire. A one-time prekey, when present,
// mixes a value into the handshake that is deleted after first use, so a
// recorded handshake cannot be replayed against the responder.
package x3dh
