// Package session orchestrates handshakes and per-peer message state: it
// runs X3DH against fetched bundles, registers ratchet state with the
// process-wide registry, and persists snapshots through the keystore after
// every committed state transition.
package session
