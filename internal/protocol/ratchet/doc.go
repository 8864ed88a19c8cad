// Package ratchet implements the Double Ratchet message engine following
// Signal's design.
//
// The engine maintains a root key and two message chains (send and
// receive). Each message advances a KDF chain so that message keys are
// forward secure. When a party presents a new DH ratchet public key, both
// sides derive new chain keys from a new root via Diffie–Hellman,
// providing post-compromise healing.
//
// Message keys for messages that arrive out of order are stashed in a
// bounded skipped-key store and consumed exactly once. Decryption is
// all-or-nothing: a failed decrypt leaves the state bitwise unchanged.
//
// Concurrency: State is NOT safe for concurrent use. The session registry
// serialises access per session.
package ratchet
