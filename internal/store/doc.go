// Package store implements the at-rest keystore contract and the typed
// stores layered on top of it.
//
// Two Keystore backends are provided: FileVault keeps passphrase-encrypted
// blobs in a directory (scrypt key derivation, ChaCha20-Poly1305 sealing),
// and KeyringVault delegates to the operating system keychain. The typed
// stores (identity, prekeys, session snapshots) serialise domain values as
// JSON into whichever backend they are given.
package store
