// Package relay provides the HTTP client for the relay/directory server.
//
// The directory holds published prekey bundles and hands out one one-time
// prekey per fetch, deleting it so two initiators can never receive the
// same one. The message endpoints move opaque envelope bytes; the relay
// sees only ciphertext and public material.
package relay
