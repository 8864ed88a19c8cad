// Command relay is the reference relay/directory server.
//
// It stores published prekey bundles, hands out one one-time prekey per
// bundle fetch (deleting it so no two initiators receive the same one),
// and queues opaque envelopes per user. It never sees plaintext.
package main
