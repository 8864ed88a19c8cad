// Package envelope implements the binary wire format carried between peers.
//
// Layout (little-endian multi-byte fields):
//
//	version      u8
//	flags        u8   (bit 0 = initial handshake message, bits 1..7 reserved)
//	header_len   u16
//	header       variable
//	cipher_len   u32
//	ciphertext   variable
//	tag          16 bytes
//
// A regular header is DH ratchet public (32) ‖ PN (u32) ‖ N (u32). An
// initial header prepends the initiator identity public (32), the ephemeral
// public (32), the consumed signed-prekey id (u32) and the consumed
// one-time-prekey id (u32, 0xFFFFFFFF when none).
//
// The version, flags and header bytes are bound into the AEAD associated
// data together with a per-message context secret, so any bit flip in them
// invalidates the tag. header_len is not part of the associated data; Parse
// rejects any value other than the fixed header size for the flags.
package envelope
