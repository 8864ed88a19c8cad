package domain

// Identity holds a device's long-term X25519 key pair and the Ed25519
// signing pair bound to it. Created once per device; destroyed only on
// explicit wipe. The X25519 public key is the fingerprint shown to users.
type Identity struct {
	XPriv  X25519Private  `json:"xpriv"`
	XPub   X25519Public   `json:"xpub"`
	EdPriv Ed25519Private `json:"edpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
}
