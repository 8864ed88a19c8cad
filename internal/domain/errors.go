package domain

import "errors"

// The tagged error set surfaced by the core. Callers match these with
// errors.Is; operations never abort the process and never return dynamic
// error strings as their primary classification.
var (
	// ErrBadSignature is returned when a prekey bundle's Ed25519 signature
	// does not verify against its signing key.
	ErrBadSignature = errors.New("prekey signature verification failed")

	// ErrMalformed is returned when wire fields or key material have the
	// wrong shape (bad lengths, reserved bits set, unparsable headers).
	ErrMalformed = errors.New("malformed wire material")

	// ErrHandshakeDecrypt is returned when the keys derived during a
	// handshake fail to open the initial ciphertext. The derived state must
	// be discarded.
	ErrHandshakeDecrypt = errors.New("handshake initial message decryption failed")

	// ErrUnknownSession is returned for a handle the registry does not own.
	ErrUnknownSession = errors.New("unknown session handle")

	// ErrUnsupportedVersion is returned for an envelope whose leading
	// version byte is not recognised. There is no downgrade path.
	ErrUnsupportedVersion = errors.New("unsupported envelope version")

	// ErrBadTag is returned when AEAD verification fails. Session state is
	// left untouched.
	ErrBadTag = errors.New("message authentication failed")

	// ErrTooManySkipped is returned when a single decrypt would advance the
	// receiving chain past the configured skip bound. State is left
	// untouched; the message is permanently undecryptable.
	ErrTooManySkipped = errors.New("too many skipped messages")

	// ErrStateCorrupt is returned when a deserialised session snapshot
	// fails internal consistency checks. The only safe response is session
	// destruction and a new handshake.
	ErrStateCorrupt = errors.New("session state corrupt")

	// ErrRandomSource is returned when the operating system randomness
	// source fails.
	ErrRandomSource = errors.New("system random source unavailable")

	// ErrIdentityExists is returned when generating over an existing
	// stored identity without an explicit wipe.
	ErrIdentityExists = errors.New("identity already exists")

	// ErrNoIdentity is returned when an operation needs the device identity
	// before one has been generated.
	ErrNoIdentity = errors.New("no identity generated yet")

	// ErrNoSession indicates there is no established session with the peer.
	ErrNoSession = errors.New("no session with peer")
)
