package domain

import "context"

// Keystore is the at-rest storage contract: opaque labelled blobs backed by
// platform-secure storage. Implementations encrypt where the platform does
// not.
type Keystore interface {
	Store(label string, data []byte) error
	Load(label string) ([]byte, bool, error)
	Delete(label string) error
}

// IdentityStore persists the local identity.
type IdentityStore interface {
	SaveIdentity(id Identity) error
	LoadIdentity() (Identity, bool, error)
	DeleteIdentity() error
}

// PrekeyStore keeps signed and one-time prekey pairs locally. One-time
// pairs are deleted on consumption and can never be handed out twice.
type PrekeyStore interface {
	SaveSignedPreKey(p SignedPreKeyPair) error
	LoadSignedPreKey(id uint32) (SignedPreKeyPair, bool, error)
	CurrentSignedPreKey() (SignedPreKeyPair, bool, error)

	SaveOneTimePreKeys(pairs []OneTimePreKeyPair) error
	ConsumeOneTimePreKey(id uint32) (OneTimePreKeyPair, bool, error)
	ListOneTimePublics() ([]OneTimePreKey, error)
}

// SessionStore persists serialized session snapshots keyed by peer.
type SessionStore interface {
	SaveSnapshot(peer string, snapshot []byte) error
	LoadSnapshot(peer string) ([]byte, bool, error)
	DeleteSnapshot(peer string) error
}

// RelayClient is the transport to the relay/directory server. The core
// trusts it only for liveness; the SPK signature is the sole integrity
// check on fetched bundles.
type RelayClient interface {
	PublishBundle(ctx context.Context, deviceID string, b PreKeyBundle, oneTime []OneTimePreKey) error
	FetchBundle(ctx context.Context, userID string) (PreKeyBundle, error)
	Send(ctx context.Context, msg RelayMessage) error
	Fetch(ctx context.Context, userID string, limit int) ([]RelayMessage, error)
	Ack(ctx context.Context, userID string, count int) error
}

// IdentityService manages the local identity.
type IdentityService interface {
	Generate() (Identity, string, error)
	Load() (Identity, bool, error)
	Fingerprint() (string, error)
}

// PrekeyService provisions prekey material and assembles the public bundle.
type PrekeyService interface {
	Provision(oneTimeCount int) (SignedPreKey, []OneTimePreKey, error)
	Bundle() (PreKeyBundle, []OneTimePreKey, error)
}

// SessionService establishes sessions with peers and runs the per-peer
// message engine, owning the mapping from peer to registry handle.
type SessionService interface {
	Initiate(ctx context.Context, peer string) error
	Has(peer string) bool
	End(peer string) error

	// EncryptFor seals plaintext for peer, returning wire envelope bytes.
	EncryptFor(peer string, plaintext []byte) ([]byte, error)
	// DecryptFrom opens wire envelope bytes from peer, bootstrapping a
	// responder session when the envelope carries handshake parameters.
	DecryptFrom(peer string, raw []byte) ([]byte, error)
}

// MessageService encrypts, sends, fetches and decrypts messages.
type MessageService interface {
	Send(ctx context.Context, from, to string, plaintext []byte) error
	Recv(ctx context.Context, me string, limit int) ([]DecryptedMessage, error)
}
