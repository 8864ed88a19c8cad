package session

import (
	"sync"

	"github.com/google/uuid"

	"quietwire/internal/domain"
	"quietwire/internal/protocol/envelope"
	"quietwire/internal/protocol/ratchet"
)

// Handle is the opaque 16-byte identifier callers hold instead of state.
type Handle [16]byte

// String renders the handle in canonical UUID form.
func (h Handle) String() string { return uuid.UUID(h).String() }

// ParseHandle parses the canonical UUID form back into a Handle.
func ParseHandle(s string) (Handle, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Handle{}, domain.ErrUnknownSession
	}
	return Handle(u), nil
}

type entry struct {
	mu    sync.Mutex
	state *ratchet.State
}

// Registry is the process-wide owner of session state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[Handle]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Handle]*entry)}
}

// Register takes ownership of state and returns its handle.
func (r *Registry) Register(st *ratchet.State) Handle {
	h := Handle(uuid.New())
	r.mu.Lock()
	r.sessions[h] = &entry{state: st}
	r.mu.Unlock()
	sessionsLive.Inc()
	return h
}

// lookup fetches the entry without holding the registry lock afterwards.
func (r *Registry) lookup(h Handle) (*entry, bool) {
	r.mu.RLock()
	e, ok := r.sessions[h]
	r.mu.RUnlock()
	return e, ok
}

// WithMut runs fn with exclusive access to the session's state. The state
// must not escape fn.
func (r *Registry) WithMut(h Handle, fn func(*ratchet.State) error) error {
	e, ok := r.lookup(h)
	if !ok {
		return domain.ErrUnknownSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil { // destroyed while we waited on the entry lock
		return domain.ErrUnknownSession
	}
	return fn(e.state)
}

// Encrypt seals plaintext under the session's sending chain.
func (r *Registry) Encrypt(h Handle, plaintext []byte) (*envelope.Envelope, error) {
	var env *envelope.Envelope
	err := r.WithMut(h, func(st *ratchet.State) error {
		var err error
		env, err = st.Encrypt(plaintext)
		return err
	})
	if err != nil {
		encryptFailures.Inc()
		return nil, err
	}
	encryptTotal.Inc()
	return env, nil
}

// Decrypt opens an envelope against the session's receiving state.
func (r *Registry) Decrypt(h Handle, env *envelope.Envelope) ([]byte, error) {
	var pt []byte
	err := r.WithMut(h, func(st *ratchet.State) error {
		var err error
		pt, err = st.Decrypt(env)
		return err
	})
	if err != nil {
		decryptFailures.Inc()
		return nil, err
	}
	decryptTotal.Inc()
	return pt, nil
}

// Serialize snapshots the session for caller-controlled persistence.
func (r *Registry) Serialize(h Handle) ([]byte, error) {
	var out []byte
	err := r.WithMut(h, func(st *ratchet.State) error {
		var err error
		out, err = st.Snapshot()
		return err
	})
	return out, err
}

// Deserialize restores a snapshot into a fresh handle. Consistency
// failures surface as domain.ErrStateCorrupt and nothing is registered.
func (r *Registry) Deserialize(raw []byte) (Handle, error) {
	st, err := ratchet.LoadSnapshot(raw)
	if err != nil {
		return Handle{}, err
	}
	return r.Register(st), nil
}

// Destroy zeroizes the session's key material and removes the handle.
func (r *Registry) Destroy(h Handle) error {
	r.mu.Lock()
	e, ok := r.sessions[h]
	if ok {
		delete(r.sessions, h)
	}
	r.mu.Unlock()
	if !ok {
		return domain.ErrUnknownSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != nil {
		e.state.Wipe()
		e.state = nil
	}
	sessionsLive.Dec()
	return nil
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
