package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"quietwire/internal/config"
	"quietwire/internal/domain"
	"quietwire/internal/protocol/envelope"
	"quietwire/internal/protocol/x3dh"
	registrypkg "quietwire/internal/session"
)

// Service maps peers to registry handles and drives the handshake and
// ratchet operations for each.
type Service struct {
	ids       domain.IdentityStore
	prekeys   domain.PrekeyStore
	snapshots domain.SessionStore
	relay     domain.RelayClient
	registry  *registrypkg.Registry
	cfg       config.Config
	log       *slog.Logger

	mu      sync.Mutex
	handles map[string]registrypkg.Handle
}

// New constructs the session service.
func New(
	ids domain.IdentityStore,
	prekeys domain.PrekeyStore,
	snapshots domain.SessionStore,
	relay domain.RelayClient,
	registry *registrypkg.Registry,
	cfg config.Config,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		ids:       ids,
		prekeys:   prekeys,
		snapshots: snapshots,
		relay:     relay,
		registry:  registry,
		cfg:       cfg,
		log:       log,
		handles:   make(map[string]registrypkg.Handle),
	}
}

var _ domain.SessionService = (*Service)(nil)

// Initiate fetches the peer's bundle from the directory, runs the
// initiator handshake, and registers the fresh session.
func (s *Service) Initiate(ctx context.Context, peer string) error {
	id, ok, err := s.ids.LoadIdentity()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoIdentity
	}

	bundle, err := s.relay.FetchBundle(ctx, peer)
	if err != nil {
		return fmt.Errorf("fetching bundle for %q: %w", peer, err)
	}
	st, _, err := x3dh.Initiate(id, bundle, s.cfg)
	if err != nil {
		return err
	}

	h := s.registry.Register(st)
	s.mu.Lock()
	s.handles[peer] = h
	s.mu.Unlock()

	if err := s.persist(peer, h); err != nil {
		return err
	}
	s.log.Info("session initiated", "peer", peer, "handle", h.String())
	return nil
}

// Has reports whether a session with peer exists, live or persisted.
func (s *Service) Has(peer string) bool {
	s.mu.Lock()
	_, live := s.handles[peer]
	s.mu.Unlock()
	if live {
		return true
	}
	_, found, err := s.snapshots.LoadSnapshot(peer)
	return err == nil && found
}

// End destroys the session with peer: registry state is zeroized and the
// persisted snapshot deleted.
func (s *Service) End(peer string) error {
	s.mu.Lock()
	h, live := s.handles[peer]
	delete(s.handles, peer)
	s.mu.Unlock()
	if live {
		if err := s.registry.Destroy(h); err != nil && !errors.Is(err, domain.ErrUnknownSession) {
			return err
		}
	}
	return s.snapshots.DeleteSnapshot(peer)
}

// EncryptFor seals plaintext for peer and persists the advanced state.
func (s *Service) EncryptFor(peer string, plaintext []byte) ([]byte, error) {
	h, err := s.handleFor(peer)
	if err != nil {
		return nil, err
	}
	env, err := s.registry.Encrypt(h, plaintext)
	if err != nil {
		return nil, err
	}
	if err := s.persist(peer, h); err != nil {
		return nil, err
	}
	return env.Marshal(), nil
}

// DecryptFrom opens raw envelope bytes from peer. An initial envelope with
// no existing session bootstraps the responder side, consuming the named
// prekeys.
func (s *Service) DecryptFrom(peer string, raw []byte) ([]byte, error) {
	env, err := envelope.Parse(raw)
	if err != nil {
		return nil, err
	}

	h, err := s.handleFor(peer)
	if errors.Is(err, domain.ErrNoSession) && env.Header.Handshake != nil {
		return s.respond(peer, env)
	}
	if err != nil {
		return nil, err
	}

	pt, err := s.registry.Decrypt(h, env)
	if err != nil {
		return nil, err
	}
	if err := s.persist(peer, h); err != nil {
		return nil, err
	}
	return pt, nil
}

// respond bootstraps the responder side from an initial envelope.
func (s *Service) respond(peer string, env *envelope.Envelope) ([]byte, error) {
	hs := env.Header.Handshake

	id, ok, err := s.ids.LoadIdentity()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNoIdentity
	}
	spk, found, err := s.prekeys.LoadSignedPreKey(hs.SignedPreKeyID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: unknown signed prekey %d", domain.ErrHandshakeDecrypt, hs.SignedPreKeyID)
	}

	var opk *domain.OneTimePreKeyPair
	if hs.OneTimePreKeyID != domain.NoOneTimeID {
		pair, found, err := s.prekeys.ConsumeOneTimePreKey(hs.OneTimePreKeyID)
		if err != nil {
			return nil, err
		}
		if !found {
			// Already consumed: the handshake can never be recomputed.
			return nil, fmt.Errorf("%w: one-time prekey %d already consumed", domain.ErrHandshakeDecrypt, hs.OneTimePreKeyID)
		}
		opk = &pair
	}

	st, pt, err := x3dh.Respond(id, spk, opk, env, s.cfg)
	if err != nil {
		return nil, err
	}

	h := s.registry.Register(st)
	s.mu.Lock()
	s.handles[peer] = h
	s.mu.Unlock()
	if err := s.persist(peer, h); err != nil {
		return nil, err
	}
	s.log.Info("session accepted", "peer", peer, "handle", h.String())
	return pt, nil
}

// handleFor returns the live handle for peer, restoring a persisted
// snapshot when the process has none in memory.
func (s *Service) handleFor(peer string) (registrypkg.Handle, error) {
	s.mu.Lock()
	h, live := s.handles[peer]
	s.mu.Unlock()
	if live {
		return h, nil
	}

	raw, found, err := s.snapshots.LoadSnapshot(peer)
	if err != nil {
		return registrypkg.Handle{}, err
	}
	if !found {
		return registrypkg.Handle{}, domain.ErrNoSession
	}
	h, err = s.registry.Deserialize(raw)
	if err != nil {
		return registrypkg.Handle{}, err
	}
	s.mu.Lock()
	s.handles[peer] = h
	s.mu.Unlock()
	return h, nil
}

// persist snapshots the session for peer through the keystore.
func (s *Service) persist(peer string, h registrypkg.Handle) error {
	snap, err := s.registry.Serialize(h)
	if err != nil {
		return err
	}
	return s.snapshots.SaveSnapshot(peer, snap)
}
