package app

import (
	"net/http"

	"quietwire/internal/domain"
	"quietwire/internal/relay"
	identitysvc "quietwire/internal/services/identity"
	messagesvc "quietwire/internal/services/message"
	prekeysvc "quietwire/internal/services/prekey"
	sessionsvc "quietwire/internal/services/session"
	"quietwire/internal/session"
	"quietwire/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Identity domain.IdentityService
	Prekeys  domain.PrekeyService
	Sessions domain.SessionService
	Messages domain.MessageService
	Relay    domain.RelayClient
	Registry *session.Registry
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	var vault domain.Keystore
	if cfg.UseKeyring {
		kv, err := store.NewKeyringVault("quietwire")
		if err != nil {
			return nil, err
		}
		vault = kv
	} else {
		fv, err := store.NewFileVault(cfg.HomeDir, cfg.Passphrase)
		if err != nil {
			return nil, err
		}
		vault = fv
	}

	idStore := store.NewIdentityStore(vault)
	prekeyStore := store.NewPrekeyStore(vault)
	sessionStore := store.NewSessionStore(vault)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	relayClient := relay.NewHTTP(cfg.RelayURL, httpClient)

	registry := session.NewRegistry()

	idSvc := identitysvc.New(idStore)
	prekeySvc := prekeysvc.New(idStore, prekeyStore, cfg.Core)
	sessionSvc := sessionsvc.New(idStore, prekeyStore, sessionStore, relayClient, registry, cfg.Core, cfg.Logger)
	messageSvc := messagesvc.New(sessionSvc, relayClient, cfg.Logger)

	return &Wire{
		Identity: idSvc,
		Prekeys:  prekeySvc,
		Sessions: sessionSvc,
		Messages: messageSvc,
		Relay:    relayClient,
		Registry: registry,
	}, nil
}
