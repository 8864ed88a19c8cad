package message

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quietwire/internal/domain"
)

// Service moves encrypted envelopes between the session engine and the
// relay.
//
// High-level flow:
//   - Send: seal through the session service (the first envelopes of a
//     fresh session carry the handshake parameters automatically), then
//     post the opaque bytes to the relay.
//   - Recv: fetch queued envelopes in order, decrypt each through the
//     session service (bootstrapping a responder session on an initial
//     envelope), and ack only the prefix that was processed successfully.
type Service struct {
	sessions domain.SessionService
	relay    domain.RelayClient
	log      *slog.Logger
}

// New constructs the message service.
func New(sessions domain.SessionService, relay domain.RelayClient, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{sessions: sessions, relay: relay, log: log}
}

var _ domain.MessageService = (*Service)(nil)

// Send encrypts plaintext for to and posts it via the relay.
func (s *Service) Send(ctx context.Context, from, to string, plaintext []byte) error {
	payload, err := s.sessions.EncryptFor(to, plaintext)
	if err != nil {
		return err
	}
	msg := domain.RelayMessage{
		From:      from,
		To:        to,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	}
	if err := s.relay.Send(ctx, msg); err != nil {
		return fmt.Errorf("posting message to %q: %w", to, err)
	}
	return nil
}

// Recv fetches pending envelopes and decrypts them in order.
//
// Processing stops at the first failure; only the successfully handled
// prefix is acknowledged, so unprocessed envelopes stay queued.
func (s *Service) Recv(ctx context.Context, me string, limit int) ([]domain.DecryptedMessage, error) {
	msgs, err := s.relay.Fetch(ctx, me, limit)
	if err != nil {
		return nil, err
	}

	decrypted := make([]domain.DecryptedMessage, 0, len(msgs))
	processed := 0
	for _, msg := range msgs {
		pt, err := s.sessions.DecryptFrom(msg.From, msg.Payload)
		if err != nil {
			s.log.Warn("decrypt failed, leaving remainder queued",
				"from", msg.From, "id", msg.ID, "err", err)
			break
		}
		decrypted = append(decrypted, domain.DecryptedMessage{
			From:      msg.From,
			To:        msg.To,
			Plaintext: pt,
			Timestamp: msg.Timestamp,
		})
		processed++
	}

	if processed > 0 {
		if err := s.relay.Ack(ctx, me, processed); err != nil {
			return decrypted, fmt.Errorf("ack %d messages: %w", processed, err)
		}
	}
	return decrypted, nil
}
