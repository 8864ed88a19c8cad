package domain

// RelayMessage is what the relay queues and hands back: routing metadata
// plus the opaque binary envelope. The relay never sees plaintext or parses
// the payload.
type RelayMessage struct {
	ID        string `json:"id,omitempty"` // assigned by the relay
	From      string `json:"from"`
	To        string `json:"to"`
	Payload   []byte `json:"payload"` // serialized envelope bytes
	Timestamp int64  `json:"timestamp"`
}

// DecryptedMessage is what MessageService.Recv returns.
type DecryptedMessage struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Plaintext []byte `json:"plaintext"`
	Timestamp int64  `json:"timestamp"`
}
