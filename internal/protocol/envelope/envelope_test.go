package envelope_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"quietwire/internal/domain"
	"quietwire/internal/protocol/envelope"
)

func regularEnvelope() *envelope.Envelope {
	env := &envelope.Envelope{
		Header: envelope.Header{
			DHPub: domain.X25519Public{0xAA, 0x01},
			PN:    7,
			N:     42,
		},
		Ciphertext: []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
	for i := range env.Tag {
		env.Tag[i] = byte(i)
	}
	return env
}

func initialEnvelope() *envelope.Envelope {
	env := regularEnvelope()
	env.Header.Handshake = &envelope.Handshake{
		IdentityKey:     domain.X25519Public{0xBB},
		EphemeralKey:    domain.X25519Public{0xCC},
		SignedPreKeyID:  3,
		OneTimePreKeyID: domain.NoOneTimeID,
	}
	return env
}

func TestMarshalParse_Regular(t *testing.T) {
	env := regularEnvelope()
	got, err := envelope.Parse(env.Marshal())
	require.NoError(t, err)
	require.Equal(t, env.Header.DHPub, got.Header.DHPub)
	require.Equal(t, env.Header.PN, got.Header.PN)
	require.Equal(t, env.Header.N, got.Header.N)
	require.Nil(t, got.Header.Handshake)
	require.Equal(t, env.Ciphertext, got.Ciphertext)
	require.Equal(t, env.Tag, got.Tag)
}

func TestMarshalParse_Initial(t *testing.T) {
	env := initialEnvelope()
	got, err := envelope.Parse(env.Marshal())
	require.NoError(t, err)
	require.NotNil(t, got.Header.Handshake)
	require.Equal(t, *env.Header.Handshake, *got.Header.Handshake)
	require.Equal(t, env.Ciphertext, got.Ciphertext)
}

func TestParse_UnsupportedVersion(t *testing.T) {
	raw := regularEnvelope().Marshal()
	raw[0] = 2
	_, err := envelope.Parse(raw)
	require.ErrorIs(t, err, domain.ErrUnsupportedVersion)
}

func TestParse_ReservedFlagBits(t *testing.T) {
	raw := regularEnvelope().Marshal()
	raw[1] |= 0x80
	_, err := envelope.Parse(raw)
	require.ErrorIs(t, err, domain.ErrMalformed)
}

func TestParse_Truncated(t *testing.T) {
	raw := regularEnvelope().Marshal()
	for _, n := range []int{0, 1, 3, len(raw) - 1} {
		_, err := envelope.Parse(raw[:n])
		require.Error(t, err, "length %d", n)
	}
}

func TestParse_BadHeaderLength(t *testing.T) {
	raw := regularEnvelope().Marshal()
	raw[2], raw[3] = 0xFF, 0x00
	_, err := envelope.Parse(raw)
	require.ErrorIs(t, err, domain.ErrMalformed)
}

func TestParse_CipherLengthMismatch(t *testing.T) {
	raw := regularEnvelope().Marshal()
	// Grow the declared ciphertext length past the actual bytes.
	raw[44]++
	_, err := envelope.Parse(raw)
	require.ErrorIs(t, err, domain.ErrMalformed)
}

func TestAssociatedData_CoversHeader(t *testing.T) {
	env := regularEnvelope()
	var secret [32]byte
	ad1 := env.Header.AssociatedData(secret)

	env.Header.N++
	ad2 := env.Header.AssociatedData(secret)
	require.NotEqual(t, ad1, ad2)

	secret[0] = 1
	ad3 := env.Header.AssociatedData(secret)
	require.NotEqual(t, ad2, ad3)
}
