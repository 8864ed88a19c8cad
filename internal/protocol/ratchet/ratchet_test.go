package ratchet_test

import (
	"fmt"
	"testing"

	mrand "github.com/ericlagergren/saferand"
	"github.com/stretchr/testify/require"

	"quietwire/internal/config"
	"quietwire/internal/crypto"
	"quietwire/internal/domain"
	"quietwire/internal/protocol/envelope"
	"quietwire/internal/protocol/ratchet"
	"quietwire/internal/protocol/x3dh"
)

// establishPair runs a full handshake and delivers the initial message,
// returning both sides ready for two-way traffic.
func establishPair(t *testing.T) (alice, bob *ratchet.State) {
	t.Helper()
	aID, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	bID, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	spk, err := crypto.GenerateSignedPreKey(bID, 1)
	require.NoError(t, err)
	opks, err := crypto.GenerateOneTimePreKeys([]uint32{1})
	require.NoError(t, err)

	bundle := x3dh.BuildBundle(bID, spk.SignedPreKey, &opks[0].OneTimePreKey)
	alice, _, err = x3dh.Initiate(aID, bundle, config.Default())
	require.NoError(t, err)

	env, err := alice.Encrypt([]byte("bootstrap"))
	require.NoError(t, err)
	bob, pt, err := x3dh.Respond(bID, spk, &opks[0], env, config.Default())
	require.NoError(t, err)
	require.Equal(t, []byte("bootstrap"), pt)
	return alice, bob
}

// send seals plaintext on from and returns the wire-round-tripped envelope,
// exercising the codec on every hop.
func send(t *testing.T, from *ratchet.State, plaintext string) *envelope.Envelope {
	t.Helper()
	env, err := from.Encrypt([]byte(plaintext))
	require.NoError(t, err)
	parsed, err := envelope.Parse(env.Marshal())
	require.NoError(t, err)
	return parsed
}

func TestTwoMessageEcho(t *testing.T) {
	alice, bob := establishPair(t)

	// Alice's second message rides the same sending chain.
	env1 := send(t, alice, "hello")
	pt, err := bob.Decrypt(env1)
	require.NoError(t, err)
	require.Equal(t, "hello", string(pt))

	// Bob's first send performs his DH ratchet step.
	reply := send(t, bob, "hi")
	require.EqualValues(t, 0, reply.Header.PN)
	require.EqualValues(t, 0, reply.Header.N)
	pt, err = alice.Decrypt(reply)
	require.NoError(t, err)
	require.Equal(t, "hi", string(pt))

	// Alice ratchets in turn.
	env2 := send(t, alice, ".")
	pt, err = bob.Decrypt(env2)
	require.NoError(t, err)
	require.Equal(t, ".", string(pt))

	require.EqualValues(t, 1, alice.Ns) // one send since her ratchet
	require.EqualValues(t, 1, bob.Nr)
}

func TestInOrderSequence(t *testing.T) {
	alice, bob := establishPair(t)

	for i := 0; i < 20; i++ {
		msg := fmt.Sprintf("a->b %d", i)
		pt, err := bob.Decrypt(send(t, alice, msg))
		require.NoError(t, err)
		require.Equal(t, msg, string(pt))

		msg = fmt.Sprintf("b->a %d", i)
		pt, err = alice.Decrypt(send(t, bob, msg))
		require.NoError(t, err)
		require.Equal(t, msg, string(pt))
	}
}

func TestLostMiddleMessage(t *testing.T) {
	alice, bob := establishPair(t)

	m0 := send(t, alice, "m0")
	m1 := send(t, alice, "m1")
	m2 := send(t, alice, "m2")

	pt, err := bob.Decrypt(m0)
	require.NoError(t, err)
	require.Equal(t, "m0", string(pt))

	// m1 is delayed; m2 arrives first and stashes m1's key.
	pt, err = bob.Decrypt(m2)
	require.NoError(t, err)
	require.Equal(t, "m2", string(pt))
	require.Equal(t, 1, bob.SkippedCount())

	pt, err = bob.Decrypt(m1)
	require.NoError(t, err)
	require.Equal(t, "m1", string(pt))
	require.Equal(t, 0, bob.SkippedCount())

	// A skipped key is single-use: the same envelope can never decrypt twice.
	_, err = bob.Decrypt(m1)
	require.ErrorIs(t, err, domain.ErrBadTag)
}

func TestOutOfOrderPermutation(t *testing.T) {
	alice, bob := establishPair(t)

	const n = 40
	envs := make([]*envelope.Envelope, n)
	for i := range envs {
		envs[i] = send(t, alice, fmt.Sprintf("msg %d", i))
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	mrand.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

	for _, idx := range order {
		pt, err := bob.Decrypt(envs[idx])
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("msg %d", idx), string(pt))
	}
	require.Equal(t, 0, bob.SkippedCount())
}

func TestCrossRatchetOrdering(t *testing.T) {
	alice, bob := establishPair(t)

	// A->B: m0, m1 on the handshake chain.
	m0 := send(t, alice, "m0")
	m1 := send(t, alice, "m1")
	_, err := bob.Decrypt(m0)
	require.NoError(t, err)
	_, err = bob.Decrypt(m1)
	require.NoError(t, err)

	// B->A: r0 rides Bob's fresh ratchet chain.
	r0 := send(t, bob, "r0")
	_, err = alice.Decrypt(r0)
	require.NoError(t, err)

	// A->B: m2 triggers Alice's ratchet; her previous chain carried
	// bootstrap+m0+m1.
	m2 := send(t, alice, "m2")
	require.EqualValues(t, 3, m2.Header.PN)
	_, err = bob.Decrypt(m2)
	require.NoError(t, err)

	// B->A: r1 triggers Bob's second ratchet; his previous chain was r0 alone.
	r1 := send(t, bob, "r1")
	require.EqualValues(t, 1, r1.Header.PN)
	pt, err := alice.Decrypt(r1)
	require.NoError(t, err)
	require.Equal(t, "r1", string(pt))
}

func TestTamperDetectionLeavesStateUntouched(t *testing.T) {
	alice, bob := establishPair(t)

	env := send(t, alice, "payload")

	before, err := bob.Snapshot()
	require.NoError(t, err)

	raw := env.Marshal()
	raw[len(raw)-1] ^= 0x01 // last byte of the tag
	tampered, err := envelope.Parse(raw)
	require.NoError(t, err)

	_, err = bob.Decrypt(tampered)
	require.ErrorIs(t, err, domain.ErrBadTag)

	after, err := bob.Snapshot()
	require.NoError(t, err)
	require.Equal(t, before, after, "state mutated by failed decrypt")

	// Header tampering fails the same way.
	for _, mutate := range []func(*envelope.Envelope){
		func(e *envelope.Envelope) { e.Header.DHPub[3] ^= 0x01 },
		func(e *envelope.Envelope) { e.Header.PN ^= 1 },
		func(e *envelope.Envelope) { e.Header.N ^= 1 },
		func(e *envelope.Envelope) { e.Ciphertext[0] ^= 0x01 },
	} {
		env2, err := envelope.Parse(env.Marshal())
		require.NoError(t, err)
		mutate(env2)
		_, err = bob.Decrypt(env2)
		require.Error(t, err)
	}

	// The untampered envelope still decrypts.
	pt, err := bob.Decrypt(env)
	require.NoError(t, err)
	require.Equal(t, "payload", string(pt))
}

func TestSkipBoundEnforced(t *testing.T) {
	cfgSmall := config.Default()
	cfgSmall.MaxSkipPerChain = 8

	alice, bob := establishPair(t)
	alice.ApplyLimits(cfgSmall)
	bob.ApplyLimits(cfgSmall)

	var last *envelope.Envelope
	for i := 0; i < 10; i++ {
		last = send(t, alice, fmt.Sprintf("m%d", i))
	}

	before, err := bob.Snapshot()
	require.NoError(t, err)

	// Receiving only message 9 would advance the chain 10 steps; the bound
	// allows 8.
	_, err = bob.Decrypt(last)
	require.ErrorIs(t, err, domain.ErrTooManySkipped)

	after, err := bob.Snapshot()
	require.NoError(t, err)
	require.Equal(t, before, after, "state mutated by rejected decrypt")
}

func TestSkippedStoreEvictsOldest(t *testing.T) {
	cfgSmall := config.Default()
	cfgSmall.MaxSkipPerChain = 4

	alice, bob := establishPair(t)
	alice.ApplyLimits(cfgSmall)
	bob.ApplyLimits(cfgSmall)

	envs := make([]*envelope.Envelope, 8)
	for i := range envs {
		envs[i] = send(t, alice, fmt.Sprintf("m%d", i))
	}

	// Deliver m3 then m7: each advance stays within the bound, but the six
	// stashed keys (m0..m2, m4..m6) exceed the four-entry budget, so the
	// two oldest are dropped.
	_, err := bob.Decrypt(envs[3])
	require.NoError(t, err)
	require.Equal(t, 3, bob.SkippedCount())
	_, err = bob.Decrypt(envs[7])
	require.NoError(t, err)
	require.Equal(t, 4, bob.SkippedCount())

	// m0 and m1 fell off the end: permanently undecryptable.
	_, err = bob.Decrypt(envs[0])
	require.ErrorIs(t, err, domain.ErrBadTag)
	_, err = bob.Decrypt(envs[1])
	require.ErrorIs(t, err, domain.ErrBadTag)

	// The survivors drain normally.
	for _, i := range []int{2, 4, 5, 6} {
		pt, err := bob.Decrypt(envs[i])
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("m%d", i), string(pt))
	}
	require.Equal(t, 0, bob.SkippedCount())
}

func TestForwardSecrecy(t *testing.T) {
	alice, bob := establishPair(t)

	envs := make([]*envelope.Envelope, 5)
	for i := range envs {
		envs[i] = send(t, alice, fmt.Sprintf("secret %d", i))
	}
	for _, env := range envs {
		_, err := bob.Decrypt(env)
		require.NoError(t, err)
	}

	// Dump Bob's state after delivery: old ciphertexts must not decrypt
	// with it — their keys are gone and the chain cannot run backwards.
	dump, err := bob.Snapshot()
	require.NoError(t, err)
	compromised, err := ratchet.LoadSnapshot(dump)
	require.NoError(t, err)

	for _, env := range envs {
		_, err := compromised.Decrypt(env)
		require.ErrorIs(t, err, domain.ErrBadTag)
	}
}

func TestPostCompromiseHealing(t *testing.T) {
	alice, bob := establishPair(t)

	// Attacker snapshots Bob's entire state.
	dump, err := bob.Snapshot()
	require.NoError(t, err)
	attacker, err := ratchet.LoadSnapshot(dump)
	require.NoError(t, err)

	// The attacker can read traffic sent under the compromised chain.
	leaked := send(t, alice, "leaked")
	_, err = attacker.Decrypt(leaked)
	require.NoError(t, err)
	_, err = bob.Decrypt(send(t, alice, "also leaked"))
	require.NoError(t, err)

	// One full ratchet round: Bob sends with a fresh DH pair, Alice
	// replies with hers.
	_, err = alice.Decrypt(send(t, bob, "fresh entropy"))
	require.NoError(t, err)
	healed := send(t, alice, "post-heal secret")

	// Bob reads it; the attacker's stale state cannot.
	pt, err := bob.Decrypt(healed)
	require.NoError(t, err)
	require.Equal(t, "post-heal secret", string(pt))
	_, err = attacker.Decrypt(healed)
	require.Error(t, err)
}

func TestNonceUniqueness(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping volume test in short mode")
	}
	alice, bob := establishPair(t)

	// Spans multiple DH ratchet steps; the AEAD nonce is deterministic per
	// (chain, N), so uniqueness comes from message keys never repeating.
	seen := make(map[[32 + 12]byte]struct{})
	record := func(st *ratchet.State, n uint32) {
		ck := append([]byte(nil), st.SendCK...)
		_, mk := crypto.KDFChain(ck)
		key, nonce, _ := crypto.ExpandMessageKey(mk)
		var id [44]byte
		copy(id[:32], key[:])
		copy(id[32:], nonce[:])
		if _, dup := seen[id]; dup {
			t.Fatalf("(key, nonce) pair repeated at n=%d", n)
		}
		seen[id] = struct{}{}
	}

	for round := 0; round < 50; round++ {
		for i := 0; i < 20; i++ {
			record(alice, alice.Ns)
			_, err := bob.Decrypt(send(t, alice, "x"))
			require.NoError(t, err)
		}
		// Flip direction to force DH ratchet steps.
		_, err := alice.Decrypt(send(t, bob, "y"))
		require.NoError(t, err)
	}
	require.Len(t, seen, 50*20)
}

func TestSnapshotRoundTrip(t *testing.T) {
	alice, bob := establishPair(t)

	for i := 0; i < 3; i++ {
		_, err := bob.Decrypt(send(t, alice, "warm up"))
		require.NoError(t, err)
		_, err = alice.Decrypt(send(t, bob, "warm up too"))
		require.NoError(t, err)
	}

	raw, err := bob.Snapshot()
	require.NoError(t, err)
	restored, err := ratchet.LoadSnapshot(raw)
	require.NoError(t, err)

	// The restored state decrypts and encrypts exactly like the original.
	env := send(t, alice, "through the snapshot")
	pt, err := restored.Decrypt(env)
	require.NoError(t, err)
	require.Equal(t, "through the snapshot", string(pt))

	reply := send(t, restored, "and back")
	pt, err = alice.Decrypt(reply)
	require.NoError(t, err)
	require.Equal(t, "and back", string(pt))
}

func TestLoadSnapshot_Corrupt(t *testing.T) {
	_, bob := establishPair(t)

	raw, err := bob.Snapshot()
	require.NoError(t, err)

	_, err = ratchet.LoadSnapshot([]byte("not json"))
	require.ErrorIs(t, err, domain.ErrStateCorrupt)

	// A snapshot whose ratchet key pair does not match is rejected.
	st, err := ratchet.LoadSnapshot(raw)
	require.NoError(t, err)
	st.DHsPub[0] ^= 0x01
	bad, err := st.Snapshot()
	require.NoError(t, err)
	_, err = ratchet.LoadSnapshot(bad)
	require.ErrorIs(t, err, domain.ErrStateCorrupt)
}

func TestDirtyMarkerAdvances(t *testing.T) {
	alice, bob := establishPair(t)

	d0 := alice.Dirty
	env := send(t, alice, "tick")
	require.Greater(t, alice.Dirty, d0)

	d1 := bob.Dirty
	_, err := bob.Decrypt(env)
	require.NoError(t, err)
	require.Greater(t, bob.Dirty, d1)
}
