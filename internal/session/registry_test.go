package session_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"quietwire/internal/config"
	"quietwire/internal/crypto"
	"quietwire/internal/domain"
	"quietwire/internal/protocol/ratchet"
	"quietwire/internal/protocol/x3dh"
	"quietwire/internal/session"
)

// establishHandles runs a handshake and registers both sides, returning
// the registry and the two handles.
func establishHandles(t *testing.T) (*session.Registry, session.Handle, session.Handle) {
	t.Helper()
	reg := session.NewRegistry()

	aID, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	bID, err := crypto.GenerateIdentity()
	require.NoError(t, err)
	spk, err := crypto.GenerateSignedPreKey(bID, 1)
	require.NoError(t, err)

	bundle := x3dh.BuildBundle(bID, spk.SignedPreKey, nil)
	aState, _, err := x3dh.Initiate(aID, bundle, config.Default())
	require.NoError(t, err)
	ha := reg.Register(aState)

	env, err := reg.Encrypt(ha, []byte("bootstrap"))
	require.NoError(t, err)
	bState, _, err := x3dh.Respond(bID, spk, nil, env, config.Default())
	require.NoError(t, err)
	hb := reg.Register(bState)

	return reg, ha, hb
}

func TestRegistry_EncryptDecryptThroughHandles(t *testing.T) {
	reg, ha, hb := establishHandles(t)

	env, err := reg.Encrypt(ha, []byte("over the registry"))
	require.NoError(t, err)
	pt, err := reg.Decrypt(hb, env)
	require.NoError(t, err)
	require.Equal(t, "over the registry", string(pt))

	reply, err := reg.Encrypt(hb, []byte("ack"))
	require.NoError(t, err)
	pt, err = reg.Decrypt(ha, reply)
	require.NoError(t, err)
	require.Equal(t, "ack", string(pt))
}

func TestRegistry_UnknownHandle(t *testing.T) {
	reg := session.NewRegistry()
	var h session.Handle
	h[0] = 0xAB

	_, err := reg.Encrypt(h, []byte("x"))
	require.ErrorIs(t, err, domain.ErrUnknownSession)
	_, err = reg.Serialize(h)
	require.ErrorIs(t, err, domain.ErrUnknownSession)
	require.ErrorIs(t, reg.Destroy(h), domain.ErrUnknownSession)
}

func TestRegistry_DestroyRemovesAndZeroizes(t *testing.T) {
	reg, ha, hb := establishHandles(t)
	require.Equal(t, 2, reg.Len())

	require.NoError(t, reg.Destroy(ha))
	require.Equal(t, 1, reg.Len())
	_, err := reg.Encrypt(ha, []byte("x"))
	require.ErrorIs(t, err, domain.ErrUnknownSession)

	// Destroying twice reports the handle as gone.
	require.ErrorIs(t, reg.Destroy(ha), domain.ErrUnknownSession)
	require.NoError(t, reg.Destroy(hb))
	require.Equal(t, 0, reg.Len())
}

func TestRegistry_SerializeDeserializeRoundTrip(t *testing.T) {
	reg, ha, hb := establishHandles(t)

	raw, err := reg.Serialize(hb)
	require.NoError(t, err)
	require.NoError(t, reg.Destroy(hb))

	hb2, err := reg.Deserialize(raw)
	require.NoError(t, err)
	require.NotEqual(t, hb, hb2)

	env, err := reg.Encrypt(ha, []byte("to the restored session"))
	require.NoError(t, err)
	pt, err := reg.Decrypt(hb2, env)
	require.NoError(t, err)
	require.Equal(t, "to the restored session", string(pt))
}

func TestRegistry_DeserializeCorrupt(t *testing.T) {
	reg := session.NewRegistry()
	_, err := reg.Deserialize([]byte("{"))
	require.ErrorIs(t, err, domain.ErrStateCorrupt)
	require.Equal(t, 0, reg.Len())
}

func TestRegistry_ConcurrentDistinctHandles(t *testing.T) {
	reg := session.NewRegistry()

	const pairs = 8
	type duo struct{ a, b session.Handle }
	duos := make([]duo, pairs)
	for i := range duos {
		sub, ha, hb := establishHandles(t)
		// Move the states into the shared registry.
		rawA, err := sub.Serialize(ha)
		require.NoError(t, err)
		rawB, err := sub.Serialize(hb)
		require.NoError(t, err)
		a, err := reg.Deserialize(rawA)
		require.NoError(t, err)
		b, err := reg.Deserialize(rawB)
		require.NoError(t, err)
		duos[i] = duo{a: a, b: b}
	}

	var wg sync.WaitGroup
	errs := make(chan error, pairs)
	for i, d := range duos {
		wg.Add(1)
		go func(i int, d duo) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				msg := fmt.Sprintf("pair %d msg %d", i, n)
				env, err := reg.Encrypt(d.a, []byte(msg))
				if err != nil {
					errs <- err
					return
				}
				pt, err := reg.Decrypt(d.b, env)
				if err != nil {
					errs <- err
					return
				}
				if string(pt) != msg {
					errs <- fmt.Errorf("mismatch: %q", pt)
					return
				}
			}
		}(i, d)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestRegistry_SerialisedEncryptsOnOneHandle(t *testing.T) {
	reg, ha, hb := establishHandles(t)

	// Concurrent encrypts on the same handle serialise; every message number
	// is used exactly once.
	const workers, perWorker = 4, 25
	var wg sync.WaitGroup
	envs := make(chan []byte, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < perWorker; n++ {
				env, err := reg.Encrypt(ha, []byte("concurrent"))
				if err == nil {
					envs <- env.Marshal()
				}
			}
		}()
	}
	wg.Wait()
	close(envs)

	count := 0
	var st *ratchet.State
	require.NoError(t, func() error { // inspect final counter under the lock
		return reg.WithMut(ha, func(s *ratchet.State) error {
			st = s.Clone()
			return nil
		})
	}())
	for range envs {
		count++
	}
	require.Equal(t, workers*perWorker, count)
	require.EqualValues(t, workers*perWorker+1, st.Ns) // +1 for the bootstrap message
	_ = hb
}
