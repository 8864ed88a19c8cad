package store_test

import (
	"errors"
	"testing"

	"quietwire/internal/domain"
	"quietwire/internal/store"
)

func newVault(t *testing.T, pass string) *store.FileVault {
	t.Helper()
	v, err := store.NewFileVault(t.TempDir(), pass)
	if err != nil {
		t.Fatalf("NewFileVault: %v", err)
	}
	return v
}

func TestFileVault_StoreLoadDelete(t *testing.T) {
	v := newVault(t, "pass")

	if err := v.Store("blob", []byte("secret bytes")); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, ok, err := v.Load("blob")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok || string(got) != "secret bytes" {
		t.Fatalf("got %q ok=%v", got, ok)
	}

	if err := v.Delete("blob"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := v.Load("blob"); ok {
		t.Fatal("blob survived delete")
	}
	// Deleting a missing label is not an error.
	if err := v.Delete("blob"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestFileVault_WrongPassphraseFails(t *testing.T) {
	home := t.TempDir()
	v1, err := store.NewFileVault(home, "correct")
	if err != nil {
		t.Fatalf("NewFileVault: %v", err)
	}
	if err := v1.Store("blob", []byte("x")); err != nil {
		t.Fatalf("store: %v", err)
	}

	v2, err := store.NewFileVault(home, "wrong")
	if err != nil {
		t.Fatalf("NewFileVault: %v", err)
	}
	if _, _, err := v2.Load("blob"); err == nil {
		t.Fatal("expected error with wrong passphrase")
	}
}

func TestIdentityStore_SaveLoad(t *testing.T) {
	ids := store.NewIdentityStore(newVault(t, "pass"))

	id := domain.Identity{
		XPub:   domain.X25519Public{1},
		XPriv:  domain.X25519Private{2},
		EdPub:  domain.Ed25519Public{3},
		EdPriv: domain.Ed25519Private{4},
	}
	if err := ids.SaveIdentity(id); err != nil {
		t.Fatalf("save identity: %v", err)
	}

	got, ok, err := ids.LoadIdentity()
	if err != nil || !ok {
		t.Fatalf("load identity: ok=%v err=%v", ok, err)
	}
	if got.XPub != id.XPub || got.EdPub != id.EdPub {
		t.Fatal("mismatch after load")
	}

	// A second save must not clobber the identity.
	if err := ids.SaveIdentity(id); !errors.Is(err, domain.ErrIdentityExists) {
		t.Fatalf("want ErrIdentityExists, got %v", err)
	}
}

func TestPrekeyStore_ConsumeOneTimeOnce(t *testing.T) {
	pks := store.NewPrekeyStore(newVault(t, "pass"))

	pairs := []domain.OneTimePreKeyPair{
		{OneTimePreKey: domain.OneTimePreKey{ID: 1, Pub: domain.X25519Public{0x01}}, Priv: domain.X25519Private{0x11}},
		{OneTimePreKey: domain.OneTimePreKey{ID: 2, Pub: domain.X25519Public{0x02}}, Priv: domain.X25519Private{0x12}},
	}
	if err := pks.SaveOneTimePreKeys(pairs); err != nil {
		t.Fatalf("save one-time pairs: %v", err)
	}

	got, ok, err := pks.ConsumeOneTimePreKey(1)
	if err != nil || !ok {
		t.Fatalf("consume: ok=%v err=%v", ok, err)
	}
	if got.Priv != pairs[0].Priv {
		t.Fatal("wrong pair consumed")
	}

	// Second consume of the same id finds nothing.
	if _, ok, _ := pks.ConsumeOneTimePreKey(1); ok {
		t.Fatal("one-time prekey consumed twice")
	}

	left, err := pks.ListOneTimePublics()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 1 || left[0].ID != 2 {
		t.Fatalf("unexpected pool: %+v", left)
	}
}

func TestPrekeyStore_SignedPreKeyRetention(t *testing.T) {
	pks := store.NewPrekeyStore(newVault(t, "pass"))

	for id := uint32(1); id <= 3; id++ {
		p := domain.SignedPreKeyPair{
			SignedPreKey: domain.SignedPreKey{ID: id, Pub: domain.X25519Public{byte(id)}, Sig: []byte{byte(id)}},
		}
		if err := pks.SaveSignedPreKey(p); err != nil {
			t.Fatalf("save spk %d: %v", id, err)
		}
	}

	cur, ok, err := pks.CurrentSignedPreKey()
	if err != nil || !ok {
		t.Fatalf("current: ok=%v err=%v", ok, err)
	}
	if cur.ID != 3 {
		t.Fatalf("want current spk 3, got %d", cur.ID)
	}

	// Old signed prekeys stay resolvable for straggling handshakes.
	old, ok, err := pks.LoadSignedPreKey(1)
	if err != nil || !ok || old.ID != 1 {
		t.Fatalf("old spk: ok=%v err=%v", ok, err)
	}
}

func TestSessionStore_SnapshotRoundTrip(t *testing.T) {
	ss := store.NewSessionStore(newVault(t, "pass"))

	if err := ss.SaveSnapshot("peer", []byte("opaque")); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	got, ok, err := ss.LoadSnapshot("peer")
	if err != nil || !ok || string(got) != "opaque" {
		t.Fatalf("load snapshot: %q ok=%v err=%v", got, ok, err)
	}
	if err := ss.DeleteSnapshot("peer"); err != nil {
		t.Fatalf("delete snapshot: %v", err)
	}
	if _, ok, _ := ss.LoadSnapshot("peer"); ok {
		t.Fatal("snapshot survived delete")
	}
}
