package boltstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/much-hall/gomuch/pkg/world"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAccountRoundTrip(t *testing.T) {
	s := openTestStore(t)

	created := time.Now().UTC().Truncate(time.Second)
	in := &Account{
		Name:    "Alice",
		Hash:    []byte("$2a$10$fakehashfortest"),
		Admin:   true,
		Created: created,
	}
	if err := s.PutAccount(in); err != nil {
		t.Fatal(err)
	}

	// Lookup is case-insensitive.
	out, err := s.GetAccount("alice")
	if err != nil {
		t.Fatal(err)
	}
	if out.Name != "Alice" || !out.Admin || string(out.Hash) != string(in.Hash) {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if !out.Created.Equal(created) {
		t.Errorf("created: got %v want %v", out.Created, created)
	}

	if _, err := s.GetAccount("bob"); !errors.Is(err, ErrNoAccount) {
		t.Errorf("missing account: got %v", err)
	}
}

func TestTouchLoginAndDelete(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutAccount(&Account{Name: "alice", Hash: []byte("h")}); err != nil {
		t.Fatal(err)
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := s.TouchLogin("ALICE", at); err != nil {
		t.Fatal(err)
	}
	a, err := s.GetAccount("alice")
	if err != nil {
		t.Fatal(err)
	}
	if !a.LastLogin.Equal(at) {
		t.Errorf("last login: got %v want %v", a.LastLogin, at)
	}

	if err := s.DeleteAccount("alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetAccount("alice"); !errors.Is(err, ErrNoAccount) {
		t.Errorf("after delete: got %v", err)
	}
	if err := s.TouchLogin("alice", at); !errors.Is(err, ErrNoAccount) {
		t.Errorf("touch on missing account: got %v", err)
	}
}

func TestListAndHasAccounts(t *testing.T) {
	s := openTestStore(t)
	if s.HasAccounts() {
		t.Error("fresh store should have no accounts")
	}
	for _, n := range []string{"carol", "alice", "bob"} {
		if err := s.PutAccount(&Account{Name: n, Hash: []byte("h")}); err != nil {
			t.Fatal(err)
		}
	}
	names, err := s.ListAccounts()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 3 || names[0] != "alice" || names[2] != "carol" {
		t.Errorf("names: %v", names)
	}
	if !s.HasAccounts() {
		t.Error("HasAccounts should be true")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.LoadSnapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("fresh store: got %v", err)
	}

	w := world.New(world.DefaultOptions())
	sess := w.Connect(world.TransportTCP, world.Identity{Name: "alice"})
	if _, err := w.CreatePrivateRoom(sess.ID, "Hideout", "s3cret"); err != nil {
		t.Fatal(err)
	}
	if err := s.PutSnapshot(w.Snapshot()); err != nil {
		t.Fatal(err)
	}
	if s.SavedAt().IsZero() {
		t.Error("SavedAt should be set after PutSnapshot")
	}

	snap, err := s.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	w2 := world.New(world.DefaultOptions())
	if err := w2.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if _, err := w2.Resolve("hideout"); err != nil {
		t.Errorf("restored room missing: %v", err)
	}
}

func TestBackupIsOpenable(t *testing.T) {
	s := openTestStore(t)
	if err := s.PutAccount(&Account{Name: "alice", Hash: []byte("h")}); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "backup.db")
	if err := s.Backup(dst); err != nil {
		t.Fatal(err)
	}

	b, err := Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, err := b.GetAccount("alice"); err != nil {
		t.Errorf("backup should contain the account: %v", err)
	}
}
