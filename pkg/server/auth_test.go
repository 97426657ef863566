package server

import (
	"path/filepath"
	"testing"

	"github.com/much-hall/gomuch/pkg/boltstore"
	"github.com/much-hall/gomuch/pkg/world"
)

// testGameWithStore builds a game backed by a throwaway bolt store.
func testGameWithStore(t *testing.T) *Game {
	t.Helper()
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "gomuch.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	g := NewGame(DefaultConf(), store)
	if err := g.LoadWorld(""); err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	return g
}

func TestRegisterAndVerify(t *testing.T) {
	g := testGameWithStore(t)

	acct, err := g.Auth.Register("alice", "hunter2", false)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.Name != "alice" {
		t.Errorf("name %q", acct.Name)
	}
	if string(acct.Hash) == "hunter2" {
		t.Error("password stored in the clear")
	}

	if _, err := g.Auth.Verify("alice", "hunter2"); err != nil {
		t.Errorf("Verify good password: %v", err)
	}
	if _, err := g.Auth.Verify("alice", "wrong"); err != ErrBadCredentials {
		t.Errorf("wrong password: want ErrBadCredentials, got %v", err)
	}
	if _, err := g.Auth.Verify("nobody", "hunter2"); err != ErrBadCredentials {
		t.Errorf("unknown name: want ErrBadCredentials, got %v", err)
	}
}

func TestRegisterRejectsDuplicatesAndEmptyPassword(t *testing.T) {
	g := testGameWithStore(t)

	if _, err := g.Auth.Register("alice", "hunter2", false); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := g.Auth.Register("Alice", "other", false); err == nil {
		t.Error("case-insensitive duplicate accepted")
	}
	if _, err := g.Auth.Register("bob", "", false); err == nil {
		t.Error("empty password accepted")
	}
}

func TestFirstAccountBecomesAdmin(t *testing.T) {
	g := testGameWithStore(t)

	first, err := g.CreateAccountSession(world.TransportTCP, "founder", "pw1")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if !first.Identity.Admin {
		t.Error("first account should be admin")
	}

	second, err := g.CreateAccountSession(world.TransportTCP, "newcomer", "pw2")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.Identity.Admin {
		t.Error("second account should not be admin")
	}
}

func TestCreateAccountSessionValidatesNames(t *testing.T) {
	g := testGameWithStore(t)

	for _, name := range []string{"x", "has space", "guest-13", "way!bad"} {
		if _, err := g.CreateAccountSession(world.TransportTCP, name, "pw"); err == nil {
			t.Errorf("name %q accepted", name)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	g := testGameWithStore(t)

	session, err := g.CreateAccountSession(world.TransportPolling, "alice", "hunter2")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	token, err := g.Auth.TokenForSession(session)
	if err != nil {
		t.Fatalf("TokenForSession: %v", err)
	}
	claims, err := g.Auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.SessionID != session.ID {
		t.Errorf("session ID %q, want %q", claims.SessionID, session.ID)
	}
	if claims.Name != "alice" {
		t.Errorf("name %q", claims.Name)
	}
	if !claims.Admin {
		t.Error("first account's claims should carry admin")
	}

	if _, err := g.Auth.ValidateToken(token + "tampered"); err == nil {
		t.Error("tampered token accepted")
	}
}

func TestParseConnect(t *testing.T) {
	cases := []struct {
		in       string
		cmd      string
		user     string
		password string
	}{
		{"connect alice hunter2", "connect", "alice", "hunter2"},
		{"create bob pw", "create", "bob", "pw"},
		{"connect guest", "connect", "guest", ""},
		{`connect "alice" hunter2`, "connect", "alice", "hunter2"},
		{"WHO", "who", "", ""},
		{"", "", "", ""},
	}
	for _, c := range cases {
		cmd, user, password := ParseConnect(c.in)
		if cmd != c.cmd || user != c.user || password != c.password {
			t.Errorf("ParseConnect(%q) = (%q,%q,%q), want (%q,%q,%q)",
				c.in, cmd, user, password, c.cmd, c.user, c.password)
		}
	}
}

func TestStripTelnet(t *testing.T) {
	cases := []struct{ in, want string }{
		{"say hi\xff\xfb\x01there", "say hithere"},
		{"say hi\xff\xfb", "say hi"}, // truncated sequence at end
		{"say hi\xff", "say hi"},     // lone IAC at end
		{"\xff\xfd\x22say hi", "say hi"},
	}
	for _, c := range cases {
		if got := stripTelnet(c.in); got != c.want {
			t.Errorf("stripTelnet(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
