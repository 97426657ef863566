package server

import (
	"strings"
	"testing"

	"github.com/much-hall/gomuch/pkg/event"
	"github.com/much-hall/gomuch/pkg/world"
)

// testGame builds an in-memory game with the default topology.
func testGame(t *testing.T) *Game {
	t.Helper()
	g := NewGame(DefaultConf(), nil)
	if err := g.LoadWorld(""); err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	return g
}

// join connects a named identity over TCP.
func join(g *Game, name string, admin bool) *world.Session {
	return g.World.Connect(world.TransportTCP, world.Identity{Name: name, Admin: admin})
}

// drainRendered empties a session's queue and renders each event from its
// own point of view, skipping empty lines.
func drainRendered(s *world.Session) []string {
	var out []string
	for _, ev := range s.Queue().DrainAll() {
		if line := ev.Render(s.Identity.Name); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func containsLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestDispatchSayShorthands(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	bob := join(g, "bob", false)
	drainRendered(alice)
	drainRendered(bob)

	for _, line := range []string{`"hello`, `'hello`, `say hello`} {
		if _, err := Dispatch(g, alice.ID, line); err != nil {
			t.Fatalf("Dispatch(%q): %v", line, err)
		}
	}

	got := drainRendered(bob)
	if len(got) != 3 {
		t.Fatalf("bob heard %d lines, want 3: %v", len(got), got)
	}
	for _, l := range got {
		if l != `alice says, "hello"` {
			t.Errorf("unexpected line %q", l)
		}
	}
	if self := drainRendered(alice); !containsLine(self, `You say, "hello"`) {
		t.Errorf("speaker echo missing: %v", self)
	}
}

func TestDispatchEmoteShorthand(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	bob := join(g, "bob", false)
	drainRendered(bob)

	if _, err := Dispatch(g, alice.ID, ":waves"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := drainRendered(bob); !containsLine(got, "alice waves") {
		t.Errorf("pose not heard: %v", got)
	}
}

func TestDispatchUnknownVerb(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)

	out, err := Dispatch(g, alice.ID, "frobnicate wildly")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !containsLine(out, "Huh?") {
		t.Errorf("want Huh? hint, got %v", out)
	}
}

func TestDispatchBareExitName(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)

	out, err := Dispatch(g, alice.ID, "hall")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !containsLine(out, "The Hall") {
		t.Errorf("expected arrival look at The Hall, got %v", out)
	}

	info, err := g.World.Look(alice.ID)
	if err != nil {
		t.Fatalf("Look: %v", err)
	}
	if info.ID != "hall" {
		t.Errorf("alice in %q, want hall", info.ID)
	}
}

func TestDispatchGoWrongWay(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)

	if _, err := Dispatch(g, alice.ID, "go nowhere"); err != world.ErrNoSuchExit {
		t.Errorf("want ErrNoSuchExit, got %v", err)
	}
}

func TestDispatchTell(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	bob := join(g, "bob", false)
	drainRendered(bob)

	if _, err := Dispatch(g, alice.ID, "tell bob psst"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := drainRendered(bob); !containsLine(got, `alice tells you, "psst"`) {
		t.Errorf("tell not delivered: %v", got)
	}

	out, err := Dispatch(g, alice.ID, "tell bob")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !containsLine(out, "Usage") {
		t.Errorf("want usage hint for empty message, got %v", out)
	}
}

func TestDispatchAdminGating(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	root := join(g, "root", true)
	drainRendered(alice)

	// Hidden from non-admins entirely.
	out, err := Dispatch(g, alice.ID, "@wall everyone out")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !containsLine(out, "Huh?") {
		t.Errorf("non-admin @wall should look unknown, got %v", out)
	}
	if heard := drainRendered(alice); containsLine(heard, "ANNOUNCEMENT") {
		t.Errorf("non-admin wall was broadcast: %v", heard)
	}

	if _, err := Dispatch(g, root.ID, "@wall closing soon"); err != nil {
		t.Fatalf("admin @wall: %v", err)
	}
	if heard := drainRendered(alice); !containsLine(heard, "ANNOUNCEMENT from root: closing soon") {
		t.Errorf("announcement missing: %v", heard)
	}
}

func TestDispatchBoot(t *testing.T) {
	g := testGame(t)
	root := join(g, "root", true)
	bob := join(g, "bob", false)

	out, err := Dispatch(g, root.ID, "@boot bob")
	if err != nil {
		t.Fatalf("@boot: %v", err)
	}
	if !containsLine(out, "booted") {
		t.Errorf("want boot confirmation, got %v", out)
	}
	if _, ok := g.World.Session(bob.ID); ok {
		t.Error("bob still connected after boot")
	}
}

func TestDispatchGuestGating(t *testing.T) {
	g := testGame(t)
	guest := g.World.Connect(world.TransportTCP, world.Identity{Guest: true})

	out, err := Dispatch(g, guest.ID, "private hideout")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !containsLine(out, "Guests cannot") {
		t.Errorf("guest should be refused, got %v", out)
	}
}

func TestDispatchPrivateAndInvite(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	bob := join(g, "bob", false)
	drainRendered(bob)

	out, err := Dispatch(g, alice.ID, "private hideout sesame")
	if err != nil {
		t.Fatalf("private: %v", err)
	}
	if !containsLine(out, "go hideout sesame") {
		t.Errorf("want entry hint, got %v", out)
	}

	if _, err := Dispatch(g, alice.ID, "go hideout sesame"); err != nil {
		t.Fatalf("owner entering own room: %v", err)
	}
	if _, err := Dispatch(g, alice.ID, "invite bob"); err != nil {
		t.Fatalf("invite: %v", err)
	}
	heard := drainRendered(bob)
	if !containsLine(heard, "invites you") || !containsLine(heard, "sesame") {
		t.Errorf("invitation with secret missing: %v", heard)
	}

	// Bob uses the shared secret.
	if _, err := Dispatch(g, bob.ID, "go hideout sesame"); err != nil {
		t.Fatalf("invited entry: %v", err)
	}
}

// A bare reference to a private room with a missing or wrong secret is a
// refused entry, not an unknown verb.
func TestDispatchBareRefWrongSecret(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	bob := join(g, "bob", false)

	if _, err := Dispatch(g, alice.ID, "private hideout sesame"); err != nil {
		t.Fatalf("private: %v", err)
	}

	if _, err := Dispatch(g, bob.ID, "hideout"); err != world.ErrAccessDenied {
		t.Errorf("bare ref without secret: want ErrAccessDenied, got %v", err)
	}
	if _, err := Dispatch(g, bob.ID, "hideout wrong"); err != world.ErrAccessDenied {
		t.Errorf("bare ref with wrong secret: want ErrAccessDenied, got %v", err)
	}
	if out, err := Dispatch(g, bob.ID, "hideot sesame"); err != nil || !containsLine(out, `Huh? (Type "help" for help.)`) {
		t.Errorf("misspelled ref: want Huh?, got %v / %v", out, err)
	}
}

func TestDispatchInviteOutsidePrivateRoom(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	join(g, "bob", false)

	if _, err := Dispatch(g, alice.ID, "invite bob"); err != world.ErrAccessDenied {
		t.Errorf("invite from the lobby: want ErrAccessDenied, got %v", err)
	}
}

func TestDispatchWhereToggle(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	bob := join(g, "bob", false)

	whoRoom := func(viewer *world.Session) string {
		for _, e := range g.World.Who(viewer.ID) {
			if e.Name == "alice" {
				return e.Room
			}
		}
		return ""
	}

	if room := whoRoom(bob); room != "" {
		t.Errorf("location should default to withheld, got %q", room)
	}
	if _, err := Dispatch(g, alice.ID, "where on"); err != nil {
		t.Fatalf("where on: %v", err)
	}
	if room := whoRoom(bob); room != "lobby" {
		t.Errorf("after opt-in want lobby, got %q", room)
	}
	if _, err := Dispatch(g, alice.ID, "where off"); err != nil {
		t.Fatalf("where off: %v", err)
	}
	if room := whoRoom(bob); room != "" {
		t.Errorf("after opt-out want withheld, got %q", room)
	}
}

func TestDispatchMuteUnmute(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	bob := join(g, "bob", false)
	drainRendered(bob)

	if _, err := Dispatch(g, bob.ID, "mute alice"); err != nil {
		t.Fatalf("mute: %v", err)
	}
	Dispatch(g, alice.ID, "say one")
	if heard := drainRendered(bob); containsLine(heard, "one") {
		t.Errorf("muted speech heard: %v", heard)
	}

	if _, err := Dispatch(g, bob.ID, "unmute alice"); err != nil {
		t.Fatalf("unmute: %v", err)
	}
	Dispatch(g, alice.ID, "say two")
	if heard := drainRendered(bob); !containsLine(heard, "two") {
		t.Errorf("speech still muted: %v", heard)
	}
}

func TestDispatchLook(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	join(g, "bob", false)

	out, err := Dispatch(g, alice.ID, "look")
	if err != nil {
		t.Fatalf("look: %v", err)
	}
	if !containsLine(out, "The Lobby") {
		t.Errorf("room name missing: %v", out)
	}
	if !containsLine(out, "bob is here.") {
		t.Errorf("occupants missing: %v", out)
	}
	if !containsLine(out, "Obvious exits:") {
		t.Errorf("exits missing: %v", out)
	}
}

func TestDispatchWho(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	join(g, "bob", false)

	out, err := Dispatch(g, alice.ID, "who")
	if err != nil {
		t.Fatalf("who: %v", err)
	}
	if !containsLine(out, "alice") || !containsLine(out, "bob") {
		t.Errorf("roster incomplete: %v", out)
	}
	if !containsLine(out, "2 connected.") {
		t.Errorf("count line missing: %v", out)
	}
}

func TestDispatchHelpHidesAdminCommands(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	root := join(g, "root", true)

	out, _ := Dispatch(g, alice.ID, "help")
	if containsLine(out, "@shutdown") {
		t.Errorf("admin commands leaked to help: %v", out)
	}
	out, _ = Dispatch(g, root.ID, "help")
	if !containsLine(out, "@shutdown") {
		t.Errorf("admin help missing for admin: %v", out)
	}
}

func TestDispatchQuit(t *testing.T) {
	g := testGame(t)
	alice := join(g, "alice", false)
	q := alice.Queue()

	if _, err := Dispatch(g, alice.ID, "quit"); err != nil {
		t.Fatalf("quit: %v", err)
	}
	if _, ok := g.World.Session(alice.ID); ok {
		t.Error("session still live after quit")
	}
	var sawFarewell bool
	for _, ev := range q.DrainAll() {
		if ev.Type == event.SystemNotice && strings.Contains(ev.Text, "Goodbye") {
			sawFarewell = true
		}
	}
	if !sawFarewell {
		t.Error("farewell notice missing from final drain")
	}
	if !q.Closed() {
		t.Error("queue not closed after quit")
	}
}

func TestSubmitLineRateLimit(t *testing.T) {
	conf := DefaultConf()
	conf.FloodRate = 0.001
	conf.FloodBurst = 2
	g := NewGame(conf, nil)
	if err := g.LoadWorld(""); err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}
	alice := join(g, "alice", false)

	var limited bool
	for i := 0; i < 5; i++ {
		if _, err := g.SubmitLine(alice.ID, "look"); err == world.ErrRateLimited {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("flood was never limited")
	}
}
