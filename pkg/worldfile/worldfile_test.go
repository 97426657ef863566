package worldfile

import (
	"strings"
	"testing"

	"github.com/much-hall/gomuch/pkg/world"
)

const goodFile = `
rooms:
  - id: lobby
    name: The Lobby
    desc: Everyone starts here.
    exits:
      - name: hall
        to: hall
  - id: hall
    name: The Hall
    exits:
      - name: lobby
        to: lobby
      - name: back
        to: backroom
  - id: backroom
    name: The Back Room
    private: true
    secret: hunter2
    exits:
      - name: out
        to: hall
`

func TestParseGoodFile(t *testing.T) {
	f, err := Parse([]byte(goodFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Rooms) != 3 {
		t.Fatalf("expected 3 rooms, got %d", len(f.Rooms))
	}
	back := f.Rooms[2]
	if !back.Private || back.Secret != "hunter2" {
		t.Errorf("backroom: %+v", back)
	}
}

func TestParseRejectsBadTopologies(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			"empty",
			`rooms: []`,
			"no rooms",
		},
		{
			"no lobby",
			"rooms:\n  - id: attic\n    name: Attic",
			"lobby",
		},
		{
			"dangling exit",
			"rooms:\n  - id: lobby\n    name: Lobby\n    exits:\n      - name: up\n        to: attic",
			"unknown room",
		},
		{
			"duplicate id",
			"rooms:\n  - id: lobby\n    name: Lobby\n  - id: Lobby\n    name: Also Lobby",
			"duplicate id",
		},
		{
			"duplicate exit",
			"rooms:\n  - id: lobby\n    name: Lobby\n    exits:\n      - name: loop\n        to: lobby\n      - name: Loop\n        to: lobby",
			"duplicate exit",
		},
		{
			"missing name",
			"rooms:\n  - id: lobby",
			"missing name",
		},
		{
			"private lobby",
			"rooms:\n  - id: lobby\n    name: Lobby\n    private: true",
			"cannot be private",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestApplyInstallsRooms(t *testing.T) {
	f, err := Parse([]byte(goodFile))
	if err != nil {
		t.Fatal(err)
	}
	w := world.New(world.DefaultOptions())
	if err := f.Apply(w); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"lobby", "hall", "backroom"} {
		if _, err := w.Resolve(id); err != nil {
			t.Errorf("room %q not installed: %v", id, err)
		}
	}
	exits, err := w.ExitsOf("hall")
	if err != nil {
		t.Fatal(err)
	}
	if len(exits) != 2 || exits[1].Target != "backroom" {
		t.Errorf("hall exits: %v", exits)
	}
}

func TestApplyKeepsOccupantsOnReload(t *testing.T) {
	w := world.New(world.DefaultOptions())
	if err := Default().Apply(w); err != nil {
		t.Fatal(err)
	}
	s := w.Connect(world.TransportTCP, world.Identity{Name: "alice"})

	// Reload the same topology; alice must still be in the lobby.
	if err := Default().Apply(w); err != nil {
		t.Fatal(err)
	}
	occ, err := w.OccupantsOf(world.LobbyID)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 1 || occ[0] != s.ID {
		t.Errorf("occupants after reload: %v", occ)
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().validate(); err != nil {
		t.Fatal(err)
	}
}
