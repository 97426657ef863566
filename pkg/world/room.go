package world

import (
	"strings"
	"time"
)

// LobbyID is the room every session starts in. The lobby always exists and
// is never destroyed.
const LobbyID = "lobby"

// Exit is one named way out of a room. Exits are ordered as declared.
type Exit struct {
	Name   string
	Target string // destination room ID; always references an existing room
}

// Room is a node in the venue's topology. All mutable fields (occupancy,
// lastVacated) are guarded by the owning World's lock; the topology itself
// is read-mostly.
type Room struct {
	ID      string
	Name    string
	Desc    string
	Exits   []Exit
	Private bool
	Secret  string // required to enter when Private and non-empty
	Owner   string // identity that created a private room

	occupants   map[string]*Session // session ID -> session
	lastVacated time.Time
}

// exitTarget returns the destination of the named exit, case-insensitively.
func (r *Room) exitTarget(name string) (string, bool) {
	for _, e := range r.Exits {
		if strings.EqualFold(e.Name, name) {
			return e.Target, true
		}
	}
	return "", false
}

// IsEmpty reports whether the room has no occupants. Callers outside the
// engine should use World.RoomIsEmpty, which takes the lock.
func (r *Room) isEmpty() bool {
	return len(r.occupants) == 0
}

// RoomInfo is a read snapshot of a room, as seen by look.
type RoomInfo struct {
	ID        string
	Name      string
	Desc      string
	Exits     []Exit
	Private   bool
	Occupants []string // identity names, sorted
}

// canonicalID lowercases and trims a room reference for map lookup.
func canonicalID(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}
