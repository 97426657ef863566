package world

import (
	"fmt"
	"sort"
	"time"
)

// RoomSnapshot is the serializable form of a room. Occupancy is not part of
// a snapshot; sessions are process-scoped.
type RoomSnapshot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Desc    string `json:"desc,omitempty"`
	Exits   []Exit `json:"exits,omitempty"`
	Private bool   `json:"private,omitempty"`
	Secret  string `json:"secret,omitempty"`
	Owner   string `json:"owner,omitempty"`
}

// SessionSnapshot records who was where when the snapshot was taken. It is
// informational (for operators and post-restart announcements); live
// sessions do not survive a restart.
type SessionSnapshot struct {
	Name      string `json:"name"`
	Room      string `json:"room"`
	Transport string `json:"transport"`
	Guest     bool   `json:"guest,omitempty"`
}

// Snapshot is the serializable state of the consistency domain. Persistence
// itself lives outside the engine (boltstore).
type Snapshot struct {
	Taken    time.Time         `json:"taken"`
	Rooms    []RoomSnapshot    `json:"rooms"`
	Sessions []SessionSnapshot `json:"sessions,omitempty"`
}

// Snapshot captures the room graph and session registry under the read lock.
func (w *World) Snapshot() *Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := &Snapshot{Taken: time.Now()}
	for _, r := range w.rooms {
		snap.Rooms = append(snap.Rooms, RoomSnapshot{
			ID:      r.ID,
			Name:    r.Name,
			Desc:    r.Desc,
			Exits:   append([]Exit(nil), r.Exits...),
			Private: r.Private,
			Secret:  r.Secret,
			Owner:   r.Owner,
		})
	}
	sort.Slice(snap.Rooms, func(i, j int) bool { return snap.Rooms[i].ID < snap.Rooms[j].ID })

	for _, s := range w.sessions {
		if s.gone {
			continue
		}
		snap.Sessions = append(snap.Sessions, SessionSnapshot{
			Name:      s.Identity.Name,
			Room:      s.room,
			Transport: s.Transport.String(),
			Guest:     s.Identity.Guest,
		})
	}
	sort.Slice(snap.Sessions, func(i, j int) bool { return snap.Sessions[i].Name < snap.Sessions[j].Name })
	return snap
}

// Restore replaces the room graph from a snapshot. The snapshot must contain
// the lobby and no dangling exits, and may not remove a room that currently
// has occupants. Session records in the snapshot are ignored.
func (w *World) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}

	incoming := make(map[string]*Room, len(snap.Rooms))
	for _, rs := range snap.Rooms {
		id := canonicalID(rs.ID)
		if id == "" {
			return fmt.Errorf("snapshot contains a room without an ID")
		}
		if _, dup := incoming[id]; dup {
			return fmt.Errorf("snapshot contains duplicate room %q", id)
		}
		incoming[id] = &Room{
			ID:      id,
			Name:    rs.Name,
			Desc:    rs.Desc,
			Exits:   append([]Exit(nil), rs.Exits...),
			Private: rs.Private,
			Secret:  rs.Secret,
			Owner:   rs.Owner,
		}
	}
	if _, ok := incoming[LobbyID]; !ok {
		return fmt.Errorf("snapshot has no %q room", LobbyID)
	}
	for id, r := range incoming {
		for _, e := range r.Exits {
			if _, ok := incoming[canonicalID(e.Target)]; !ok {
				return fmt.Errorf("room %q exit %q targets unknown room %q", id, e.Name, e.Target)
			}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for id, r := range w.rooms {
		if len(r.occupants) == 0 {
			continue
		}
		if _, kept := incoming[id]; !kept {
			return fmt.Errorf("cannot restore: room %q is occupied but absent from snapshot", id)
		}
	}
	for id, r := range incoming {
		if existing, ok := w.rooms[id]; ok {
			r.occupants = existing.occupants
			r.lastVacated = existing.lastVacated
		} else {
			r.occupants = make(map[string]*Session)
		}
	}
	w.rooms = incoming
	return nil
}
