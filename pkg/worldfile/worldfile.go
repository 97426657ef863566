// Package worldfile loads the venue's room topology from a YAML file and
// validates it before it is handed to the engine.
package worldfile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/much-hall/gomuch/pkg/world"
)

// RoomDef is one room entry in a world file.
type RoomDef struct {
	ID      string    `yaml:"id"`
	Name    string    `yaml:"name"`
	Desc    string    `yaml:"desc"`
	Exits   []ExitDef `yaml:"exits"`
	Private bool      `yaml:"private"` // entry gated by the secret
	Secret  string    `yaml:"secret"`  // passphrase for private rooms
}

// ExitDef is one directed link out of a room.
type ExitDef struct {
	Name   string `yaml:"name"`
	Target string `yaml:"to"`
}

// File is the parsed world file.
type File struct {
	Rooms []RoomDef `yaml:"rooms"`
}

// Load reads and validates a world file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates world file content.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing world file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// validate enforces the topology rules: every room has an ID and a name,
// IDs are unique, the lobby exists, and every exit targets a defined room.
func (f *File) validate() error {
	if len(f.Rooms) == 0 {
		return fmt.Errorf("world file defines no rooms")
	}
	seen := make(map[string]bool, len(f.Rooms))
	for i, r := range f.Rooms {
		id := strings.ToLower(strings.TrimSpace(r.ID))
		if id == "" {
			return fmt.Errorf("room %d: missing id", i)
		}
		if r.Name == "" {
			return fmt.Errorf("room %q: missing name", r.ID)
		}
		if seen[id] {
			return fmt.Errorf("room %q: duplicate id", r.ID)
		}
		seen[id] = true
	}
	if !seen[world.LobbyID] {
		return fmt.Errorf("world file must define a %q room", world.LobbyID)
	}
	for _, r := range f.Rooms {
		if r.Private && strings.EqualFold(strings.TrimSpace(r.ID), world.LobbyID) {
			return fmt.Errorf("the lobby cannot be private")
		}
	}
	for _, r := range f.Rooms {
		names := make(map[string]bool, len(r.Exits))
		for _, e := range r.Exits {
			name := strings.ToLower(strings.TrimSpace(e.Name))
			if name == "" {
				return fmt.Errorf("room %q: exit with empty name", r.ID)
			}
			if names[name] {
				return fmt.Errorf("room %q: duplicate exit %q", r.ID, e.Name)
			}
			names[name] = true
			if !seen[strings.ToLower(strings.TrimSpace(e.Target))] {
				return fmt.Errorf("room %q: exit %q targets unknown room %q", r.ID, e.Name, e.Target)
			}
		}
	}
	return nil
}

// Apply installs the file's rooms into the world. Existing rooms with the
// same ID are updated in place, so a reload keeps their occupants.
func (f *File) Apply(w *world.World) error {
	for _, rd := range f.Rooms {
		exits := make([]world.Exit, len(rd.Exits))
		for i, e := range rd.Exits {
			exits[i] = world.Exit{Name: e.Name, Target: strings.ToLower(strings.TrimSpace(e.Target))}
		}
		r := &world.Room{
			ID:      strings.ToLower(strings.TrimSpace(rd.ID)),
			Name:    rd.Name,
			Desc:    rd.Desc,
			Exits:   exits,
			Private: rd.Private,
			Secret:  rd.Secret,
		}
		if err := w.AddRoom(r); err != nil {
			return fmt.Errorf("room %q: %w", rd.ID, err)
		}
	}
	return nil
}

// Default returns the built-in topology used when no world file is given:
// a lobby with a small hall off it.
func Default() *File {
	return &File{Rooms: []RoomDef{
		{
			ID:   world.LobbyID,
			Name: "The Lobby",
			Desc: "A wide, well-lit entrance hall. Everyone starts here.",
			Exits: []ExitDef{
				{Name: "hall", Target: "hall"},
			},
		},
		{
			ID:   "hall",
			Name: "The Hall",
			Desc: "A long hall for quieter conversation.",
			Exits: []ExitDef{
				{Name: "lobby", Target: world.LobbyID},
			},
		},
	}}
}
