package event

import (
	"fmt"
	"time"
)

// Type classifies events for transport-specific encoding.
type Type int

const (
	Say          Type = iota // Speech in a room
	Emote                    // Pose/emote in a room
	Tell                     // Private message
	Arrive                   // Someone entered a room
	Depart                   // Someone left a room
	Announce                 // Server-wide announcement
	SystemNotice             // Notice addressed to a single session
)

// String returns a wire-stable name for the event type.
func (t Type) String() string {
	switch t {
	case Say:
		return "say"
	case Emote:
		return "emote"
	case Tell:
		return "tell"
	case Arrive:
		return "arrive"
	case Depart:
		return "depart"
	case Announce:
		return "announce"
	case SystemNotice:
		return "notice"
	default:
		return "unknown"
	}
}

// Event is one outbound record fanned into session delivery queues.
// Telnet-style transports render it to a text line with Render; the
// HTTP/WebSocket gateway ships the structured fields as JSON.
type Event struct {
	Type   Type
	Source string    // Identity that generated the event; empty for the server
	Room   string    // Room context, where applicable
	Target string    // Target identity (Tell)
	Text   string    // Payload text
	Time   time.Time // When the event was produced
}

// Notice builds a SystemNotice carrying the given text.
func Notice(text string) Event {
	return Event{Type: SystemNotice, Text: text, Time: time.Now()}
}

// Render formats the event as a text line from the point of view of the
// named identity. Events about the viewer read in second person.
func (ev Event) Render(viewer string) string {
	switch ev.Type {
	case Say:
		if ev.Source == viewer {
			return fmt.Sprintf("You say, \"%s\"", ev.Text)
		}
		return fmt.Sprintf("%s says, \"%s\"", ev.Source, ev.Text)
	case Emote:
		return fmt.Sprintf("%s %s", ev.Source, ev.Text)
	case Tell:
		if ev.Source == viewer {
			return fmt.Sprintf("You tell %s, \"%s\"", ev.Target, ev.Text)
		}
		return fmt.Sprintf("%s tells you, \"%s\"", ev.Source, ev.Text)
	case Arrive:
		if ev.Source == viewer {
			return ""
		}
		return fmt.Sprintf("%s arrives.", ev.Source)
	case Depart:
		if ev.Source == viewer {
			return ""
		}
		return fmt.Sprintf("%s leaves.", ev.Source)
	case Announce:
		if ev.Source == "" {
			return fmt.Sprintf("ANNOUNCEMENT: %s", ev.Text)
		}
		return fmt.Sprintf("ANNOUNCEMENT from %s: %s", ev.Source, ev.Text)
	case SystemNotice:
		return ev.Text
	default:
		return ev.Text
	}
}

// Data returns the structured form used by JSON transports.
func (ev Event) Data() map[string]any {
	d := map[string]any{
		"type": ev.Type.String(),
		"text": ev.Text,
		"time": ev.Time.UTC().Format(time.RFC3339),
	}
	if ev.Source != "" {
		d["from"] = ev.Source
	}
	if ev.Room != "" {
		d["room"] = ev.Room
	}
	if ev.Target != "" {
		d["target"] = ev.Target
	}
	return d
}
