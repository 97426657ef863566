package server

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/much-hall/gomuch/pkg/event"
	"github.com/much-hall/gomuch/pkg/world"
)

// CommandHandler is the signature for game command implementations. The
// returned lines are the command's immediate output: the TCP server writes
// them to the socket and the web gateway returns them in the /do response.
// Hearable effects (speech, movement) travel through delivery queues instead.
type CommandHandler func(g *Game, s *world.Session, args string) ([]string, error)

// Command represents a registered game command.
type Command struct {
	Name    string
	Usage   string
	Help    string
	Handler CommandHandler
	Admin   bool // only admins see or run this command
	NoGuest bool // if true, guests cannot use this command
}

var commands map[string]*Command

func init() { commands = initCommands() }

// initCommands registers all available game commands. Prefix forms
// (", ', :) are resolved in Dispatch before table lookup.
func initCommands() map[string]*Command {
	cmds := make(map[string]*Command)

	register := func(name, usage, help string, handler CommandHandler) *Command {
		c := &Command{Name: name, Usage: usage, Help: help, Handler: handler}
		cmds[strings.ToLower(name)] = c
		return c
	}
	alias := func(name string, c *Command) {
		cmds[strings.ToLower(name)] = c
	}

	// Communication
	register("say", "say <text>", "Speak to everyone in your room.", cmdSay)
	register("emote", "emote <action>", "Perform an action, e.g. 'emote waves'.", cmdEmote)
	alias("pose", cmds["emote"])
	c := register("tell", "tell <person> <text>", "Send a private message.", cmdTell)
	alias("page", c)

	// Movement and surroundings
	register("go", "go <exit> [secret]", "Leave through an exit. Bare exit names also work.", cmdGo)
	register("look", "look", "Describe your current room.", cmdLook)
	c = register("who", "who", "List everyone online.", cmdWho)
	alias("WHO", c)

	// Preferences
	register("where", "where on|off", "Opt in or out of showing your location in who.", cmdWhere)
	register("mute", "mute <person>", "Stop hearing a person.", cmdMute)
	register("unmute", "unmute <person>", "Hear a muted person again.", cmdUnmute)

	// Private rooms (no guest)
	c = register("private", "private <name> [secret]", "Create a private room.", cmdPrivate)
	c.NoGuest = true
	c = register("invite", "invite <person>", "Invite someone to your private room.", cmdInvite)
	c.NoGuest = true

	register("help", "help", "This list.", cmdHelp)
	c = register("quit", "quit", "Disconnect.", cmdQuit)
	alias("QUIT", c)
	alias("logout", c)

	// Admin
	c = register("@wall", "@wall <text>", "Announce to everyone online.", cmdWall)
	c.Admin = true
	c = register("@boot", "@boot <person>", "Forcibly disconnect someone.", cmdBoot)
	c.Admin = true
	c = register("@shutdown", "@shutdown", "Stop the server.", cmdShutdown)
	c.Admin = true

	return cmds
}

// Dispatch parses one input line and runs the matching command for the
// session. A verb that matches no command is tried as an exit name before
// giving up.
func Dispatch(g *Game, sessionID, line string) ([]string, error) {
	s, ok := g.World.Session(sessionID)
	if !ok {
		return nil, world.ErrNotConnected
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	// Speech and pose shorthands.
	switch line[0] {
	case '"', '\'':
		return cmdSay(g, s, strings.TrimSpace(line[1:]))
	case ':':
		return cmdEmote(g, s, strings.TrimSpace(line[1:]))
	}

	verb, args := line, ""
	if i := strings.IndexByte(line, ' '); i >= 0 {
		verb, args = line[:i], strings.TrimSpace(line[i+1:])
	}

	cmd, ok := commands[strings.ToLower(verb)]
	if !ok {
		// Bare exit name, with an optional trailing secret.
		fields := strings.Fields(line)
		secret := ""
		if len(fields) > 1 {
			secret = fields[1]
		}
		_, err := g.World.Move(s.ID, fields[0], secret)
		if err == nil {
			return cmdLook(g, s, "")
		}
		// A recognized destination refused for the wrong secret is a
		// failed move, not an unknown verb.
		if errors.Is(err, world.ErrAccessDenied) {
			return nil, err
		}
		return []string{`Huh? (Type "help" for help.)`}, nil
	}
	if cmd.Admin && !s.Identity.Admin {
		return []string{`Huh? (Type "help" for help.)`}, nil
	}
	if cmd.NoGuest && s.Identity.Guest {
		return []string{"Guests cannot do that. Create an account first."}, nil
	}
	return cmd.Handler(g, s, args)
}

// --- Communication ---

func cmdSay(g *Game, s *world.Session, args string) ([]string, error) {
	if args == "" {
		return []string{"Say what?"}, nil
	}
	return nil, g.World.Say(s.ID, args)
}

func cmdEmote(g *Game, s *world.Session, args string) ([]string, error) {
	if args == "" {
		return []string{"Do what?"}, nil
	}
	return nil, g.World.Emote(s.ID, args)
}

func cmdTell(g *Game, s *world.Session, args string) ([]string, error) {
	target, text, ok := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		return []string{"Usage: tell <person> <text>"}, nil
	}
	// Accept the common "tell name = text" habit.
	text = strings.TrimSpace(strings.TrimPrefix(text, "="))
	if text == "" {
		return []string{"Tell them what?"}, nil
	}
	return nil, g.World.Tell(s.ID, target, text)
}

// --- Movement and surroundings ---

func cmdGo(g *Game, s *world.Session, args string) ([]string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return []string{"Go where?"}, nil
	}
	secret := ""
	if len(fields) > 1 {
		secret = fields[1]
	}
	if _, err := g.World.Move(s.ID, fields[0], secret); err != nil {
		return nil, err
	}
	return cmdLook(g, s, "")
}

func cmdLook(g *Game, s *world.Session, _ string) ([]string, error) {
	info, err := g.World.Look(s.ID)
	if err != nil {
		return nil, err
	}

	lines := []string{info.Name}
	if info.Private {
		lines[0] += " (private)"
	}
	if info.Desc != "" {
		lines = append(lines, info.Desc)
	}

	var others []string
	for _, name := range info.Occupants {
		if name != s.Identity.Name {
			others = append(others, name)
		}
	}
	switch len(others) {
	case 0:
		lines = append(lines, "You are alone here.")
	case 1:
		lines = append(lines, fmt.Sprintf("%s is here.", others[0]))
	default:
		lines = append(lines, fmt.Sprintf("Here: %s.", strings.Join(others, ", ")))
	}

	if len(info.Exits) == 0 {
		lines = append(lines, "There are no obvious exits.")
	} else {
		names := make([]string, len(info.Exits))
		for i, e := range info.Exits {
			names[i] = e.Name
		}
		lines = append(lines, "Obvious exits: "+strings.Join(names, ", "))
	}
	return lines, nil
}

func cmdWho(g *Game, s *world.Session, _ string) ([]string, error) {
	return FormatWho(g.World.Who(s.ID)), nil
}

// FormatWho renders who entries as the classic fixed-width roster. Shared
// with the pre-login WHO screen, which passes entries from an empty viewer.
func FormatWho(entries []world.WhoEntry) []string {
	lines := []string{fmt.Sprintf("%-20s %-10s %-8s %-8s %s", "Name", "Transport", "On For", "Idle", "Where")}
	for _, e := range entries {
		where := e.Room
		if where == "" {
			where = "-"
		}
		lines = append(lines, fmt.Sprintf("%-20s %-10s %-8s %-8s %s",
			e.Name, e.Transport, formatDuration(e.OnFor), formatDuration(e.Idle), where))
	}
	lines = append(lines, fmt.Sprintf("%d connected.", len(entries)))
	return lines
}

// formatDuration renders an uptime or idle time compactly, e.g. "2d03h",
// "4h09m", "12m", "37s".
func formatDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd%02dh", int(d.Hours())/24, int(d.Hours())%24)
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

// --- Preferences ---

func cmdWhere(g *Game, s *world.Session, args string) ([]string, error) {
	switch strings.ToLower(args) {
	case "on":
		if err := g.World.SetWherePublic(s.ID, true); err != nil {
			return nil, err
		}
		return []string{"Your location now shows in who."}, nil
	case "off":
		if err := g.World.SetWherePublic(s.ID, false); err != nil {
			return nil, err
		}
		return []string{"Your location is now withheld from who."}, nil
	default:
		return []string{"Usage: where on|off"}, nil
	}
}

func cmdMute(g *Game, s *world.Session, args string) ([]string, error) {
	if args == "" {
		return []string{"Mute whom?"}, nil
	}
	if err := g.World.Mute(s.ID, args); err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("You no longer hear %s.", args)}, nil
}

func cmdUnmute(g *Game, s *world.Session, args string) ([]string, error) {
	if args == "" {
		return []string{"Unmute whom?"}, nil
	}
	if err := g.World.Unmute(s.ID, args); err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("You hear %s again.", args)}, nil
}

// --- Private rooms ---

func cmdPrivate(g *Game, s *world.Session, args string) ([]string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return []string{"Usage: private <name> [secret]"}, nil
	}
	secret := ""
	if len(fields) > 1 {
		secret = fields[1]
	}
	id, err := g.World.CreatePrivateRoom(s.ID, fields[0], secret)
	if err != nil {
		return nil, err
	}
	lines := []string{fmt.Sprintf("Private room created. Enter with: go %s", id)}
	if secret != "" {
		lines[0] = fmt.Sprintf("Private room created. Enter with: go %s %s", id, secret)
	}
	lines = append(lines, "Once inside, use 'invite <person>' to share it.")
	return lines, nil
}

func cmdInvite(g *Game, s *world.Session, args string) ([]string, error) {
	if args == "" {
		return []string{"Invite whom?"}, nil
	}
	if err := g.World.Invite(s.ID, args); err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("Invitation sent to %s.", args)}, nil
}

// --- Help and exit ---

func cmdHelp(g *Game, s *world.Session, _ string) ([]string, error) {
	seen := make(map[*Command]bool)
	var list []*Command
	for _, c := range commands {
		if seen[c] || (c.Admin && !s.Identity.Admin) {
			continue
		}
		seen[c] = true
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	lines := []string{"Commands:"}
	for _, c := range list {
		lines = append(lines, fmt.Sprintf("  %-26s %s", c.Usage, c.Help))
	}
	lines = append(lines,
		`Shorthands: "text or 'text to say, :action to emote.`)
	return lines, nil
}

func cmdQuit(g *Game, s *world.Session, _ string) ([]string, error) {
	farewell := "Goodbye."
	if quit := g.textOrEmpty("quit"); quit != "" {
		farewell = strings.TrimRight(quit, "\n")
	}
	// The farewell goes through the delivery queue so a push transport's
	// final drain carries it out before the socket closes.
	g.World.Notify(s.ID, farewell)
	g.World.Disconnect(s.ID, world.ReasonQuit)
	return nil, nil
}

// --- Admin ---

func cmdWall(g *Game, s *world.Session, args string) ([]string, error) {
	if args == "" {
		return []string{"Usage: @wall <text>"}, nil
	}
	g.World.Broadcast(event.Event{
		Type: event.Announce, Source: s.Identity.Name, Text: args, Time: time.Now(),
	})
	log.Printf("[%s] @wall by %s: %s", s.ID[:8], s.Identity.Name, args)
	return nil, nil
}

func cmdBoot(g *Game, s *world.Session, args string) ([]string, error) {
	if args == "" {
		return []string{"Usage: @boot <person>"}, nil
	}
	if strings.EqualFold(args, s.Identity.Name) {
		return []string{"Use quit for that."}, nil
	}
	if err := g.World.BootIdentity(args); err != nil {
		return nil, err
	}
	log.Printf("[%s] %s booted %s", s.ID[:8], s.Identity.Name, args)
	return []string{fmt.Sprintf("%s has been booted.", args)}, nil
}

func cmdShutdown(g *Game, s *world.Session, _ string) ([]string, error) {
	log.Printf("[%s] @shutdown by %s", s.ID[:8], s.Identity.Name)
	g.World.Shutdown(s.Identity.Name)
	return []string{"Shutdown initiated."}, nil
}
