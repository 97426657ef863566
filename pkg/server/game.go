package server

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/much-hall/gomuch/pkg/boltstore"
	"github.com/much-hall/gomuch/pkg/world"
	"github.com/much-hall/gomuch/pkg/worldfile"
)

// Game wires the world engine to its supporting services: the account and
// snapshot store, auth, cached text files and background sweeps. Transports
// talk to the engine through Game, never directly.
type Game struct {
	World *world.World
	Store *boltstore.Store // nil = in-memory only
	Conf  *Conf
	Auth  *AuthService
	Texts *TextFiles

	TextDir string

	stopCh chan struct{}
}

// NewGame builds a game around a fresh world configured from conf.
func NewGame(conf *Conf, store *boltstore.Store) *Game {
	w := world.New(world.Options{
		QueueCap:   conf.QueueCap,
		FloodRate:  conf.FloodRate,
		FloodBurst: conf.FloodBurst,
	})
	g := &Game{
		World:  w,
		Store:  store,
		Conf:   conf,
		stopCh: make(chan struct{}),
	}
	g.Auth = NewAuthService(g, conf.JWTSecret, conf.JWTExpiry)
	w.SetStopFunc(g.Stop)
	return g
}

// Done is closed when the game has been told to stop.
func (g *Game) Done() <-chan struct{} {
	return g.stopCh
}

// LoadWorld installs the room topology: the stored snapshot first if one
// exists, else the world file, else the built-in default.
func (g *Game) LoadWorld(worldFilePath string) error {
	if g.Store != nil {
		snap, err := g.Store.LoadSnapshot()
		if err == nil {
			if err := g.World.Restore(snap); err != nil {
				return fmt.Errorf("restoring snapshot: %w", err)
			}
			log.Printf("World restored from snapshot taken %s", g.Store.SavedAt().Format(time.RFC3339))
			return nil
		}
		if err != boltstore.ErrNoSnapshot {
			return fmt.Errorf("loading snapshot: %w", err)
		}
	}

	f := worldfile.Default()
	if worldFilePath != "" {
		var err error
		f, err = worldfile.Load(worldFilePath)
		if err != nil {
			return err
		}
		log.Printf("Loaded world file %s (%d rooms)", worldFilePath, len(f.Rooms))
	}
	return f.Apply(g.World)
}

// SaveSnapshot persists the current world state.
func (g *Game) SaveSnapshot() error {
	if g.Store == nil {
		return nil
	}
	return g.Store.PutSnapshot(g.World.Snapshot())
}

// --- Session attachment ---

// validName enforces identity name rules shared by both transports.
func validName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 32 {
		return fmt.Errorf("names must be 2 to 32 characters")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("names may only contain letters, digits, - and _")
		}
	}
	if strings.HasPrefix(strings.ToLower(name), "guest-") {
		return fmt.Errorf("that name is reserved")
	}
	return nil
}

// AttachAccount authenticates against the account store and connects a
// session for the account's identity.
func (g *Game) AttachAccount(transport world.TransportKind, name, password string) (*world.Session, error) {
	acct, err := g.Auth.Verify(name, password)
	if err != nil {
		return nil, err
	}
	s := g.World.Connect(transport, world.Identity{Name: acct.Name, Admin: acct.Admin})
	connectionsTotal.WithLabelValues(transport.String()).Inc()
	log.Printf("[%s] %s connected (%s)", s.ID[:8], acct.Name, transport)
	return s, nil
}

// AttachGuest connects an anonymous guest session.
func (g *Game) AttachGuest(transport world.TransportKind) (*world.Session, error) {
	if !g.Conf.GuestsAllowed {
		return nil, fmt.Errorf("guest access is disabled")
	}
	s := g.World.Connect(transport, world.Identity{Guest: true})
	connectionsTotal.WithLabelValues(transport.String()).Inc()
	log.Printf("[%s] %s connected as guest (%s)", s.ID[:8], s.Identity.Name, transport)
	return s, nil
}

// AttachIdentity connects a session for an already-authenticated identity.
// Used when a valid token switches transports.
func (g *Game) AttachIdentity(transport world.TransportKind, ident world.Identity) *world.Session {
	s := g.World.Connect(transport, ident)
	connectionsTotal.WithLabelValues(transport.String()).Inc()
	log.Printf("[%s] %s connected (%s)", s.ID[:8], s.Identity.Name, transport)
	return s
}

// CreateAccountSession registers a new account and connects it. The first
// account ever created becomes an admin.
func (g *Game) CreateAccountSession(transport world.TransportKind, name, password string) (*world.Session, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	admin := g.Store == nil || !g.Store.HasAccounts()
	acct, err := g.Auth.Register(name, password, admin)
	if err != nil {
		return nil, err
	}
	s := g.World.Connect(transport, world.Identity{Name: acct.Name, Admin: acct.Admin})
	connectionsTotal.WithLabelValues(transport.String()).Inc()
	log.Printf("[%s] new account %s created (admin=%v, %s)", s.ID[:8], acct.Name, acct.Admin, transport)
	return s, nil
}

// SubmitLine is the boundary operation for one line of user input: admission
// first, then dispatch. Rejected input never reaches the engine's write path.
func (g *Game) SubmitLine(sessionID, line string) ([]string, error) {
	if err := g.World.Admit(sessionID); err != nil {
		return nil, err
	}
	commandsTotal.Inc()
	return Dispatch(g, sessionID, line)
}

// --- Background sweeps ---

// StartSweeps launches the periodic maintenance loops: reaping idle polling
// sessions, destroying stale private rooms, and auto-saving snapshots. They
// run until the game stops.
func (g *Game) StartSweeps() {
	grace := g.Conf.PollGraceDuration()
	go g.runSweep(grace/2, func() {
		if names := g.World.ReapIdlePolling(grace); len(names) > 0 {
			log.Printf("Reaped %d idle polling session(s): %s", len(names), strings.Join(names, ", "))
		}
	})

	retention := g.Conf.RetentionDuration()
	go g.runSweep(time.Minute, func() {
		if ids := g.World.ReapPrivateRooms(retention); len(ids) > 0 {
			log.Printf("Reaped %d empty private room(s): %s", len(ids), strings.Join(ids, ", "))
		}
	})

	if g.Store != nil && g.Conf.AutosaveMinutes > 0 {
		interval := time.Duration(g.Conf.AutosaveMinutes) * time.Minute
		go g.runSweep(interval, func() {
			if err := g.SaveSnapshot(); err != nil {
				log.Printf("Auto-save failed: %v", err)
			} else {
				log.Printf("Auto-save: world snapshot written to %s", g.Store.Path())
			}
		})
		log.Printf("Auto-save every %d minutes", g.Conf.AutosaveMinutes)
	}
}

func (g *Game) runSweep(interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-g.stopCh:
			return
		}
	}
}

// Stop ends the sweeps and saves a final snapshot. Safe to call once.
func (g *Game) Stop() {
	select {
	case <-g.stopCh:
		return
	default:
	}
	close(g.stopCh)
	if err := g.SaveSnapshot(); err != nil {
		log.Printf("Final snapshot failed: %v", err)
	}
}
