package world

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/much-hall/gomuch/pkg/event"
)

// Disconnect reasons, for logging and farewell notices.
const (
	ReasonQuit      = "quit"
	ReasonIdle      = "idle"
	ReasonTransport = "transport-failure"
	ReasonEvicted   = "logged in elsewhere"
	ReasonBooted    = "booted"
	ReasonShutdown  = "server shutdown"
)

// Options tunes a World.
type Options struct {
	QueueCap   int     // per-session delivery queue capacity
	FloodRate  float64 // admitted commands per second per session
	FloodBurst int     // admission burst
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{QueueCap: 256, FloodRate: 4, FloodBurst: 10}
}

// World owns the Room Graph, the Session Registry and the occupancy index
// that ties them together: one consistency domain behind one RWMutex.
// Reads (Who, OccupantsOf, Resolve) share the lock; writes (Connect,
// Disconnect, Move and fan-out audience selection) are exclusive and each is
// a single atomic transition. Delivery queues have their own locks, so
// fanning an event to N occupants costs N short per-queue sections after the
// engine lock is released, never one engine-wide section held across
// transport I/O.
type World struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	sessions   map[string]*Session // by session ID
	byIdentity map[string]*Session // lowercased identity name -> live session
	guestSeq   int
	opts       Options
	stopFn     func() // invoked (once, from a fresh goroutine) on Shutdown
}

// delivery pairs a queue with one event bound for it. Deliveries are
// computed under the engine lock and performed after it is released.
type delivery struct {
	q  *Queue
	ev event.Event
}

func deliver(ds []delivery, closers []*Queue) {
	for _, d := range ds {
		d.q.Append(d.ev)
	}
	for _, q := range closers {
		q.Close()
	}
}

// New creates a world containing only the lobby.
func New(opts Options) *World {
	if opts.QueueCap <= 0 {
		opts.QueueCap = DefaultOptions().QueueCap
	}
	if opts.FloodRate <= 0 {
		opts.FloodRate = DefaultOptions().FloodRate
	}
	if opts.FloodBurst <= 0 {
		opts.FloodBurst = DefaultOptions().FloodBurst
	}
	w := &World{
		rooms:      make(map[string]*Room),
		sessions:   make(map[string]*Session),
		byIdentity: make(map[string]*Session),
		opts:       opts,
	}
	w.rooms[LobbyID] = &Room{
		ID:        LobbyID,
		Name:      "The Lobby",
		Desc:      "A wide, well-lit entrance hall. Everyone starts here.",
		occupants: make(map[string]*Session),
	}
	return w
}

// SetStopFunc registers the callback invoked by Shutdown.
func (w *World) SetStopFunc(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopFn = fn
}

// --- Room graph ---

// AddRoom installs a room into the graph. Exit targets must already exist
// (or be added before any session can reach them); worldfile validation
// enforces this for loaded topologies. Replacing the lobby keeps its ID.
func (w *World) AddRoom(r *Room) error {
	if r == nil || canonicalID(r.ID) == "" {
		return fmt.Errorf("room must have an ID")
	}
	id := canonicalID(r.ID)
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.rooms[id]; ok && len(existing.occupants) > 0 {
		// Keep live occupancy when a topology reload replaces a room.
		r.occupants = existing.occupants
	}
	if r.occupants == nil {
		r.occupants = make(map[string]*Session)
	}
	r.ID = id
	w.rooms[id] = r
	return nil
}

// Resolve maps a room reference (canonical ID or case-insensitive display
// name) to a room ID.
func (w *World) Resolve(ref string) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, err := w.resolveLocked(ref)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// resolveLocked resolves a reference under the lock (either mode).
func (w *World) resolveLocked(ref string) (*Room, error) {
	id := canonicalID(ref)
	if r, ok := w.rooms[id]; ok {
		return r, nil
	}
	for _, r := range w.rooms {
		if strings.EqualFold(r.Name, strings.TrimSpace(ref)) {
			return r, nil
		}
	}
	return nil, ErrUnknownRoom
}

// ExitsOf returns the ordered exits of a room.
func (w *World) ExitsOf(roomID string) ([]Exit, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.rooms[canonicalID(roomID)]
	if !ok {
		return nil, ErrUnknownRoom
	}
	out := make([]Exit, len(r.Exits))
	copy(out, r.Exits)
	return out, nil
}

// OccupantsOf returns the session IDs currently in a room. This is a view
// over the single occupancy index, not duplicated state.
func (w *World) OccupantsOf(roomID string) ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.rooms[canonicalID(roomID)]
	if !ok {
		return nil, ErrUnknownRoom
	}
	ids := make([]string, 0, len(r.occupants))
	for id := range r.occupants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// RoomIsEmpty reports whether a room has no occupants.
func (w *World) RoomIsEmpty(roomID string) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.rooms[canonicalID(roomID)]
	if !ok {
		return false, ErrUnknownRoom
	}
	return r.isEmpty(), nil
}

// RoomLastVacated returns when a room last became empty (zero if it has
// never been occupied or is occupied now).
func (w *World) RoomLastVacated(roomID string) (time.Time, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.rooms[canonicalID(roomID)]
	if !ok {
		return time.Time{}, ErrUnknownRoom
	}
	if !r.isEmpty() {
		return time.Time{}, nil
	}
	return r.lastVacated, nil
}

// CreatePrivateRoom creates a room on demand for an identified (non-guest)
// session. The room gets an "out" exit back to the lobby. The creator is
// not moved into it.
func (w *World) CreatePrivateRoom(sessionID, name, secret string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("room name required")
	}
	id := slugify(name)
	if id == "" {
		return "", fmt.Errorf("room name required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		return "", ErrNotConnected
	}
	if s.Identity.Guest {
		return "", ErrAccessDenied
	}
	if _, taken := w.rooms[id]; taken {
		return "", ErrNameCollision
	}
	for _, r := range w.rooms {
		if strings.EqualFold(r.Name, name) {
			return "", ErrNameCollision
		}
	}

	w.rooms[id] = &Room{
		ID:          id,
		Name:        name,
		Desc:        fmt.Sprintf("A private room created by %s.", s.Identity.Name),
		Exits:       []Exit{{Name: "out", Target: LobbyID}},
		Private:     true,
		Secret:      secret,
		Owner:       s.Identity.Name,
		occupants:   make(map[string]*Session),
		lastVacated: time.Now(),
	}
	return id, nil
}

// ReapPrivateRooms destroys private rooms that have been empty for longer
// than retention. The lobby and occupied rooms are never touched. Returns
// the IDs of destroyed rooms.
func (w *World) ReapPrivateRooms(retention time.Duration) []string {
	cutoff := time.Now().Add(-retention)
	w.mu.Lock()
	defer w.mu.Unlock()

	var reaped []string
	for id, r := range w.rooms {
		if !r.Private || id == LobbyID {
			continue
		}
		if r.isEmpty() && !r.lastVacated.IsZero() && r.lastVacated.Before(cutoff) {
			delete(w.rooms, id)
			reaped = append(reaped, id)
		}
	}
	sort.Strings(reaped)
	return reaped
}

// --- Session registry ---

// Connect creates a session positioned in the lobby and announces the
// arrival to its other occupants. If the identity already has a live
// session, policy is keep-newest/kick-oldest: the prior session receives a
// system notice and is forcibly disconnected before the new one counts.
func (w *World) Connect(transport TransportKind, ident Identity) *Session {
	now := time.Now()

	w.mu.Lock()

	if ident.Guest && ident.Name == "" {
		w.guestSeq++
		ident.Name = fmt.Sprintf("Guest-%d", w.guestSeq)
	}

	var ds []delivery
	var closers []*Queue

	if prior, ok := w.byIdentity[strings.ToLower(ident.Name)]; ok && !prior.gone {
		ds = append(ds, delivery{prior.queue, event.Notice("You have connected from elsewhere; this session is now closed.")})
		ds = append(ds, w.removeSessionLocked(prior, ReasonEvicted)...)
		closers = append(closers, prior.queue)
	}

	s := &Session{
		ID:          newSessionID(),
		Identity:    ident,
		Transport:   transport,
		queue:       NewQueue(w.opts.QueueCap),
		limiter:     newTokenBucket(w.opts.FloodRate, w.opts.FloodBurst),
		room:        LobbyID,
		connectedAt: now,
		lastActive:  now,
		lastPoll:    now,
		muted:       make(map[string]struct{}),
	}
	w.sessions[s.ID] = s
	w.byIdentity[strings.ToLower(ident.Name)] = s

	lobby := w.rooms[LobbyID]
	lobby.occupants[s.ID] = s
	ds = append(ds, w.fanToRoomLocked(lobby, s.ID, event.Event{
		Type: event.Arrive, Source: ident.Name, Room: LobbyID, Time: now,
	})...)

	w.mu.Unlock()
	deliver(ds, closers)
	return s
}

// Disconnect removes a session, announcing the departure to its room.
// Idempotent: disconnecting an unknown or already-gone session is a no-op.
func (w *World) Disconnect(sessionID, reason string) {
	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		w.mu.Unlock()
		return
	}
	var ds []delivery
	if reason == ReasonBooted || reason == ReasonIdle {
		ds = append(ds, delivery{s.queue, event.Notice(fmt.Sprintf("Disconnected: %s.", reason))})
	}
	ds = append(ds, w.removeSessionLocked(s, reason)...)
	w.mu.Unlock()

	deliver(ds, []*Queue{s.queue})
}

// removeSessionLocked unlinks a session from the registry and its room and
// returns the Depart fan-out. Caller holds the write lock and closes the
// session's queue after delivering.
func (w *World) removeSessionLocked(s *Session, reason string) []delivery {
	r, ok := w.rooms[s.room]
	if !ok {
		panic(fmt.Sprintf("world: session %s in nonexistent room %q", s.ID, s.room))
	}
	if _, present := r.occupants[s.ID]; !present {
		panic(fmt.Sprintf("world: session %s missing from occupant set of %q", s.ID, s.room))
	}
	delete(r.occupants, s.ID)
	if r.isEmpty() {
		r.lastVacated = time.Now()
	}
	s.gone = true
	delete(w.sessions, s.ID)
	key := strings.ToLower(s.Identity.Name)
	if w.byIdentity[key] == s {
		delete(w.byIdentity, key)
	}

	return w.fanToRoomLocked(r, s.ID, event.Event{
		Type: event.Depart, Source: s.Identity.Name, Room: r.ID, Time: time.Now(),
	})
}

// Session returns a live session by ID.
func (w *World) Session(sessionID string) (*Session, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		return nil, false
	}
	return s, true
}

// Admit charges the session's admission bucket for one command and refreshes
// its activity clock. It runs before dispatch, so rejected input never
// reaches the engine's write path.
func (w *World) Admit(sessionID string) error {
	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		w.mu.Unlock()
		return ErrNotConnected
	}
	s.lastActive = time.Now()
	w.mu.Unlock()

	if !s.limiter.allow(time.Now()) {
		return ErrRateLimited
	}
	return nil
}

// Drain empties a session's delivery queue, in append order, and refreshes
// the poll deadline for polling transports.
func (w *World) Drain(sessionID string) ([]event.Event, error) {
	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		w.mu.Unlock()
		return nil, ErrNotConnected
	}
	s.lastPoll = time.Now()
	w.mu.Unlock()

	return s.queue.DrainAll(), nil
}

// ReapIdlePolling disconnects polling sessions that have not polled within
// the grace window. Persistent transports rely on socket-level disconnect
// detection instead. Returns the evicted identity names.
func (w *World) ReapIdlePolling(grace time.Duration) []string {
	cutoff := time.Now().Add(-grace)

	w.mu.Lock()
	var stale []*Session
	for _, s := range w.sessions {
		if s.Transport == TransportPolling && s.lastPoll.Before(cutoff) {
			stale = append(stale, s)
		}
	}
	var ds []delivery
	var closers []*Queue
	var names []string
	for _, s := range stale {
		names = append(names, s.Identity.Name)
		ds = append(ds, w.removeSessionLocked(s, ReasonIdle)...)
		closers = append(closers, s.queue)
	}
	w.mu.Unlock()

	deliver(ds, closers)
	sort.Strings(names)
	return names
}

// --- Movement ---

// Move resolves ref against the session's current room exits, or failing
// that as a direct room reference, and atomically relocates the session.
// Private destinations require the room's secret (owner and admins are
// exempt). No observer ever sees the session in zero or two rooms.
func (w *World) Move(sessionID, ref, secret string) (string, error) {
	now := time.Now()

	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		w.mu.Unlock()
		return "", ErrNotConnected
	}
	from, ok := w.rooms[s.room]
	if !ok {
		panic(fmt.Sprintf("world: session %s in nonexistent room %q", s.ID, s.room))
	}

	var to *Room
	if target, found := from.exitTarget(ref); found {
		to, ok = w.rooms[target]
		if !ok {
			panic(fmt.Sprintf("world: exit %q of %q dangles to %q", ref, from.ID, target))
		}
	} else if r, err := w.resolveLocked(ref); err == nil {
		to = r
	} else {
		w.mu.Unlock()
		return "", ErrNoSuchExit
	}

	if to.Private && to.Secret != "" &&
		secret != to.Secret &&
		!strings.EqualFold(to.Owner, s.Identity.Name) &&
		!s.Identity.Admin {
		w.mu.Unlock()
		return "", ErrAccessDenied
	}

	if to.ID == from.ID {
		w.mu.Unlock()
		return to.ID, nil
	}

	// The atomic occupancy swap: both sides change under one lock hold.
	delete(from.occupants, s.ID)
	if from.isEmpty() {
		from.lastVacated = now
	}
	to.occupants[s.ID] = s
	s.room = to.ID

	ds := w.fanToRoomLocked(from, s.ID, event.Event{
		Type: event.Depart, Source: s.Identity.Name, Room: from.ID, Time: now,
	})
	ds = append(ds, w.fanToRoomLocked(to, s.ID, event.Event{
		Type: event.Arrive, Source: s.Identity.Name, Room: to.ID, Time: now,
	})...)
	dest := to.ID
	w.mu.Unlock()

	deliver(ds, nil)
	return dest, nil
}

// --- Communication ---

// fanToRoomLocked computes the deliveries of ev to every occupant of r
// except the session with ID exclude and those muting ev.Source. Caller
// holds the lock; deliveries are performed after release.
func (w *World) fanToRoomLocked(r *Room, exclude string, ev event.Event) []delivery {
	ds := make([]delivery, 0, len(r.occupants))
	for id, occ := range r.occupants {
		if id == exclude {
			continue
		}
		if ev.Source != "" && occ.isMuting(ev.Source) {
			continue
		}
		ds = append(ds, delivery{occ.queue, ev})
	}
	return ds
}

// Say fans a speech event to the session's room, including the speaker.
func (w *World) Say(sessionID, text string) error {
	return w.roomEvent(sessionID, event.Say, text)
}

// Emote fans a pose event to the session's room, including the poser.
func (w *World) Emote(sessionID, text string) error {
	return w.roomEvent(sessionID, event.Emote, text)
}

func (w *World) roomEvent(sessionID string, t event.Type, text string) error {
	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		w.mu.Unlock()
		return ErrNotConnected
	}
	r := w.rooms[s.room]
	ev := event.Event{Type: t, Source: s.Identity.Name, Room: r.ID, Text: text, Time: time.Now()}
	ds := w.fanToRoomLocked(r, "", ev)
	w.mu.Unlock()

	deliver(ds, nil)
	return nil
}

// Tell delivers a private message to one online identity. The sender always
// receives their own copy; a target who muted the sender silently receives
// nothing.
func (w *World) Tell(sessionID, targetName, text string) error {
	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		w.mu.Unlock()
		return ErrNotConnected
	}
	target, ok := w.byIdentity[strings.ToLower(targetName)]
	if !ok || target.gone {
		w.mu.Unlock()
		return ErrUnknownPerson
	}

	ev := event.Event{
		Type: event.Tell, Source: s.Identity.Name,
		Target: target.Identity.Name, Text: text, Time: time.Now(),
	}
	ds := []delivery{{s.queue, ev}}
	if target.ID != s.ID && !target.isMuting(s.Identity.Name) {
		ds = append(ds, delivery{target.queue, ev})
	}
	w.mu.Unlock()

	deliver(ds, nil)
	return nil
}

// Invite shares the session's current private room with another online
// identity: the target gets a notice carrying the room reference and its
// secret. Only occupants of a private room can invite to it.
func (w *World) Invite(sessionID, targetName string) error {
	w.mu.Lock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		w.mu.Unlock()
		return ErrNotConnected
	}
	r := w.rooms[s.room]
	if !r.Private {
		w.mu.Unlock()
		return ErrAccessDenied
	}
	target, ok := w.byIdentity[strings.ToLower(strings.TrimSpace(targetName))]
	if !ok || target.gone {
		w.mu.Unlock()
		return ErrUnknownPerson
	}
	text := fmt.Sprintf("%s invites you to %s. Enter with: go %s", s.Identity.Name, r.Name, r.ID)
	if r.Secret != "" {
		text += " " + r.Secret
	}
	ds := []delivery{{target.queue, event.Notice(text)}}
	w.mu.Unlock()

	deliver(ds, nil)
	return nil
}

// Broadcast fans an event to every live session.
func (w *World) Broadcast(ev event.Event) {
	w.mu.RLock()
	ds := make([]delivery, 0, len(w.sessions))
	for _, s := range w.sessions {
		if !s.gone {
			ds = append(ds, delivery{s.queue, ev})
		}
	}
	w.mu.RUnlock()
	deliver(ds, nil)
}

// Notify delivers a system notice to one session.
func (w *World) Notify(sessionID, text string) error {
	w.mu.RLock()
	s, ok := w.sessions[sessionID]
	w.mu.RUnlock()
	if !ok || s.gone {
		return ErrNotConnected
	}
	deliver([]delivery{{s.queue, event.Notice(text)}}, nil)
	return nil
}

// NotifyAdmins delivers a notice to every connected admin session.
func (w *World) NotifyAdmins(text string) {
	w.mu.RLock()
	var ds []delivery
	for _, s := range w.sessions {
		if !s.gone && s.Identity.Admin {
			ds = append(ds, delivery{s.queue, event.Notice(text)})
		}
	}
	w.mu.RUnlock()
	deliver(ds, nil)
}

// Shutdown announces the end of the venue to everyone and invokes the
// registered stop callback. Admin gating belongs to the dispatcher.
func (w *World) Shutdown(by string) {
	w.Broadcast(event.Event{Type: event.Announce, Source: by, Text: "The server is shutting down. Goodbye.", Time: time.Now()})
	w.mu.RLock()
	stop := w.stopFn
	w.mu.RUnlock()
	if stop != nil {
		go stop()
	}
}

// --- Preferences and views ---

// Mute suppresses events from the named identity for this session.
func (w *World) Mute(sessionID, name string) error {
	return w.setMute(sessionID, name, true)
}

// Unmute reverses Mute.
func (w *World) Unmute(sessionID, name string) error {
	return w.setMute(sessionID, name, false)
}

func (w *World) setMute(sessionID, name string, on bool) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ErrUnknownPerson
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		return ErrNotConnected
	}
	if on {
		s.muted[name] = struct{}{}
	} else {
		delete(s.muted, name)
	}
	return nil
}

// SetWherePublic opts a session in or out of exposing its location in Who.
// Locations default to withheld; showing "where" is opt-in.
func (w *World) SetWherePublic(sessionID string, public bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		return ErrNotConnected
	}
	s.wherePublic = public
	return nil
}

// WhoEntry is one row of the who snapshot.
type WhoEntry struct {
	Name      string
	Transport string
	Room      string // empty when withheld
	OnFor     time.Duration
	Idle      time.Duration
}

// Who returns a snapshot of online identities, ordered by name. A session's
// room is shown only when it opted in (and the room is public), or when the
// viewer is an admin. viewerID may be empty for an unauthenticated caller.
func (w *World) Who(viewerID string) []WhoEntry {
	now := time.Now()
	w.mu.RLock()
	defer w.mu.RUnlock()

	admin := false
	if v, ok := w.sessions[viewerID]; ok && !v.gone {
		admin = v.Identity.Admin
	}

	entries := make([]WhoEntry, 0, len(w.sessions))
	for _, s := range w.sessions {
		if s.gone {
			continue
		}
		e := WhoEntry{
			Name:      s.Identity.Name,
			Transport: s.Transport.String(),
			OnFor:     now.Sub(s.connectedAt),
			Idle:      now.Sub(s.lastActive),
		}
		r := w.rooms[s.room]
		if admin || (s.wherePublic && !r.Private) {
			e.Room = s.room
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Look returns a snapshot of the session's current room.
func (w *World) Look(sessionID string) (RoomInfo, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.sessions[sessionID]
	if !ok || s.gone {
		return RoomInfo{}, ErrNotConnected
	}
	r := w.rooms[s.room]
	info := RoomInfo{
		ID:      r.ID,
		Name:    r.Name,
		Desc:    r.Desc,
		Exits:   append([]Exit(nil), r.Exits...),
		Private: r.Private,
	}
	for _, occ := range r.occupants {
		info.Occupants = append(info.Occupants, occ.Identity.Name)
	}
	sort.Strings(info.Occupants)
	return info, nil
}

// BootIdentity forcibly disconnects the named identity's session. The
// dispatcher gates this behind admin.
func (w *World) BootIdentity(name string) error {
	w.mu.RLock()
	s, ok := w.byIdentity[strings.ToLower(name)]
	w.mu.RUnlock()
	if !ok || s.gone {
		return ErrUnknownPerson
	}
	w.Disconnect(s.ID, ReasonBooted)
	return nil
}

// Stats is a point-in-time census for metrics.
type Stats struct {
	SessionsByTransport map[string]int
	Rooms               int
	PrivateRooms        int
	QueuedEvents        int
	DroppedEvents       int // lifetime, across live sessions
}

// Census gathers counts for the metrics endpoint.
func (w *World) Census() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	st := Stats{SessionsByTransport: map[string]int{"tcp": 0, "websocket": 0, "polling": 0}}
	for _, s := range w.sessions {
		if !s.gone {
			st.SessionsByTransport[s.Transport.String()]++
		}
	}
	for _, r := range w.rooms {
		st.Rooms++
		if r.Private {
			st.PrivateRooms++
		}
	}
	for _, s := range w.sessions {
		st.QueuedEvents += s.queue.Len()
		st.DroppedEvents += s.queue.Dropped()
	}
	return st
}

// slugify derives a room ID from a display name.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
