package world

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// TransportKind identifies how a session's events leave the server.
type TransportKind int

const (
	TransportTCP       TransportKind = iota // Persistent line-oriented socket
	TransportWebSocket                      // Persistent WebSocket (JSON events)
	TransportPolling                        // HTTP gateway, drained on each poll
)

// String returns a short name for the transport.
func (k TransportKind) String() string {
	switch k {
	case TransportTCP:
		return "tcp"
	case TransportWebSocket:
		return "websocket"
	case TransportPolling:
		return "polling"
	default:
		return "unknown"
	}
}

// Persistent reports whether the transport holds a long-lived connection
// that is pushed to, as opposed to draining on poll.
func (k TransportKind) Persistent() bool {
	return k == TransportTCP || k == TransportWebSocket
}

// Identity is who a session speaks as. Guests are server-assigned unique
// names; registered identities come from the account store.
type Identity struct {
	Name  string
	Guest bool
	Admin bool
}

// Session is one logical connected participant, independent of transport.
// All mutable fields are guarded by the owning World's lock; the delivery
// queue and admission bucket carry their own finer locks.
type Session struct {
	ID        string // opaque token, independent of transport
	Identity  Identity
	Transport TransportKind

	queue   *Queue
	limiter *tokenBucket

	// Guarded by World.mu.
	room        string // current room ID; always denotes an existing room
	connectedAt time.Time
	lastActive  time.Time
	lastPoll    time.Time
	wherePublic bool                // opted in to showing location in who
	muted       map[string]struct{} // identity names whose events are suppressed
	gone        bool
}

// Queue returns the session's delivery queue for the transport adapter.
func (s *Session) Queue() *Queue {
	return s.queue
}

// isMuting reports whether events from the named identity are suppressed.
// Caller holds World.mu.
func (s *Session) isMuting(name string) bool {
	_, ok := s.muted[strings.ToLower(name)]
	return ok
}

// newSessionID generates an opaque 128-bit session token.
func newSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
