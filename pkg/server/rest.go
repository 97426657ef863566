package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/much-hall/gomuch/pkg/world"
)

// RegisterRESTRoutes registers the polling gateway endpoints on the web
// server's mux. A polling client logs in, then alternates POST /do and
// GET /be, and says goodbye with POST /leave. Sessions that stop polling
// are reaped after the configured grace window.
func (ws *WebServer) RegisterRESTRoutes() {
	ws.mux.HandleFunc("POST /api/v1/login", ws.handleLogin)
	ws.mux.HandleFunc("POST /api/v1/guest", ws.handleGuest)

	ws.mux.Handle("POST /api/v1/do",
		authMiddleware(ws.auth, true, http.HandlerFunc(ws.handleDo)))
	ws.mux.Handle("GET /api/v1/be",
		authMiddleware(ws.auth, true, http.HandlerFunc(ws.handleBe)))
	ws.mux.Handle("POST /api/v1/leave",
		authMiddleware(ws.auth, true, http.HandlerFunc(ws.handleLeave)))

	ws.mux.Handle("GET /api/v1/who",
		authMiddleware(ws.auth, false, http.HandlerFunc(ws.handleWho)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// loginResponse is the body of a successful login or guest attach.
type loginResponse struct {
	Token   string `json:"token"`
	Name    string `json:"name"`
	Session string `json:"session"`
	Admin   bool   `json:"admin,omitempty"`
	Guest   bool   `json:"guest,omitempty"`
	Motd    string `json:"motd,omitempty"`
}

// handleLogin authenticates an account (or registers one when create is
// set) and attaches a polling session.
func (ws *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
		Create   bool   `json:"create,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var session *world.Session
	var err error
	if req.Create {
		session, err = ws.game.CreateAccountSession(world.TransportPolling, req.Name, req.Password)
	} else {
		session, err = ws.game.AttachAccount(world.TransportPolling, req.Name, req.Password)
	}
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.respondLogin(w, session)
}

// handleGuest attaches an anonymous polling session.
func (ws *WebServer) handleGuest(w http.ResponseWriter, r *http.Request) {
	session, err := ws.game.AttachGuest(world.TransportPolling)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	ws.respondLogin(w, session)
}

func (ws *WebServer) respondLogin(w http.ResponseWriter, session *world.Session) {
	token, err := ws.auth.TokenForSession(session)
	if err != nil {
		ws.game.World.Disconnect(session.ID, world.ReasonTransport)
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}
	motdKey := "motd"
	if session.Identity.Guest {
		motdKey = "guest"
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:   token,
		Name:    session.Identity.Name,
		Session: session.ID,
		Admin:   session.Identity.Admin,
		Guest:   session.Identity.Guest,
		Motd:    ws.game.textOrEmpty(motdKey),
	})
}

// handleDo submits one command line and returns its immediate output.
// Hearable effects land in the delivery queue and come back via /be.
func (ws *WebServer) handleDo(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	var req struct {
		Line string `json:"line"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Line == "" {
		writeError(w, http.StatusBadRequest, "line is required")
		return
	}

	lines, err := ws.game.SubmitLine(claims.SessionID, req.Line)
	if err != nil {
		switch {
		case errors.Is(err, world.ErrNotConnected):
			writeError(w, http.StatusGone, "session expired")
		case errors.Is(err, world.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case world.IsUserError(err):
			// Recoverable; surface as output so clients show it inline.
			writeJSON(w, http.StatusOK, map[string]any{"output": []string{capitalize(err.Error())}})
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"output": lines})
}

// handleBe drains the session's delivery queue. Each poll refreshes the
// idle-reap deadline, so a client that keeps polling stays connected.
func (ws *WebServer) handleBe(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	evs, err := ws.game.World.Drain(claims.SessionID)
	if err != nil {
		writeError(w, http.StatusGone, "session expired")
		return
	}
	frames := make([]map[string]any, 0, len(evs))
	for _, ev := range evs {
		frames = append(frames, ev.Data())
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": frames})
}

// handleLeave disconnects the session deliberately.
func (ws *WebServer) handleLeave(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	ws.game.World.Disconnect(claims.SessionID, world.ReasonQuit)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleWho returns the who roster. Location visibility follows the same
// rules as the in-venue who command; an unauthenticated caller sees none.
func (ws *WebServer) handleWho(w http.ResponseWriter, r *http.Request) {
	viewerID := ""
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		viewerID = claims.SessionID
	}

	type whoEntry struct {
		Name      string `json:"name"`
		Transport string `json:"transport"`
		Room      string `json:"room,omitempty"`
		OnFor     string `json:"on_for"`
		Idle      string `json:"idle"`
	}

	entries := ws.game.World.Who(viewerID)
	out := make([]whoEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, whoEntry{
			Name:      e.Name,
			Transport: e.Transport,
			Room:      e.Room,
			OnFor:     formatDuration(e.OnFor),
			Idle:      formatDuration(e.Idle),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"people": out,
		"count":  len(out),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
