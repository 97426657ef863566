package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/much-hall/gomuch/pkg/event"
	"github.com/much-hall/gomuch/pkg/world"
)

// WebServer provides the HTTP polling gateway and the WebSocket transport
// alongside the TCP server. It shares the game's auth service, so a token
// issued over one transport is valid on the other.
type WebServer struct {
	game      *Game
	conf      *Conf
	httpSrv   *http.Server
	mux       *http.ServeMux
	auth      *AuthService
	rl        *rateLimiter
	upgrader  websocket.Upgrader
	metrics   *Metrics
	startTime time.Time
}

// NewWebServer creates a web server bound to the game.
func NewWebServer(game *Game, conf *Conf) *WebServer {
	ws := &WebServer{
		game:      game,
		conf:      conf,
		mux:       http.NewServeMux(),
		auth:      game.Auth,
		rl:        newRateLimiter(conf.WebRateLimit),
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(conf.WebCORSOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range conf.WebCORSOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}
	ws.registerRoutes()
	return ws
}

// registerRoutes sets up all HTTP routes. Global middleware order is
// CORS -> rate limit -> mux.
func (ws *WebServer) registerRoutes() {
	handler := http.Handler(ws.mux)
	handler = rateLimitMiddleware(ws.rl, handler)
	handler = corsMiddleware(ws.conf.WebCORSOrigins, handler)

	ws.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", ws.conf.WebHost, ws.conf.WebPort),
		Handler: handler,
	}

	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)

	ws.RegisterRESTRoutes()

	ws.mux.HandleFunc("GET /health", ws.handleHealth)

	ws.metrics = NewMetrics(ws.game, ws.startTime)
	ws.mux.Handle("GET /metrics", ws.metrics.Handler())
}

// Start begins listening. Uses HTTPS when TLS material is available, falls
// back to plain HTTP otherwise (development mode).
func (ws *WebServer) Start() error {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			ws.rl.cleanup()
		}
	}()

	hasTLS := ws.conf.WebDomain != "" || (ws.conf.TLSCert != "" && ws.conf.TLSKey != "") || ws.conf.CertDir != ""
	if hasTLS {
		result, err := SetupTLS(ws.conf)
		if err != nil {
			log.Printf("web: TLS setup failed (%v), falling back to HTTP", err)
		} else {
			ws.httpSrv.TLSConfig = result.Config

			// Let's Encrypt needs an HTTP listener on :80 for ACME
			// challenges; it also redirects HTTP to HTTPS.
			if result.AutocertMgr != nil {
				go func() {
					httpSrv := &http.Server{
						Addr:    ":80",
						Handler: result.AutocertMgr.HTTPHandler(nil),
					}
					log.Printf("ACME HTTP challenge listener on :80")
					if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Printf("ACME HTTP listener error: %v", err)
					}
				}()
			}

			log.Printf("Web gateway listening on %s (HTTPS)", ws.httpSrv.Addr)
			err = ws.httpSrv.ListenAndServeTLS("", "")
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	}

	log.Printf("Web gateway listening on %s (HTTP)", ws.httpSrv.Addr)
	err := ws.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the web server.
func (ws *WebServer) Stop(ctx context.Context) error {
	return ws.httpSrv.Shutdown(ctx)
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"venue":          ws.conf.VenueName,
		"version":        Version,
		"uptime_seconds": time.Since(ws.startTime).Seconds(),
	})
}

// --- WebSocket transport ---

// WSMessage is the JSON frame format on the WebSocket. Client to server:
// {"type":"command","command":"say hi"}. Server to client: event frames
// (type mirrors the event type) and "text" frames for command output.
type WSMessage struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Command string         `json:"command,omitempty"`
}

// wsConn serializes writes to a WebSocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (wc *wsConn) sendJSON(msg WSMessage) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	wc.conn.WriteJSON(msg)
}

// handleWebSocket upgrades the connection and attaches a WebSocket session
// for the token's identity. A valid token is required; clients obtain one
// from /api/v1/login or /api/v1/guest first. The keep-newest login policy
// retires the polling session the token was issued against.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = h[7:]
		}
	}
	claims, err := ws.auth.ValidateToken(token)
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	wc := &wsConn{conn: conn}

	session := ws.game.AttachIdentity(world.TransportWebSocket, world.Identity{
		Name:  claims.Name,
		Admin: claims.Admin,
		Guest: claims.Guest,
	})

	wc.sendJSON(WSMessage{Type: "welcome", Data: map[string]any{
		"name":    session.Identity.Name,
		"session": session.ID,
	}})

	go ws.wsPump(session, wc)
	ws.wsReadLoop(session, wc, clientAddr(r))
}

// wsPump renders the session's delivery queue as JSON frames until the
// queue closes, then closes the socket.
func (ws *WebServer) wsPump(session *world.Session, wc *wsConn) {
	q := session.Queue()
	for {
		_, open := <-q.Wake()
		for _, ev := range q.DrainAll() {
			wc.sendJSON(eventFrame(ev))
		}
		if !open {
			wc.conn.Close()
			return
		}
	}
}

func eventFrame(ev event.Event) WSMessage {
	return WSMessage{Type: ev.Type.String(), Text: ev.Text, Data: ev.Data()}
}

func (ws *WebServer) wsReadLoop(session *world.Session, wc *wsConn, addr string) {
	defer func() {
		ws.game.World.Disconnect(session.ID, world.ReasonTransport)
		wc.conn.Close()
		log.Printf("[%s] WebSocket closed from %s", session.ID[:8], addr)
	}()

	for {
		_, msgBytes, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[%s] websocket read error: %v", session.ID[:8], err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			wc.sendJSON(WSMessage{Type: "error", Text: "Invalid JSON message"})
			continue
		}
		if msg.Type != "command" {
			wc.sendJSON(WSMessage{Type: "error", Text: fmt.Sprintf("Unknown message type: %s", msg.Type)})
			continue
		}

		lines, err := ws.game.SubmitLine(session.ID, msg.Command)
		if err != nil {
			if world.IsUserError(err) {
				wc.sendJSON(WSMessage{Type: "error", Text: capitalize(err.Error())})
				continue
			}
			log.Printf("[%s] websocket command failed: %v", session.ID[:8], err)
			wc.sendJSON(WSMessage{Type: "error", Text: "Something went wrong."})
			continue
		}
		for _, line := range lines {
			wc.sendJSON(WSMessage{Type: "text", Text: line})
		}
		if _, ok := ws.game.World.Session(session.ID); !ok {
			return
		}
	}
}

// clientAddr returns the real client address, honoring reverse-proxy
// headers.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}
