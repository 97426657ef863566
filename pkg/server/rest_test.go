package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/much-hall/gomuch/pkg/world"
)

// testGateway builds a game plus its web gateway handler.
func testGateway(t *testing.T) (*Game, http.Handler) {
	t.Helper()
	g := testGameWithStore(t)
	ws := NewWebServer(g, g.Conf)
	return g, ws.httpSrv.Handler
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestGatewayGuestLoginDoBe(t *testing.T) {
	g, h := testGateway(t)

	// Another occupant to hear the speech.
	bob := g.World.Connect(world.TransportTCP, world.Identity{Name: "bob"})
	bob.Queue().DrainAll()

	rec := doJSON(t, h, "POST", "/api/v1/guest", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest: status %d body %s", rec.Code, rec.Body.String())
	}
	var login loginResponse
	decodeBody(t, rec, &login)
	if login.Token == "" || !login.Guest || !strings.HasPrefix(login.Name, "Guest-") {
		t.Fatalf("unexpected login response: %+v", login)
	}

	rec = doJSON(t, h, "POST", "/api/v1/do", login.Token, map[string]string{"line": "say hello web"})
	if rec.Code != http.StatusOK {
		t.Fatalf("do: status %d body %s", rec.Code, rec.Body.String())
	}

	// The guest's own echo arrives via the event stream.
	rec = doJSON(t, h, "GET", "/api/v1/be", login.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("be: status %d", rec.Code)
	}
	var poll struct {
		Events []map[string]any `json:"events"`
	}
	decodeBody(t, rec, &poll)
	var sawSay bool
	for _, ev := range poll.Events {
		if ev["type"] == "say" && ev["text"] == "hello web" {
			sawSay = true
		}
	}
	if !sawSay {
		t.Errorf("own say event missing from poll: %v", poll.Events)
	}

	if heard := bob.Queue().DrainAll(); len(heard) == 0 {
		t.Error("tcp occupant heard nothing")
	}
}

func TestGatewayAccountLoginAndCreate(t *testing.T) {
	_, h := testGateway(t)

	rec := doJSON(t, h, "POST", "/api/v1/login", "", map[string]any{
		"name": "alice", "password": "hunter2", "create": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created loginResponse
	decodeBody(t, rec, &created)
	if created.Name != "alice" || !created.Admin {
		t.Fatalf("first created account: %+v", created)
	}

	rec = doJSON(t, h, "POST", "/api/v1/login", "", map[string]any{
		"name": "alice", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status %d", rec.Code)
	}

	rec = doJSON(t, h, "POST", "/api/v1/login", "", map[string]any{
		"name": "alice", "password": "hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("relogin: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestGatewayDoRequiresAuth(t *testing.T) {
	_, h := testGateway(t)

	rec := doJSON(t, h, "POST", "/api/v1/do", "", map[string]string{"line": "look"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated do: status %d", rec.Code)
	}
	rec = doJSON(t, h, "POST", "/api/v1/do", "not-a-token", map[string]string{"line": "look"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status %d", rec.Code)
	}
}

func TestGatewayLeaveEndsSession(t *testing.T) {
	_, h := testGateway(t)

	rec := doJSON(t, h, "POST", "/api/v1/guest", "", nil)
	var login loginResponse
	decodeBody(t, rec, &login)

	rec = doJSON(t, h, "POST", "/api/v1/leave", login.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leave: status %d", rec.Code)
	}

	rec = doJSON(t, h, "GET", "/api/v1/be", login.Token, nil)
	if rec.Code != http.StatusGone {
		t.Errorf("poll after leave: status %d, want 410", rec.Code)
	}
	rec = doJSON(t, h, "POST", "/api/v1/do", login.Token, map[string]string{"line": "look"})
	if rec.Code != http.StatusGone {
		t.Errorf("do after leave: status %d, want 410", rec.Code)
	}
}

func TestGatewayUserErrorsAreInlineOutput(t *testing.T) {
	_, h := testGateway(t)

	rec := doJSON(t, h, "POST", "/api/v1/guest", "", nil)
	var login loginResponse
	decodeBody(t, rec, &login)

	rec = doJSON(t, h, "POST", "/api/v1/do", login.Token, map[string]string{"line": "go nowhere"})
	if rec.Code != http.StatusOK {
		t.Fatalf("do: status %d", rec.Code)
	}
	var resp struct {
		Output []string `json:"output"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Output) == 0 || !strings.Contains(resp.Output[0], "can't go that way") {
		t.Errorf("want inline user error, got %v", resp.Output)
	}
}

func TestGatewayWho(t *testing.T) {
	g, h := testGateway(t)
	g.World.Connect(world.TransportTCP, world.Identity{Name: "bob"})

	rec := doJSON(t, h, "GET", "/api/v1/who", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("who: status %d", rec.Code)
	}
	var resp struct {
		People []map[string]any `json:"people"`
		Count  int              `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 1 || len(resp.People) != 1 {
		t.Fatalf("who count %d people %v", resp.Count, resp.People)
	}
	if resp.People[0]["name"] != "bob" {
		t.Errorf("who entry: %v", resp.People[0])
	}
	if room, ok := resp.People[0]["room"]; ok && room != "" {
		t.Errorf("location leaked to anonymous who: %v", room)
	}
}

func TestGatewayHealthAndMetrics(t *testing.T) {
	_, h := testGateway(t)

	rec := doJSON(t, h, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: status %d", rec.Code)
	}
	var health map[string]any
	decodeBody(t, rec, &health)
	if health["status"] != "ok" {
		t.Errorf("health: %v", health)
	}

	rec = doJSON(t, h, "GET", "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gomuch_sessions_connected") {
		t.Error("census gauges missing from scrape")
	}
}

func TestGatewayRateLimit(t *testing.T) {
	g := testGameWithStore(t)
	g.Conf.WebRateLimit = 3
	ws := NewWebServer(g, g.Conf)
	h := ws.httpSrv.Handler

	var limited bool
	for i := 0; i < 6; i++ {
		rec := doJSON(t, h, "GET", "/health", "", nil)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("per-IP rate limit never tripped")
	}
}
