package main

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

type testServer struct {
	srv   *httptest.Server
	wsURL string
	world *World
	hub   *Hub
}

// startTestServer spins up an httptest.Server with a running game. mutate may
// adjust the config before anything is built.
func startTestServer(t *testing.T, db *DB, mutate func(*Config)) *testServer {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Food.Target = 0
	cfg.Loop = testLoopConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	// Create a temp client dir with a minimal index.html
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)

	var analytics *Analytics
	if db != nil {
		analytics = NewAnalytics(db)
	}
	names := NewNamePool(nil)
	world := NewWorld(cfg, names, rand.New(rand.NewPCG(1, 2)))
	sessions := NewSessionManager(world, names, analytics)
	game := NewGame(world, sessions, analytics, cfg.Loop, cfg.Server.StateEncoding)
	game.Run()

	hub := NewHub(sessions, cfg.Server)
	go hub.Run()

	srv := httptest.NewServer(SetupRoutes(hub, world, db, tmpDir))
	t.Cleanup(func() {
		srv.Close()
		game.Stop()
		analytics.Stop()
	})

	return &testServer{
		srv:   srv,
		wsURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		world: world,
		hub:   hub,
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads one message from the WebSocket.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	// Binary messages are msgpack-encoded entity lists
	if msgType == websocket.BinaryMessage {
		var entities []EntityState
		if err := msgpack.Unmarshal(raw, &entities); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return Envelope{T: MsgState, Data: entities}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

// readUntil skips messages until one named msgType arrives and match accepts it.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string, match func(Envelope) bool) Envelope {
	t.Helper()
	for range 500 {
		env := readEnvelope(t, conn)
		if env.T == msgType && (match == nil || match(env)) {
			return env
		}
	}
	t.Fatalf("no matching %q message", msgType)
	return Envelope{}
}

// sendMsg sends a named message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// entities extracts the entity list from a state envelope.
func entities(t *testing.T, env Envelope) []EntityState {
	t.Helper()
	if list, ok := env.Data.([]EntityState); ok {
		return list
	}
	raw, _ := json.Marshal(env.Data)
	var list []EntityState
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode entities: %v", err)
	}
	return list
}

func findEntity(list []EntityState, id uint64) (EntityState, bool) {
	for _, e := range list {
		if e.ID == id {
			return e, true
		}
	}
	return EntityState{}, false
}

// connectPlayer dials, reads the init message and returns the player id.
func connectPlayer(t *testing.T, ts *testServer, name string) (*websocket.Conn, uint64) {
	t.Helper()
	url := ts.wsURL
	if name != "" {
		url += "?name=" + name
	}
	conn := dialWS(t, url)
	env := readEnvelope(t, conn)
	if env.T != MsgInit {
		t.Fatalf("expected %q first, got %q", MsgInit, env.T)
	}
	return conn, uint64(dataMap(t, env)["id"].(float64))
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

// ---------- tests ----------

func TestIntegrationInitResponse(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	conn := dialWS(t, ts.wsURL)

	env := readEnvelope(t, conn)
	if env.T != MsgInit {
		t.Fatalf("expected %q, got %q", MsgInit, env.T)
	}
	d := dataMap(t, env)
	if d["id"].(float64) < 1 || d["width"].(float64) != 1000 || d["height"].(float64) != 500 {
		t.Errorf("unexpected init payload %v", d)
	}
}

func TestIntegrationStateIncludesPlayer(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	conn, id := connectPlayer(t, ts, "alice")

	env := readUntil(t, conn, MsgState, nil)
	e, ok := findEntity(entities(t, env), id)
	if !ok {
		t.Fatalf("player %d missing from state", id)
	}
	if e.Kind != "player" || e.Name != "alice" || e.Radius != 10 {
		t.Errorf("unexpected player state %+v", e)
	}
}

func TestIntegrationInputSteersPlayer(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	conn, id := connectPlayer(t, ts, "")

	sendMsg(t, conn, MsgInput, map[string]float64{"x": 900, "y": 60})
	readUntil(t, conn, MsgState, func(env Envelope) bool {
		e, ok := findEntity(entities(t, env), id)
		return ok && e.Position.X > 65 && e.Velocity.X > 0
	})
}

func TestIntegrationMalformedInputIgnored(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	conn, id := connectPlayer(t, ts, "bob")

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	sendMsg(t, conn, MsgInput, map[string]interface{}{"x": "left", "y": 10})
	sendMsg(t, conn, MsgInput, map[string]interface{}{"x": 900})
	sendMsg(t, conn, "unknown message", nil)

	// Connection survives and the player has not moved
	sendMsg(t, conn, MsgChat, "still here")
	readUntil(t, conn, MsgChat, func(env Envelope) bool {
		return dataMap(t, env)["text"] == "still here"
	})
	env := readUntil(t, conn, MsgState, nil)
	e, ok := findEntity(entities(t, env), id)
	if !ok || e.Position.X != 60 || e.Position.Y != 60 {
		t.Errorf("player moved after malformed input: %+v", e)
	}
}

func TestIntegrationSustainedInputKeepsPlayer(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	conn, id := connectPlayer(t, ts, "")

	// About 120 moves per second for well over a second
	for i := range 150 {
		sendMsg(t, conn, MsgInput, map[string]float64{"x": float64(100 + i*5), "y": 60})
		time.Sleep(8 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	if !ts.world.Alive(id) {
		t.Fatal("player removed while steering")
	}
	if n := ts.hub.TotalConns(); n != 1 {
		t.Errorf("total conns = %d, want 1", n)
	}
}

func TestIntegrationChatFloodDisconnects(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	conn, id := connectPlayer(t, ts, "")

	raw, _ := json.Marshal(Envelope{T: MsgChat, Data: "spam"})
	for range maxMessagesPerSec + 10 {
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			break
		}
	}
	waitFor(t, func() bool { return !ts.world.Alive(id) })
	waitFor(t, func() bool { return ts.hub.TotalConns() == 0 })
}

func TestIntegrationChatEcho(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	alice, _ := connectPlayer(t, ts, "alice")
	bob, _ := connectPlayer(t, ts, "bob")

	sendMsg(t, alice, MsgChat, "hello")
	sendMsg(t, alice, MsgChat, ChatIn{Text: "object form"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		env := readUntil(t, conn, MsgChat, nil)
		d := dataMap(t, env)
		if d["text"] != "hello" || d["user"] != "alice" {
			t.Errorf("unexpected chat %v", d)
		}
		env = readUntil(t, conn, MsgChat, nil)
		if d := dataMap(t, env); d["text"] != "object form" {
			t.Errorf("unexpected chat %v", d)
		}
	}
}

func TestIntegrationSecondPlayerVisible(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	alice, _ := connectPlayer(t, ts, "alice")
	_, bobID := connectPlayer(t, ts, "bob")

	readUntil(t, alice, MsgState, func(env Envelope) bool {
		_, ok := findEntity(entities(t, env), bobID)
		return ok
	})
}

func TestIntegrationDisconnectRemovesPlayer(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	conn, id := connectPlayer(t, ts, "")
	if !ts.world.Alive(id) {
		t.Fatal("player should be live after connect")
	}

	conn.Close()
	waitFor(t, func() bool { return !ts.world.Alive(id) })
	waitFor(t, func() bool { return ts.hub.TotalConns() == 0 && ts.hub.ClientCount() == 0 })
}

func TestIntegrationMsgpackState(t *testing.T) {
	ts := startTestServer(t, nil, func(cfg *Config) {
		cfg.Server.StateEncoding = EncodingMsgpack
	})
	conn, id := connectPlayer(t, ts, "packed")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		var list []EntityState
		if err := msgpack.Unmarshal(raw, &list); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		if e, ok := findEntity(list, id); !ok || e.Name != "packed" {
			t.Errorf("player missing from binary state: %+v", list)
		}
		return
	}
}

func TestIntegrationConnectionLimit(t *testing.T) {
	ts := startTestServer(t, nil, func(cfg *Config) {
		cfg.Server.MaxConnsPerIP = 1
	})
	dialWS(t, ts.wsURL)

	_, resp, err := websocket.DefaultDialer.Dial(ts.wsURL, nil)
	if err == nil {
		t.Fatal("second connection from the same IP should be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", resp)
	}
}

func TestIntegrationStatus(t *testing.T) {
	ts := startTestServer(t, nil, func(cfg *Config) {
		cfg.Food.Target = 7
	})
	connectPlayer(t, ts, "")
	waitFor(t, func() bool { return ts.hub.ClientCount() == 1 })

	var st StatusMsg
	if code := getJSON(t, ts.srv.URL+"/status", &st); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if st.Food != 7 || st.Players != 1 || st.Clients != 1 || st.Entities != 8 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestIntegrationLeaderboard(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	if code := getJSON(t, ts.srv.URL+"/leaderboard", nil); code != http.StatusNotFound {
		t.Errorf("leaderboard without db: code %d, want 404", code)
	}

	ts = startTestServer(t, openTestDB(t), nil)
	var entries []LeaderboardEntry
	if code := getJSON(t, ts.srv.URL+"/leaderboard", &entries); code != http.StatusOK {
		t.Fatalf("leaderboard code %d", code)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty leaderboard, got %+v", entries)
	}
	if code := getJSON(t, ts.srv.URL+"/leaderboard?limit=abc", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit: code %d, want 400", code)
	}
}

func TestIntegrationQRCode(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	resp, err := http.Get(ts.srv.URL + "/qr.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("response is not a PNG")
	}
}

func TestIntegrationStaticFiles(t *testing.T) {
	ts := startTestServer(t, nil, nil)
	resp, err := http.Get(ts.srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Error("static files should be served with no-cache")
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "test") {
		t.Errorf("unexpected body %q", buf.String())
	}
}
