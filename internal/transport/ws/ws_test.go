package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/arena/internal/game/event"
	"github.com/cory-johannsen/arena/internal/game/registry"
)

// testSource keeps spawn placement deterministic across test runs.
type testSource struct {
	mu sync.Mutex
	n  int
}

func (s *testSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n % n
}

// serverEvent is the outbound envelope as a client decodes it.
type serverEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	hub := NewHub(logger)
	// An hour-long tick keeps timer events out of the assertions.
	core := registry.New(hub, 10, time.Hour, &testSource{}, logger)
	handler := NewHandler(hub, core, logger)

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, name string, data any) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"event": name, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func readEvent(t *testing.T, conn *websocket.Conn) serverEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt serverEvent
	require.NoError(t, json.Unmarshal(message, &evt))
	return evt
}

func TestCreateGame_GreetsCreator(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, "createGame", map[string]string{"room": "arena", "nickname": "Aang"})

	roster := readEvent(t, conn)
	assert.Equal(t, event.NameCurrentPlayers, roster.Event)

	var players []json.RawMessage
	require.NoError(t, json.Unmarshal(roster.Data, &players))
	assert.Len(t, players, 1)

	life := readEvent(t, conn)
	assert.Equal(t, event.NamePlayerLife, life.Event)
}

func TestJoinGame_AnnouncedToExistingPlayers(t *testing.T) {
	srv := newTestServer(t)

	creator := dial(t, srv)
	send(t, creator, "createGame", map[string]string{"room": "arena", "nickname": "Aang"})
	readEvent(t, creator) // currentPlayers
	readEvent(t, creator) // playerLife

	joiner := dial(t, srv)
	send(t, joiner, "joinGame", map[string]string{"room": "arena", "nickname": "Katara"})

	roster := readEvent(t, joiner)
	assert.Equal(t, event.NameCurrentPlayers, roster.Event)
	var players []json.RawMessage
	require.NoError(t, json.Unmarshal(roster.Data, &players))
	assert.Len(t, players, 2)
	readEvent(t, joiner) // playerLife

	announcement := readEvent(t, creator)
	assert.Equal(t, event.NameNewPlayer, announcement.Event)
}

func TestPlayerMovement_Broadcast(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, "createGame", map[string]string{"room": "arena", "nickname": "Aang"})
	readEvent(t, conn)
	readEvent(t, conn)

	send(t, conn, "playerMovement", map[string]int{"dx": 1, "dy": 0})

	moved := readEvent(t, conn)
	assert.Equal(t, event.NamePlayerMoved, moved.Event)
}

func TestBend_Broadcast(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, "createGame", map[string]string{"room": "arena", "nickname": "Aang"})
	readEvent(t, conn)
	readEvent(t, conn)

	send(t, conn, "bend", nil)

	bent := readEvent(t, conn)
	assert.Equal(t, event.NamePlayerBent, bent.Event)
}

func TestCreateGame_DuplicateRoomReportsError(t *testing.T) {
	srv := newTestServer(t)

	first := dial(t, srv)
	send(t, first, "createGame", map[string]string{"room": "arena", "nickname": "Aang"})
	readEvent(t, first)
	readEvent(t, first)

	second := dial(t, srv)
	send(t, second, "createGame", map[string]string{"room": "arena", "nickname": "Zuko"})

	errEvt := readEvent(t, second)
	assert.Equal(t, event.NameError, errEvt.Event)
}

func TestJoinGame_UnknownRoomReportsError(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, "joinGame", map[string]string{"room": "nowhere", "nickname": "Aang"})

	errEvt := readEvent(t, conn)
	assert.Equal(t, event.NameError, errEvt.Event)
}

func TestUnknownEventIsIgnored(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, "teleport", map[string]int{"x": 1})

	// The connection stays usable after the unknown event.
	send(t, conn, "createGame", map[string]string{"room": "arena", "nickname": "Aang"})
	roster := readEvent(t, conn)
	assert.Equal(t, event.NameCurrentPlayers, roster.Event)
}

func TestDisconnect_AnnouncedToRemainingPlayers(t *testing.T) {
	srv := newTestServer(t)

	creator := dial(t, srv)
	send(t, creator, "createGame", map[string]string{"room": "arena", "nickname": "Aang"})
	readEvent(t, creator)
	readEvent(t, creator)

	joiner := dial(t, srv)
	send(t, joiner, "joinGame", map[string]string{"room": "arena", "nickname": "Katara"})
	readEvent(t, joiner)
	readEvent(t, joiner)
	readEvent(t, creator) // newPlayer

	require.NoError(t, joiner.Close())

	gone := readEvent(t, creator)
	assert.Equal(t, event.NamePlayerDisconnected, gone.Event)
}

func TestHub_SendToUnknownConnectionIsNoOp(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	hub.Send("ghost", event.Error("nobody home"))
	assert.Zero(t, hub.ClientCount())
}

func TestHub_BroadcastExceptSkipsSender(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))

	a := newClient("a", nil, hub, nil, zaptest.NewLogger(t))
	b := newClient("b", nil, hub, nil, zaptest.NewLogger(t))
	hub.register(a)
	hub.register(b)
	hub.JoinRoom("arena", "a")
	hub.JoinRoom("arena", "b")

	hub.BroadcastExcept("arena", "a", event.PlayerDisconnected("a"))

	assert.Empty(t, a.send)
	assert.Len(t, b.send, 1)
}

func TestHub_UnregisterScrubsRooms(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))

	a := newClient("a", nil, hub, nil, zaptest.NewLogger(t))
	hub.register(a)
	hub.JoinRoom("arena", "a")

	hub.unregister(a)
	assert.Zero(t, hub.ClientCount())

	// Delivery after unregister must not block or panic.
	hub.Broadcast("arena", event.PlayerDisconnected("a"))
	hub.unregister(a)
}

func TestClient_EnqueueAfterCloseIsDropped(t *testing.T) {
	c := newClient("a", nil, nil, nil, zaptest.NewLogger(t))
	c.closeSend()
	c.enqueue([]byte(`{}`))
	c.closeSend()
}
