package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/registry"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/testhelpers"
)

const frameTimeout = 2 * time.Second

type joinReply struct {
	OK       bool               `json:"ok"`
	Room     string             `json:"room"`
	Users    []string           `json:"users"`
	Messages []registry.Message `json:"messages"`
	Error    string             `json:"error"`
}

// startTestServer runs a Server behind httptest and tears both down with t.
func startTestServer(t *testing.T, mutate func(*server.Config)) (*server.Server, *httptest.Server) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{testhelpers.TestOrigin}
	if mutate != nil {
		mutate(cfg)
	}

	srv := server.New(cfg, nil)
	srv.Start()
	ts := httptest.NewServer(srv.SetupRoutes())

	t.Cleanup(func() {
		ts.Close()
		_ = srv.Hub().Shutdown(2 * time.Second)
	})
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, err := testhelpers.ConnectWebSocket(testhelpers.WebSocketURL(ts))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func ackID(n int64) *int64 { return &n }

func join(t *testing.T, conn *websocket.Conn, ack int64, room, username string) joinReply {
	t.Helper()
	require.NoError(t, testhelpers.Emit(conn, server.EventJoinRoom, ackID(ack),
		map[string]string{"room": room, "username": username}))
	frame := waitForAck(t, conn, ack)
	var reply joinReply
	testhelpers.DecodeData(t, frame, &reply)
	return reply
}

func waitForAck(t *testing.T, conn *websocket.Conn, ack int64) testhelpers.Frame {
	t.Helper()
	for {
		frame := testhelpers.WaitForEvent(t, conn, server.EventAck, frameTimeout)
		if frame.Ack != nil && *frame.Ack == ack {
			return frame
		}
	}
}

// TestLobbyScenarioOverWebSocket drives the create/join/send/leave flow
// through real WebSocket connections.
func TestLobbyScenarioOverWebSocket(t *testing.T) {
	srv, ts := startTestServer(t, nil)
	connA := dial(t, ts)
	connB := dial(t, ts)

	require.NoError(t, testhelpers.Emit(connA, server.EventCreateRoom, ackID(1), "lobby"))
	var created server.CreateRoomReply
	testhelpers.DecodeData(t, waitForAck(t, connA, 1), &created)
	assert.Equal(t, server.CreateRoomReply{OK: true, Room: "lobby"}, created)

	reply := join(t, connA, 2, "lobby", "alice")
	assert.True(t, reply.OK)
	assert.Equal(t, []string{"alice"}, reply.Users)
	assert.NotNil(t, reply.Messages)
	assert.Empty(t, reply.Messages)

	reply = join(t, connB, 3, "lobby", "alice")
	assert.False(t, reply.OK)
	assert.Equal(t, "Username already taken in this room", reply.Error)

	require.NoError(t, testhelpers.Emit(connA, server.EventSendMessage, nil,
		map[string]string{"room": "lobby", "text": "hi"}))
	var msg registry.Message
	testhelpers.DecodeData(t, testhelpers.WaitForEvent(t, connA, registry.EventNewMessage, frameTimeout), &msg)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, "hi", msg.Text)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.TS.IsZero())

	require.NoError(t, testhelpers.Emit(connA, server.EventLeaveRoom, nil, "lobby"))
	var rooms []string
	testhelpers.DecodeData(t, testhelpers.WaitForEvent(t, connA, registry.EventRoomsList, frameTimeout), &rooms)
	assert.NotContains(t, rooms, "lobby")
	assert.NotContains(t, srv.Registry().ListRooms(), "lobby")

	testhelpers.ExpectNoEvent(t, connB, registry.EventNewMessage, 200*time.Millisecond)
}

// TestPresenceAndHistory verifies join notices, message history for late
// joiners, and the disconnect notice when a member drops.
func TestPresenceAndHistory(t *testing.T) {
	_, ts := startTestServer(t, nil)
	connA := dial(t, ts)
	connB := dial(t, ts)

	require.True(t, join(t, connA, 1, "lobby", "alice").OK)

	for _, text := range []string{"one", "two"} {
		require.NoError(t, testhelpers.Emit(connA, server.EventSendMessage, nil,
			map[string]string{"room": "lobby", "text": text}))
		var msg registry.Message
		testhelpers.DecodeData(t, testhelpers.WaitForEvent(t, connA, registry.EventNewMessage, frameTimeout), &msg)
		require.Equal(t, text, msg.Text)
	}

	reply := join(t, connB, 2, "lobby", "bob")
	require.True(t, reply.OK)
	assert.Equal(t, []string{"alice", "bob"}, reply.Users)
	require.Len(t, reply.Messages, 2)
	assert.Equal(t, "one", reply.Messages[0].Text)
	assert.Equal(t, "two", reply.Messages[1].Text)

	var users []string
	testhelpers.DecodeData(t, testhelpers.WaitForEvent(t, connA, registry.EventUserList, frameTimeout), &users)
	assert.Equal(t, []string{"alice", "bob"}, users)
	var notice string
	testhelpers.DecodeData(t, testhelpers.WaitForEvent(t, connA, registry.EventSystemMessage, frameTimeout), &notice)
	assert.Equal(t, "bob joined the room", notice)

	require.NoError(t, testhelpers.CloseWebSocket(connB))

	testhelpers.DecodeData(t, testhelpers.WaitForEvent(t, connA, registry.EventSystemMessage, frameTimeout), &notice)
	assert.Equal(t, "bob disconnected", notice)
	testhelpers.DecodeData(t, testhelpers.WaitForEvent(t, connA, registry.EventUserList, frameTimeout), &users)
	assert.Equal(t, []string{"alice"}, users)
}

// TestGetRooms verifies getRooms answers only the caller.
func TestGetRooms(t *testing.T) {
	_, ts := startTestServer(t, nil)
	connA := dial(t, ts)

	require.True(t, join(t, connA, 1, "lobby", "alice").OK)
	connB := dial(t, ts)

	require.NoError(t, testhelpers.Emit(connB, server.EventGetRooms, ackID(9), nil))
	frame := testhelpers.WaitForEvent(t, connB, registry.EventRoomsList, frameTimeout)
	require.NotNil(t, frame.Ack)
	assert.Equal(t, int64(9), *frame.Ack)
	var rooms []string
	testhelpers.DecodeData(t, frame, &rooms)
	assert.Equal(t, []string{"lobby"}, rooms)

	testhelpers.ExpectNoEvent(t, connA, registry.EventRoomsList, 200*time.Millisecond)
}

// TestRateLimitDropsExcessFrames verifies frames beyond the burst are discarded.
func TestRateLimitDropsExcessFrames(t *testing.T) {
	_, ts := startTestServer(t, func(cfg *server.Config) {
		cfg.RateLimit = server.RateLimitConfig{Burst: 2, RefillInterval: time.Hour}
	})
	conn := dial(t, ts)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, testhelpers.Emit(conn, server.EventCreateRoom, ackID(i), "room"))
	}
	waitForAck(t, conn, 1)
	waitForAck(t, conn, 2)
	testhelpers.ExpectNoEvent(t, conn, server.EventAck, 300*time.Millisecond)
}

// TestWebSocketOriginValidation verifies disallowed and missing origins are refused.
func TestWebSocketOriginValidation(t *testing.T) {
	_, ts := startTestServer(t, nil)
	url := testhelpers.WebSocketURL(ts)

	_, err := testhelpers.ConnectWebSocketWithOrigin(url, "http://evil.example.com")
	assert.Error(t, err)

	_, err = testhelpers.ConnectWebSocketWithOrigin(url, "")
	assert.Error(t, err)

	conn, err := testhelpers.ConnectWebSocketWithOrigin(url, "HTTP://LOCALHOST:8080")
	require.NoError(t, err)
	_ = conn.Close()
}

// TestWebSocketMethodNotAllowed verifies non-GET requests to /ws are rejected.
func TestWebSocketMethodNotAllowed(t *testing.T) {
	_, ts := startTestServer(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodPost, ts.URL+"/ws")
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusMethodNotAllowed)
}

// TestHealthEndpoints verifies liveness, health, and metrics routes.
func TestHealthEndpoints(t *testing.T) {
	_, ts := startTestServer(t, nil)
	conn := dial(t, ts)
	require.True(t, join(t, conn, 1, "lobby", "alice").OK)

	resp := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/")
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	assert.Equal(t, "roomchat server is running!", string(body))

	resp = testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/healthz")
	var health struct {
		Status      string `json:"status"`
		Rooms       int    `json:"rooms"`
		Connections int    `json:"connections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Rooms)
	assert.Equal(t, 1, health.Connections)

	resp = testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/metrics")
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	assert.Contains(t, string(body), "roomchat_rooms 1")
	assert.Contains(t, string(body), "roomchat_connections 1")
}
