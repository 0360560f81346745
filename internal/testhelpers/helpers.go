// Package testhelpers provides common utilities for testing the roomchat server.
//
// It wraps a gorilla/websocket dialer with helpers that speak the server's
// JSON frame protocol, so transport tests read as a sequence of events rather
// than raw reads and writes.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:8080"

// Frame is a decoded server frame. Data is left raw so tests can decode it
// into whatever shape the event carries.
type Frame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// WebSocketURL converts an httptest server URL into its /ws endpoint.
func WebSocketURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL
// using TestOrigin.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, TestOrigin)
}

// ConnectWebSocketWithOrigin dials url with the given Origin header. An empty
// origin sends no header.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Emit sends an event frame. A non-nil ack is attached as the correlation id.
func Emit(conn *websocket.Conn, event string, ack *int64, data any) error {
	frame := map[string]any{"event": event, "data": data}
	if ack != nil {
		frame["ack"] = *ack
	}
	return conn.WriteJSON(frame)
}

// ReadFrame reads the next frame, failing after timeout.
func ReadFrame(conn *websocket.Conn, timeout time.Duration) (Frame, error) {
	var frame Frame
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return frame, err
	}
	err := conn.ReadJSON(&frame)
	return frame, err
}

// WaitForEvent reads frames until one named event arrives and returns it.
// Frames with other names are discarded.
func WaitForEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) Frame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for %q", event)
		}
		frame, err := ReadFrame(conn, remaining)
		if err != nil {
			t.Fatalf("waiting for %q: %v", event, err)
		}
		if frame.Event == event {
			return frame
		}
	}
}

// DecodeData unmarshals a frame's payload into v, failing the test on error.
func DecodeData(t *testing.T, frame Frame, v any) {
	t.Helper()
	if err := json.Unmarshal(frame.Data, v); err != nil {
		t.Fatalf("decode %q payload %s: %v", frame.Event, frame.Data, err)
	}
}

// ExpectNoEvent fails if a frame named event arrives within wait.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, event string, wait time.Duration) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		frame, err := ReadFrame(conn, remaining)
		if err != nil {
			return
		}
		if frame.Event == event {
			t.Fatalf("unexpected %q frame: %s", event, frame.Data)
		}
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
