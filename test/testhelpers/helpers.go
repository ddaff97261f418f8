// Package testhelpers provides common utilities for testing the chat server.
//
// It contains reusable helpers shared across the integration tests: starting
// a fully wired server, dialing the duplex endpoint, and exchanging frames
// with deadlines so a missing broadcast fails a test instead of hanging it.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huddle-chat/huddle-server/internal/server"
	"github.com/huddle-chat/huddle-server/internal/store"
)

// FrameWait bounds how long a test waits for an expected frame.
const FrameWait = 3 * time.Second

// StartServer wires a store, hub, and router together and serves them from
// an httptest server. Cleanup shuts the hub down and closes the listener.
func StartServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()

	srv := server.New(server.NewConfig(), store.New())
	srv.StartHub()

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		if err := srv.Hub().Shutdown(5 * time.Second); err != nil {
			t.Logf("hub shutdown: %v", err)
		}
		ts.Close()
	})

	return srv, ts
}

// WebSocketURL converts an httptest server URL to its /ws endpoint.
func WebSocketURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// Dial opens a websocket connection to the server's /ws endpoint with an
// allowed origin, registering cleanup for the connection.
func Dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", "http://localhost:8080")

	conn, resp, err := dialer.Dial(WebSocketURL(ts), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DialExpectingFailure attempts a websocket dial that should be refused and
// returns the handshake error.
func DialExpectingFailure(t *testing.T, ts *httptest.Server, origin string) error {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(WebSocketURL(ts), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err == nil {
		_ = conn.Close()
		t.Fatal("Expected websocket handshake to fail")
	}
	return err
}

// SendFrame writes a frame to the connection.
func SendFrame(t *testing.T, conn *websocket.Conn, frame server.Frame) {
	t.Helper()
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("Failed to send %s frame: %v", frame.Type, err)
	}
}

// ReceiveFrame reads the next frame, failing the test if none arrives within
// FrameWait.
func ReceiveFrame(t *testing.T, conn *websocket.Conn) server.Frame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(FrameWait)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	var frame server.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	return frame
}

// Connect performs the identity claim handshake for a connection and asserts
// the acknowledgement.
func Connect(t *testing.T, conn *websocket.Conn, userID int, username string) {
	t.Helper()

	SendFrame(t, conn, server.Frame{
		Type:    server.TypeConnect,
		Payload: server.Payload{UserID: userID, Username: username},
	})

	ack := ReceiveFrame(t, conn)
	if ack.Type != server.TypeConnect {
		t.Fatalf("Expected CONNECT acknowledgement, got %s", ack.Type)
	}
	if ack.Payload.UserID != userID {
		t.Fatalf("Expected CONNECT ack for user %d, got %d", userID, ack.Payload.UserID)
	}
}

// AssertNoFrame verifies that no frame arrives within the given window.
func AssertNoFrame(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	var frame server.Frame
	err := conn.ReadJSON(&frame)
	if err == nil {
		t.Fatalf("Expected no frame, received %s", frame.Type)
	}
}

// GetJSON performs a GET request and decodes the JSON response into v.
func GetJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("Failed to GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode response from %s: %v", url, err)
		}
	}
	return resp
}

// PostJSON performs a POST request with a JSON body and returns the response
// with its body replaced by the decoded target when v is non-nil.
func PostJSON(t *testing.T, url, body string, v any) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to POST %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode response from %s: %v", url, err)
		}
	}
	return resp
}
