package integration

import (
	"testing"
	"time"

	"github.com/huddle-chat/huddle-server/test/testhelpers"
)

func TestShutdownClosesConnectedClients(t *testing.T) {
	srv, ts := testhelpers.StartServer(t)

	alice := testhelpers.Dial(t, ts)
	testhelpers.Connect(t, alice, 1, "Alice")

	done := make(chan error, 1)
	go func() {
		done <- srv.Hub().Shutdown(5 * time.Second)
	}()

	// The server closes the connection, so the next read must fail.
	if err := alice.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		if _, _, err := alice.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Hub shutdown returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Hub shutdown did not complete in time")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv, ts := testhelpers.StartServer(t)

	alice := testhelpers.Dial(t, ts)
	testhelpers.Connect(t, alice, 1, "Alice")

	if err := srv.Hub().Shutdown(5 * time.Second); err != nil {
		t.Fatalf("First shutdown failed: %v", err)
	}
	if err := srv.Hub().Shutdown(time.Second); err != nil {
		t.Errorf("Second shutdown should be a no-op, got %v", err)
	}
}
