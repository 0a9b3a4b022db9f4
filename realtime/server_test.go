package realtime

import (
	"fmt"
	"testing"
	"time"
)

func TestPing_Pong(t *testing.T) {
	s := newTestServer(t, Config{})

	a := connect(t, s, "sock-a", "user-a", "a@example.com")

	s.Ping(a)

	pongs := a.waitForEvents(t, EventPong, 1)
	if pongs[0].Timestamp == "" {
		t.Error("pong is missing its timestamp")
	}
}

func TestEmitError(t *testing.T) {
	s := newTestServer(t, Config{})

	a := connect(t, s, "sock-a", "user-a", "a@example.com")

	s.EmitError(a, "invalid event")

	errs := a.waitForEvents(t, EventError, 1)
	if got := dataField(t, errs[0], "message"); got != "invalid event" {
		t.Errorf("error message = %q, want %q", got, "invalid event")
	}
}

func TestDelivery_PreservesIssueOrder(t *testing.T) {
	s := newTestServer(t, Config{})

	a := connect(t, s, "sock-a", "user-a", "a@example.com")

	const n = 20
	for i := 0; i < n; i++ {
		s.EmitToUser("user-a", "task:updated", map[string]string{"seq": fmt.Sprintf("%d", i)})
	}

	events := a.waitForEvents(t, "task:updated", n)
	for i := 0; i < n; i++ {
		if got := dataField(t, events[i], "seq"); got != fmt.Sprintf("%d", i) {
			t.Fatalf("event %d carried seq %q, delivery reordered", i, got)
		}
	}
}

func TestFailingConnection_IsDropped(t *testing.T) {
	s := newTestServer(t, Config{})

	bad := &testConn{failWrites: true}
	s.Register(bad, "sock-bad", "user-a", "a@example.com")
	good := connect(t, s, "sock-good", "user-b", "b@example.com")

	// The first write fails, the writer tears the connection down and the
	// registry forgets it.
	deadline := time.Now().Add(2 * time.Second)
	for s.ConnectedClientsCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if got := s.ConnectedClientsCount(); got != 1 {
		t.Fatalf("ConnectedClientsCount() = %d, want the bad conn gone", got)
	}
	if s.IsUserConnected("user-a") {
		t.Error("user-a still reported connected through a dead socket")
	}

	// Everyone else is unaffected.
	s.EmitToAll("system:announcement", map[string]string{"text": "still here"})
	good.waitForEvents(t, "system:announcement", 1)
}
