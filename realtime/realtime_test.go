package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// testConn records every frame the core writes to it, decoded back into
// envelopes, so tests can assert on delivery and ordering.
type testConn struct {
	mu         sync.Mutex
	frames     []Envelope
	failWrites bool
	closed     bool
}

func (c *testConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failWrites {
		return errors.New("write failed")
	}

	if messageType != websocket.TextMessage {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	c.frames = append(c.frames, env)
	return nil
}

func (c *testConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// events returns the recorded envelopes for one event name.
func (c *testConn) events(name string) []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Envelope
	for _, env := range c.frames {
		if env.Event == name {
			out = append(out, env)
		}
	}
	return out
}

// waitForEvents polls until the connection has seen at least want events of
// the given name. Delivery is asynchronous through the writer goroutine, so
// assertions on received frames go through here.
func (c *testConn) waitForEvents(t *testing.T, name string, want int) []Envelope {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.events(name); len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := c.events(name)
	t.Fatalf("waited for %d %q events, saw %d", want, name, len(got))
	return got
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	s := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go s.Run(ctx)

	return s
}

// connect registers a test connection and waits for its
// connection_established so follow-up operations observe a registered state.
func connect(t *testing.T, s *Server, socketID, userID, email string) *testConn {
	t.Helper()

	conn := &testConn{}
	s.Register(conn, socketID, userID, email)
	conn.waitForEvents(t, EventConnectionEstablished, 1)

	return conn
}

// roomExists peeks at the room arena from inside the loop.
func roomExists(s *Server, roomID string) bool {
	reply := make(chan bool, 1)
	s.queries <- func() {
		_, ok := s.rooms[roomID]
		reply <- ok
	}
	return <-reply
}

// dataField digs a string out of a decoded envelope body.
func dataField(t *testing.T, env Envelope, key string) string {
	t.Helper()

	body, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("envelope data is %T, want object", env.Data)
	}

	value, _ := body[key].(string)
	return value
}
