package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the transport surface the core writes to. *websocket.Conn
// satisfies it; tests use an in-memory recorder.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live authenticated connection. Created by register,
// destroyed by unregister; all fields are owned by the event loop except
// send, which the writer goroutine drains.
type Client struct {
	SocketID    string
	UserID      string
	UserEmail   string
	ConnectedAt time.Time

	conn Conn
	send chan []byte
}

// ClientInfo is the externally visible snapshot of a connection.
type ClientInfo struct {
	SocketID    string    `json:"socketId"`
	UserID      string    `json:"userId"`
	UserEmail   string    `json:"userEmail"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type Config struct {
	// TypingTTL is the auto-expiry window for a typing indicator.
	TypingTTL time.Duration
	// ReceiptRetention is how long a read-receipt entry is kept.
	ReceiptRetention time.Duration
	// SweepInterval is how often expired receipts are collected.
	SweepInterval time.Duration
}

const (
	defaultTypingTTL        = 3 * time.Second
	defaultReceiptRetention = 1 * time.Hour
	defaultSweepInterval    = 30 * time.Minute

	// Outbound frames queued per connection before it is dropped as slow.
	sendQueueSize = 256
)

type registerMsg struct {
	conn      Conn
	socketID  string
	userID    string
	userEmail string
}

type roomMsg struct {
	conn   Conn
	roomID string
}

type readMsg struct {
	conn      Conn
	messageID string
	roomID    string
}

type receiptQuery struct {
	conn      Conn
	messageID string
}

type typingExpiry struct {
	key typingKey
	gen uint64
}

type userEmit struct {
	userID string
	event  string
	data   any
}

type roomEmit struct {
	roomID string
	event  string
	data   any
}

type allEmit struct {
	event string
	data  any
}

type connEmit struct {
	conn  Conn
	event string
	data  any
}

// Server is the realtime core: connection registry, room presence, typing
// state and read receipts, all owned by the single Run goroutine. Callers
// interact only through the exported operations.
type Server struct {
	cfg Config

	clients map[Conn]*Client
	users   map[string]map[Conn]*Client
	rooms   map[string]map[string]bool
	typing  map[typingKey]*typingEntry
	reads   map[string]*receiptEntry

	register     chan registerMsg
	unregister   chan Conn
	join         chan roomMsg
	leave        chan roomMsg
	typingStart  chan roomMsg
	typingStop   chan roomMsg
	typingFired  chan typingExpiry
	messageRead  chan readMsg
	receiptAsk   chan receiptQuery
	emitUser     chan userEmit
	emitRoom     chan roomEmit
	emitAll      chan allEmit
	emitConn     chan connEmit
	queries      chan func()
	sweepNow     chan time.Time

	typingGen uint64
}

func New(cfg Config) *Server {
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = defaultTypingTTL
	}
	if cfg.ReceiptRetention <= 0 {
		cfg.ReceiptRetention = defaultReceiptRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	return &Server{
		cfg:         cfg,
		clients:     make(map[Conn]*Client),
		users:       make(map[string]map[Conn]*Client),
		rooms:       make(map[string]map[string]bool),
		typing:      make(map[typingKey]*typingEntry),
		reads:       make(map[string]*receiptEntry),
		register:    make(chan registerMsg),
		unregister:  make(chan Conn, 64),
		join:        make(chan roomMsg),
		leave:       make(chan roomMsg),
		typingStart: make(chan roomMsg),
		typingStop:  make(chan roomMsg),
		typingFired: make(chan typingExpiry, 64),
		messageRead: make(chan readMsg),
		receiptAsk:  make(chan receiptQuery),
		emitUser:    make(chan userEmit),
		emitRoom:    make(chan roomEmit),
		emitAll:     make(chan allEmit),
		emitConn:    make(chan connEmit),
		queries:     make(chan func()),
		sweepNow:    make(chan time.Time),
	}
}

// Run drives the core until ctx is cancelled. All state mutation happens
// here; operations queued from other goroutines are applied one at a time.
func (s *Server) Run(ctx context.Context) {
	slog.Info("🚀 Starting the realtime core ✅")

	sweep := time.NewTicker(s.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return

		case msg := <-s.register:
			s.handleRegister(msg)

		case conn := <-s.unregister:
			s.handleUnregister(conn)

		case msg := <-s.join:
			s.handleJoin(msg)

		case msg := <-s.leave:
			s.handleLeave(msg)

		case msg := <-s.typingStart:
			s.handleTypingStart(msg)

		case msg := <-s.typingStop:
			s.handleTypingStop(msg)

		case exp := <-s.typingFired:
			s.handleTypingExpiry(exp)

		case msg := <-s.messageRead:
			s.handleMessageRead(msg)

		case q := <-s.receiptAsk:
			s.handleReceiptQuery(q)

		case e := <-s.emitUser:
			s.sendToUser(e.userID, e.event, e.data)

		case e := <-s.emitRoom:
			s.sendToRoom(e.roomID, e.event, e.data)

		case e := <-s.emitAll:
			s.sendToAll(e.event, e.data)

		case e := <-s.emitConn:
			s.sendToConn(e.conn, e.event, e.data)

		case fn := <-s.queries:
			fn()

		case <-sweep.C:
			s.sweepReceipts(time.Now())

		case now := <-s.sweepNow:
			s.sweepReceipts(now)
		}
	}
}

func (s *Server) shutdown() {
	for conn, client := range s.clients {
		close(client.send)
		delete(s.clients, conn)
	}

	slog.Info("Realtime core stopped")
}

// Ping answers the client's application-level ping with a pong.
func (s *Server) Ping(conn Conn) {
	s.emitConn <- connEmit{conn: conn, event: EventPong}
}

// EmitError reports a rejected inbound event back to its sender.
func (s *Server) EmitError(conn Conn, message string) {
	s.emitConn <- connEmit{conn: conn, event: EventError, data: ErrorPayload{Message: message}}
}

// sendToConn delivers one event to one connection. Loop-owned.
func (s *Server) sendToConn(conn Conn, event string, data any) {
	client, ok := s.clients[conn]
	if !ok {
		return
	}
	s.push(client, event, data)
}

func (s *Server) sendToUser(userID, event string, data any) {
	for _, client := range s.users[userID] {
		s.push(client, event, data)
	}
}

func (s *Server) sendToAll(event string, data any) {
	for _, client := range s.clients {
		s.push(client, event, data)
	}
}

// push queues an envelope on the client's writer. A client that cannot keep
// up has its queue closed and is unregistered.
func (s *Server) push(client *Client, event string, data any) {
	payload, err := json.Marshal(Envelope{
		Event:     event,
		Data:      data,
		Timestamp: timestamp(),
	})
	if err != nil {
		slog.Error("💀 Couldn't marshal event",
			slog.String("event", event),
			slog.String("error", err.Error()))

		return
	}

	select {
	case client.send <- payload:
	default:
		slog.Warn("💀 Client too slow, dropping",
			slog.String("socketId", client.SocketID),
			slog.String("userId", client.UserID))

		s.dropClient(client)
	}
}

// writePump drains one client's queue onto the socket, preserving the order
// events were issued in. Exits when the queue closes or a write fails.
func (c *Client) writePump(unregister chan<- Conn) {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Error("💀 Couldn't write message",
				slog.String("socketId", c.SocketID),
				slog.String("error", err.Error()))

			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			c.conn.Close()

			select {
			case unregister <- c.conn:
			default:
			}

			// Keep draining so queued senders are never stuck.
			for range c.send {
			}
			return
		}
	}

	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
	c.conn.Close()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
