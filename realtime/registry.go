package realtime

import (
	"log/slog"
	"time"
)

// Register enrolls an authenticated connection. The connection is added to
// its user's private address immediately, so EmitToUser reaches it without
// any room membership, and receives connection_established.
func (s *Server) Register(conn Conn, socketID, userID, userEmail string) {
	s.register <- registerMsg{
		conn:      conn,
		socketID:  socketID,
		userID:    userID,
		userEmail: userEmail,
	}
}

// Unregister removes a connection and cascades room and typing cleanup for
// its user when no other connection of theirs remains. Safe to call for a
// connection that is already gone.
func (s *Server) Unregister(conn Conn) {
	s.unregister <- conn
}

// EmitToUser delivers an event to every connection of one user and nobody
// else.
func (s *Server) EmitToUser(userID, event string, data any) {
	s.emitUser <- userEmit{userID: userID, event: event, data: data}
}

// EmitToAll delivers an event to every live connection.
func (s *Server) EmitToAll(event string, data any) {
	s.emitAll <- allEmit{event: event, data: data}
}

func (s *Server) IsUserConnected(userID string) bool {
	reply := make(chan bool, 1)
	s.queries <- func() {
		reply <- len(s.users[userID]) > 0
	}
	return <-reply
}

func (s *Server) ConnectedClients() []ClientInfo {
	reply := make(chan []ClientInfo, 1)
	s.queries <- func() {
		list := make([]ClientInfo, 0, len(s.clients))
		for _, client := range s.clients {
			list = append(list, ClientInfo{
				SocketID:    client.SocketID,
				UserID:      client.UserID,
				UserEmail:   client.UserEmail,
				ConnectedAt: client.ConnectedAt,
			})
		}
		reply <- list
	}
	return <-reply
}

func (s *Server) ConnectedClientsCount() int {
	reply := make(chan int, 1)
	s.queries <- func() {
		reply <- len(s.clients)
	}
	return <-reply
}

func (s *Server) handleRegister(msg registerMsg) {
	client := &Client{
		SocketID:    msg.socketID,
		UserID:      msg.userID,
		UserEmail:   msg.userEmail,
		ConnectedAt: time.Now(),
		conn:        msg.conn,
		send:        make(chan []byte, sendQueueSize),
	}

	s.clients[msg.conn] = client

	if s.users[msg.userID] == nil {
		s.users[msg.userID] = make(map[Conn]*Client)
	}
	s.users[msg.userID][msg.conn] = client

	go client.writePump(s.unregister)

	slog.Info("😍 Client connected",
		slog.String("socketId", client.SocketID),
		slog.String("userId", client.UserID))

	s.push(client, EventConnectionEstablished, ConnectionEstablished{SocketID: client.SocketID})
}

func (s *Server) handleUnregister(conn Conn) {
	client, ok := s.clients[conn]
	if !ok {
		return
	}

	s.dropClient(client)
}

// dropClient removes a connection and, for the user's last connection,
// cascades through rooms and typing state. Cleanup always runs to the end;
// individual steps that find nothing to do are no-ops.
func (s *Server) dropClient(client *Client) {
	if _, ok := s.clients[client.conn]; !ok {
		return
	}

	delete(s.clients, client.conn)
	close(client.send)

	conns := s.users[client.UserID]
	delete(conns, client.conn)

	if len(conns) > 0 {
		slog.Info("Connection unregistered",
			slog.String("socketId", client.SocketID))

		return
	}

	delete(s.users, client.UserID)

	s.cancelUserTyping(client.UserID)
	s.leaveAllRooms(client.UserID, client.UserEmail)

	slog.Info("Connection unregistered, user offline",
		slog.String("socketId", client.SocketID),
		slog.String("userId", client.UserID))
}
