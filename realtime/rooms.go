package realtime

import (
	"log/slog"
	"sort"
)

// JoinRoom adds the connection's user to a room, creating it on first join.
// Existing members see user_joined; the joining connection gets a
// presence_update snapshot so no follow-up query is needed.
func (s *Server) JoinRoom(conn Conn, roomID string) {
	s.join <- roomMsg{conn: conn, roomID: roomID}
}

// LeaveRoom removes the connection's user from a room. An emptied room is
// deleted, not kept around.
func (s *Server) LeaveRoom(conn Conn, roomID string) {
	s.leave <- roomMsg{conn: conn, roomID: roomID}
}

// BroadcastToRoom delivers an event to every connection of every member.
func (s *Server) BroadcastToRoom(roomID, event string, data any) {
	s.emitRoom <- roomEmit{roomID: roomID, event: event, data: data}
}

// RoomUsers returns the room's current membership, sorted.
func (s *Server) RoomUsers(roomID string) []string {
	reply := make(chan []string, 1)
	s.queries <- func() {
		reply <- s.roomMembers(roomID)
	}
	return <-reply
}

func (s *Server) roomMembers(roomID string) []string {
	members := s.rooms[roomID]
	users := make([]string, 0, len(members))
	for userID := range members {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

func (s *Server) handleJoin(msg roomMsg) {
	client, ok := s.clients[msg.conn]
	if !ok {
		return
	}

	members := s.rooms[msg.roomID]
	if members == nil {
		members = make(map[string]bool)
		s.rooms[msg.roomID] = members
	}

	if !members[client.UserID] {
		// Tell the people already there before the member set changes.
		s.sendToRoom(msg.roomID, EventUserJoined, UserJoined{
			RoomID:    msg.roomID,
			UserID:    client.UserID,
			UserEmail: client.UserEmail,
		})

		members[client.UserID] = true

		slog.Info("🚪 User joined room",
			slog.String("roomId", msg.roomID),
			slog.String("userId", client.UserID))
	}

	s.sendToConn(msg.conn, EventPresenceUpdate, PresenceUpdate{
		RoomID: msg.roomID,
		Users:  s.roomMembers(msg.roomID),
	})
}

func (s *Server) handleLeave(msg roomMsg) {
	client, ok := s.clients[msg.conn]
	if !ok {
		return
	}

	s.removeFromRoom(client.UserID, client.UserEmail, msg.roomID)
}

// removeFromRoom applies leave semantics for one (user, room) pair and is a
// no-op when the user is not a member. Shared by explicit leaves and the
// disconnect cascade.
func (s *Server) removeFromRoom(userID, userEmail, roomID string) {
	members, ok := s.rooms[roomID]
	if !ok || !members[userID] {
		return
	}

	delete(members, userID)

	if len(members) == 0 {
		delete(s.rooms, roomID)

		slog.Info("🧹 Room emptied and removed",
			slog.String("roomId", roomID))

		return
	}

	s.sendToRoom(roomID, EventUserLeft, UserLeft{
		RoomID:    roomID,
		UserID:    userID,
		UserEmail: userEmail,
	})

	slog.Info("🚪 User left room",
		slog.String("roomId", roomID),
		slog.String("userId", userID))
}

func (s *Server) leaveAllRooms(userID, userEmail string) {
	for roomID, members := range s.rooms {
		if members[userID] {
			s.removeFromRoom(userID, userEmail, roomID)
		}
	}
}

// sendToRoom delivers to every connection of every member. Loop-owned.
func (s *Server) sendToRoom(roomID, event string, data any) {
	for userID := range s.rooms[roomID] {
		s.sendToUser(userID, event, data)
	}
}

// sendToRoomExcept delivers to the room minus one user, used for typing
// updates where the sender already knows.
func (s *Server) sendToRoomExcept(roomID, exceptUserID, event string, data any) {
	for userID := range s.rooms[roomID] {
		if userID == exceptUserID {
			continue
		}
		s.sendToUser(userID, event, data)
	}
}
