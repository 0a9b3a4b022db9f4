package realtime

import (
	"log/slog"
	"time"
)

type typingKey struct {
	roomID string
	userID string
}

// typingEntry holds at most one pending expiry timer. gen guards against a
// timer that fired after it was replaced or cancelled.
type typingEntry struct {
	userEmail string
	timer     *time.Timer
	gen       uint64
}

// TypingStart marks the connection's user as typing in a room and announces
// it to the other members. The indicator clears itself after the configured
// TTL unless stopped first; a repeated start replaces the pending timer
// rather than stacking a second one.
func (s *Server) TypingStart(conn Conn, roomID string) {
	s.typingStart <- roomMsg{conn: conn, roomID: roomID}
}

// TypingStop clears the indicator immediately and cancels the pending
// expiry.
func (s *Server) TypingStop(conn Conn, roomID string) {
	s.typingStop <- roomMsg{conn: conn, roomID: roomID}
}

func (s *Server) handleTypingStart(msg roomMsg) {
	client, ok := s.clients[msg.conn]
	if !ok {
		return
	}

	key := typingKey{roomID: msg.roomID, userID: client.UserID}

	if entry, ok := s.typing[key]; ok {
		// Replace, never stack: the old timer must not fire a stale stop.
		entry.timer.Stop()
	}

	s.typingGen++
	gen := s.typingGen

	entry := &typingEntry{
		userEmail: client.UserEmail,
		gen:       gen,
	}
	entry.timer = time.AfterFunc(s.cfg.TypingTTL, func() {
		s.typingFired <- typingExpiry{key: key, gen: gen}
	})
	s.typing[key] = entry

	s.sendToRoomExcept(msg.roomID, client.UserID, EventTyping, TypingUpdate{
		RoomID:    msg.roomID,
		UserID:    client.UserID,
		UserEmail: client.UserEmail,
		IsTyping:  true,
	})
}

func (s *Server) handleTypingStop(msg roomMsg) {
	client, ok := s.clients[msg.conn]
	if !ok {
		return
	}

	key := typingKey{roomID: msg.roomID, userID: client.UserID}

	entry, ok := s.typing[key]
	if !ok {
		return
	}

	entry.timer.Stop()
	delete(s.typing, key)

	s.sendToRoomExcept(msg.roomID, client.UserID, EventTyping, TypingUpdate{
		RoomID:    msg.roomID,
		UserID:    client.UserID,
		UserEmail: client.UserEmail,
		IsTyping:  false,
	})
}

// handleTypingExpiry clears an indicator whose TTL ran out. A fire whose
// generation no longer matches lost a race with a stop or a restart and is
// ignored.
func (s *Server) handleTypingExpiry(exp typingExpiry) {
	entry, ok := s.typing[exp.key]
	if !ok || entry.gen != exp.gen {
		return
	}

	delete(s.typing, exp.key)

	slog.Debug("Typing indicator expired",
		slog.String("roomId", exp.key.roomID),
		slog.String("userId", exp.key.userID))

	s.sendToRoomExcept(exp.key.roomID, exp.key.userID, EventTyping, TypingUpdate{
		RoomID:    exp.key.roomID,
		UserID:    exp.key.userID,
		UserEmail: entry.userEmail,
		IsTyping:  false,
	})
}

// cancelUserTyping silently drops every typing entry the user owns, across
// all rooms. Used by the disconnect cascade; the connection is gone, so
// nothing is re-broadcast.
func (s *Server) cancelUserTyping(userID string) {
	for key, entry := range s.typing {
		if key.userID != userID {
			continue
		}
		entry.timer.Stop()
		delete(s.typing, key)
	}
}
