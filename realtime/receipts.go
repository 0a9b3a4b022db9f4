package realtime

import (
	"log/slog"
	"sort"
	"time"
)

// receiptEntry tracks who has read one message. createdAt is stored
// explicitly; retention never infers age from the message id.
type receiptEntry struct {
	readBy    map[string]bool
	createdAt time.Time
}

// MessageRead records that the connection's user has read a message. When
// the caller supplies the room, the receipt is announced there.
func (s *Server) MessageRead(conn Conn, messageID, roomID string) {
	s.messageRead <- readMsg{conn: conn, messageID: messageID, roomID: roomID}
}

// GetReadReceipts answers the asking connection with a read_receipts reply
// over its own channel.
func (s *Server) GetReadReceipts(conn Conn, messageID string) {
	s.receiptAsk <- receiptQuery{conn: conn, messageID: messageID}
}

// ReadReceipts returns the reader set for a message, sorted.
func (s *Server) ReadReceipts(messageID string) []string {
	reply := make(chan []string, 1)
	s.queries <- func() {
		reply <- s.readersOf(messageID)
	}
	return <-reply
}

func (s *Server) readersOf(messageID string) []string {
	entry := s.reads[messageID]
	if entry == nil {
		return []string{}
	}

	readers := make([]string, 0, len(entry.readBy))
	for userID := range entry.readBy {
		readers = append(readers, userID)
	}
	sort.Strings(readers)
	return readers
}

func (s *Server) handleMessageRead(msg readMsg) {
	client, ok := s.clients[msg.conn]
	if !ok {
		return
	}

	entry := s.reads[msg.messageID]
	if entry == nil {
		entry = &receiptEntry{
			readBy:    make(map[string]bool),
			createdAt: time.Now(),
		}
		s.reads[msg.messageID] = entry
	}
	entry.readBy[client.UserID] = true

	if msg.roomID != "" {
		s.sendToRoom(msg.roomID, EventReadReceipt, ReadReceipt{
			MessageID: msg.messageID,
			UserID:    client.UserID,
			UserEmail: client.UserEmail,
		})
	}
}

func (s *Server) handleReceiptQuery(q receiptQuery) {
	readers := s.readersOf(q.messageID)

	s.sendToConn(q.conn, EventReadReceipts, ReadReceiptsReply{
		MessageID: q.messageID,
		ReadBy:    readers,
		Count:     len(readers),
	})
}

// sweepReceipts drops every entry older than the retention window. Runs on
// the sweep ticker; harmless when nothing has expired.
func (s *Server) sweepReceipts(now time.Time) {
	cutoff := now.Add(-s.cfg.ReceiptRetention)

	swept := 0
	for messageID, entry := range s.reads {
		if entry.createdAt.Before(cutoff) {
			delete(s.reads, messageID)
			swept++
		}
	}

	if swept > 0 {
		slog.Info("🧹 Swept expired read receipts",
			slog.Int("count", swept))
	}
}
