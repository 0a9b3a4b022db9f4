package realtime

import (
	"reflect"
	"testing"
	"time"
)

func TestJoinRoom_PresenceSnapshotAndBroadcast(t *testing.T) {
	s := newTestServer(t, Config{})

	a := connect(t, s, "sock-a", "user-a", "a@example.com")
	b := connect(t, s, "sock-b", "user-b", "b@example.com")

	s.JoinRoom(a, "deal-42")

	// The first member gets a snapshot containing itself.
	snapshots := a.waitForEvents(t, EventPresenceUpdate, 1)
	if got := dataField(t, snapshots[0], "roomId"); got != "deal-42" {
		t.Errorf("presence_update roomId = %q, want deal-42", got)
	}

	s.JoinRoom(b, "deal-42")

	// Existing members hear about the join; the joiner does not.
	joins := a.waitForEvents(t, EventUserJoined, 1)
	if got := dataField(t, joins[0], "userId"); got != "user-b" {
		t.Errorf("user_joined userId = %q, want user-b", got)
	}
	if got := dataField(t, joins[0], "userEmail"); got != "b@example.com" {
		t.Errorf("user_joined userEmail = %q, want b@example.com", got)
	}
	if got := b.events(EventUserJoined); len(got) != 0 {
		t.Errorf("joiner observed %d user_joined events for itself, want 0", len(got))
	}

	snapshots = b.waitForEvents(t, EventPresenceUpdate, 1)
	users, ok := snapshots[0].Data.(map[string]any)["users"].([]any)
	if !ok {
		t.Fatalf("presence_update users missing: %#v", snapshots[0].Data)
	}
	if !reflect.DeepEqual(users, []any{"user-a", "user-b"}) {
		t.Errorf("presence_update users = %v, want [user-a user-b]", users)
	}

	if got := s.RoomUsers("deal-42"); !reflect.DeepEqual(got, []string{"user-a", "user-b"}) {
		t.Errorf("RoomUsers() = %v, want [user-a user-b]", got)
	}
}

func TestLeaveRoom_BroadcastAndEmptyRoomRemoval(t *testing.T) {
	s := newTestServer(t, Config{})

	a := connect(t, s, "sock-a", "user-a", "a@example.com")
	b := connect(t, s, "sock-b", "user-b", "b@example.com")

	s.JoinRoom(a, "deal-42")
	s.JoinRoom(b, "deal-42")

	s.LeaveRoom(b, "deal-42")

	lefts := a.waitForEvents(t, EventUserLeft, 1)
	if got := dataField(t, lefts[0], "userId"); got != "user-b" {
		t.Errorf("user_left userId = %q, want user-b", got)
	}

	if got := s.RoomUsers("deal-42"); !reflect.DeepEqual(got, []string{"user-a"}) {
		t.Errorf("RoomUsers() = %v, want [user-a]", got)
	}

	// Last member out deletes the room entry entirely, with nobody left to
	// broadcast to.
	s.LeaveRoom(a, "deal-42")

	if got := s.RoomUsers("deal-42"); len(got) != 0 {
		t.Errorf("RoomUsers() = %v, want empty", got)
	}
	if roomExists(s, "deal-42") {
		t.Error("room entry still exists after last member left")
	}
	if got := a.events(EventUserLeft); len(got) != 1 {
		t.Errorf("user A saw %d user_left events, want 1 (not its own)", len(got))
	}
}

func TestJoinLeave_RoundTrip(t *testing.T) {
	s := newTestServer(t, Config{})

	a := connect(t, s, "sock-a", "user-a", "a@example.com")
	b := connect(t, s, "sock-b", "user-b", "b@example.com")

	s.JoinRoom(a, "deal-42")

	before := s.RoomUsers("deal-42")

	s.JoinRoom(b, "deal-42")
	s.LeaveRoom(b, "deal-42")

	after := s.RoomUsers("deal-42")

	if !reflect.DeepEqual(before, after) {
		t.Errorf("room state after join+leave = %v, want %v", after, before)
	}
}

func TestLeaveRoom_NotAMemberIsNoop(t *testing.T) {
	s := newTestServer(t, Config{})

	a := connect(t, s, "sock-a", "user-a", "a@example.com")
	b := connect(t, s, "sock-b", "user-b", "b@example.com")

	s.JoinRoom(a, "deal-42")

	// Leaving a room twice, or a room never joined, changes nothing: a
	// leave_room racing a disconnect must be harmless.
	s.LeaveRoom(b, "deal-42")
	s.LeaveRoom(b, "unknown-room")

	if got := s.RoomUsers("deal-42"); !reflect.DeepEqual(got, []string{"user-a"}) {
		t.Errorf("RoomUsers() = %v, want [user-a]", got)
	}
}

func TestBroadcastToRoom(t *testing.T) {
	s := newTestServer(t, Config{})

	a := connect(t, s, "sock-a", "user-a", "a@example.com")
	b := connect(t, s, "sock-b", "user-b", "b@example.com")
	c := connect(t, s, "sock-c", "user-c", "c@example.com")

	s.JoinRoom(a, "deal-42")
	s.JoinRoom(b, "deal-42")

	s.BroadcastToRoom("deal-42", "contact:updated", map[string]string{"id": "c-9"})

	a.waitForEvents(t, "contact:updated", 1)
	b.waitForEvents(t, "contact:updated", 1)

	if s.ConnectedClientsCount() != 3 {
		t.Fatal("expected three live connections")
	}
	if got := c.events("contact:updated"); len(got) != 0 {
		t.Errorf("non-member observed %d room events, want 0", len(got))
	}
}

func TestDisconnect_CascadesThroughRooms(t *testing.T) {
	s := newTestServer(t, Config{TypingTTL: 80 * time.Millisecond})

	a := connect(t, s, "sock-a", "user-a", "a@example.com")
	b := connect(t, s, "sock-b", "user-b", "b@example.com")

	s.JoinRoom(a, "deal-42")
	s.JoinRoom(a, "deal-77")
	s.JoinRoom(b, "deal-42")
	s.JoinRoom(b, "deal-77")

	// A is typing in one room, then drops without leave_room.
	s.TypingStart(a, "deal-42")
	b.waitForEvents(t, EventTyping, 1)

	s.Unregister(a)

	// Both rooms tell the remaining member.
	lefts := b.waitForEvents(t, EventUserLeft, 2)
	rooms := map[string]bool{}
	for _, env := range lefts {
		rooms[dataField(t, env, "roomId")] = true
	}
	if !rooms["deal-42"] || !rooms["deal-77"] {
		t.Errorf("user_left rooms = %v, want deal-42 and deal-77", rooms)
	}

	// The pending typing timer was cancelled with the connection: no stale
	// isTyping:false after the TTL.
	time.Sleep(200 * time.Millisecond)

	if got := b.events(EventTyping); len(got) != 1 {
		t.Errorf("user B saw %d typing events, want only the initial true", len(got))
	}

	if got := s.RoomUsers("deal-42"); !reflect.DeepEqual(got, []string{"user-b"}) {
		t.Errorf("RoomUsers(deal-42) = %v, want [user-b]", got)
	}
}
