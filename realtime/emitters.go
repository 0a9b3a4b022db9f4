package realtime

import "encoding/json"

// Domain event emitters: typed wrappers over EmitToUser for entity
// lifecycle notifications pushed in by the CRUD layer. Each wrapper fixes
// the event name; the entity payload is forwarded verbatim.

func (s *Server) NotifyContactCreated(userID string, contact json.RawMessage) {
	s.EmitToUser(userID, "contact:created", contact)
}

func (s *Server) NotifyContactUpdated(userID string, contact json.RawMessage) {
	s.EmitToUser(userID, "contact:updated", contact)
}

func (s *Server) NotifyContactDeleted(userID string, contact json.RawMessage) {
	s.EmitToUser(userID, "contact:deleted", contact)
}

func (s *Server) NotifyTaskCreated(userID string, task json.RawMessage) {
	s.EmitToUser(userID, "task:created", task)
}

func (s *Server) NotifyTaskUpdated(userID string, task json.RawMessage) {
	s.EmitToUser(userID, "task:updated", task)
}

func (s *Server) NotifyTaskDeleted(userID string, task json.RawMessage) {
	s.EmitToUser(userID, "task:deleted", task)
}

func (s *Server) NotifyTaskStatusChanged(userID string, task json.RawMessage) {
	s.EmitToUser(userID, "task:status-changed", task)
}

func (s *Server) NotifyPersonCreated(userID string, person json.RawMessage) {
	s.EmitToUser(userID, "person:created", person)
}

func (s *Server) NotifyPersonUpdated(userID string, person json.RawMessage) {
	s.EmitToUser(userID, "person:updated", person)
}

func (s *Server) NotifyPersonDeleted(userID string, person json.RawMessage) {
	s.EmitToUser(userID, "person:deleted", person)
}

func (s *Server) NotifyCalendarEventCreated(userID string, event json.RawMessage) {
	s.EmitToUser(userID, "calendar-event:created", event)
}

func (s *Server) NotifyCalendarEventUpdated(userID string, event json.RawMessage) {
	s.EmitToUser(userID, "calendar-event:updated", event)
}

func (s *Server) NotifyCalendarEventDeleted(userID string, event json.RawMessage) {
	s.EmitToUser(userID, "calendar-event:deleted", event)
}

func (s *Server) NotifyWorkflowCreated(userID string, workflow json.RawMessage) {
	s.EmitToUser(userID, "workflow:created", workflow)
}

func (s *Server) NotifyWorkflowUpdated(userID string, workflow json.RawMessage) {
	s.EmitToUser(userID, "workflow:updated", workflow)
}

func (s *Server) NotifyWorkflowDeleted(userID string, workflow json.RawMessage) {
	s.EmitToUser(userID, "workflow:deleted", workflow)
}

func (s *Server) NotifyWorkflowStatusChanged(userID string, workflow json.RawMessage) {
	s.EmitToUser(userID, "workflow:status-changed", workflow)
}

// Notifier resolves the typed emitter for an (entity, action) pair so the
// internal notify endpoint can dispatch without string-building event names.
func (s *Server) Notifier(entity, action string) (func(string, json.RawMessage), bool) {
	key := entity + ":" + action

	table := map[string]func(string, json.RawMessage){
		"contact:created":         s.NotifyContactCreated,
		"contact:updated":         s.NotifyContactUpdated,
		"contact:deleted":         s.NotifyContactDeleted,
		"task:created":            s.NotifyTaskCreated,
		"task:updated":            s.NotifyTaskUpdated,
		"task:deleted":            s.NotifyTaskDeleted,
		"task:status-changed":     s.NotifyTaskStatusChanged,
		"person:created":          s.NotifyPersonCreated,
		"person:updated":          s.NotifyPersonUpdated,
		"person:deleted":          s.NotifyPersonDeleted,
		"calendar-event:created":  s.NotifyCalendarEventCreated,
		"calendar-event:updated":  s.NotifyCalendarEventUpdated,
		"calendar-event:deleted":  s.NotifyCalendarEventDeleted,
		"workflow:created":        s.NotifyWorkflowCreated,
		"workflow:updated":        s.NotifyWorkflowUpdated,
		"workflow:deleted":        s.NotifyWorkflowDeleted,
		"workflow:status-changed": s.NotifyWorkflowStatusChanged,
	}

	fn, ok := table[key]
	return fn, ok
}
