package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Outbound event names.
const (
	EventConnectionEstablished = "connection_established"
	EventUserJoined            = "user_joined"
	EventUserLeft              = "user_left"
	EventPresenceUpdate        = "presence_update"
	EventTyping                = "typing"
	EventReadReceipt           = "read_receipt"
	EventReadReceipts          = "read_receipts"
	EventPong                  = "pong"
	EventError                 = "error"
)

// Envelope is the wire shape of every outbound event. The timestamp is
// stamped by the server at emit time, RFC 3339 UTC.
type Envelope struct {
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

type ConnectionEstablished struct {
	SocketID string `json:"socketId"`
}

type UserJoined struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
}

type UserLeft struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
}

type PresenceUpdate struct {
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
}

type TypingUpdate struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	IsTyping  bool   `json:"isTyping"`
}

type ReadReceipt struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
}

type ReadReceiptsReply struct {
	MessageID string   `json:"messageId"`
	ReadBy    []string `json:"readBy"`
	Count     int      `json:"count"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Inbound is the closed set of client events. Decoding yields exactly one
// variant with a validated payload; anything else is rejected at the boundary.
type Inbound interface {
	inboundEvent()
}

type JoinRoom struct {
	RoomID string `json:"roomId" validate:"required,lte=255"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId" validate:"required,lte=255"`
}

type TypingStart struct {
	RoomID string `json:"roomId" validate:"required,lte=255"`
}

type TypingStop struct {
	RoomID string `json:"roomId" validate:"required,lte=255"`
}

type MessageRead struct {
	MessageID string `json:"messageId" validate:"required,lte=255"`
	RoomID    string `json:"roomId" validate:"omitempty,lte=255"`
}

type GetReadReceipts struct {
	MessageID string `json:"messageId" validate:"required,lte=255"`
}

type Ping struct{}

func (JoinRoom) inboundEvent()        {}
func (LeaveRoom) inboundEvent()       {}
func (TypingStart) inboundEvent()     {}
func (TypingStop) inboundEvent()      {}
func (MessageRead) inboundEvent()     {}
func (GetReadReceipts) inboundEvent() {}
func (Ping) inboundEvent()            {}

var ErrUnknownEvent = errors.New("unknown event type")

var validate = validator.New()

// DecodeInbound parses a raw client frame into its event variant. The frame
// is a flat JSON object carrying a "type" discriminator.
func DecodeInbound(raw []byte) (Inbound, error) {
	var head struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	var event Inbound

	switch head.Type {
	case "join_room":
		event = &JoinRoom{}
	case "leave_room":
		event = &LeaveRoom{}
	case "typing_start":
		event = &TypingStart{}
	case "typing_stop":
		event = &TypingStop{}
	case "message_read":
		event = &MessageRead{}
	case "get_read_receipts":
		event = &GetReadReceipts{}
	case "ping":
		return &Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, head.Type)
	}

	if err := json.Unmarshal(raw, event); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", head.Type, err)
	}

	if err := validate.Struct(event); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", head.Type, err)
	}

	return event, nil
}
