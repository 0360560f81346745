// Package server defines the JSON frames exchanged over a WebSocket and the
// helpers shared by client and hub logic.
package server

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Tyrowin/roomchat/internal/registry"
)

// Inbound event names.
const (
	EventCreateRoom  = "createRoom"
	EventJoinRoom    = "joinRoom"
	EventSendMessage = "sendMessage"
	EventLeaveRoom   = "leaveRoom"
	EventGetRooms    = "getRooms"
)

// EventAck names the frame that answers a createRoom or joinRoom request.
const EventAck = "ack"

// InboundFrame is a request sent by a client. Ack is an optional correlation
// id echoed back on the reply.
type InboundFrame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is either a reply (Event == EventAck) or a pushed event.
type OutboundFrame struct {
	Event string `json:"event"`
	Ack   *int64 `json:"ack,omitempty"`
	Data  any    `json:"data"`
}

// JoinRoomRequest is the payload of a joinRoom frame.
type JoinRoomRequest struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// SendMessageRequest is the payload of a sendMessage frame.
type SendMessageRequest struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// CreateRoomReply answers createRoom.
type CreateRoomReply struct {
	OK    bool   `json:"ok"`
	Room  string `json:"room,omitempty"`
	Error string `json:"error,omitempty"`
}

// JoinRoomReply answers a successful joinRoom.
type JoinRoomReply struct {
	OK       bool               `json:"ok"`
	Room     string             `json:"room"`
	Users    []string           `json:"users"`
	Messages []registry.Message `json:"messages"`
}

// ErrorReply answers a joinRoom that failed.
type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// errorText maps registry errors to the strings clients display.
func errorText(err error) string {
	switch {
	case errors.Is(err, registry.ErrInvalidName):
		return "Invalid room name"
	case errors.Is(err, registry.ErrMissingField):
		return "Missing room or username"
	case errors.Is(err, registry.ErrUsernameTaken):
		return "Username already taken in this room"
	default:
		return "Internal server error"
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
