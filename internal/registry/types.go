package registry

import (
	"errors"
	"time"
)

// Outbound event names delivered through a Notifier.
const (
	EventRoomsList     = "roomsList"
	EventUserList      = "userList"
	EventSystemMessage = "systemMessage"
	EventNewMessage    = "newMessage"
)

// UnknownUsername is attributed to messages from connections that never joined.
const UnknownUsername = "Unknown"

var (
	// ErrInvalidName is returned by CreateRoom for an empty or blank room name.
	ErrInvalidName = errors.New("invalid room name")
	// ErrMissingField is returned by JoinRoom when the room or username is blank.
	ErrMissingField = errors.New("missing room or username")
	// ErrUsernameTaken is returned by JoinRoom when another member of the room
	// already uses the requested username.
	ErrUsernameTaken = errors.New("username already taken in this room")
)

// ConnID identifies a transport connection. Values are compared for equality
// only; the registry never interprets them.
type ConnID string

// Session is the per-connection state recorded on join. Room and Username are
// either both set or both empty.
type Session struct {
	Room     string
	Username string
}

// Message is a single chat line in a room log. Messages are never modified
// after they are appended.
type Message struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	TS       time.Time `json:"ts"`
}

// Event is an outbound notification. Data is one of: []string for
// EventRoomsList and EventUserList, string for EventSystemMessage, Message for
// EventNewMessage.
type Event struct {
	Name string
	Data any
}

// JoinResult is the state handed back to a connection that joined a room.
type JoinResult struct {
	Room     string
	Users    []string
	Messages []Message
}

// Notifier delivers events to connections. Implementations must not block and
// must not call back into the Registry, since they are invoked while the
// registry lock is held.
type Notifier interface {
	// Notify delivers ev to each listed connection.
	Notify(ids []ConnID, ev Event)
	// NotifyAll delivers ev to every live connection.
	NotifyAll(ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify([]ConnID, Event) {}

func (nopNotifier) NotifyAll(Event) {}
