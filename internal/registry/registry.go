package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"
)

// Registry is the room/session table shared by all connection handlers.
// The zero value is not usable; create one with New.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*room
	order    []string
	sessions map[ConnID]Session

	notifier Notifier
	logger   *zap.Logger
	metrics  *Metrics
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registry events.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the collectors the registry updates.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithClock overrides the time source used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty Registry that publishes through notifier.
// A nil notifier discards all events.
func New(notifier Notifier, opts ...Option) *Registry {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	r := &Registry{
		rooms:    make(map[string]*room),
		sessions: make(map[ConnID]Session),
		notifier: notifier,
		logger:   zap.NewNop(),
		metrics:  NewMetrics(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListRooms returns the room names in creation order.
func (r *Registry) ListRooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomNames()
}

// RoomCount returns the number of rooms currently registered.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Session returns the state recorded for conn by its last join.
func (r *Registry) Session(conn ConnID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[conn]
	return s, ok
}

// CreateRoom registers a room and returns its canonical name. Creating a room
// that already exists leaves it untouched. The room list is broadcast to every
// connection either way.
func (r *Registry) CreateRoom(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, created := r.ensureRoom(name); created {
		r.logger.Info("room created", zap.String("room", name))
	}
	r.notifier.NotifyAll(Event{Name: EventRoomsList, Data: r.roomNames()})
	return name, nil
}

// JoinRoom makes conn a member of roomName under username, creating the room
// if needed. A connection that is still a member of a different room is
// removed from it first.
func (r *Registry) JoinRoom(conn ConnID, roomName, username string) (JoinResult, error) {
	roomName = strings.TrimSpace(roomName)
	username = strings.TrimSpace(username)
	if roomName == "" || username == "" {
		r.metrics.rejectJoin(ErrMissingField)
		return JoinResult{}, ErrMissingField
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[roomName]; ok && rm.nameTaken(username, conn) {
		r.metrics.rejectJoin(ErrUsernameTaken)
		r.logger.Debug("join rejected",
			zap.String("conn_id", string(conn)),
			zap.String("room", roomName),
			zap.String("username", username),
			zap.Error(ErrUsernameTaken))
		return JoinResult{}, ErrUsernameTaken
	}

	if prev, ok := r.sessions[conn]; ok && prev.Room != roomName {
		if old, exists := r.rooms[prev.Room]; exists {
			r.removeMember(old, conn, "%s left the room")
		}
	}

	rm, created := r.ensureRoom(roomName)
	if created {
		r.logger.Info("room created", zap.String("room", roomName))
	}
	if i := rm.indexOf(conn); i >= 0 {
		rm.members[i].username = username
	} else {
		rm.members = append(rm.members, member{conn: conn, username: username})
		r.metrics.Members.Inc()
	}
	r.sessions[conn] = Session{Room: roomName, Username: username}

	users := rm.usernames()
	ids := rm.memberIDs()
	r.notifier.Notify(ids, Event{Name: EventUserList, Data: users})
	r.notifier.Notify(ids, Event{Name: EventSystemMessage, Data: fmt.Sprintf("%s joined the room", username)})
	r.notifier.NotifyAll(Event{Name: EventRoomsList, Data: r.roomNames()})

	r.logger.Info("member joined",
		zap.String("conn_id", string(conn)),
		zap.String("room", roomName),
		zap.String("username", username),
		zap.Int("members", len(rm.members)))

	return JoinResult{Room: roomName, Users: users, Messages: rm.snapshot()}, nil
}

// SendMessage appends text to the room log and broadcasts it to the room's
// members. Empty input is ignored. Sending to a room that does not exist
// creates it without members.
func (r *Registry) SendMessage(conn ConnID, roomName, text string) {
	roomName = strings.TrimSpace(roomName)
	if roomName == "" || text == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	username := UnknownUsername
	if s, ok := r.sessions[conn]; ok && s.Username != "" {
		username = s.Username
	}

	rm, created := r.ensureRoom(roomName)
	if created {
		r.logger.Warn("message sent to unknown room; created it empty",
			zap.String("conn_id", string(conn)),
			zap.String("room", roomName))
	}

	msg := Message{
		ID:       xid.New().String(),
		Username: username,
		Text:     text,
		TS:       r.now(),
	}
	rm.log = append(rm.log, msg)
	r.metrics.Messages.Inc()

	r.notifier.Notify(rm.memberIDs(), Event{Name: EventNewMessage, Data: msg})
}

// LeaveRoom removes conn from roomName. It does nothing when conn is not a
// member of that room. The connection's session is kept.
func (r *Registry) LeaveRoom(conn ConnID, roomName string) {
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomName]
	if !ok {
		return
	}
	if username, left := r.removeMember(rm, conn, "%s left the room"); left {
		r.logger.Info("member left",
			zap.String("conn_id", string(conn)),
			zap.String("room", roomName),
			zap.String("username", username))
	}
}

// Disconnect forgets conn. If it is still a member of the room it last joined,
// the remaining members are told it disconnected.
func (r *Registry) Disconnect(conn ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[conn]
	delete(r.sessions, conn)
	if !ok || s.Room == "" || s.Username == "" {
		return
	}

	rm, exists := r.rooms[s.Room]
	if !exists || rm.indexOf(conn) < 0 {
		return
	}
	r.removeMember(rm, conn, "%s disconnected")
	r.logger.Info("member disconnected",
		zap.String("conn_id", string(conn)),
		zap.String("room", s.Room),
		zap.String("username", s.Username))
}

// removeMember drops conn from rm, announces it with notice, and deletes rm
// once it is empty. Callers hold r.mu.
func (r *Registry) removeMember(rm *room, conn ConnID, notice string) (string, bool) {
	username, ok := rm.remove(conn)
	if !ok {
		return "", false
	}
	r.metrics.Members.Dec()

	if username == "" {
		username = UnknownUsername
	}
	ids := rm.memberIDs()
	r.notifier.Notify(ids, Event{Name: EventSystemMessage, Data: fmt.Sprintf(notice, username)})
	r.notifier.Notify(ids, Event{Name: EventUserList, Data: rm.usernames()})

	if len(rm.members) == 0 {
		r.deleteRoom(rm.name)
		r.notifier.NotifyAll(Event{Name: EventRoomsList, Data: r.roomNames()})
	}
	return username, true
}

func (r *Registry) ensureRoom(name string) (*room, bool) {
	if rm, ok := r.rooms[name]; ok {
		return rm, false
	}
	rm := &room{name: name}
	r.rooms[name] = rm
	r.order = append(r.order, name)
	r.metrics.Rooms.Inc()
	return rm, true
}

func (r *Registry) deleteRoom(name string) {
	if _, ok := r.rooms[name]; !ok {
		return
	}
	delete(r.rooms, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.metrics.Rooms.Dec()
	r.logger.Info("room deleted", zap.String("room", name))
}

func (r *Registry) roomNames() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
