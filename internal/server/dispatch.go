// Package server routes decoded client frames to the room registry and builds
// the replies that go back to the caller.
package server

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Tyrowin/roomchat/internal/registry"
)

// dispatcher translates wire events into registry operations.
type dispatcher struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// handle applies f on behalf of conn. It returns the frame to send back to
// conn, or nil when the event has no reply.
func (d *dispatcher) handle(conn registry.ConnID, f InboundFrame) *OutboundFrame {
	switch f.Event {
	case EventCreateRoom:
		return d.createRoom(f)
	case EventJoinRoom:
		return d.joinRoom(conn, f)
	case EventSendMessage:
		d.sendMessage(conn, f)
	case EventLeaveRoom:
		d.leaveRoom(conn, f)
	case EventGetRooms:
		return &OutboundFrame{Event: registry.EventRoomsList, Ack: f.Ack, Data: d.registry.ListRooms()}
	default:
		d.logger.Debug("ignoring unknown event",
			zap.String("conn_id", string(conn)),
			zap.String("event", f.Event))
	}
	return nil
}

func (d *dispatcher) createRoom(f InboundFrame) *OutboundFrame {
	var name string
	if err := json.Unmarshal(f.Data, &name); err != nil {
		return ack(f, CreateRoomReply{OK: false, Error: errorText(registry.ErrInvalidName)})
	}

	room, err := d.registry.CreateRoom(name)
	if err != nil {
		return ack(f, CreateRoomReply{OK: false, Error: errorText(err)})
	}
	return ack(f, CreateRoomReply{OK: true, Room: room})
}

func (d *dispatcher) joinRoom(conn registry.ConnID, f InboundFrame) *OutboundFrame {
	var req JoinRoomRequest
	if err := json.Unmarshal(f.Data, &req); err != nil {
		return ack(f, ErrorReply{OK: false, Error: errorText(registry.ErrMissingField)})
	}

	res, err := d.registry.JoinRoom(conn, req.Room, req.Username)
	if err != nil {
		return ack(f, ErrorReply{OK: false, Error: errorText(err)})
	}
	return ack(f, JoinRoomReply{
		OK:       true,
		Room:     res.Room,
		Users:    res.Users,
		Messages: res.Messages,
	})
}

func (d *dispatcher) sendMessage(conn registry.ConnID, f InboundFrame) {
	var req SendMessageRequest
	if err := json.Unmarshal(f.Data, &req); err != nil {
		d.logger.Debug("dropping malformed sendMessage", zap.String("conn_id", string(conn)), zap.Error(err))
		return
	}
	d.registry.SendMessage(conn, req.Room, req.Text)
}

func (d *dispatcher) leaveRoom(conn registry.ConnID, f InboundFrame) {
	var room string
	if err := json.Unmarshal(f.Data, &room); err != nil {
		d.logger.Debug("dropping malformed leaveRoom", zap.String("conn_id", string(conn)), zap.Error(err))
		return
	}
	d.registry.LeaveRoom(conn, room)
}

func ack(f InboundFrame, reply any) *OutboundFrame {
	return &OutboundFrame{Event: EventAck, Ack: f.Ack, Data: reply}
}
