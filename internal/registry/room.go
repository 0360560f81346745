package registry

type member struct {
	conn     ConnID
	username string
}

// room keeps members in join order so user lists are stable for display.
type room struct {
	name    string
	members []member
	log     []Message
}

func (rm *room) indexOf(conn ConnID) int {
	for i, m := range rm.members {
		if m.conn == conn {
			return i
		}
	}
	return -1
}

// nameTaken reports whether a member other than conn uses username.
func (rm *room) nameTaken(username string, conn ConnID) bool {
	for _, m := range rm.members {
		if m.conn != conn && m.username == username {
			return true
		}
	}
	return false
}

func (rm *room) remove(conn ConnID) (string, bool) {
	i := rm.indexOf(conn)
	if i < 0 {
		return "", false
	}
	username := rm.members[i].username
	rm.members = append(rm.members[:i], rm.members[i+1:]...)
	return username, true
}

func (rm *room) usernames() []string {
	names := make([]string, len(rm.members))
	for i, m := range rm.members {
		names[i] = m.username
	}
	return names
}

func (rm *room) memberIDs() []ConnID {
	ids := make([]ConnID, len(rm.members))
	for i, m := range rm.members {
		ids[i] = m.conn
	}
	return ids
}

func (rm *room) snapshot() []Message {
	msgs := make([]Message, len(rm.log))
	copy(msgs, rm.log)
	return msgs
}
