package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LeaveReason tells an explicit leaveRoom apart from a dropped transport.
// Both take the same cleanup path.
type LeaveReason int

const (
	LeaveExplicit LeaveReason = iota
	LeaveDisconnected
)

func (r LeaveReason) String() string {
	switch r {
	case LeaveExplicit:
		return "explicit"
	case LeaveDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("LeaveReason(%d)", int(r))
	}
}

// Presence maintains room membership and announces the full member list
// after every change, so a client that missed an update heals on the next.
type Presence struct {
	store      *RoomStore
	maxMembers int
	log        *logrus.Entry
}

func NewPresence(store *RoomStore, maxMembers int, log *logrus.Logger) *Presence {
	return &Presence{
		store:      store,
		maxMembers: maxMembers,
		log:        log.WithField("component", "presence"),
	}
}

// AddMember inserts c into roomID, creating the room on first join. The
// joiner gets a joined ack with the room snapshot, then every member
// (joiner included) gets userJoined with the join-ordered names.
func (p *Presence) AddMember(roomID string, c *Conn, name, agenda string) ([]string, error) {
	var users []string
	err := p.store.withRoom(roomID, func(r *Room) error {
		if r.indexLocked(c.id) >= 0 {
			return fmt.Errorf("add %s to room %s: %w", c.id, roomID, ErrAlreadyBound)
		}
		if p.maxMembers > 0 && len(r.members) >= p.maxMembers {
			return ErrRoomFull
		}
		if len(r.members) == 0 && r.agenda == "" {
			r.agenda = agenda
		}
		r.addLocked(c, name)

		snap := r.snapshotLocked()
		users = snap.Users
		c.Send(encodeEvent(EventJoined, JoinedPayload{
			RoomID:   roomID,
			Code:     snap.Code,
			Language: snap.Language,
			Agenda:   snap.Agenda,
			Users:    users,
		}))
		r.fanoutLocked("", encodeEvent(EventUserJoined, UsersPayload{Users: users}))
		return nil
	})
	if err != nil {
		// A failed first join must not leave an empty room behind.
		p.store.RemoveRoomIfEmpty(roomID)
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"room_id": roomID,
		"conn_id": c.id,
		"user":    name,
		"members": len(users),
	}).Info("member joined")
	return users, nil
}

// RemoveMember is idempotent: removing an absent connection returns the
// current list and announces nothing. The room is dropped once empty.
func (p *Presence) RemoveMember(roomID, connID string, reason LeaveReason) []string {
	room, ok := p.store.Get(roomID)
	if !ok {
		return nil
	}

	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return nil
	}
	removed := room.removeLocked(connID)
	users := room.usersLocked()
	if removed && len(users) > 0 {
		room.fanoutLocked("", encodeEvent(EventUserJoined, UsersPayload{Users: users}))
	}
	room.mu.Unlock()

	if !removed {
		return users
	}
	p.log.WithFields(logrus.Fields{
		"room_id": roomID,
		"conn_id": connID,
		"reason":  reason.String(),
		"members": len(users),
	}).Info("member left")

	if len(users) == 0 {
		p.store.RemoveRoomIfEmpty(roomID)
	}
	return users
}
