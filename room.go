package main

import (
	"sync"
	"sync/atomic"
	"time"
)

type member struct {
	conn *Conn
	name string
}

// Room is the shared state of one collaboration scope. mu guards every field
// except lastActivity, which is touched from read-locked fan-out paths.
type Room struct {
	id string

	mu       sync.RWMutex
	code     string
	language Language
	agenda   string
	members  []member // join order
	closed   bool     // set once the store has dropped the room

	lastActivity atomic.Int64
}

// Snapshot is a read-only copy of a room for a newly joined participant.
type Snapshot struct {
	Code     string
	Language Language
	Agenda   string
	Users    []string
}

func NewRoom(id string) *Room {
	r := &Room{
		id:       id,
		language: DefaultLanguage,
	}
	r.touch()
	return r
}

func (r *Room) ID() string { return r.id }

func (r *Room) touch() {
	r.lastActivity.Store(time.Now().UnixNano())
}

func (r *Room) LastActivity() time.Time {
	return time.Unix(0, r.lastActivity.Load())
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usersLocked()
}

func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Room) Language() Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.language
}

func (r *Room) snapshotLocked() Snapshot {
	return Snapshot{
		Code:     r.code,
		Language: r.language,
		Agenda:   r.agenda,
		Users:    r.usersLocked(),
	}
}

func (r *Room) usersLocked() []string {
	users := make([]string, len(r.members))
	for i, m := range r.members {
		users[i] = m.name
	}
	return users
}

func (r *Room) indexLocked(connID string) int {
	for i, m := range r.members {
		if m.conn.id == connID {
			return i
		}
	}
	return -1
}

func (r *Room) hasMember(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(connID) >= 0
}

func (r *Room) addLocked(c *Conn, name string) {
	r.members = append(r.members, member{conn: c, name: name})
	r.touch()
}

// removeLocked keeps the relative join order of the remaining members.
func (r *Room) removeLocked(connID string) bool {
	i := r.indexLocked(connID)
	if i < 0 {
		return false
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	r.touch()
	return true
}

// CloseAll drops every member's transport. Each read pump then unbinds its
// connection, so presence cleanup follows the ordinary disconnect path.
func (r *Room) CloseAll() {
	r.mu.RLock()
	conns := make([]*Conn, len(r.members))
	for i, m := range r.members {
		conns[i] = m.conn
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.Kick()
	}
}
