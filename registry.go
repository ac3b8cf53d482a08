package main

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type binding struct {
	roomID string
	name   string
}

// Registry tracks live connections and the room each one is bound to. It is
// the only component that changes a connection's binding.
type Registry struct {
	presence *Presence
	log      *logrus.Entry

	mu       sync.RWMutex
	conns    map[string]*Conn
	bindings map[string]binding
}

func NewRegistry(presence *Presence, log *logrus.Logger) *Registry {
	return &Registry{
		presence: presence,
		log:      log.WithField("component", "registry"),
		conns:    make(map[string]*Conn),
		bindings: make(map[string]binding),
	}
}

// Register records a new transport connection. Rooms are untouched.
func (r *Registry) Register(c *Conn) string {
	r.mu.Lock()
	r.conns[c.id] = c
	n := len(r.conns)
	r.mu.Unlock()

	connectionsActive.Set(float64(n))
	r.log.WithField("conn_id", c.id).Debug("connection registered")
	return c.id
}

// Bind joins c to roomID under name. The binding is reserved before the
// member is added so a concurrent second join fails with ErrAlreadyBound.
func (r *Registry) Bind(c *Conn, roomID, name, agenda string) ([]string, error) {
	r.mu.Lock()
	if _, ok := r.bindings[c.id]; ok {
		r.mu.Unlock()
		return nil, ErrAlreadyBound
	}
	r.bindings[c.id] = binding{roomID: roomID, name: name}
	r.mu.Unlock()

	users, err := r.presence.AddMember(roomID, c, name, agenda)
	if err != nil {
		r.mu.Lock()
		delete(r.bindings, c.id)
		r.mu.Unlock()
		return nil, err
	}
	return users, nil
}

// Unbind removes c from its room. Calling it on an unbound connection is a
// no-op, which makes it safe for both leaveRoom and disconnect.
func (r *Registry) Unbind(c *Conn, reason LeaveReason) {
	r.mu.Lock()
	b, ok := r.bindings[c.id]
	delete(r.bindings, c.id)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.presence.RemoveMember(b.roomID, c.id, reason)
}

// OnDisconnect is the transport-level teardown. It unbinds exactly like an
// explicit leave and forgets the connection.
func (r *Registry) OnDisconnect(c *Conn) {
	r.Unbind(c, LeaveDisconnected)

	r.mu.Lock()
	delete(r.conns, c.id)
	n := len(r.conns)
	r.mu.Unlock()

	connectionsActive.Set(float64(n))
	r.log.WithField("conn_id", c.id).Debug("connection gone")
}

// Binding returns the room and display name c is bound to.
func (r *Registry) Binding(c *Conn) (roomID, name string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[c.id]
	return b.roomID, b.name, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll drops every live transport.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.Kick()
	}
}
