package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func bareConn(id string, buf int) *Conn {
	return &Conn{id: id, send: make(chan []byte, buf), done: make(chan struct{})}
}

func TestRoom_AddRemoveKeepsJoinOrder(t *testing.T) {
	room := NewRoom("test-room")

	room.mu.Lock()
	room.addLocked(bareConn("conn-1", 10), "Alice")
	room.addLocked(bareConn("conn-2", 10), "Bob")
	room.addLocked(bareConn("conn-3", 10), "Carol")
	room.mu.Unlock()
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, room.Users())

	room.mu.Lock()
	assert.True(t, room.removeLocked("conn-2"))
	assert.False(t, room.removeLocked("conn-2"))
	room.mu.Unlock()

	assert.Equal(t, []string{"Alice", "Carol"}, room.Users())
	assert.Equal(t, 2, room.MemberCount())
	assert.False(t, room.hasMember("conn-2"))
	assert.True(t, room.hasMember("conn-3"))
}

func TestRoom_FanoutExcludesSender(t *testing.T) {
	room := NewRoom("test-room")
	c1 := bareConn("conn-1", 10)
	c2 := bareConn("conn-2", 10)
	c3 := bareConn("conn-3", 10)

	room.mu.Lock()
	room.addLocked(c1, "Alice")
	room.addLocked(c2, "Bob")
	room.addLocked(c3, "Carol")
	sent := room.fanoutLocked("conn-1", []byte("hello"))
	room.mu.Unlock()

	assert.Equal(t, 2, sent)
	for _, c := range []*Conn{c2, c3} {
		select {
		case msg := <-c.send:
			assert.Equal(t, "hello", string(msg))
		case <-time.After(100 * time.Millisecond):
			t.Errorf("%s did not receive message", c.id)
		}
	}
	select {
	case <-c1.send:
		t.Error("sender should not receive own broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoom_SameNameDifferentConn(t *testing.T) {
	room := NewRoom("test-room")
	c1 := bareConn("conn-1", 10)
	c2 := bareConn("conn-2", 10)

	room.mu.Lock()
	room.addLocked(c1, "Alice")
	room.addLocked(c2, "Alice")
	sent := room.fanoutLocked("conn-1", []byte("hello"))
	room.mu.Unlock()

	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"Alice", "Alice"}, room.Users())
	assert.Len(t, c2.send, 1)
	assert.Len(t, c1.send, 0)
}

func TestRoom_SlowReceiverDoesNotBlockOthers(t *testing.T) {
	room := NewRoom("test-room")
	slow := bareConn("slow", 1)
	fast := bareConn("fast", 10)
	slow.send <- []byte("backlog")

	room.mu.Lock()
	room.addLocked(slow, "Slow")
	room.addLocked(fast, "Fast")
	sent := room.fanoutLocked("", []byte("hello"))
	room.mu.Unlock()

	assert.Equal(t, 1, sent)
	assert.Equal(t, "hello", string(<-fast.send))
	assert.Equal(t, "backlog", string(<-slow.send))
}

func TestRoom_LastActivity(t *testing.T) {
	room := NewRoom("test-room")

	before := room.LastActivity()
	time.Sleep(10 * time.Millisecond)

	room.mu.Lock()
	room.addLocked(bareConn("conn-1", 10), "Alice")
	room.mu.Unlock()

	assert.True(t, room.LastActivity().After(before), "LastActivity should be updated after add")
}

func TestRoom_CloseAll(t *testing.T) {
	room := NewRoom("test-room")
	c1 := bareConn("conn-1", 10)
	c2 := bareConn("conn-2", 10)
	room.mu.Lock()
	room.addLocked(c1, "Alice")
	room.addLocked(c2, "Bob")
	room.mu.Unlock()

	room.CloseAll()

	assert.False(t, c1.Send([]byte("x")), "closed connection should refuse frames")
	assert.False(t, c2.Send([]byte("x")))
}
