package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHub_Scenario_JoinEditRun(t *testing.T) {
	prov := new(mockProvider)
	prov.On("Execute", mock.Anything, "python", "", "print(1)").Return("1\n", nil).Once()
	h := newTestHub(t, nil, prov)

	a := newTestConn(h, "conn-a")
	b := newTestConn(h, "conn-b")
	h.Register(a)
	h.Register(b)

	h.Dispatch(a, frame(t, EventJoin, JoinPayload{RoomID: "abc123", UserName: "Alice"}))
	var joined JoinedPayload
	expectEvent(t, a, EventJoined, &joined)
	assert.Equal(t, "", joined.Code)
	assert.Equal(t, DefaultLanguage, joined.Language)
	var users UsersPayload
	expectEvent(t, a, EventUserJoined, &users)
	assert.Equal(t, []string{"Alice"}, users.Users)

	h.Dispatch(b, frame(t, EventJoin, JoinPayload{RoomID: "abc123", UserName: "Bob"}))
	expectEvent(t, b, EventJoined, &joined)
	assert.Equal(t, []string{"Alice", "Bob"}, joined.Users)
	expectEvent(t, b, EventUserJoined, &users)
	assert.Equal(t, []string{"Alice", "Bob"}, users.Users)
	expectEvent(t, a, EventUserJoined, &users)
	assert.Equal(t, []string{"Alice", "Bob"}, users.Users)

	h.Dispatch(a, frame(t, EventCodeChange, CodeChangePayload{RoomID: "abc123", Code: "print(1)"}))
	var update CodeUpdatePayload
	expectEvent(t, b, EventCodeUpdate, &update)
	assert.Equal(t, "print(1)", update.Code)
	expectNoEvent(t, a)

	h.Dispatch(b, frame(t, EventCompileCode, CompilePayload{RoomID: "abc123", Code: "print(1)", Language: "python"}))
	var resp CodeResponsePayload
	expectEvent(t, a, EventCodeResponse, &resp)
	assert.Equal(t, "1\n", resp.Output)
	expectEvent(t, b, EventCodeResponse, &resp)
	assert.Equal(t, "1\n", resp.Output)

	prov.AssertExpectations(t)
}

func TestHub_DisconnectUpdatesSurvivors(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")
	b := newTestConn(h, "conn-b")
	h.Register(a)
	h.Register(b)
	join(t, h, a, "room-1", "Alice")
	join(t, h, b, "room-1", "Bob")
	drain(a)

	h.Disconnect(b)

	var users UsersPayload
	expectEvent(t, a, EventUserJoined, &users)
	assert.Equal(t, []string{"Alice"}, users.Users)
	assert.Equal(t, 1, h.ConnCount())
}

func TestHub_LeaveRoomThenRejoinStartsFresh(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")
	h.Register(a)
	join(t, h, a, "room-1", "Alice")
	h.Dispatch(a, frame(t, EventCodeChange, CodeChangePayload{RoomID: "room-1", Code: "x = 1"}))
	h.Dispatch(a, frame(t, EventLanguageChange, LanguageChangePayload{RoomID: "room-1", Language: "java"}))

	h.Dispatch(a, frame(t, EventLeaveRoom, struct{}{}))
	_, ok := h.store.Get("room-1")
	assert.False(t, ok, "room should vanish with its last member")
	assert.Equal(t, 0, h.RoomCount())

	h.Dispatch(a, frame(t, EventJoin, JoinPayload{RoomID: "room-1", UserName: "Alice"}))
	var joined JoinedPayload
	expectEvent(t, a, EventJoined, &joined)
	assert.Equal(t, "", joined.Code)
	assert.Equal(t, DefaultLanguage, joined.Language)
	assert.Equal(t, []string{"Alice"}, joined.Users)
}

func TestHub_JoinTwiceIsRejected(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")
	join(t, h, a, "room-1", "Alice")

	h.Dispatch(a, frame(t, EventJoin, JoinPayload{RoomID: "room-2", UserName: "Alice"}))

	var ack ErrorPayload
	expectEvent(t, a, EventError, &ack)
	assert.Equal(t, "alreadyBound", ack.Code)
	assert.Equal(t, EventJoin, ack.Event)
	_, ok := h.store.Get("room-2")
	assert.False(t, ok)
	roomID, _, _ := h.registry.Binding(a)
	assert.Equal(t, "room-1", roomID)
}

func TestHub_JoinRequiresRoomAndName(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")

	h.Dispatch(a, frame(t, EventJoin, JoinPayload{RoomID: "room-1", UserName: "   "}))

	var ack ErrorPayload
	expectEvent(t, a, EventError, &ack)
	assert.Equal(t, "invalidPayload", ack.Code)
	assert.Equal(t, 0, h.RoomCount())
}

func TestHub_EventsBeforeJoin(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")

	h.Dispatch(a, frame(t, EventCodeChange, CodeChangePayload{RoomID: "room-1", Code: "x"}))

	var ack ErrorPayload
	expectEvent(t, a, EventError, &ack)
	assert.Equal(t, "notJoined", ack.Code)
	assert.Equal(t, 0, h.RoomCount())

	// leaveRoom on an unbound connection is silently idempotent.
	h.Dispatch(a, frame(t, EventLeaveRoom, struct{}{}))
	expectNoEvent(t, a)
}

func TestHub_EventForOtherRoomDropped(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")
	b := newTestConn(h, "conn-b")
	join(t, h, a, "room-1", "Alice")
	join(t, h, b, "room-1", "Bob")
	drain(a)

	h.Dispatch(a, frame(t, EventCodeChange, CodeChangePayload{RoomID: "room-2", Code: "stale"}))

	expectNoEvent(t, b)
	snap, ok := h.store.Snapshot("room-1")
	require.True(t, ok)
	assert.Equal(t, "", snap.Code)
}

func TestHub_InvalidLanguageDropped(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")
	b := newTestConn(h, "conn-b")
	join(t, h, a, "room-1", "Alice")
	join(t, h, b, "room-1", "Bob")
	drain(a)

	h.Dispatch(a, frame(t, EventLanguageChange, LanguageChangePayload{RoomID: "room-1", Language: "cobol"}))

	var ack ErrorPayload
	expectEvent(t, a, EventError, &ack)
	assert.Equal(t, "invalidLanguage", ack.Code)
	expectNoEvent(t, b)
	snap, _ := h.store.Snapshot("room-1")
	assert.Equal(t, DefaultLanguage, snap.Language)

	h.Dispatch(a, frame(t, EventLanguageChange, LanguageChangePayload{RoomID: "room-1", Language: "python"}))
	var lu LanguageUpdatePayload
	expectEvent(t, b, EventLanguageUpdate, &lu)
	assert.Equal(t, LangPython, lu.Language)
	expectNoEvent(t, a)
}

func TestHub_TypingUsesBoundName(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")
	b := newTestConn(h, "conn-b")
	join(t, h, a, "room-1", "Alice")
	join(t, h, b, "room-1", "Bob")
	drain(a)

	h.Dispatch(a, frame(t, EventTyping, TypingPayload{RoomID: "room-1", UserName: "Mallory"}))
	h.Dispatch(a, frame(t, EventTyping, TypingPayload{RoomID: "room-1", UserName: "Mallory"}))

	var typing UserTypingPayload
	expectEvent(t, b, EventUserTyping, &typing)
	assert.Equal(t, "Alice", typing.UserName)
	// Repeated signals are forwarded, not debounced.
	expectEvent(t, b, EventUserTyping, &typing)
	expectNoEvent(t, a)
}

func TestHub_GarbageFrame(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")

	h.Dispatch(a, []byte("not json"))
	var ack ErrorPayload
	expectEvent(t, a, EventError, &ack)
	assert.Equal(t, "invalidPayload", ack.Code)

	h.Dispatch(a, []byte(`{"event":"somethingElse","data":{}}`))
	expectNoEvent(t, a)
}

func TestHub_AgendaFromFirstJoiner(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")
	b := newTestConn(h, "conn-b")

	h.Dispatch(a, frame(t, EventJoin, JoinPayload{RoomID: "room-1", UserName: "Alice", Agenda: "LeetCode 101"}))
	h.Dispatch(b, frame(t, EventJoin, JoinPayload{RoomID: "room-1", UserName: "Bob", Agenda: "something else"}))

	var joined JoinedPayload
	expectEvent(t, b, EventJoined, &joined)
	assert.Equal(t, "LeetCode 101", joined.Agenda)
}

func TestHub_CleanupIdleRooms(t *testing.T) {
	h := newTestHub(t, nil, nil)
	a := newTestConn(h, "conn-a")
	join(t, h, a, "room-1", "Alice")

	assert.Equal(t, 0, h.cleanupIdleRooms(time.Now()))

	n := h.cleanupIdleRooms(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, n)
	select {
	case <-a.done:
	default:
		t.Fatal("idle room member should be closed")
	}
}

func TestHub_RunAndShutdown(t *testing.T) {
	h := newTestHub(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub.Run did not return after cancel")
	}
}
