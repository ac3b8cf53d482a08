package main

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RoomStore is the single source of truth for room state.
//
// mu only guards the id -> room map; each Room serializes its own fields, so
// different rooms never contend past the map lookup. Code and language follow
// last-write-wins: whatever arrives at the room lock last replaces the value,
// with no merge. Lock order is always store.mu before room.mu.
type RoomStore struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	maxRooms int
	log      *logrus.Entry
}

type RoomInfo struct {
	RoomID       string    `json:"roomId"`
	Language     Language  `json:"language"`
	Members      int       `json:"members"`
	LastActivity time.Time `json:"lastActivity"`
}

func NewRoomStore(maxRooms int, log *logrus.Logger) *RoomStore {
	return &RoomStore{
		rooms:    make(map[string]*Room),
		maxRooms: maxRooms,
		log:      log.WithField("component", "store"),
	}
}

// EnsureRoom returns the live room for id, creating an empty one if needed.
func (s *RoomStore) EnsureRoom(id string) (*Room, error) {
	s.mu.RLock()
	room, ok := s.rooms[id]
	s.mu.RUnlock()
	if ok {
		return room, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[id]; ok {
		return room, nil
	}
	if s.maxRooms > 0 && len(s.rooms) >= s.maxRooms {
		return nil, ErrTooManyRooms
	}
	room = NewRoom(id)
	s.rooms[id] = room
	roomsActive.Set(float64(len(s.rooms)))
	s.log.WithField("room_id", id).Info("room created")
	return room, nil
}

func (s *RoomStore) Get(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	return room, ok
}

// withRoom runs fn under the write lock of a live room, creating the room
// first. It retries when it loses a race with RemoveRoomIfEmpty, so fn never
// runs against a room that is no longer in the map.
func (s *RoomStore) withRoom(id string, fn func(r *Room) error) error {
	for {
		room, err := s.EnsureRoom(id)
		if err != nil {
			return err
		}
		room.mu.Lock()
		if room.closed {
			room.mu.Unlock()
			continue
		}
		err = fn(room)
		room.mu.Unlock()
		return err
	}
}

// update runs fn under the write lock of an existing room. Absent or
// already-removed rooms are a no-op and report false.
func (s *RoomStore) update(id string, fn func(r *Room)) bool {
	room, ok := s.Get(id)
	if !ok {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return false
	}
	fn(room)
	room.touch()
	return true
}

// Snapshot returns the state a joining participant should start from.
func (s *RoomStore) Snapshot(id string) (Snapshot, bool) {
	room, ok := s.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return room.Snapshot(), true
}

// ApplyCodeChange replaces the room's code and pushes codeUpdate to every
// member but origin. Both happen under the room lock, so receivers see
// updates in exactly the order the store applied them.
func (s *RoomStore) ApplyCodeChange(id, code, origin string) bool {
	frame := encodeEvent(EventCodeUpdate, CodeUpdatePayload{Code: code})
	return s.update(id, func(r *Room) {
		r.code = code
		r.fanoutLocked(origin, frame)
	})
}

// ApplyLanguageChange is a no-op for languages outside the supported set.
func (s *RoomStore) ApplyLanguageChange(id string, lang Language, origin string) error {
	if !lang.Valid() {
		return ErrInvalidLanguage
	}
	frame := encodeEvent(EventLanguageUpdate, LanguageUpdatePayload{Language: lang})
	s.update(id, func(r *Room) {
		r.language = lang
		r.fanoutLocked(origin, frame)
	})
	return nil
}

// RemoveRoomIfEmpty drops the room once its last member is gone. A later
// join with the same id starts from a fresh room.
func (s *RoomStore) RemoveRoomIfEmpty(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if len(room.members) > 0 {
		return false
	}
	room.closed = true
	delete(s.rooms, id)
	roomsActive.Set(float64(len(s.rooms)))
	s.log.WithField("room_id", id).Info("room destroyed (no members)")
	return true
}

func (s *RoomStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *RoomStore) all() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// List describes every live room, sorted by id.
func (s *RoomStore) List() []RoomInfo {
	rooms := s.all()
	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		r.mu.RLock()
		out = append(out, RoomInfo{
			RoomID:       r.id,
			Language:     r.language,
			Members:      len(r.members),
			LastActivity: r.LastActivity(),
		})
		r.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// IdleRooms returns rooms with no activity since before cutoff.
func (s *RoomStore) IdleRooms(cutoff time.Time) []*Room {
	var idle []*Room
	for _, r := range s.all() {
		if r.LastActivity().Before(cutoff) {
			idle = append(idle, r)
		}
	}
	return idle
}
