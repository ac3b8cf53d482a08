package main

import (
	"github.com/sirupsen/logrus"
)

// Fabric delivers events to the connections bound to a room.
//
// Delivery is at most once per receiver and never blocks: a receiver whose
// buffer is full loses that event and nobody else is affected. Two events
// issued one after the other for the same room reach every receiver in that
// order, because each receiver has a single FIFO send buffer.
type Fabric struct {
	store *RoomStore
	log   *logrus.Entry
}

func NewFabric(store *RoomStore, log *logrus.Logger) *Fabric {
	return &Fabric{
		store: store,
		log:   log.WithField("component", "fabric"),
	}
}

// Broadcast sends event(payload) to every member of roomID except exclude
// (pass "" to reach everyone). Rooms that no longer exist are ignored. It
// returns the number of receivers the event was queued for.
func (f *Fabric) Broadcast(roomID, event string, payload any, exclude string) int {
	room, ok := f.store.Get(roomID)
	if !ok {
		f.log.WithFields(logrus.Fields{"room_id": roomID, "event": event}).Debug("broadcast to absent room dropped")
		return 0
	}
	data := encodeEvent(event, payload)

	room.mu.RLock()
	defer room.mu.RUnlock()
	if room.closed {
		return 0
	}
	return room.fanoutLocked(exclude, data)
}

// fanoutLocked pushes data to members other than exclude. The caller holds
// r.mu (read or write), so the receiver set is a consistent snapshot with
// respect to joins and leaves.
func (r *Room) fanoutLocked(exclude string, data []byte) int {
	sent := 0
	for _, m := range r.members {
		if m.conn.id == exclude {
			continue
		}
		if m.conn.Send(data) {
			sent++
			continue
		}
		deliveriesDropped.Inc()
	}
	return sent
}
