package main

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const janitorInterval = 60 * time.Second

// Hub wires the room components together and routes inbound events.
type Hub struct {
	cfg *Config
	log *logrus.Logger

	store    *RoomStore
	registry *Registry
	presence *Presence
	fabric   *Fabric
	typing   *TypingRelay
	broker   *Broker
}

func NewHub(cfg *Config, log *logrus.Logger, provider Provider) *Hub {
	store := NewRoomStore(cfg.MaxRooms, log)
	presence := NewPresence(store, cfg.MaxClientsPerRoom, log)
	fabric := NewFabric(store, log)
	return &Hub{
		cfg:      cfg,
		log:      log,
		store:    store,
		presence: presence,
		registry: NewRegistry(presence, log),
		fabric:   fabric,
		typing:   NewTypingRelay(fabric),
		broker:   NewBroker(provider, fabric, cfg, log),
	}
}

// Run closes idle rooms periodically. On ctx cancellation it drops every
// connection and waits for outstanding runs.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.registry.CloseAll()
			h.broker.Shutdown()
			return
		case <-ticker.C:
			h.cleanupIdleRooms(time.Now())
		}
	}
}

func (h *Hub) Register(c *Conn) {
	h.registry.Register(c)
	c.log.Info("connected")
}

func (h *Hub) Disconnect(c *Conn) {
	h.registry.OnDisconnect(c)
	c.log.Info("disconnected")
}

func (h *Hub) RoomCount() int { return h.store.Count() }

func (h *Hub) ConnCount() int { return h.registry.Count() }

func (h *Hub) Rooms() []RoomInfo { return h.store.List() }

// Dispatch handles one inbound frame from c. Everything here completes
// without waiting on the execution provider or on other receivers.
func (h *Hub) Dispatch(c *Conn, raw []byte) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		c.log.WithError(err).Debug("undecodable frame")
		c.Send(errorEvent("", err))
		return
	}
	eventsTotal.WithLabelValues(metricEventLabel(env.Event)).Inc()

	switch env.Event {
	case EventJoin:
		h.handleJoin(c, env)
	case EventLeaveRoom:
		h.registry.Unbind(c, LeaveExplicit)
	case EventCodeChange:
		var p CodeChangePayload
		if !h.decode(c, env, &p) {
			return
		}
		if roomID, _, ok := h.bound(c, env.Event, p.RoomID); ok {
			h.store.ApplyCodeChange(roomID, p.Code, c.id)
		}
	case EventTyping:
		var p TypingPayload
		if !h.decode(c, env, &p) {
			return
		}
		if roomID, name, ok := h.bound(c, env.Event, p.RoomID); ok {
			h.typing.SignalTyping(roomID, c.id, name)
		}
	case EventLanguageChange:
		var p LanguageChangePayload
		if !h.decode(c, env, &p) {
			return
		}
		roomID, _, ok := h.bound(c, env.Event, p.RoomID)
		if !ok {
			return
		}
		lang, err := ParseLanguage(p.Language)
		if err != nil {
			c.log.WithField("language", p.Language).Debug("language change rejected")
			c.Send(errorEvent(env.Event, err))
			return
		}
		_ = h.store.ApplyLanguageChange(roomID, lang, c.id)
	case EventCompileCode:
		var p CompilePayload
		if !h.decode(c, env, &p) {
			return
		}
		if roomID, _, ok := h.bound(c, env.Event, p.RoomID); ok {
			h.broker.Submit(c, roomID, p)
		}
	default:
		c.log.WithField("event", env.Event).Debug("unknown event ignored")
	}
}

func (h *Hub) handleJoin(c *Conn, env Envelope) {
	var p JoinPayload
	if !h.decode(c, env, &p) {
		return
	}
	roomID := strings.TrimSpace(p.RoomID)
	name := strings.TrimSpace(p.UserName)
	if roomID == "" || name == "" {
		c.Send(errorEvent(env.Event, ErrInvalidPayload))
		return
	}

	if _, err := h.registry.Bind(c, roomID, name, strings.TrimSpace(p.Agenda)); err != nil {
		c.log.WithError(err).WithField("room_id", roomID).Info("join rejected")
		c.Send(errorEvent(env.Event, err))
	}
}

func (h *Hub) decode(c *Conn, env Envelope, v any) bool {
	if err := decodePayload(env, v); err != nil {
		c.log.WithError(err).WithField("event", env.Event).Debug("bad payload")
		c.Send(errorEvent(env.Event, err))
		return false
	}
	return true
}

// bound resolves the room c is bound to. Events naming a different room are
// dropped: they are leftovers from before a leave and must not leak across.
func (h *Hub) bound(c *Conn, event, claimed string) (roomID, name string, ok bool) {
	roomID, name, ok = h.registry.Binding(c)
	if !ok {
		c.Send(errorEvent(event, ErrNotBound))
		return "", "", false
	}
	if claimed != "" && claimed != roomID {
		c.log.WithFields(logrus.Fields{
			"event":   event,
			"room_id": roomID,
			"claimed": claimed,
		}).Debug("event for another room dropped")
		return "", "", false
	}
	return roomID, name, true
}

func (h *Hub) cleanupIdleRooms(now time.Time) int {
	if h.cfg.RoomIdleTimeout <= 0 {
		return 0
	}
	idle := h.store.IdleRooms(now.Add(-h.cfg.RoomIdleTimeout))
	for _, room := range idle {
		h.log.WithField("room_id", room.ID()).Info("closing idle room")
		room.CloseAll()
	}
	return len(idle)
}

// metricEventLabel keeps the label set bounded against arbitrary client input.
func metricEventLabel(event string) string {
	switch event {
	case EventJoin, EventLeaveRoom, EventCodeChange, EventTyping, EventLanguageChange, EventCompileCode:
		return event
	default:
		return "unknown"
	}
}
