package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256

	// Connections that keep flooding after this many dropped events are cut.
	maxRateViolations = 500
)

// Conn is one participant's live session. The registry owns its room binding;
// Conn itself only knows how to move frames.
type Conn struct {
	id      string
	hub     *Hub
	ws      *websocket.Conn
	ip      string
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	log     *logrus.Entry

	closeOnce sync.Once
}

func NewConn(hub *Hub, ws *websocket.Conn, ip string) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:      id,
		hub:     hub,
		ws:      ws,
		ip:      ip,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(hub.cfg.EventsPerSecond), hub.cfg.EventBurst),
		log:     hub.log.WithFields(logrus.Fields{"conn_id": id, "ip": ip}),
	}
}

// Send queues a frame without blocking. It reports false when the frame was
// dropped because the connection is closed or its buffer is full.
func (c *Conn) Send(data []byte) bool {
	if data == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the write pump. It never closes the send channel, so late
// senders (a run finishing after disconnect) are harmless.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Kick drops the transport; the read pump then runs the disconnect path.
func (c *Conn) Kick() {
	if c.ws != nil {
		_ = c.ws.Close()
	}
	c.Close()
}

func (c *Conn) ReadPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	violations := 0
	for {
		typ, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("read error")
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}

		if !c.limiter.Allow() {
			violations++
			if violations%100 == 1 {
				c.log.WithField("violations", violations).Warn("event rate limit exceeded")
				c.Send(errorEvent("", ErrRateLimited))
			}
			if violations > maxRateViolations {
				c.log.Warn("disconnecting client for sustained flooding")
				return
			}
			continue
		}

		c.hub.Dispatch(c, message)
	}
}

func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Debug("write failed")
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
