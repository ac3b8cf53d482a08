package main

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testConfig() *Config {
	return &Config{
		MaxRooms:          100,
		MaxClientsPerRoom: 10,
		MaxMessageSize:    1 << 20,
		RoomIdleTimeout:   1 * time.Hour,
		RateLimitPerIP:    100,
		EventsPerSecond:   1000,
		EventBurst:        1000,
		CORSOrigins:       []string{"*"},
		ExecTimeout:       2 * time.Second,
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestHub(t *testing.T, cfg *Config, provider Provider) *Hub {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	if provider == nil {
		provider = new(mockProvider)
	}
	h := NewHub(cfg, testLogger(), provider)
	t.Cleanup(h.broker.Shutdown)
	return h
}

// newTestConn builds a transport-less connection whose outbound frames can be
// read straight off its send buffer.
func newTestConn(h *Hub, id string) *Conn {
	return newTestConnBuf(h, id, 64)
}

func newTestConnBuf(h *Hub, id string, buf int) *Conn {
	c := &Conn{
		id:      id,
		hub:     h,
		send:    make(chan []byte, buf),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	if h != nil {
		c.log = h.log.WithField("conn_id", id)
	} else {
		c.log = testLogger().WithField("conn_id", id)
	}
	return c
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Execute(ctx context.Context, language, version, code string) (string, error) {
	args := m.Called(ctx, language, version, code)
	return args.String(0), args.Error(1)
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(Envelope{Event: event, Data: raw})
	require.NoError(t, err)
	return out
}

func readEvent(t *testing.T, c *Conn) Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(time.Second):
		t.Fatalf("%s: no event received", c.id)
		return Envelope{}
	}
}

// expectEvent reads the next frame for c, checks its name, and decodes its
// payload into v (which may be nil).
func expectEvent(t *testing.T, c *Conn, event string, v any) {
	t.Helper()
	env := readEvent(t, c)
	require.Equal(t, event, env.Event, "unexpected event for %s: %s", c.id, env.Data)
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v))
	}
}

func expectNoEvent(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("%s: unexpected event %s", c.id, raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func drain(c *Conn) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

// join binds c through the registry and discards the frames it produces.
func join(t *testing.T, h *Hub, c *Conn, roomID, name string) {
	t.Helper()
	_, err := h.registry.Bind(c, roomID, name, "")
	require.NoError(t, err)
	drain(c)
}
