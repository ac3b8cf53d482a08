package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr              string
	Env               string
	LogLevel          string
	TLSCert           string
	TLSKey            string
	MaxRooms          int
	MaxClientsPerRoom int
	MaxMessageSize    int64
	RoomIdleTimeout   time.Duration
	RateLimitPerIP    float64
	EventsPerSecond   float64
	EventBurst        int
	CORSOrigins       []string
	MetricsAddr       string

	ExecURL          string
	ExecTimeout      time.Duration
	ExecSingleFlight bool
}

func LoadConfig() *Config {
	return &Config{
		Addr:              envStr("RELAY_ADDR", ":8080"),
		Env:               envStr("RELAY_ENV", "dev"),
		LogLevel:          envStr("RELAY_LOG_LEVEL", "info"),
		TLSCert:           envStr("RELAY_TLS_CERT", ""),
		TLSKey:            envStr("RELAY_TLS_KEY", ""),
		MaxRooms:          envInt("RELAY_MAX_ROOMS", 1000),
		MaxClientsPerRoom: envInt("RELAY_MAX_CLIENTS_PER_ROOM", 50),
		MaxMessageSize:    int64(envInt("RELAY_MAX_MESSAGE_SIZE", 1<<20)),
		RoomIdleTimeout:   envSeconds("RELAY_ROOM_IDLE_TIMEOUT", 3600),
		RateLimitPerIP:    float64(envInt("RELAY_RATE_LIMIT_PER_IP", 20)),
		EventsPerSecond:   float64(envInt("RELAY_EVENTS_PER_SECOND", 50)),
		EventBurst:        envInt("RELAY_EVENT_BURST", 100),
		CORSOrigins:       splitCSV(envStr("RELAY_CORS_ORIGINS", "*")),
		MetricsAddr:       envStr("RELAY_METRICS_ADDR", ""),
		ExecURL:           envStr("RELAY_EXEC_URL", "https://emkc.org/api/v2/piston"),
		ExecTimeout:       envSeconds("RELAY_EXEC_TIMEOUT", 10),
		ExecSingleFlight:  envBool("RELAY_EXEC_SINGLE_FLIGHT", false),
	}
}

// AllowsOrigin reports whether a browser origin may open a socket.
// An empty Origin header (non-browser clients) is always accepted.
func (c *Config) AllowsOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range c.CORSOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
