package main

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPLimiter throttles WebSocket handshakes per client address.
type IPLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiterEntry
	rate     float64
}

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPLimiter(rps float64) *IPLimiter {
	return &IPLimiter{
		limiters: make(map[string]*ipLimiterEntry),
		rate:     rps,
	}
}

func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[ip]
	if !ok {
		burst := int(l.rate) * 2
		if burst < 1 {
			burst = 1
		}
		entry = &ipLimiterEntry{
			limiter: rate.NewLimiter(rate.Limit(l.rate), burst),
		}
		l.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// Run evicts addresses not seen for ten minutes until ctx is done.
func (l *IPLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(time.Now().Add(-10 * time.Minute))
		}
	}
}

func (l *IPLimiter) evict(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
			n++
		}
	}
	return n
}

func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
