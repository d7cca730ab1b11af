// Package alert implements the SMS alert path: the minimum-interval
// gate that caps outbound message rate, the Lox24 HTTP transport, and
// the service that formats and dispatches detection alerts.
package alert

import (
	"sync"
	"time"
)

// Gate permits at most one acquisition per minimum interval. It is a
// leaky-bucket-of-one, not a token bucket: there is no burst credit,
// alerts lost during a burst are cheaper than paying for every SMS.
type Gate struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastSent    time.Time
	sentOnce    bool
}

// NewGate returns a gate with the given minimum inter-alert interval.
func NewGate(minInterval time.Duration) *Gate {
	return &Gate{minInterval: minInterval}
}

// TryAcquire reports whether an alert may fire at now, recording the
// acquisition on success. force always acquires. An acquisition is an
// optimistic reservation: a message that ends up not being sent still
// consumes the interval.
func (g *Gate) TryAcquire(now time.Time, force bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !force && g.sentOnce && now.Sub(g.lastSent) < g.minInterval {
		return false
	}
	g.lastSent = now
	g.sentOnce = true
	return true
}

// Remaining returns the wait until the next non-forced acquisition can
// succeed, or zero if one would succeed now. For logging only.
func (g *Gate) Remaining(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.sentOnce {
		return 0
	}
	remaining := g.minInterval - now.Sub(g.lastSent)
	if remaining < 0 {
		return 0
	}
	return remaining
}
