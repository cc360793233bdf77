package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter hands out one token bucket per client address.
type clientLimiter struct {
	mu       sync.Mutex
	perSec   rate.Limit
	burst    int
	visitors map[string]*limiterEntry
	clockNow func() time.Time
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		perSec:   rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*limiterEntry),
		clockNow: time.Now,
	}
}

// Allow reports whether client may issue another request. A nil limiter
// allows everything.
func (l *clientLimiter) Allow(client string) bool {
	if l == nil {
		return true
	}
	if client == "" {
		client = "unknown"
	}
	now := l.clockNow()

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, entry := range l.visitors {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.visitors, id)
		}
	}
	entry, ok := l.visitors[client]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.perSec, l.burst)}
		l.visitors[client] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// clientSource identifies the caller by remote address. Forwarded headers are
// ignored because the node is not expected to sit behind a proxy.
func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
