package main

import "sync"

// Operational limits — named constants for values that, in the
// teacher's server, were scattered across multiple source files.
const (
	// circuitBreakerThreshold is the number of consecutive SendDatagram
	// failures before a session's per-client circuit breaker opens (~0.6 s
	// of frames at the default 22050 Hz / 256-sample cadence, ~86 fps).
	circuitBreakerThreshold uint32 = 50

	// circuitBreakerProbeInterval is the number of skipped sends between
	// probe attempts when the circuit breaker is open.
	circuitBreakerProbeInterval uint32 = 25

	// maxJoinMessageBytes bounds the first control-stream read before a
	// join message is parsed, so a misbehaving peer can't stall the
	// handshake goroutine on an unbounded line.
	maxJoinMessageBytes = 4096

	// maxIdentityLength bounds the username carried in a join message.
	// The identity and stream-id fields are not checked against it.
	maxIdentityLength = 128
)

// connLimiter caps total and per-IP WebTransport sessions before they
// ever reach the registry, mirroring the teacher's
// SetMaxConnections/SetPerIPLimit/CanConnect trio on Room.
type connLimiter struct {
	mu    sync.Mutex
	total int
	perIP map[string]int

	maxTotal int // 0 = unlimited
	maxPerIP int // 0 = unlimited
}

func newConnLimiter(maxTotal, maxPerIP int) *connLimiter {
	return &connLimiter{
		perIP:    make(map[string]int),
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
	}
}

// Admit reports whether a new connection from ip is allowed and, if
// so, accounts for it. Callers must pair a true result with a later
// Release.
func (l *connLimiter) Admit(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxTotal > 0 && l.total >= l.maxTotal {
		return false
	}
	if ip != "" && l.maxPerIP > 0 && l.perIP[ip] >= l.maxPerIP {
		return false
	}

	l.total++
	if ip != "" {
		l.perIP[ip]++
	}
	return true
}

// Release accounts for a connection from ip ending.
func (l *connLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total > 0 {
		l.total--
	}
	if ip == "" {
		return
	}
	if l.perIP[ip] <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip]--
	}
}

// Total returns the current number of admitted connections.
func (l *connLimiter) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
