// Package throttle slows down repeated SMTP AUTH failures against
// receiverd and senderproxy, keyed independently by remote address and by
// username so a single abusive client can't hide behind a shared
// credentials file (see internal/privmail/auth).
package throttle

import (
	"sync"
	"time"
)

type Throttle struct {
	mu       sync.Mutex
	attempts map[string]state
	cleaned  time.Time
}

type state struct {
	last     time.Time
	failures int
}

// Throttle sleeps delay if identity (a remote address or a username) has
// failed auth at least buffer times within the last delay.
func (tr *Throttle) Throttle(identity string) {
	const delay = 3 * time.Second
	const window = 60 * time.Second
	const buffer = 10

	now := timeNow()

	tr.mu.Lock()
	if now.Sub(tr.cleaned) > window {
		// Cleanup old keys.
		for key, tm := range tr.attempts {
			if now.Sub(tm.last) > delay {
				delete(tr.attempts, key)
			}
		}
		tr.cleaned = now
	}
	state := tr.attempts[identity]
	tr.mu.Unlock()

	if state.failures >= buffer && now.Sub(state.last) < delay {
		timeSleep(delay)
	}
}

// Add records a failed auth attempt against identity.
func (tr *Throttle) Add(identity string) {
	tr.mu.Lock()
	if tr.attempts == nil {
		tr.attempts = make(map[string]state)
	}
	state := tr.attempts[identity]
	state.last = timeNow()
	state.failures++
	tr.attempts[identity] = state
	tr.mu.Unlock()
}

var timeSleep = time.Sleep
var timeNow = time.Now
